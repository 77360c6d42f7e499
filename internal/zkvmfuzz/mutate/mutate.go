// Package mutate implements the eight bandit-selected structured RV32IM
// program mutation strategies.
package mutate

import (
	"math/rand"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/riscv"
)

// Arm identifies one mutation strategy; its integer value is also the
// bandit arm index.
type Arm int

const (
	ArmSplice Arm = iota
	ArmMutateRegister
	ArmMutateConstant
	ArmInsertRandom
	ArmDelete
	ArmDuplicate
	ArmSwapAdjacent
	ArmReplaceMnemonic

	ArmCount = int(ArmReplaceMnemonic) + 1
)

// MaxProgramLength is the hard cap on mutated program length.
const MaxProgramLength = 2048

var constantPool = []int32{0, 1, -1, 2, 4, 8, 16, 32, 127, -128}

// usedOperands is the set of operands the mutators prefer to reuse so a
// mutation is more likely to preserve execution reachability.
type usedOperands struct {
	registers    []uint8
	memBases     []uint8
	memImmediates []int32
}

func collectUsedOperands(words []uint32) usedOperands {
	var u usedOperands
	seenReg := make(map[uint8]bool)
	for _, w := range words {
		in, err := riscv.Decode(w)
		if err != nil {
			continue
		}
		for _, r := range []*uint8{in.Rd, in.Rs1, in.Rs2} {
			if r != nil && !seenReg[*r] {
				seenReg[*r] = true
				u.registers = append(u.registers, *r)
			}
		}
		if (in.Mnemonic.IsLoad() || in.Mnemonic.IsStore()) && in.Rs1 != nil {
			u.memBases = append(u.memBases, *in.Rs1)
			if in.Imm != nil {
				u.memImmediates = append(u.memImmediates, *in.Imm)
			}
		}
	}
	if len(u.registers) == 0 {
		u.registers = []uint8{0}
	}
	return u
}

func truncate(words []uint32) []uint32 {
	if len(words) > MaxProgramLength {
		return words[:MaxProgramLength]
	}
	return words
}

// Mutate applies arm to program, optionally drawing from corpus for the
// splice arm. Any arm that would produce an invalid encoding silently
// leaves the program unchanged.
func Mutate(arm Arm, program []uint32, corpus [][]uint32, rng *rand.Rand) []uint32 {
	switch arm {
	case ArmSplice:
		return mutateSplice(program, corpus, rng)
	case ArmMutateRegister:
		return mutateRegisterField(program, rng)
	case ArmMutateConstant:
		return mutateConstant(program, rng)
	case ArmInsertRandom:
		return mutateInsertRandom(program, rng)
	case ArmDelete:
		return mutateDelete(program, rng)
	case ArmDuplicate:
		return mutateDuplicate(program, rng)
	case ArmSwapAdjacent:
		return mutateSwapAdjacent(program, rng)
	case ArmReplaceMnemonic:
		return mutateReplaceMnemonic(program, rng)
	default:
		return program
	}
}

func cloneWords(words []uint32) []uint32 {
	out := make([]uint32, len(words))
	copy(out, words)
	return out
}

func mutateSplice(program []uint32, corpus [][]uint32, rng *rand.Rand) []uint32 {
	if len(corpus) == 0 {
		return program
	}
	other := corpus[rng.Intn(len(corpus))]
	if len(program) == 0 || len(other) == 0 {
		return program
	}
	cutSelf := rng.Intn(len(program) + 1)
	cutOther := rng.Intn(len(other) + 1)
	result := append(cloneWords(program[:cutSelf]), other[cutOther:]...)
	return truncate(result)
}

func mutateRegisterField(program []uint32, rng *rand.Rand) []uint32 {
	if len(program) == 0 {
		return program
	}
	used := collectUsedOperands(program)
	idx := rng.Intn(len(program))
	in, err := riscv.Decode(program[idx])
	if err != nil {
		return program
	}
	candidates := []**uint8{&in.Rd, &in.Rs1, &in.Rs2}
	var present []int
	for i, c := range candidates {
		if *c != nil {
			present = append(present, i)
		}
	}
	if len(present) == 0 {
		return program
	}
	pick := present[rng.Intn(len(present))]
	newReg := used.registers[rng.Intn(len(used.registers))]
	*candidates[pick] = &newReg

	word, err := riscv.Encode(in)
	if err != nil {
		return program
	}
	out := cloneWords(program)
	out[idx] = word
	return out
}

func mutateConstant(program []uint32, rng *rand.Rand) []uint32 {
	if len(program) == 0 {
		return program
	}
	idx := rng.Intn(len(program))
	in, err := riscv.Decode(program[idx])
	if err != nil || in.Imm == nil {
		return program
	}
	newImm := constantPool[rng.Intn(len(constantPool))]
	if newImm == *in.Imm {
		return program
	}
	in.Imm = &newImm
	word, err := riscv.Encode(in)
	if err != nil {
		return program
	}
	out := cloneWords(program)
	out[idx] = word
	return out
}

func mutateInsertRandom(program []uint32, rng *rand.Rand) []uint32 {
	used := collectUsedOperands(program)
	var word uint32
	var err error
	if len(used.memBases) > 0 && rng.Float64() < 0.25 {
		base := used.memBases[rng.Intn(len(used.memBases))]
		offset := used.memImmediates[rng.Intn(len(used.memImmediates))]
		rd := used.registers[rng.Intn(len(used.registers))]
		word, err = riscv.EncodeFromParts(riscv.Lw, &rd, &base, nil, &offset, nil)
	} else {
		rd := used.registers[rng.Intn(len(used.registers))]
		rs1 := used.registers[rng.Intn(len(used.registers))]
		imm := constantPool[rng.Intn(len(constantPool))]
		word, err = riscv.EncodeFromParts(riscv.Addi, &rd, &rs1, nil, &imm, nil)
	}
	if err != nil {
		return program
	}
	return truncate(append(cloneWords(program), word))
}

func mutateDelete(program []uint32, rng *rand.Rand) []uint32 {
	if len(program) < 2 {
		return program
	}
	idx := rng.Intn(len(program))
	out := make([]uint32, 0, len(program)-1)
	out = append(out, program[:idx]...)
	out = append(out, program[idx+1:]...)
	return out
}

func mutateDuplicate(program []uint32, rng *rand.Rand) []uint32 {
	if len(program) == 0 {
		return program
	}
	idx := rng.Intn(len(program))
	out := make([]uint32, 0, len(program)+1)
	out = append(out, program[:idx+1]...)
	out = append(out, program[idx])
	out = append(out, program[idx+1:]...)
	return truncate(out)
}

func mutateSwapAdjacent(program []uint32, rng *rand.Rand) []uint32 {
	if len(program) < 2 {
		return program
	}
	idx := rng.Intn(len(program) - 1)
	out := cloneWords(program)
	out[idx], out[idx+1] = out[idx+1], out[idx]
	return out
}

// sameFormatSwapTable groups mnemonics that share an encoding format so a
// replacement keeps all operands meaningful.
var sameFormatSwapTable = map[riscv.Mnemonic][]riscv.Mnemonic{
	riscv.Add:  {riscv.Sub, riscv.Xor, riscv.Or, riscv.And, riscv.Sll, riscv.Srl, riscv.Slt, riscv.Sltu},
	riscv.Sub:  {riscv.Add, riscv.Xor, riscv.Or, riscv.And},
	riscv.Addi: {riscv.Xori, riscv.Ori, riscv.Andi, riscv.Slti, riscv.Sltiu},
	riscv.Xori: {riscv.Addi, riscv.Ori, riscv.Andi},
	riscv.Lb:   {riscv.Lh, riscv.Lw, riscv.Lbu, riscv.Lhu},
	riscv.Lh:   {riscv.Lb, riscv.Lw, riscv.Lbu, riscv.Lhu},
	riscv.Lw:   {riscv.Lb, riscv.Lh, riscv.Lbu, riscv.Lhu},
	riscv.Sb:   {riscv.Sh, riscv.Sw},
	riscv.Sh:   {riscv.Sb, riscv.Sw},
	riscv.Sw:   {riscv.Sb, riscv.Sh},
	riscv.Div:  {riscv.Divu, riscv.Rem, riscv.Remu},
	riscv.Beq:  {riscv.Bne, riscv.Blt, riscv.Bge, riscv.Bltu, riscv.Bgeu},
}

func init() {
	sameFormatSwapTable[riscv.Divu] = []riscv.Mnemonic{riscv.Div, riscv.Rem, riscv.Remu}
	sameFormatSwapTable[riscv.Rem] = []riscv.Mnemonic{riscv.Div, riscv.Divu, riscv.Remu}
	sameFormatSwapTable[riscv.Remu] = []riscv.Mnemonic{riscv.Div, riscv.Divu, riscv.Rem}
	sameFormatSwapTable[riscv.Bne] = []riscv.Mnemonic{riscv.Beq, riscv.Blt, riscv.Bge, riscv.Bltu, riscv.Bgeu}
	sameFormatSwapTable[riscv.Blt] = []riscv.Mnemonic{riscv.Beq, riscv.Bne, riscv.Bge, riscv.Bltu, riscv.Bgeu}
	sameFormatSwapTable[riscv.Bge] = []riscv.Mnemonic{riscv.Beq, riscv.Bne, riscv.Blt, riscv.Bltu, riscv.Bgeu}
	sameFormatSwapTable[riscv.Bltu] = []riscv.Mnemonic{riscv.Beq, riscv.Bne, riscv.Blt, riscv.Bge, riscv.Bgeu}
	sameFormatSwapTable[riscv.Bgeu] = []riscv.Mnemonic{riscv.Beq, riscv.Bne, riscv.Blt, riscv.Bge, riscv.Bltu}
}

func mutateReplaceMnemonic(program []uint32, rng *rand.Rand) []uint32 {
	if len(program) == 0 {
		return program
	}
	idx := rng.Intn(len(program))
	in, err := riscv.Decode(program[idx])
	if err != nil {
		return program
	}
	candidates, ok := sameFormatSwapTable[in.Mnemonic]
	if !ok || len(candidates) == 0 {
		return program
	}
	in.Mnemonic = candidates[rng.Intn(len(candidates))]
	word, err := riscv.Encode(in)
	if err != nil {
		return program
	}
	out := cloneWords(program)
	out[idx] = word
	return out
}
