package workerproto

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/bucket"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/oracle"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/riscv"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/trace"
)

// InjectAnchor names one of the four witness columns the directed loop
// knows how to under-constrain. These are the literal inject_kind values
// a Request carries, and the strategy half of fuzz.InjectionTargets.
const (
	InjectRs2ImmLimbs          = "audit.rs2_imm_limbs"
	InjectAuipcPCLimbs         = "audit.auipc_pc_limbs"
	InjectLoadStoreImmSign     = "audit.loadstore_imm_sign"
	InjectDivRemSpecialCase    = "audit.divrem_special_case_on_invalid"
)

func chipRowKindFor(m riscv.Mnemonic) trace.ChipRowKind {
	switch m {
	case riscv.Sll, riscv.Srl, riscv.Sra, riscv.Slli, riscv.Srli, riscv.Srai:
		return trace.KindShift
	case riscv.Slt, riscv.Sltu, riscv.Slti, riscv.Sltiu:
		return trace.KindLessThan
	case riscv.Mul, riscv.Mulh, riscv.Mulhsu, riscv.Mulhu:
		if m == riscv.Mulh || m == riscv.Mulhsu || m == riscv.Mulhu {
			return trace.KindMulH
		}
		return trace.KindMul
	case riscv.Div, riscv.Divu, riscv.Rem, riscv.Remu:
		return trace.KindDivRem
	case riscv.Beq, riscv.Bne:
		return trace.KindBranchEqual
	case riscv.Blt, riscv.Bge, riscv.Bltu, riscv.Bgeu:
		return trace.KindBranchLessThan
	case riscv.Jal, riscv.Lui:
		return trace.KindJalLui
	case riscv.Jalr:
		return trace.KindJalr
	case riscv.Auipc:
		return trace.KindAuipc
	case riscv.Lb, riscv.Lh, riscv.Lw, riscv.Sb, riscv.Sh, riscv.Sw:
		return trace.KindLoadStore
	case riscv.Lbu, riscv.Lhu:
		return trace.KindLoadSignExtend
	case riscv.Ecall, riscv.Ebreak:
		return trace.KindPhantom
	default:
		return trace.KindBaseAlu
	}
}

func addrSpaceFor(rs1 *uint8) trace.MemoryAddrSpace {
	if rs1 == nil {
		return trace.AddrSpaceZero
	}
	switch *rs1 {
	case 0:
		return trace.AddrSpaceZero
	default:
		if *rs1 < 32 {
			return trace.AddrSpaceReg
		}
		return trace.AddrSpaceOther
	}
}

func u32ptr(v uint32) *uint32 { return &v }
func u64ptr(v uint64) *uint64 { return &v }
func i64ptr(v int64) *int64   { return &v }
func boolptr(v bool) *bool    { return &v }

// ExecuteReference re-derives a structured trace and final register state
// from the oracle's own RV32IM semantics, standing in for a real zkVM
// backend so the full feedback/bucket/mutation pipeline can be exercised
// without one wired up. When req carries an injection anchor, the
// corresponding witness column is deliberately under-constrained at
// req.InjectStep: when that instruction writes a register other than x0,
// the backend register file disagrees with the oracle at that register;
// otherwise the register file is left as the oracle computed it.
func ExecuteReference(req Request, cfg *oracle.Config) Response {
	instructions := make([]riscv.Instruction, 0, len(req.Words))
	for i, w := range req.Words {
		in, err := riscv.Decode(w)
		if err != nil {
			return Response{RequestID: req.RequestID, BackendError: decodeErrorMessage(i, err)}
		}
		instructions = append(instructions, in)
	}

	result := oracle.Run(req.Words, cfg)

	var insns []trace.Insn
	var rows []trace.ChipRow
	var interactions []trace.Interaction
	var seq uint64
	var ts uint64

	regs := result.Regs
	injected := false

	for step, in := range instructions {
		stepIdx := uint64(step)
		pc := uint64(step) * 4
		// preRegs is the register file as it stood before this
		// instruction executed, used to populate the witness columns
		// that reference operand values (div/rem limbs, effective
		// memory pointers, bitwise operands).
		preRegs := oracle.Run(req.Words[:step], cfg).Regs
		insns = append(insns, trace.Insn{Seq: seq, StepIdx: stepIdx, PC: pc, Timestamp: u64ptr(ts)})
		seq++

		kind := chipRowKindFor(in.Mnemonic)
		row := trace.ChipRow{
			Base: trace.ChipRowBase{
				Seq: seq, StepIdx: stepIdx, OpIdx: 0, IsValid: true,
				Timestamp: u64ptr(ts), ChipName: string(kind), Kind: kind,
			},
		}
		seq++

		if in.Rd != nil {
			row.RegPointers.Rd = u32ptr(uint32(*in.Rd))
		}
		if in.Rs1 != nil {
			row.RegPointers.Rs1 = u32ptr(uint32(*in.Rs1))
		}
		if in.Rs2 != nil {
			row.RegPointers.Rs2 = u32ptr(uint32(*in.Rs2))
		} else if in.Imm != nil {
			row.ImmPayload.IsImm = true
			row.ImmPayload.Imm = i64ptr(int64(*in.Imm))
			row.ImmPayload.FieldImm = fieldFromImm(*in.Imm)
			row.ImmPayload.Sign = boolptr(*in.Imm < 0)
		}

		if in.Mnemonic.IsDivRem() && in.Rs1 != nil && in.Rs2 != nil {
			rs1v := preRegs[*in.Rs1]
			rs2v := preRegs[*in.Rs2]
			row.LimbPayload.HasLimbs = true
			row.LimbPayload.Rs1Val = u32ptr(rs1v)
			row.LimbPayload.Rs2Val = u32ptr(rs2v)
		}

		if in.Mnemonic.IsLoad() || in.Mnemonic.IsStore() {
			space := addrSpaceFor(in.Rs1)
			row.AddrSpace = &space
			var base uint32
			if in.Rs1 != nil {
				base = preRegs[*in.Rs1]
			}
			var offset int32
			if in.Imm != nil {
				offset = *in.Imm
			}
			ptr := uint32(int64(base) + int64(offset))
			row.EffectivePtr = u32ptr(ptr)

			interactions = append(interactions, trace.Interaction{
				Base: trace.InteractionBase{
					Seq: seq, StepIdx: stepIdx, OpIdx: 0, RowID: rowIDFor(stepIdx), Direction: trace.DirectionSend,
					Kind: trace.InteractionMemory, Timestamp: u64ptr(ts),
				},
				AddrSpace: space, Pointer: ptr,
			})
			seq++
		}

		switch in.Mnemonic {
		case riscv.And, riscv.Or, riscv.Xor, riscv.Andi, riscv.Ori, riscv.Xori:
			var x, y uint64
			if in.Rs1 != nil {
				x = uint64(preRegs[*in.Rs1])
			}
			if in.Rs2 != nil {
				y = uint64(preRegs[*in.Rs2])
			} else if in.Imm != nil {
				y = uint64(uint32(*in.Imm))
			}
			interactions = append(interactions, trace.Interaction{
				Base: trace.InteractionBase{
					Seq: seq, StepIdx: stepIdx, OpIdx: 1, RowID: rowIDFor(stepIdx), Direction: trace.DirectionSend,
					Kind: trace.InteractionBitwise, Timestamp: u64ptr(ts),
				},
				Op: bitwiseOpName(in.Mnemonic), X: x, Y: y, Z: bitwiseResult(in.Mnemonic, x, y),
			})
			seq++
		}

		if in.Mnemonic.Format() == riscv.FormatI || in.Mnemonic.Format() == riscv.FormatR {
			interactions = append(interactions, trace.Interaction{
				Base: trace.InteractionBase{
					Seq: seq, StepIdx: stepIdx, OpIdx: 2, RowID: rowIDFor(stepIdx), Direction: trace.DirectionSend,
					Kind: trace.InteractionRangeCheck, Timestamp: u64ptr(ts),
				},
				MaxBits: 32, Value: uint64(step),
			})
			seq++
		}

		interactions = append(interactions, trace.Interaction{
			Base: trace.InteractionBase{
				Seq: seq, StepIdx: stepIdx, OpIdx: 3, RowID: rowIDFor(stepIdx), Direction: trace.DirectionSend,
				Kind: trace.InteractionExecution, Timestamp: u64ptr(ts),
			},
			PC: pc,
		})
		seq++

		rows = append(rows, row)
		ts++

		if !injected && matchesAnchor(req.InjectKind, in, stepIdx, req.InjectStep) {
			injected = true
			if in.Rd != nil && *in.Rd != 0 {
				regs[*in.Rd] ^= 0x1
			}
		}
	}

	tr, err := trace.NewTrace(insns, rows, interactions)
	if err != nil {
		return Response{RequestID: req.RequestID, BackendError: err.Error()}
	}

	hits := bucket.Match(bucket.MatchInput{Words: req.Words, Trace: tr})

	return Response{
		RequestID:    req.RequestID,
		FinalRegs:    regs,
		MicroOpCount: len(rows),
		BucketHits:   hits,
	}
}

func decodeErrorMessage(step int, err error) string {
	e := &executionError{Message: "backend could not decode instruction", Cause: err}
	return e.Error()
}

func fieldFromImm(imm int32) *field.Element {
	v := field.New(int(imm))
	return &v
}

func rowIDFor(step uint64) string {
	return itoa(step) + ":0"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[i:])
}

func bitwiseOpName(m riscv.Mnemonic) string {
	switch m {
	case riscv.And, riscv.Andi:
		return "and"
	case riscv.Or, riscv.Ori:
		return "or"
	default:
		return "xor"
	}
}

func bitwiseResult(m riscv.Mnemonic, x, y uint64) uint64 {
	switch m {
	case riscv.And, riscv.Andi:
		return x & y
	case riscv.Or, riscv.Ori:
		return x | y
	default:
		return x ^ y
	}
}

// matchesAnchor reports whether instruction in at stepIdx is an eligible
// injection site for the requested anchor kind, at the requested step (or
// the first eligible step if injectStep is the sentinel ^uint64(0)).
func matchesAnchor(kind string, in riscv.Instruction, stepIdx, injectStep uint64) bool {
	if kind == "" {
		return false
	}
	if injectStep != ^uint64(0) && stepIdx != injectStep {
		return false
	}
	switch kind {
	case InjectRs2ImmLimbs:
		return in.Imm != nil && in.Mnemonic.Format() == riscv.FormatI
	case InjectAuipcPCLimbs:
		return in.Mnemonic == riscv.Auipc
	case InjectLoadStoreImmSign:
		return in.Mnemonic.IsLoad() || in.Mnemonic.IsStore()
	case InjectDivRemSpecialCase:
		return in.Mnemonic.IsDivRem()
	default:
		return false
	}
}
