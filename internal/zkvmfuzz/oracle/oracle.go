// Package oracle implements a deterministic reference RV32IM interpreter
// used as the ground truth for differential testing against a zkVM backend.
package oracle

import (
	"fmt"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/riscv"
)

// MemoryModel selects how a program's code and data regions are laid out.
type MemoryModel int

const (
	// SharedCodeData maps instruction words at address 0; PC starts at 0.
	SharedCodeData MemoryModel = iota
	// SplitCodeData maps a zero-initialized data region at address 0 and
	// the code at a separate, 4-byte-aligned base above it.
	SplitCodeData
)

// Config holds the oracle's execution parameters.
type Config struct {
	MemoryModel     MemoryModel
	CodeBase        uint32
	DataSizeBytes   uint32
	MaxInstructions int
}

// DefaultConfig returns the oracle's default configuration: shared
// code/data, 1000-instruction budget.
func DefaultConfig() *Config {
	return &Config{
		MemoryModel:     SharedCodeData,
		CodeBase:        0,
		DataSizeBytes:   4096,
		MaxInstructions: 1000,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.MaxInstructions <= 0 {
		return fmt.Errorf("max instructions must be positive, got %d", c.MaxInstructions)
	}
	if c.MemoryModel == SplitCodeData && c.DataSizeBytes == 0 {
		return fmt.Errorf("split-code-data requires a non-zero data size")
	}
	return nil
}

// WithMemoryModel sets the memory model.
func (c *Config) WithMemoryModel(m MemoryModel) *Config { c.MemoryModel = m; return c }

// WithCodeBase sets the requested code base address for split-code-data.
func (c *Config) WithCodeBase(base uint32) *Config { c.CodeBase = base; return c }

// WithDataSizeBytes sets the data region size for split-code-data.
func (c *Config) WithDataSizeBytes(n uint32) *Config { c.DataSizeBytes = n; return c }

// WithMaxInstructions overrides the instruction step budget.
func (c *Config) WithMaxInstructions(n int) *Config { c.MaxInstructions = n; return c }

// resolvedCodeBase auto-bumps and 4-byte-aligns the configured code base so
// it sits above the data region in split-code-data mode.
func (c *Config) resolvedCodeBase() uint32 {
	if c.MemoryModel == SharedCodeData {
		return 0
	}
	base := c.CodeBase
	if base < c.DataSizeBytes {
		base = c.DataSizeBytes
	}
	if rem := base % 4; rem != 0 {
		base += 4 - rem
	}
	return base
}

// RegisterState is the 32-register RV32 machine state. Register 0 is
// always forced to 0 on return.
type RegisterState [32]uint32

// FaultKind classifies why execution stopped short of the instruction
// budget or a natural terminator.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultFetch
	FaultIllegal
	FaultLoad
	FaultStore
	FaultAlignment
	FaultBudgetExhausted
	FaultTerminated
)

func (f FaultKind) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultFetch:
		return "fetch"
	case FaultIllegal:
		return "illegal"
	case FaultLoad:
		return "load"
	case FaultStore:
		return "store"
	case FaultAlignment:
		return "alignment"
	case FaultBudgetExhausted:
		return "budget_exhausted"
	case FaultTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Result is the outcome of running a program to completion: the oracle
// never errors, it always returns a final register state plus the reason
// execution stopped.
type Result struct {
	Regs             RegisterState
	Fault            FaultKind
	InstructionsExec int
}

// memory is a flat byte-addressable little-endian memory image.
type memory struct {
	bytes map[uint32]byte
}

func newMemory() *memory { return &memory{bytes: make(map[uint32]byte)} }

func (m *memory) loadWord(addr uint32) uint32 {
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v |= uint32(m.bytes[addr+i]) << (8 * i)
	}
	return v
}

func (m *memory) storeWord(addr, val uint32) {
	for i := uint32(0); i < 4; i++ {
		m.bytes[addr+i] = byte(val >> (8 * i))
	}
}

func (m *memory) loadHalf(addr uint32) uint16 {
	return uint16(m.bytes[addr]) | uint16(m.bytes[addr+1])<<8
}

func (m *memory) storeHalf(addr uint32, v uint16) {
	m.bytes[addr] = byte(v)
	m.bytes[addr+1] = byte(v >> 8)
}

func (m *memory) loadByte(addr uint32) byte { return m.bytes[addr] }

func (m *memory) storeByte(addr uint32, v byte) { m.bytes[addr] = v }

// Run executes words (already-validated RV32IM words) to completion under
// cfg and returns the final register state.
func Run(words []uint32, cfg *Config) Result {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	codeBase := cfg.resolvedCodeBase()
	mem := newMemory()
	for i, w := range words {
		mem.storeWord(codeBase+uint32(i*4), w)
	}

	var regs RegisterState
	pc := codeBase
	fault := FaultNone
	steps := 0

	for steps < cfg.MaxInstructions {
		word := mem.loadWord(pc)
		in, err := riscv.Decode(word)
		if err != nil {
			fault = FaultIllegal
			break
		}
		steps++

		nextPC := pc + 4
		terminate, stepFault := step(in, &regs, mem, pc, &nextPC)
		if stepFault != FaultNone {
			fault = stepFault
			break
		}
		if terminate {
			fault = FaultTerminated
			break
		}
		pc = nextPC
		regs[0] = 0
	}
	if steps >= cfg.MaxInstructions && fault == FaultNone {
		fault = FaultBudgetExhausted
	}
	regs[0] = 0
	return Result{Regs: regs, Fault: fault, InstructionsExec: steps}
}

func u8(p *uint8) uint8 {
	if p == nil {
		return 0
	}
	return *p
}

func i32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

// step executes one decoded instruction, mutating regs and nextPC in
// place. It returns (terminate, fault); ecall/ebreak are treated as
// termination opcodes per the oracle's reduced semantics.
func step(in riscv.Instruction, regs *RegisterState, mem *memory, pc uint32, nextPC *uint32) (bool, FaultKind) {
	rd, rs1, rs2 := u8(in.Rd), u8(in.Rs1), u8(in.Rs2)
	imm := i32(in.Imm)
	a := regs[rs1]
	b := regs[rs2]

	setRd := func(v uint32) {
		if rd != 0 {
			regs[rd] = v
		}
	}

	switch in.Mnemonic {
	case riscv.Add:
		setRd(a + b)
	case riscv.Sub:
		setRd(a - b)
	case riscv.Sll:
		setRd(a << (b & 0x1F))
	case riscv.Slt:
		setRd(boolToWord(int32(a) < int32(b)))
	case riscv.Sltu:
		setRd(boolToWord(a < b))
	case riscv.Xor:
		setRd(a ^ b)
	case riscv.Srl:
		setRd(a >> (b & 0x1F))
	case riscv.Sra:
		setRd(uint32(int32(a) >> (b & 0x1F)))
	case riscv.Or:
		setRd(a | b)
	case riscv.And:
		setRd(a & b)
	case riscv.Mul:
		setRd(a * b)
	case riscv.Mulh:
		setRd(mulHigh(int64(int32(a)), int64(int32(b))))
	case riscv.Mulhsu:
		setRd(mulHighSU(int32(a), b))
	case riscv.Mulhu:
		setRd(uint32((uint64(a) * uint64(b)) >> 32))
	case riscv.Div:
		setRd(divSigned(int32(a), int32(b)))
	case riscv.Divu:
		setRd(divUnsigned(a, b))
	case riscv.Rem:
		setRd(remSigned(int32(a), int32(b)))
	case riscv.Remu:
		setRd(remUnsigned(a, b))
	case riscv.Addi:
		setRd(uint32(int32(a) + imm))
	case riscv.Slti:
		setRd(boolToWord(int32(a) < imm))
	case riscv.Sltiu:
		setRd(boolToWord(a < uint32(imm)))
	case riscv.Xori:
		setRd(a ^ uint32(imm))
	case riscv.Ori:
		setRd(a | uint32(imm))
	case riscv.Andi:
		setRd(a & uint32(imm))
	case riscv.Slli:
		setRd(a << uint32(imm&0x1F))
	case riscv.Srli:
		setRd(a >> uint32(imm&0x1F))
	case riscv.Srai:
		setRd(uint32(int32(a) >> uint32(imm&0x1F)))
	case riscv.Lui:
		setRd(uint32(imm))
	case riscv.Auipc:
		setRd(pc + uint32(imm))
	case riscv.Jal:
		setRd(pc + 4)
		*nextPC = uint32(int64(pc) + int64(imm))
		if *nextPC%4 != 0 {
			return false, FaultAlignment
		}
	case riscv.Jalr:
		target := uint32((int64(a) + int64(imm)) &^ 1)
		setRd(pc + 4)
		if target%4 != 0 {
			return false, FaultAlignment
		}
		*nextPC = target
	case riscv.Beq:
		if a == b {
			*nextPC = uint32(int64(pc) + int64(imm))
		}
	case riscv.Bne:
		if a != b {
			*nextPC = uint32(int64(pc) + int64(imm))
		}
	case riscv.Blt:
		if int32(a) < int32(b) {
			*nextPC = uint32(int64(pc) + int64(imm))
		}
	case riscv.Bge:
		if int32(a) >= int32(b) {
			*nextPC = uint32(int64(pc) + int64(imm))
		}
	case riscv.Bltu:
		if a < b {
			*nextPC = uint32(int64(pc) + int64(imm))
		}
	case riscv.Bgeu:
		if a >= b {
			*nextPC = uint32(int64(pc) + int64(imm))
		}
	case riscv.Lb:
		setRd(uint32(int32(int8(mem.loadByte(uint32(int64(a) + int64(imm)))))))
	case riscv.Lbu:
		setRd(uint32(mem.loadByte(uint32(int64(a) + int64(imm)))))
	case riscv.Lh:
		addr := uint32(int64(a) + int64(imm))
		if addr%2 != 0 {
			return false, FaultAlignment
		}
		setRd(uint32(int32(int16(mem.loadHalf(addr)))))
	case riscv.Lhu:
		addr := uint32(int64(a) + int64(imm))
		if addr%2 != 0 {
			return false, FaultAlignment
		}
		setRd(uint32(mem.loadHalf(addr)))
	case riscv.Lw:
		addr := uint32(int64(a) + int64(imm))
		if addr%4 != 0 {
			return false, FaultAlignment
		}
		setRd(mem.loadWord(addr))
	case riscv.Sb:
		mem.storeByte(uint32(int64(a)+int64(imm)), byte(b))
	case riscv.Sh:
		addr := uint32(int64(a) + int64(imm))
		if addr%2 != 0 {
			return false, FaultAlignment
		}
		mem.storeHalf(addr, uint16(b))
	case riscv.Sw:
		addr := uint32(int64(a) + int64(imm))
		if addr%4 != 0 {
			return false, FaultAlignment
		}
		mem.storeWord(addr, b)
	case riscv.Fence, riscv.FenceI, riscv.Sret, riscv.Mret, riscv.Wfi, riscv.SfenceVMA:
		// Treated as no-ops: the oracle does not model privileged state or
		// memory-mapped I/O fences.
	case riscv.Csrrw, riscv.Csrrs, riscv.Csrrc, riscv.Csrrwi, riscv.Csrrsi, riscv.Csrrci:
		// CSR state is not modeled; reads observe 0, writes are discarded.
		setRd(0)
	case riscv.Ecall, riscv.Ebreak:
		return true, FaultNone
	default:
		return false, FaultIllegal
	}
	return false, FaultNone
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func mulHigh(a, b int64) uint32 {
	return uint32((a * b) >> 32)
}

func mulHighSU(a int32, b uint32) uint32 {
	return uint32((int64(a) * int64(b)) >> 32)
}

// divSigned implements RISC-V signed division semantics: division by zero
// yields all-ones; overflow (INT_MIN / -1) yields the dividend.
func divSigned(a, b int32) uint32 {
	if b == 0 {
		return 0xFFFFFFFF
	}
	if a == -2147483648 && b == -1 {
		return uint32(a)
	}
	return uint32(a / b)
}

func divUnsigned(a, b uint32) uint32 {
	if b == 0 {
		return 0xFFFFFFFF
	}
	return a / b
}

func remSigned(a, b int32) uint32 {
	if b == 0 {
		return uint32(a)
	}
	if a == -2147483648 && b == -1 {
		return 0
	}
	return uint32(a % b)
}

func remUnsigned(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}
