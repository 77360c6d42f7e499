// Package riscv implements a bidirectional codec between 32-bit RISC-V
// words and structured instructions for the RV32IM base + M-extension
// instruction set, plus a minimal single-line assembler.
package riscv

import "fmt"

// Mnemonic identifies an RV32IM instruction.
type Mnemonic string

const (
	Add  Mnemonic = "add"
	Sub  Mnemonic = "sub"
	Sll  Mnemonic = "sll"
	Slt  Mnemonic = "slt"
	Sltu Mnemonic = "sltu"
	Xor  Mnemonic = "xor"
	Srl  Mnemonic = "srl"
	Sra  Mnemonic = "sra"
	Or   Mnemonic = "or"
	And  Mnemonic = "and"

	Mul    Mnemonic = "mul"
	Mulh   Mnemonic = "mulh"
	Mulhsu Mnemonic = "mulhsu"
	Mulhu  Mnemonic = "mulhu"
	Div    Mnemonic = "div"
	Divu   Mnemonic = "divu"
	Rem    Mnemonic = "rem"
	Remu   Mnemonic = "remu"

	Addi  Mnemonic = "addi"
	Slti  Mnemonic = "slti"
	Sltiu Mnemonic = "sltiu"
	Xori  Mnemonic = "xori"
	Ori   Mnemonic = "ori"
	Andi  Mnemonic = "andi"
	Slli  Mnemonic = "slli"
	Srli  Mnemonic = "srli"
	Srai  Mnemonic = "srai"

	Lb  Mnemonic = "lb"
	Lh  Mnemonic = "lh"
	Lw  Mnemonic = "lw"
	Lbu Mnemonic = "lbu"
	Lhu Mnemonic = "lhu"

	Sb Mnemonic = "sb"
	Sh Mnemonic = "sh"
	Sw Mnemonic = "sw"

	Beq  Mnemonic = "beq"
	Bne  Mnemonic = "bne"
	Blt  Mnemonic = "blt"
	Bge  Mnemonic = "bge"
	Bltu Mnemonic = "bltu"
	Bgeu Mnemonic = "bgeu"

	Lui   Mnemonic = "lui"
	Auipc Mnemonic = "auipc"
	Jal   Mnemonic = "jal"
	Jalr  Mnemonic = "jalr"

	Fence   Mnemonic = "fence"
	FenceI  Mnemonic = "fence.i"
	Ecall   Mnemonic = "ecall"
	Ebreak  Mnemonic = "ebreak"

	Csrrw  Mnemonic = "csrrw"
	Csrrs  Mnemonic = "csrrs"
	Csrrc  Mnemonic = "csrrc"
	Csrrwi Mnemonic = "csrrwi"
	Csrrsi Mnemonic = "csrrsi"
	Csrrci Mnemonic = "csrrci"

	Sret      Mnemonic = "sret"
	Mret      Mnemonic = "mret"
	Wfi       Mnemonic = "wfi"
	SfenceVMA Mnemonic = "sfence.vma"
)

// Format is the RISC-V instruction encoding format.
type Format int

const (
	FormatR Format = iota
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
	// FormatSystem covers fence/ecall/ebreak/privileged no-ops, which take
	// no register/immediate operands in this codec's surface.
	FormatSystem
)

// Instruction is the decoded, structured form of a 32-bit RISC-V word.
//
// Rd/Rs1/Rs2/Imm are pointers so that "operand absent" (e.g. Rs2 on an
// I-type) is observable; Word is always the authoritative source of truth.
type Instruction struct {
	Mnemonic Mnemonic
	Rd       *uint8
	Rs1      *uint8
	Rs2      *uint8
	Imm      *int32
	CSR      *uint16
	Word     uint32
}

// Format returns the encoding format for an instruction's mnemonic.
func (m Mnemonic) Format() Format {
	switch m {
	case Add, Sub, Sll, Slt, Sltu, Xor, Srl, Sra, Or, And,
		Mul, Mulh, Mulhsu, Mulhu, Div, Divu, Rem, Remu:
		return FormatR
	case Addi, Slti, Sltiu, Xori, Ori, Andi, Slli, Srli, Srai,
		Lb, Lh, Lw, Lbu, Lhu, Jalr,
		Csrrw, Csrrs, Csrrc, Csrrwi, Csrrsi, Csrrci:
		return FormatI
	case Sb, Sh, Sw:
		return FormatS
	case Beq, Bne, Blt, Bge, Bltu, Bgeu:
		return FormatB
	case Lui, Auipc:
		return FormatU
	case Jal:
		return FormatJ
	case Fence, FenceI, Ecall, Ebreak, Sret, Mret, Wfi, SfenceVMA:
		return FormatSystem
	default:
		return FormatSystem
	}
}

// IsLoad reports whether m is one of the load mnemonics.
func (m Mnemonic) IsLoad() bool {
	switch m {
	case Lb, Lh, Lw, Lbu, Lhu:
		return true
	default:
		return false
	}
}

// IsStore reports whether m is one of the store mnemonics.
func (m Mnemonic) IsStore() bool {
	switch m {
	case Sb, Sh, Sw:
		return true
	default:
		return false
	}
}

// IsBranch reports whether m is one of the conditional-branch mnemonics.
func (m Mnemonic) IsBranch() bool {
	switch m {
	case Beq, Bne, Blt, Bge, Bltu, Bgeu:
		return true
	default:
		return false
	}
}

// IsDivRem reports whether m belongs to the division/remainder family.
func (m Mnemonic) IsDivRem() bool {
	switch m {
	case Div, Divu, Rem, Remu:
		return true
	default:
		return false
	}
}

// ErrorCode enumerates codec failure kinds.
type ErrorCode int

const (
	ErrUnknownOpcode ErrorCode = iota
	ErrUnknownFunct
	ErrRegisterOutOfRange
	ErrImmediateOutOfRange
	ErrMalformedAsm
	ErrUnknownMnemonic
	ErrMissingOperand
)

// CodecError is the codec's error type: DecodeError, EncodeError and
// ParseError in the specification all share this shape.
type CodecError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("riscv codec error [%d]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("riscv codec error [%d]: %s", e.Code, e.Message)
}

func (e *CodecError) Unwrap() error { return e.Cause }

func (e *CodecError) Is(target error) bool {
	t, ok := target.(*CodecError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(code ErrorCode, format string, args ...any) *CodecError {
	return &CodecError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func reg(idx uint8) *uint8 {
	v := idx
	return &v
}

func imm(v int32) *int32 {
	vv := v
	return &vv
}

func csr(v uint16) *uint16 {
	vv := v
	return &vv
}
