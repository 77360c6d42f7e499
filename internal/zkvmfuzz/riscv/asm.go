package riscv

import (
	"strconv"
	"strings"
)

// FromAsm parses a single line of minimal RISC-V assembly, e.g.
// "addi x5, x1, -32" or "lw x1, 8(x2)", into a decoded Instruction. Accepts
// decimal and 0x-prefixed hexadecimal immediates.
func FromAsm(line string) (Instruction, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Instruction{}, newErr(ErrMalformedAsm, "empty line")
	}
	fields := strings.Fields(line)
	mnemonic := Mnemonic(strings.ToLower(fields[0]))
	operandStr := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	operands := splitOperands(operandStr)

	switch mnemonic.Format() {
	case FormatSystem:
		word, err := encodeSystem(mnemonic)
		if err != nil {
			return Instruction{}, err
		}
		return Decode(word)
	case FormatR:
		rd, rs1, rs2, err := parseThreeRegs(operands)
		if err != nil {
			return Instruction{}, err
		}
		word, err := EncodeFromParts(mnemonic, rd, rs1, rs2, nil, nil)
		if err != nil {
			return Instruction{}, err
		}
		return Decode(word)
	case FormatB:
		if len(operands) != 3 {
			return Instruction{}, newErr(ErrMalformedAsm, "branch mnemonic needs 3 operands, got %d", len(operands))
		}
		rs1, err := parseReg(operands[0])
		if err != nil {
			return Instruction{}, err
		}
		rs2, err := parseReg(operands[1])
		if err != nil {
			return Instruction{}, err
		}
		off, err := parseImm(operands[2])
		if err != nil {
			return Instruction{}, err
		}
		word, err := EncodeFromParts(mnemonic, nil, reg(rs1), reg(rs2), imm(off), nil)
		if err != nil {
			return Instruction{}, err
		}
		return Decode(word)
	case FormatU:
		if len(operands) != 2 {
			return Instruction{}, newErr(ErrMalformedAsm, "U-type mnemonic needs 2 operands, got %d", len(operands))
		}
		rd, err := parseReg(operands[0])
		if err != nil {
			return Instruction{}, err
		}
		upper, err := parseImm(operands[1])
		if err != nil {
			return Instruction{}, err
		}
		word, err := EncodeFromParts(mnemonic, reg(rd), nil, nil, imm(upper<<12), nil)
		if err != nil {
			return Instruction{}, err
		}
		return Decode(word)
	case FormatJ:
		if len(operands) != 2 {
			return Instruction{}, newErr(ErrMalformedAsm, "jal needs 2 operands, got %d", len(operands))
		}
		rd, err := parseReg(operands[0])
		if err != nil {
			return Instruction{}, err
		}
		off, err := parseImm(operands[1])
		if err != nil {
			return Instruction{}, err
		}
		word, err := EncodeFromParts(mnemonic, reg(rd), nil, nil, imm(off), nil)
		if err != nil {
			return Instruction{}, err
		}
		return Decode(word)
	case FormatI:
		if mnemonic.IsLoad() || mnemonic == Jalr {
			rd, base, off, err := parseRegOffsetBase(operands)
			if err != nil {
				return Instruction{}, err
			}
			word, err := EncodeFromParts(mnemonic, reg(rd), reg(base), nil, imm(off), nil)
			if err != nil {
				return Instruction{}, err
			}
			return Decode(word)
		}
		if len(operands) != 3 {
			return Instruction{}, newErr(ErrMalformedAsm, "I-type mnemonic needs 3 operands, got %d", len(operands))
		}
		rd, err := parseReg(operands[0])
		if err != nil {
			return Instruction{}, err
		}
		rs1, err := parseReg(operands[1])
		if err != nil {
			return Instruction{}, err
		}
		off, err := parseImm(operands[2])
		if err != nil {
			return Instruction{}, err
		}
		word, err := EncodeFromParts(mnemonic, reg(rd), reg(rs1), nil, imm(off), nil)
		if err != nil {
			return Instruction{}, err
		}
		return Decode(word)
	case FormatS:
		rs2, base, off, err := parseRegOffsetBase(operands)
		if err != nil {
			return Instruction{}, err
		}
		word, err := EncodeFromParts(mnemonic, nil, reg(base), reg(rs2), imm(off), nil)
		if err != nil {
			return Instruction{}, err
		}
		return Decode(word)
	default:
		return Instruction{}, newErr(ErrUnknownMnemonic, "unsupported mnemonic %q", mnemonic)
	}
}

func splitOperands(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func parseReg(tok string) (uint8, error) {
	tok = strings.TrimSpace(strings.ToLower(tok))
	if !strings.HasPrefix(tok, "x") {
		return 0, newErr(ErrMalformedAsm, "expected register like x5, got %q", tok)
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil || n < 0 || n > 31 {
		return 0, newErr(ErrMalformedAsm, "invalid register %q", tok)
	}
	return uint8(n), nil
}

func parseImm(tok string) (int32, error) {
	tok = strings.TrimSpace(tok)
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	}
	var v int64
	var err error
	if strings.HasPrefix(strings.ToLower(tok), "0x") {
		v, err = strconv.ParseInt(tok[2:], 16, 64)
	} else {
		v, err = strconv.ParseInt(tok, 10, 64)
	}
	if err != nil {
		return 0, newErr(ErrMalformedAsm, "invalid immediate %q", tok)
	}
	if neg {
		v = -v
	}
	return int32(v), nil
}

func parseThreeRegs(operands []string) (rd, rs1, rs2 *uint8, err error) {
	if len(operands) != 3 {
		return nil, nil, nil, newErr(ErrMalformedAsm, "R-type mnemonic needs 3 operands, got %d", len(operands))
	}
	rdv, err := parseReg(operands[0])
	if err != nil {
		return nil, nil, nil, err
	}
	rs1v, err := parseReg(operands[1])
	if err != nil {
		return nil, nil, nil, err
	}
	rs2v, err := parseReg(operands[2])
	if err != nil {
		return nil, nil, nil, err
	}
	return reg(rdv), reg(rs1v), reg(rs2v), nil
}

// parseRegOffsetBase parses "x1, 8(x2)" style operands: a register, then an
// "imm(base)" addressing expression.
func parseRegOffsetBase(operands []string) (other uint8, base uint8, off int32, err error) {
	if len(operands) != 2 {
		return 0, 0, 0, newErr(ErrMalformedAsm, "load/store/jalr needs 2 operands, got %d", len(operands))
	}
	other, err = parseReg(operands[0])
	if err != nil {
		return 0, 0, 0, err
	}
	open := strings.Index(operands[1], "(")
	closeIdx := strings.Index(operands[1], ")")
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return 0, 0, 0, newErr(ErrMalformedAsm, "expected imm(rs1) addressing, got %q", operands[1])
	}
	offTok := strings.TrimSpace(operands[1][:open])
	if offTok == "" {
		offTok = "0"
	}
	off, err = parseImm(offTok)
	if err != nil {
		return 0, 0, 0, err
	}
	base, err = parseReg(operands[1][open+1 : closeIdx])
	if err != nil {
		return 0, 0, 0, err
	}
	return other, base, off, nil
}
