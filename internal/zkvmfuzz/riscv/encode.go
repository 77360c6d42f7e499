package riscv

// EncodeFromParts builds a 32-bit word for mnemonic m from its operands,
// enforcing the RISC-V format associated with m. Operands not required by
// the format are ignored; operands required but missing are an error.
func EncodeFromParts(m Mnemonic, rd, rs1, rs2 *uint8, immediate *int32, csrAddr *uint16) (uint32, error) {
	for _, r := range []*uint8{rd, rs1, rs2} {
		if r != nil && *r > 31 {
			return 0, newErr(ErrRegisterOutOfRange, "register index %d out of range", *r)
		}
	}

	switch m.Format() {
	case FormatR:
		return encodeR(m, rd, rs1, rs2)
	case FormatI:
		return encodeI(m, rd, rs1, immediate, csrAddr)
	case FormatS:
		return encodeS(m, rs1, rs2, immediate)
	case FormatB:
		return encodeB(m, rs1, rs2, immediate)
	case FormatU:
		return encodeU(m, rd, immediate)
	case FormatJ:
		return encodeJ(m, rd, immediate)
	case FormatSystem:
		return encodeSystem(m)
	default:
		return 0, newErr(ErrUnknownMnemonic, "unknown mnemonic %q", m)
	}
}

func require(name string, v *uint8) (uint8, error) {
	if v == nil {
		return 0, newErr(ErrMissingOperand, "missing operand %s", name)
	}
	return *v, nil
}

func encodeR(m Mnemonic, rd, rs1, rs2 *uint8) (uint32, error) {
	rdv, err := require("rd", rd)
	if err != nil {
		return 0, err
	}
	rs1v, err := require("rs1", rs1)
	if err != nil {
		return 0, err
	}
	rs2v, err := require("rs2", rs2)
	if err != nil {
		return 0, err
	}
	var funct3, funct7 uint32
	switch m {
	case Add:
		funct3, funct7 = 0b000, 0b0000000
	case Sub:
		funct3, funct7 = 0b000, 0b0100000
	case Sll:
		funct3, funct7 = 0b001, 0b0000000
	case Slt:
		funct3, funct7 = 0b010, 0b0000000
	case Sltu:
		funct3, funct7 = 0b011, 0b0000000
	case Xor:
		funct3, funct7 = 0b100, 0b0000000
	case Srl:
		funct3, funct7 = 0b101, 0b0000000
	case Sra:
		funct3, funct7 = 0b101, 0b0100000
	case Or:
		funct3, funct7 = 0b110, 0b0000000
	case And:
		funct3, funct7 = 0b111, 0b0000000
	case Mul:
		funct3, funct7 = 0b000, 0b0000001
	case Mulh:
		funct3, funct7 = 0b001, 0b0000001
	case Mulhsu:
		funct3, funct7 = 0b010, 0b0000001
	case Mulhu:
		funct3, funct7 = 0b011, 0b0000001
	case Div:
		funct3, funct7 = 0b100, 0b0000001
	case Divu:
		funct3, funct7 = 0b101, 0b0000001
	case Rem:
		funct3, funct7 = 0b110, 0b0000001
	case Remu:
		funct3, funct7 = 0b111, 0b0000001
	default:
		return 0, newErr(ErrUnknownMnemonic, "%q is not an R-type mnemonic", m)
	}
	return funct7<<25 | uint32(rs2v)<<20 | uint32(rs1v)<<15 | funct3<<12 | uint32(rdv)<<7 | opOp, nil
}

func encodeI(m Mnemonic, rd, rs1 *uint8, immediate *int32, csrAddr *uint16) (uint32, error) {
	rdv, err := require("rd", rd)
	if err != nil {
		return 0, err
	}

	switch m {
	case Jalr:
		rs1v, err := require("rs1", rs1)
		if err != nil {
			return 0, err
		}
		iv, err := requireImm(immediate, 12)
		if err != nil {
			return 0, err
		}
		return uint32(iv&0xFFF)<<20 | uint32(rs1v)<<15 | uint32(rdv)<<7 | opJalr, nil
	case Lb, Lh, Lw, Lbu, Lhu:
		rs1v, err := require("rs1", rs1)
		if err != nil {
			return 0, err
		}
		iv, err := requireImm(immediate, 12)
		if err != nil {
			return 0, err
		}
		funct3 := map[Mnemonic]uint32{Lb: 0b000, Lh: 0b001, Lw: 0b010, Lbu: 0b100, Lhu: 0b101}[m]
		return uint32(iv&0xFFF)<<20 | uint32(rs1v)<<15 | funct3<<12 | uint32(rdv)<<7 | opLoad, nil
	case Slli, Srli, Srai:
		rs1v, err := require("rs1", rs1)
		if err != nil {
			return 0, err
		}
		if immediate == nil {
			return 0, newErr(ErrMissingOperand, "missing shamt immediate")
		}
		shamt := *immediate
		if shamt < 0 || shamt > 31 {
			return 0, newErr(ErrImmediateOutOfRange, "shamt %d out of 0..31 range", shamt)
		}
		funct3 := map[Mnemonic]uint32{Slli: 0b001, Srli: 0b101, Srai: 0b101}[m]
		funct7 := map[Mnemonic]uint32{Slli: 0b0000000, Srli: 0b0000000, Srai: 0b0100000}[m]
		return funct7<<25 | uint32(shamt)<<20 | uint32(rs1v)<<15 | funct3<<12 | uint32(rdv)<<7 | opImm, nil
	case Addi, Slti, Sltiu, Xori, Ori, Andi:
		rs1v, err := require("rs1", rs1)
		if err != nil {
			return 0, err
		}
		iv, err := requireImm(immediate, 12)
		if err != nil {
			return 0, err
		}
		funct3 := map[Mnemonic]uint32{Addi: 0b000, Slti: 0b010, Sltiu: 0b011, Xori: 0b100, Ori: 0b110, Andi: 0b111}[m]
		return uint32(iv&0xFFF)<<20 | uint32(rs1v)<<15 | funct3<<12 | uint32(rdv)<<7 | opImm, nil
	case Csrrw, Csrrs, Csrrc:
		rs1v, err := require("rs1", rs1)
		if err != nil {
			return 0, err
		}
		if csrAddr == nil {
			return 0, newErr(ErrMissingOperand, "missing CSR address")
		}
		funct3 := map[Mnemonic]uint32{Csrrw: 0b001, Csrrs: 0b010, Csrrc: 0b011}[m]
		return uint32(*csrAddr)<<20 | uint32(rs1v)<<15 | funct3<<12 | uint32(rdv)<<7 | opSystem, nil
	case Csrrwi, Csrrsi, Csrrci:
		if csrAddr == nil {
			return 0, newErr(ErrMissingOperand, "missing CSR address")
		}
		if immediate == nil {
			return 0, newErr(ErrMissingOperand, "missing uimm")
		}
		uimm := *immediate
		if uimm < 0 || uimm > 31 {
			return 0, newErr(ErrImmediateOutOfRange, "csr uimm %d out of 0..31 range", uimm)
		}
		funct3 := map[Mnemonic]uint32{Csrrwi: 0b101, Csrrsi: 0b110, Csrrci: 0b111}[m]
		return uint32(*csrAddr)<<20 | uint32(uimm)<<15 | funct3<<12 | uint32(rdv)<<7 | opSystem, nil
	default:
		return 0, newErr(ErrUnknownMnemonic, "%q is not an I-type mnemonic", m)
	}
}

func requireImm(immediate *int32, bitWidth uint) (int32, error) {
	if immediate == nil {
		return 0, newErr(ErrMissingOperand, "missing immediate")
	}
	iv := *immediate
	lo, hi := -(int64(1) << (bitWidth - 1)), int64(1)<<(bitWidth-1)-1
	if int64(iv) < lo || int64(iv) > hi {
		return 0, newErr(ErrImmediateOutOfRange, "immediate %d out of %d-bit signed range", iv, bitWidth)
	}
	return iv, nil
}

func encodeS(m Mnemonic, rs1, rs2 *uint8, immediate *int32) (uint32, error) {
	rs1v, err := require("rs1", rs1)
	if err != nil {
		return 0, err
	}
	rs2v, err := require("rs2", rs2)
	if err != nil {
		return 0, err
	}
	iv, err := requireImm(immediate, 12)
	if err != nil {
		return 0, err
	}
	funct3, ok := map[Mnemonic]uint32{Sb: 0b000, Sh: 0b001, Sw: 0b010}[m]
	if !ok {
		return 0, newErr(ErrUnknownMnemonic, "%q is not an S-type mnemonic", m)
	}
	u := uint32(iv) & 0xFFF
	imm11_5 := u >> 5
	imm4_0 := u & 0x1F
	return imm11_5<<25 | uint32(rs2v)<<20 | uint32(rs1v)<<15 | funct3<<12 | imm4_0<<7 | opStore, nil
}

func encodeB(m Mnemonic, rs1, rs2 *uint8, immediate *int32) (uint32, error) {
	rs1v, err := require("rs1", rs1)
	if err != nil {
		return 0, err
	}
	rs2v, err := require("rs2", rs2)
	if err != nil {
		return 0, err
	}
	iv, err := requireImm(immediate, 13)
	if err != nil {
		return 0, err
	}
	if iv&1 != 0 {
		return 0, newErr(ErrImmediateOutOfRange, "branch immediate %d must be even", iv)
	}
	funct3, ok := map[Mnemonic]uint32{Beq: 0b000, Bne: 0b001, Blt: 0b100, Bge: 0b101, Bltu: 0b110, Bgeu: 0b111}[m]
	if !ok {
		return 0, newErr(ErrUnknownMnemonic, "%q is not a branch mnemonic", m)
	}
	u := uint32(iv)
	bit12 := (u >> 12) & 1
	bit11 := (u >> 11) & 1
	bits10_5 := (u >> 5) & 0x3F
	bits4_1 := (u >> 1) & 0xF
	return bit12<<31 | bits10_5<<25 | uint32(rs2v)<<20 | uint32(rs1v)<<15 | funct3<<12 | bits4_1<<8 | bit11<<7 | opBranch, nil
}

func encodeU(m Mnemonic, rd *uint8, immediate *int32) (uint32, error) {
	rdv, err := require("rd", rd)
	if err != nil {
		return 0, err
	}
	if immediate == nil {
		return 0, newErr(ErrMissingOperand, "missing immediate")
	}
	iv := *immediate
	var op uint32
	switch m {
	case Lui:
		op = opLui
	case Auipc:
		op = opAuipc
	default:
		return 0, newErr(ErrUnknownMnemonic, "%q is not a U-type mnemonic", m)
	}
	return (uint32(iv)&0xFFFFF000)>>12<<12 | uint32(rdv)<<7 | op, nil
}

func encodeJ(m Mnemonic, rd *uint8, immediate *int32) (uint32, error) {
	if m != Jal {
		return 0, newErr(ErrUnknownMnemonic, "%q is not a J-type mnemonic", m)
	}
	rdv, err := require("rd", rd)
	if err != nil {
		return 0, err
	}
	iv, err := requireImm(immediate, 21)
	if err != nil {
		return 0, err
	}
	if iv&1 != 0 {
		return 0, newErr(ErrImmediateOutOfRange, "jal immediate %d must be even", iv)
	}
	u := uint32(iv)
	bit20 := (u >> 20) & 1
	bits19_12 := (u >> 12) & 0xFF
	bit11 := (u >> 11) & 1
	bits10_1 := (u >> 1) & 0x3FF
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | uint32(rdv)<<7 | opJal, nil
}

func encodeSystem(m Mnemonic) (uint32, error) {
	switch m {
	case Fence:
		return opFence, nil
	case FenceI:
		return 0b001<<12 | opFence, nil
	case Ecall:
		return opSystem, nil
	case Ebreak:
		return 0x001<<20 | opSystem, nil
	case Sret:
		return 0x102<<20 | opSystem, nil
	case Mret:
		return 0x302<<20 | opSystem, nil
	case Wfi:
		return 0x105<<20 | opSystem, nil
	case SfenceVMA:
		return uint32(0b0001001)<<25 | opSystem, nil
	default:
		return 0, newErr(ErrUnknownMnemonic, "%q is not a no-operand system mnemonic", m)
	}
}

// Encode re-serializes a previously decoded Instruction, re-deriving the
// word from its structured fields rather than returning the cached Word.
func Encode(in Instruction) (uint32, error) {
	return EncodeFromParts(in.Mnemonic, in.Rd, in.Rs1, in.Rs2, in.Imm, in.CSR)
}
