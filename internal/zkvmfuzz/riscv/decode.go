package riscv

const (
	opLoad    = 0b0000011
	opFence   = 0b0001111
	opImm     = 0b0010011
	opAuipc   = 0b0010111
	opStore   = 0b0100011
	opOp      = 0b0110011
	opLui     = 0b0110111
	opBranch  = 0b1100011
	opJalr    = 0b1100111
	opJal     = 0b1101111
	opSystem  = 0b1110011
)

func bits(word uint32, hi, lo uint) uint32 {
	mask := uint32(1)<<(hi-lo+1) - 1
	return (word >> lo) & mask
}

func signExtend(v uint32, bitWidth uint) int32 {
	shift := 32 - bitWidth
	return int32(v<<shift) >> shift
}

// Decode recognizes a 32-bit RISC-V word as an RV32IM instruction.
func Decode(word uint32) (Instruction, error) {
	opcode := bits(word, 6, 0)
	rd := uint8(bits(word, 11, 7))
	funct3 := bits(word, 14, 12)
	rs1 := uint8(bits(word, 19, 15))
	rs2 := uint8(bits(word, 24, 20))
	funct7 := bits(word, 31, 25)

	switch opcode {
	case opLui:
		return Instruction{Mnemonic: Lui, Rd: reg(rd), Imm: imm(int32(bits(word, 31, 12) << 12)), Word: word}, nil
	case opAuipc:
		return Instruction{Mnemonic: Auipc, Rd: reg(rd), Imm: imm(int32(bits(word, 31, 12) << 12)), Word: word}, nil
	case opJal:
		raw := (bits(word, 31, 31) << 20) | (bits(word, 19, 12) << 12) |
			(bits(word, 20, 20) << 11) | (bits(word, 30, 21) << 1)
		return Instruction{Mnemonic: Jal, Rd: reg(rd), Imm: imm(signExtend(raw, 21)), Word: word}, nil
	case opJalr:
		if funct3 != 0 {
			return Instruction{}, newErr(ErrUnknownFunct, "jalr: unexpected funct3 %03b", funct3)
		}
		return Instruction{Mnemonic: Jalr, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(signExtend(bits(word, 31, 20), 12)), Word: word}, nil
	case opBranch:
		raw := (bits(word, 31, 31) << 12) | (bits(word, 7, 7) << 11) |
			(bits(word, 30, 25) << 5) | (bits(word, 11, 8) << 1)
		m, err := branchMnemonic(funct3)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Mnemonic: m, Rs1: reg(rs1), Rs2: reg(rs2), Imm: imm(signExtend(raw, 13)), Word: word}, nil
	case opLoad:
		m, err := loadMnemonic(funct3)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Mnemonic: m, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(signExtend(bits(word, 31, 20), 12)), Word: word}, nil
	case opStore:
		m, err := storeMnemonic(funct3)
		if err != nil {
			return Instruction{}, err
		}
		raw := (bits(word, 31, 25) << 5) | bits(word, 11, 7)
		return Instruction{Mnemonic: m, Rs1: reg(rs1), Rs2: reg(rs2), Imm: imm(signExtend(raw, 12)), Word: word}, nil
	case opImm:
		return decodeOpImm(word, rd, funct3, rs1, funct7)
	case opOp:
		m, err := opMnemonic(funct3, funct7)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Mnemonic: m, Rd: reg(rd), Rs1: reg(rs1), Rs2: reg(rs2), Word: word}, nil
	case opFence:
		if funct3 == 0b001 {
			return Instruction{Mnemonic: FenceI, Word: word}, nil
		}
		return Instruction{Mnemonic: Fence, Word: word}, nil
	case opSystem:
		return decodeSystem(word, rd, funct3, rs1, funct7)
	default:
		return Instruction{}, newErr(ErrUnknownOpcode, "unrecognized opcode %07b", opcode)
	}
}

func branchMnemonic(funct3 uint32) (Mnemonic, error) {
	switch funct3 {
	case 0b000:
		return Beq, nil
	case 0b001:
		return Bne, nil
	case 0b100:
		return Blt, nil
	case 0b101:
		return Bge, nil
	case 0b110:
		return Bltu, nil
	case 0b111:
		return Bgeu, nil
	default:
		return "", newErr(ErrUnknownFunct, "branch: unexpected funct3 %03b", funct3)
	}
}

func loadMnemonic(funct3 uint32) (Mnemonic, error) {
	switch funct3 {
	case 0b000:
		return Lb, nil
	case 0b001:
		return Lh, nil
	case 0b010:
		return Lw, nil
	case 0b100:
		return Lbu, nil
	case 0b101:
		return Lhu, nil
	default:
		return "", newErr(ErrUnknownFunct, "load: unexpected funct3 %03b", funct3)
	}
}

func storeMnemonic(funct3 uint32) (Mnemonic, error) {
	switch funct3 {
	case 0b000:
		return Sb, nil
	case 0b001:
		return Sh, nil
	case 0b010:
		return Sw, nil
	default:
		return "", newErr(ErrUnknownFunct, "store: unexpected funct3 %03b", funct3)
	}
}

func opMnemonic(funct3, funct7 uint32) (Mnemonic, error) {
	if funct7 == 0b0000001 {
		switch funct3 {
		case 0b000:
			return Mul, nil
		case 0b001:
			return Mulh, nil
		case 0b010:
			return Mulhsu, nil
		case 0b011:
			return Mulhu, nil
		case 0b100:
			return Div, nil
		case 0b101:
			return Divu, nil
		case 0b110:
			return Rem, nil
		case 0b111:
			return Remu, nil
		}
	}
	switch {
	case funct3 == 0b000 && funct7 == 0b0000000:
		return Add, nil
	case funct3 == 0b000 && funct7 == 0b0100000:
		return Sub, nil
	case funct3 == 0b001 && funct7 == 0b0000000:
		return Sll, nil
	case funct3 == 0b010 && funct7 == 0b0000000:
		return Slt, nil
	case funct3 == 0b011 && funct7 == 0b0000000:
		return Sltu, nil
	case funct3 == 0b100 && funct7 == 0b0000000:
		return Xor, nil
	case funct3 == 0b101 && funct7 == 0b0000000:
		return Srl, nil
	case funct3 == 0b101 && funct7 == 0b0100000:
		return Sra, nil
	case funct3 == 0b110 && funct7 == 0b0000000:
		return Or, nil
	case funct3 == 0b111 && funct7 == 0b0000000:
		return And, nil
	default:
		return "", newErr(ErrUnknownFunct, "op: unexpected funct3/funct7 %03b/%07b", funct3, funct7)
	}
}

func decodeOpImm(word uint32, rd uint8, funct3 uint32, rs1 uint8, funct7 uint32) (Instruction, error) {
	switch funct3 {
	case 0b000:
		return Instruction{Mnemonic: Addi, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(signExtend(bits(word, 31, 20), 12)), Word: word}, nil
	case 0b010:
		return Instruction{Mnemonic: Slti, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(signExtend(bits(word, 31, 20), 12)), Word: word}, nil
	case 0b011:
		return Instruction{Mnemonic: Sltiu, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(signExtend(bits(word, 31, 20), 12)), Word: word}, nil
	case 0b100:
		return Instruction{Mnemonic: Xori, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(signExtend(bits(word, 31, 20), 12)), Word: word}, nil
	case 0b110:
		return Instruction{Mnemonic: Ori, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(signExtend(bits(word, 31, 20), 12)), Word: word}, nil
	case 0b111:
		return Instruction{Mnemonic: Andi, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(signExtend(bits(word, 31, 20), 12)), Word: word}, nil
	case 0b001:
		if funct7 != 0b0000000 {
			return Instruction{}, newErr(ErrUnknownFunct, "slli: unexpected funct7 %07b", funct7)
		}
		shamt := bits(word, 24, 20)
		return Instruction{Mnemonic: Slli, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(int32(shamt)), Word: word}, nil
	case 0b101:
		shamt := bits(word, 24, 20)
		switch funct7 {
		case 0b0000000:
			return Instruction{Mnemonic: Srli, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(int32(shamt)), Word: word}, nil
		case 0b0100000:
			return Instruction{Mnemonic: Srai, Rd: reg(rd), Rs1: reg(rs1), Imm: imm(int32(shamt)), Word: word}, nil
		default:
			return Instruction{}, newErr(ErrUnknownFunct, "srli/srai: unexpected funct7 %07b", funct7)
		}
	default:
		return Instruction{}, newErr(ErrUnknownFunct, "op-imm: unexpected funct3 %03b", funct3)
	}
}

func decodeSystem(word uint32, rd uint8, funct3 uint32, rs1 uint8, funct7 uint32) (Instruction, error) {
	if funct3 == 0 {
		imm12 := bits(word, 31, 20)
		switch {
		case imm12 == 0x000:
			return Instruction{Mnemonic: Ecall, Word: word}, nil
		case imm12 == 0x001:
			return Instruction{Mnemonic: Ebreak, Word: word}, nil
		case imm12 == 0x102:
			return Instruction{Mnemonic: Sret, Word: word}, nil
		case imm12 == 0x302:
			return Instruction{Mnemonic: Mret, Word: word}, nil
		case imm12 == 0x105:
			return Instruction{Mnemonic: Wfi, Word: word}, nil
		case funct7 == 0b0001001:
			return Instruction{Mnemonic: SfenceVMA, Word: word}, nil
		default:
			return Instruction{}, newErr(ErrUnknownFunct, "system: unrecognized imm12 %#x", imm12)
		}
	}
	csrAddr := uint16(bits(word, 31, 20))
	switch funct3 {
	case 0b001:
		return Instruction{Mnemonic: Csrrw, Rd: reg(rd), Rs1: reg(rs1), CSR: csr(csrAddr), Word: word}, nil
	case 0b010:
		return Instruction{Mnemonic: Csrrs, Rd: reg(rd), Rs1: reg(rs1), CSR: csr(csrAddr), Word: word}, nil
	case 0b011:
		return Instruction{Mnemonic: Csrrc, Rd: reg(rd), Rs1: reg(rs1), CSR: csr(csrAddr), Word: word}, nil
	case 0b101:
		return Instruction{Mnemonic: Csrrwi, Rd: reg(rd), Imm: imm(int32(rs1)), CSR: csr(csrAddr), Word: word}, nil
	case 0b110:
		return Instruction{Mnemonic: Csrrsi, Rd: reg(rd), Imm: imm(int32(rs1)), CSR: csr(csrAddr), Word: word}, nil
	case 0b111:
		return Instruction{Mnemonic: Csrrci, Rd: reg(rd), Imm: imm(int32(rs1)), CSR: csr(csrAddr), Word: word}, nil
	default:
		return Instruction{}, newErr(ErrUnknownFunct, "system: unexpected funct3 %03b", funct3)
	}
}
