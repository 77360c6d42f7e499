package riscv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	words := []uint32{
		0x00000013, // addi x0, x0, 0
		0x00001097, // auipc x1, 1
		0x003100b3, // add x1, x2, x3
		0x0200c0b3, // div x1, x1, x0 (div by zero shape, regs aside)
		0x00052283, // lw x5, 0(x10)
		0x0050a023, // sw x5, 0(x1)
		0xfe209ee3, // bne x1, x2, -4
		0x00000073, // ecall
		0x00100073, // ebreak
	}
	for _, w := range words {
		t.Run("", func(t *testing.T) {
			in, err := Decode(w)
			require.NoError(t, err)
			got, err := Encode(in)
			require.NoError(t, err)
			require.Equal(t, w, got, "round-trip mismatch for %08x -> %+v", w, in)
		})
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode(0xFFFFFFFF)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
}

func TestFromAsm(t *testing.T) {
	cases := map[string]uint32{
		"addi x5, x1, -32": 0xfe008293,
		"lw x1, 8(x2)":     0x00812083,
		"add x1, x2, x3":   0x003100b3,
	}
	for line, want := range cases {
		t.Run(line, func(t *testing.T) {
			in, err := FromAsm(line)
			require.NoError(t, err)
			require.Equal(t, want, in.Word)
			again, err := Decode(in.Word)
			require.NoError(t, err)
			require.Equal(t, in.Mnemonic, again.Mnemonic)
		})
	}
}

func TestEncodeRegisterOutOfRange(t *testing.T) {
	bad := uint8(32)
	_, err := EncodeFromParts(Add, reg(0), reg(bad), reg(0), nil, nil)
	require.Error(t, err)
}

func TestShiftImmediateUsesFiveBitShamt(t *testing.T) {
	word, err := EncodeFromParts(Slli, reg(1), reg(2), nil, imm(31), nil)
	require.NoError(t, err)
	in, err := Decode(word)
	require.NoError(t, err)
	require.Equal(t, int32(31), *in.Imm)

	_, err = EncodeFromParts(Slli, reg(1), reg(2), nil, imm(32), nil)
	require.Error(t, err)
}
