package mutate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/riscv"
)

func decodeAll(t *testing.T, words []uint32) {
	t.Helper()
	for _, w := range words {
		_, err := riscv.Decode(w)
		require.NoError(t, err, "mutated program contains undecodable word %#x", w)
	}
}

func seedProgram() []uint32 {
	addi, _ := riscv.EncodeFromParts(riscv.Addi, p8(1), p8(0), nil, p32(5), nil)
	add, _ := riscv.EncodeFromParts(riscv.Add, p8(2), p8(1), p8(1), nil, nil)
	return []uint32{addi, add}
}

func p8(v uint8) *uint8   { return &v }
func p32(v int32) *int32 { return &v }

func TestAllArmsProduceDecodableWords(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	corpus := [][]uint32{seedProgram()}
	for arm := Arm(0); arm < Arm(ArmCount); arm++ {
		for i := 0; i < 20; i++ {
			program := seedProgram()
			result := Mutate(arm, program, corpus, rng)
			decodeAll(t, result)
		}
	}
}

func TestDeleteNoopOnSingleInstruction(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	single := seedProgram()[:1]
	result := Mutate(ArmDelete, single, nil, rng)
	require.Len(t, result, 1)
}

func TestDuplicateInsertsAdjacentCopy(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	program := seedProgram()
	result := Mutate(ArmDuplicate, program, nil, rng)
	require.Len(t, result, len(program)+1)
}

func TestProgramNeverExceedsCap(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	big := make([]uint32, MaxProgramLength)
	addi, _ := riscv.EncodeFromParts(riscv.Addi, p8(1), p8(0), nil, p32(1), nil)
	for i := range big {
		big[i] = addi
	}
	result := Mutate(ArmDuplicate, big, nil, rng)
	require.LessOrEqual(t, len(result), MaxProgramLength)
}
