package workerproto

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/oracle"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/riscv"
)

func assembleProgram(t *testing.T, lines ...string) []uint32 {
	t.Helper()
	words := make([]uint32, 0, len(lines))
	for _, l := range lines {
		in, err := riscv.FromAsm(l)
		require.NoError(t, err)
		word, err := riscv.Encode(in)
		require.NoError(t, err)
		words = append(words, word)
	}
	return words
}

func TestExecuteReferenceAgreesWithOracleByDefault(t *testing.T) {
	words := assembleProgram(t, "addi x1, x0, 5", "add x2, x1, x1")
	cfg := oracle.DefaultConfig()

	want := oracle.Run(words, cfg)
	resp := ExecuteReference(Request{Words: words, InjectStep: ^uint64(0)}, cfg)

	require.Empty(t, resp.BackendError)
	require.Equal(t, want.Regs, oracle.RegisterState(resp.FinalRegs))
}

func TestExecuteReferenceInjectionProducesMismatch(t *testing.T) {
	words := assembleProgram(t, "addi x1, x0, 5", "addi x2, x1, 3")
	cfg := oracle.DefaultConfig()

	want := oracle.Run(words, cfg)
	resp := ExecuteReference(Request{
		Words:      words,
		InjectKind: InjectRs2ImmLimbs,
		InjectStep: ^uint64(0),
	}, cfg)

	require.NotEqual(t, want.Regs, oracle.RegisterState(resp.FinalRegs))
}

func TestExecuteReferenceReportsBucketHits(t *testing.T) {
	words := assembleProgram(t, "ecall")
	resp := ExecuteReference(Request{Words: words, InjectStep: ^uint64(0)}, oracle.DefaultConfig())
	require.NotEmpty(t, resp.BucketHits)
}

func TestCommit8Deterministic(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "worker-*")
	require.NoError(t, err)
	_, err = f.WriteString("a synthetic worker binary")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	a, err := Commit8(f.Name())
	require.NoError(t, err)
	b, err := Commit8(f.Name())
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 8)
}
