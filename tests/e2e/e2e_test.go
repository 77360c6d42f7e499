// Package e2e exercises the full oracle -> reference backend -> bucket ->
// feedback pipeline in-process, standing in for the scenarios a real
// fuzzing session drives through a worker subprocess.
package e2e

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/bucket"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/feedback"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/mutate"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/oracle"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/riscv"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/workerproto"
)

func assemble(t *testing.T, lines ...string) []uint32 {
	t.Helper()
	words := make([]uint32, 0, len(lines))
	for _, l := range lines {
		in, err := riscv.FromAsm(l)
		require.NoError(t, err)
		w, err := riscv.Encode(in)
		require.NoError(t, err)
		words = append(words, w)
	}
	return words
}

func runBoth(t *testing.T, words []uint32, injectKind string) (oracle.Result, workerproto.Response) {
	t.Helper()
	cfg := oracle.DefaultConfig()
	oracleRes := oracle.Run(words, cfg)
	resp := workerproto.ExecuteReference(workerproto.Request{Words: words, InjectKind: injectKind, InjectStep: ^uint64(0)}, cfg)
	return oracleRes, resp
}

// Writing x0 must always read back zero from both the oracle and the
// reference backend, and the row/register bucket family must fire.
func TestX0WriteAgreesAndBucketsFire(t *testing.T) {
	words := assemble(t, "addi x0, x0, 7")
	oracleRes, resp := runBoth(t, words, "")
	require.Empty(t, resp.BackendError)
	require.EqualValues(t, 0, oracleRes.Regs[0])
	require.EqualValues(t, 0, resp.FinalRegs[0])

	ids := bucketIDs(resp.BucketHits)
	require.Contains(t, ids, "reg.write_x0")
}

// AUIPC must be observed by the auipc.seen bucket and produce matching
// final register state in the no-injection case.
func TestAuipcSeenAndAgrees(t *testing.T) {
	words := assemble(t, "auipc x1, 2")
	oracleRes, resp := runBoth(t, words, "")
	require.Empty(t, resp.BackendError)
	require.EqualValues(t, oracleRes.Regs, oracle.RegisterState(resp.FinalRegs))
	require.Contains(t, bucketIDs(resp.BucketHits), "auipc.seen")
}

// Division by zero must agree on the RISC-V all-ones convention and
// surface the divrem.div_by_zero bucket.
func TestDivisionByZeroAgreesAndBucketed(t *testing.T) {
	words := assemble(t, "addi x1, x0, 1", "addi x2, x0, 0", "div x3, x1, x2")
	oracleRes, resp := runBoth(t, words, "")
	require.Empty(t, resp.BackendError)
	require.EqualValues(t, uint32(0xFFFFFFFF), oracleRes.Regs[3])
	require.Equal(t, oracleRes.Regs, oracle.RegisterState(resp.FinalRegs))
	require.Contains(t, bucketIDs(resp.BucketHits), "divrem.div_by_zero")
}

// An infinite loop must exhaust the oracle's instruction budget rather
// than hang the test.
func TestTimeoutBudgetExhausted(t *testing.T) {
	words := assemble(t, "jal x0, 0")
	cfg := oracle.DefaultConfig().WithMaxInstructions(25)
	res := oracle.Run(words, cfg)
	require.Equal(t, oracle.FaultBudgetExhausted, res.Fault)
	require.EqualValues(t, 25, res.InstructionsExec)
}

// A directed injection at a reachable anchor must produce a register
// mismatch that the differential check detects.
func TestLoop2InjectionProducesConfirmedMismatch(t *testing.T) {
	words := assemble(t, "addi x1, x0, 5", "addi x2, x1, 3")
	oracleRes, resp := runBoth(t, words, workerproto.InjectRs2ImmLimbs)
	require.NotEqual(t, oracleRes.Regs, oracle.RegisterState(resp.FinalRegs))
}

// The bandit's reward signal must grow when a mutation introduces a
// previously unseen bucket combination, and stay flat on repeats.
func TestBanditRewardsNovelCoverage(t *testing.T) {
	novelty := feedback.NewNovelty()
	b := feedback.NewBandit(mutate.ArmCount, rand.New(rand.NewSource(11)))

	words := assemble(t, "ecall")
	_, resp := runBoth(t, words, "")
	sig := bucket.CanonicalSignature(resp.BucketHits)

	arm := b.Select()
	first := novelty.Record(sig, bucketIDs(resp.BucketHits))
	b.Update(arm, first.Reward)
	require.Greater(t, first.Reward, 0.0)

	arm2 := b.Select()
	second := novelty.Record(sig, bucketIDs(resp.BucketHits))
	b.Update(arm2, second.Reward)
	require.Zero(t, second.Reward)
}

func bucketIDs(hits []bucket.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.BucketID
	}
	return ids
}
