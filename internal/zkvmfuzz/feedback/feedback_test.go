package feedback

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBanditExploresAllArmsFirst(t *testing.T) {
	b := NewBandit(4, rand.New(rand.NewSource(1)))
	selected := make(map[int]bool)
	for i := 0; i < 4; i++ {
		arm := b.Select()
		selected[arm] = true
		b.Update(arm, 0)
	}
	require.Len(t, selected, 4)
}

func TestBanditPullsSumToFeedbackCount(t *testing.T) {
	b := NewBandit(8, rand.New(rand.NewSource(42)))
	const n = 500
	for i := 0; i < n; i++ {
		arm := b.Select()
		b.Update(arm, float64(i%3))
	}
	require.EqualValues(t, n, b.TotalPulls())
	for i := 0; i < b.ArmCount(); i++ {
		require.GreaterOrEqual(t, b.TotalReward(i), 0.0)
	}
}

func TestBanditRewardFormula(t *testing.T) {
	b := NewBandit(3, rand.New(rand.NewSource(7)))
	n := NewNovelty()
	sig := "a;b"
	res := n.Record(sig, []string{"a", "b"})
	require.True(t, res.IsNewCombo)
	require.Len(t, res.NewBucketIDs, 2)
	require.InDelta(t, 1.5, res.Reward, 1e-9)

	b.Update(1, res.Reward)
	require.EqualValues(t, 1, b.Pulls(1))
	require.InDelta(t, 1.5, b.TotalReward(1), 1e-9)
}

func TestNoveltyNoRepeatedSignature(t *testing.T) {
	n := NewNovelty()
	first := n.Record("x.seen", []string{"x.seen"})
	second := n.Record("x.seen", []string{"x.seen"})
	require.True(t, first.IsNewCombo)
	require.False(t, second.IsNewCombo)
	require.Empty(t, second.NewBucketIDs)
}

func TestEmptySignatureNeverNovel(t *testing.T) {
	n := NewNovelty()
	res := n.Record("", nil)
	require.False(t, res.IsNewCombo)
	require.Zero(t, res.Reward)
}
