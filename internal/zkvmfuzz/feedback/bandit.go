// Package feedback implements novelty-driven feedback over canonical
// bucket signatures and an epsilon-greedy/UCB1 bandit over mutation arms.
package feedback

import (
	"math"
	"math/rand"
)

const (
	epsilon          = 0.05
	ucbExploration   = 1.5
)

// Bandit selects among a fixed-size set of arms using epsilon-greedy +
// UCB1, per the specification:
//  1. If any arm has 0 pulls, select one at random from the unpulled set.
//  2. Otherwise, with probability epsilon, select uniformly at random;
//     else pick argmax_i (mean_i + c * sqrt(ln(sum pulls) / pulls_i)).
type Bandit struct {
	pulls  []uint64
	reward []float64
	rng    *rand.Rand
}

// NewBandit creates a bandit with armCount arms, all unpulled.
func NewBandit(armCount int, rng *rand.Rand) *Bandit {
	return &Bandit{
		pulls:  make([]uint64, armCount),
		reward: make([]float64, armCount),
		rng:    rng,
	}
}

// ArmCount returns the number of arms.
func (b *Bandit) ArmCount() int { return len(b.pulls) }

// Select picks the next arm index to pull.
func (b *Bandit) Select() int {
	var unpulled []int
	for i, p := range b.pulls {
		if p == 0 {
			unpulled = append(unpulled, i)
		}
	}
	if len(unpulled) > 0 {
		return unpulled[b.rng.Intn(len(unpulled))]
	}

	if b.rng.Float64() < epsilon {
		return b.rng.Intn(len(b.pulls))
	}

	var totalPulls uint64
	for _, p := range b.pulls {
		totalPulls += p
	}
	logTotal := math.Log(float64(totalPulls))

	best := 0
	bestScore := math.Inf(-1)
	for i := range b.pulls {
		mean := b.reward[i] / float64(b.pulls[i])
		score := mean + ucbExploration*math.Sqrt(logTotal/float64(b.pulls[i]))
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

// Update records a pull of arm i with the given reward.
func (b *Bandit) Update(arm int, reward float64) {
	b.pulls[arm]++
	b.reward[arm] += reward
}

// Pulls returns the number of times arm i has been pulled.
func (b *Bandit) Pulls(arm int) uint64 { return b.pulls[arm] }

// TotalReward returns the cumulative reward credited to arm i.
func (b *Bandit) TotalReward(arm int) float64 { return b.reward[arm] }

// TotalPulls returns the sum of pulls across all arms.
func (b *Bandit) TotalPulls() uint64 {
	var total uint64
	for _, p := range b.pulls {
		total += p
	}
	return total
}
