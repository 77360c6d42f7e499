package fuzz

import (
	"context"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/mutate"
)

// Loop1Stats summarizes one evolutionary-loop run for the CLI to report.
type Loop1Stats struct {
	Iterations    uint64
	CorpusGrowths uint64
	BugsFound     uint64
	Timeouts      uint64
}

// RunLoop1 drives the evolutionary fuzzing loop: pick a corpus entry,
// apply a bandit-selected mutation, execute the candidate against both
// the oracle and the backend worker, feed the resulting novelty back
// into the bandit, and grow the corpus or flag a bug depending on the
// outcome. It runs until ctx is cancelled or the session's iteration
// budget is exhausted.
func RunLoop1(ctx context.Context, s *Session) (stats Loop1Stats, err error) {
	defer func() { stats.Iterations = s.Iterations() }()

	for !s.Done() {
		select {
		case <-ctx.Done():
			return stats, nil
		default:
		}

		program := s.PickProgram()
		arm := mutate.Arm(s.Bandit.Select())
		mutated := mutate.Mutate(arm, program, s.corpusSnapshot(), s.RNG)

		outcome, err := s.Execute(ctx, mutated, "", ^uint64(0))
		if err != nil {
			return stats, err
		}

		if outcome.timedOut {
			stats.Timeouts++
			s.Bandit.Update(int(arm), 0)
			if werr := s.WriteBugRecord(bugRecordFor(s, outcome, BugException, "backend timed out", "")); werr != nil {
				return stats, werr
			}
			stats.BugsFound++
			continue
		}

		if outcome.backendResp.BackendError != "" {
			s.Bandit.Update(int(arm), 0)
			if werr := s.WriteBugRecord(bugRecordFor(s, outcome, BugException, outcome.backendResp.BackendError, "")); werr != nil {
				return stats, werr
			}
			stats.BugsFound++
			continue
		}

		novelty := s.RecordNovelty(outcome)
		s.Bandit.Update(int(arm), novelty.Reward)

		if novelty.IsNewCombo {
			s.AddToCorpus(mutated, outcome.signature)
			stats.CorpusGrowths++
			if werr := s.WriteCorpusRecord(corpusRecordFor(s, outcome, "")); werr != nil {
				return stats, werr
			}
		}

		if outcome.mismatch {
			rec := bugRecordFor(s, outcome, BugMismatch, "", "")
			rec.MismatchRegs = mismatchRegisters(outcome)
			if werr := s.WriteBugRecord(rec); werr != nil {
				return stats, werr
			}
			stats.BugsFound++
		}
	}

	stats.Iterations = s.Iterations()
	return stats, nil
}

// corpusSnapshot returns the current corpus words for mutation input.
// Mutators never modify it, so no copy is needed.
func (s *Session) corpusSnapshot() [][]uint32 {
	out := make([][]uint32, len(s.corpus))
	for i, e := range s.corpus {
		out[i] = e.words
	}
	return out
}

func corpusRecordFor(s *Session, c candidateOutcome, phase string) CorpusRecord {
	rec := CorpusRecord{
		ZkvmCommit:    s.Config.ZkvmCommit,
		RngSeed:       s.Config.RngSeed,
		TimeoutMs:     s.Config.TimeoutMs,
		TimedOut:      c.timedOut,
		Mismatch:      c.mismatch,
		BucketHitsSig: c.signature,
		Instructions:  c.words,
	}
	if phase != "" {
		rec.Metadata = map[string]any{"phase": phase}
	}
	return rec
}

func bugRecordFor(s *Session, c candidateOutcome, kind BugKind, note, phase string) BugRecord {
	meta := map[string]any{"kind": string(kind)}
	if note != "" {
		meta["note"] = note
	}
	if phase != "" {
		meta["phase"] = phase
	}
	rec := BugRecord{
		ZkvmCommit:    s.Config.ZkvmCommit,
		RngSeed:       s.Config.RngSeed,
		TimeoutMs:     s.Config.TimeoutMs,
		TimedOut:      c.timedOut,
		Mismatch:      c.mismatch,
		BucketHitsSig: c.signature,
		Instructions:  c.words,
		Metadata:      meta,
		MicroOpCount:  c.backendResp.MicroOpCount,
		BackendError:  c.backendResp.BackendError,
		BucketHits:    c.hits,
	}
	return rec
}

func mismatchRegisters(c candidateOutcome) []MismatchRegister {
	var out []MismatchRegister
	for i := 0; i < 32; i++ {
		oracleVal := c.oracleRes.Regs[i]
		backendVal := c.backendResp.FinalRegs[i]
		if oracleVal != backendVal {
			out = append(out, MismatchRegister{Index: i, OracleVal: oracleVal, BackendVal: backendVal})
		}
	}
	return out
}
