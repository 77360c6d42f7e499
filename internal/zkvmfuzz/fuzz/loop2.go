package fuzz

import (
	"context"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/bucket"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/workerproto"
)

// InjectionTarget pairs a source bucket (one a seed's baseline execution
// has already demonstrated is reachable) with the backend witness column
// Loop2 asks the worker to under-constrain when replaying that seed.
type InjectionTarget struct {
	SourceBucket string
	Anchor       string
}

// InjectionTargets is the fixed table Loop2 walks: a seed whose baseline
// phase hits SourceBucket is a candidate for injecting Anchor.
var InjectionTargets = []InjectionTarget{
	{SourceBucket: "loop2.target.base_alu_imm_limbs", Anchor: workerproto.InjectRs2ImmLimbs},
	{SourceBucket: "auipc.seen", Anchor: workerproto.InjectAuipcPCLimbs},
	{SourceBucket: "mem.access_seen", Anchor: workerproto.InjectLoadStoreImmSign},
	{SourceBucket: "divrem.div_by_zero", Anchor: workerproto.InjectDivRemSpecialCase},
	{SourceBucket: "divrem.overflow_case", Anchor: workerproto.InjectDivRemSpecialCase},
	{SourceBucket: "divrem.rs1_eq_rs2", Anchor: workerproto.InjectDivRemSpecialCase},
}

// Loop2Stats summarizes one directed-injection-loop run.
type Loop2Stats struct {
	CandidatesTried uint64
	Confirmed       uint64
	Timeouts        uint64
}

// injectStepSentinel asks the backend to inject at the first eligible
// instruction rather than a specific one.
const injectStepSentinel = ^uint64(0)

// RunLoop2 drives the directed witness-injection loop. For each seed it
// runs a baseline execution (no injection), records it, then replays the
// seed once per injection anchor whose source bucket the baseline hit,
// with that anchor's witness column deliberately under-constrained. Both
// phases always produce a corpus record tagged metadata.phase; either
// phase produces a mismatch or exception bug record when it exhibits
// one. An injected phase that runs clean — no mismatch, no backend
// error, no timeout — is the actual finding: the backend accepted a
// trace the oracle's semantics say should have been rejected, so it is
// recorded as an underconstrained_candidate bug tied back to the bucket
// that made it a candidate.
func RunLoop2(ctx context.Context, s *Session, seeds []Seed) (Loop2Stats, error) {
	var stats Loop2Stats

	for _, seed := range seeds {
		if s.Done() {
			return stats, nil
		}
		select {
		case <-ctx.Done():
			return stats, nil
		default:
		}

		baseline, err := s.Execute(ctx, seed.Instructions, "", injectStepSentinel)
		if err != nil {
			return stats, err
		}
		if werr := s.WriteCorpusRecord(corpusRecordFor(s, baseline, "baseline")); werr != nil {
			return stats, werr
		}
		if baseline.timedOut {
			stats.Timeouts++
			if werr := s.WriteBugRecord(bugRecordFor(s, baseline, BugException, "backend timed out", "baseline")); werr != nil {
				return stats, werr
			}
			continue
		}
		if werr := recordOutcomeBugs(s, baseline, "baseline"); werr != nil {
			return stats, werr
		}

		for _, target := range matchedAnchors(baseline.hits) {
			select {
			case <-ctx.Done():
				return stats, nil
			default:
			}

			stats.CandidatesTried++
			injected, err := s.Execute(ctx, seed.Instructions, target.Anchor, injectStepSentinel)
			if err != nil {
				return stats, err
			}
			if werr := s.WriteCorpusRecord(corpusRecordFor(s, injected, "injected")); werr != nil {
				return stats, werr
			}

			if injected.timedOut {
				stats.Timeouts++
				if werr := s.WriteBugRecord(bugRecordFor(s, injected, BugException, "backend timed out during injection", "injected")); werr != nil {
					return stats, werr
				}
				continue
			}

			clean := injected.backendResp.BackendError == "" && !injected.mismatch
			if werr := recordOutcomeBugs(s, injected, "injected"); werr != nil {
				return stats, werr
			}
			if !clean {
				continue
			}

			rec := bugRecordFor(s, injected, BugUnderconstrainedCandidate, "injected "+target.Anchor, "injected")
			rec.Metadata["source_bucket"] = target.SourceBucket
			if werr := s.WriteBugRecord(rec); werr != nil {
				return stats, werr
			}
			stats.Confirmed++
		}
	}

	return stats, nil
}

// recordOutcomeBugs writes the mismatch or exception bug record a phase's
// outcome calls for, if any. The caller has already handled the timeout
// case, so only a backend error or a register mismatch remain.
func recordOutcomeBugs(s *Session, c candidateOutcome, phase string) error {
	if c.backendResp.BackendError != "" {
		return s.WriteBugRecord(bugRecordFor(s, c, BugException, c.backendResp.BackendError, phase))
	}
	if c.mismatch {
		rec := bugRecordFor(s, c, BugMismatch, "", phase)
		rec.MismatchRegs = mismatchRegisters(c)
		return s.WriteBugRecord(rec)
	}
	return nil
}

// matchedAnchors returns the InjectionTargets whose source bucket appears
// in hits, deduplicated by anchor so that the divrem.* source buckets
// that all map to the same audit anchor only trigger one injected replay.
func matchedAnchors(hits []bucket.Hit) []InjectionTarget {
	hitSet := make(map[string]bool, len(hits))
	for _, h := range hits {
		hitSet[h.BucketID] = true
	}

	seenAnchors := make(map[string]bool)
	var out []InjectionTarget
	for _, t := range InjectionTargets {
		if !hitSet[t.SourceBucket] || seenAnchors[t.Anchor] {
			continue
		}
		seenAnchors[t.Anchor] = true
		out = append(out, t)
	}
	return out
}
