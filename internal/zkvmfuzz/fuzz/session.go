package fuzz

import (
	"context"
	"math/rand"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/bucket"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/feedback"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/mutate"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/oracle"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/workerproto"
)

// Session carries all of one fuzzing run's mutable state explicitly,
// replacing what a transliteration would otherwise reach for as package
// globals: the bandit, the novelty tracker, the live corpus, the output
// writers, and the backend connection. A Session is not safe for
// concurrent use; Loop1 and Loop2 each drive one from a single goroutine.
type Session struct {
	Config     *Config
	RNG        *rand.Rand
	Bandit     *feedback.Bandit
	Novelty    *feedback.Novelty
	OracleCfg  *oracle.Config
	Supervisor *workerproto.Supervisor

	corpus     []corpusEntry
	corpusOut  *jsonlWriter
	bugOut     *jsonlWriter
	iterations uint64
	bugsFound  uint64
}

// corpusEntry pairs a retained program with the canonical signature it
// produced when it was added, so CorpusEntriesWithBucket can select
// programs by bucket membership without re-executing them.
type corpusEntry struct {
	words     []uint32
	signature string
}

// NewSession wires up a session's writers, backend connection, and
// feedback state from cfg. Callers must call Close when done.
func NewSession(cfg *Config, oracleCfg *oracle.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	corpusOut, err := openJSONLWriter(cfg.CorpusPath)
	if err != nil {
		return nil, err
	}
	bugOut, err := openJSONLWriter(cfg.BugPath)
	if err != nil {
		corpusOut.Close()
		return nil, err
	}

	seeds, err := LoadSeeds(cfg.SeedPath)
	if err != nil {
		corpusOut.Close()
		bugOut.Close()
		return nil, err
	}
	corpus := make([]corpusEntry, 0, len(seeds)+1)
	for _, s := range seeds {
		corpus = append(corpus, corpusEntry{words: s.Instructions})
	}
	if len(corpus) == 0 {
		corpus = append(corpus, corpusEntry{words: []uint32{0x00000013}}) // addi x0, x0, 0
	}

	sup := workerproto.NewSupervisor(cfg.WorkerCommand, cfg.WorkerArgs, cfg.Timeout())
	if err := sup.Start(); err != nil {
		corpusOut.Close()
		bugOut.Close()
		return nil, err
	}

	return &Session{
		Config:     cfg,
		RNG:        rand.New(rand.NewSource(int64(cfg.RngSeed))),
		Bandit:     feedback.NewBandit(mutate.ArmCount, rand.New(rand.NewSource(int64(cfg.RngSeed)+1))),
		Novelty:    feedback.NewNovelty(),
		OracleCfg:  oracleCfg,
		Supervisor: sup,
		corpus:     corpus,
		corpusOut:  corpusOut,
		bugOut:     bugOut,
	}, nil
}

// Close flushes and closes the session's JSONL writers and stops the
// backend worker.
func (s *Session) Close() error {
	s.Supervisor.Stop()
	err1 := s.corpusOut.Close()
	err2 := s.bugOut.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// PickProgram returns a uniformly random corpus entry to mutate from.
func (s *Session) PickProgram() []uint32 {
	return s.corpus[s.RNG.Intn(len(s.corpus))].words
}

// AddToCorpus appends a newly-interesting program, with the signature it
// produced, to the in-memory corpus used as future splice/mutation
// material.
func (s *Session) AddToCorpus(words []uint32, signature string) {
	s.corpus = append(s.corpus, corpusEntry{words: words, signature: signature})
}

// CorpusEntriesWithBucket returns the programs whose recorded signature
// contains bucketID.
func (s *Session) CorpusEntriesWithBucket(bucketID string) [][]uint32 {
	var out [][]uint32
	for _, e := range s.corpus {
		for _, id := range bucket.SplitSignature(e.signature) {
			if id == bucketID {
				out = append(out, e.words)
				break
			}
		}
	}
	return out
}

// Iterations reports how many candidates this session has executed.
func (s *Session) Iterations() uint64 { return s.iterations }

// BugsFound reports how many bug records this session has emitted.
func (s *Session) BugsFound() uint64 { return s.bugsFound }

// Done reports whether the configured iteration budget is exhausted.
func (s *Session) Done() bool {
	return s.Config.MaxIterations != 0 && s.iterations >= s.Config.MaxIterations
}

// candidateOutcome bundles one executed candidate's oracle and backend
// results with the derived coverage signature, ready for the corpus/bug
// decision and record construction shared by both loops.
type candidateOutcome struct {
	words       []uint32
	oracleRes   oracle.Result
	backendResp workerproto.Response
	timedOut    bool
	hits        []bucket.Hit
	signature   string
	mismatch    bool
}

// Execute runs words through both the oracle and the backend worker,
// derives its canonical bucket signature, and reports whether the two
// final register files disagree.
func (s *Session) Execute(ctx context.Context, words []uint32, injectKind string, injectStep uint64) (candidateOutcome, error) {
	s.iterations++
	oracleRes := oracle.Run(words, s.OracleCfg)

	outcome, err := s.Supervisor.Execute(ctx, workerproto.Request{
		Words:      words,
		InjectKind: injectKind,
		InjectStep: injectStep,
	})
	if err != nil {
		return candidateOutcome{}, err
	}
	if outcome.TimedOut {
		return candidateOutcome{words: words, oracleRes: oracleRes, timedOut: true}, nil
	}

	resp := outcome.Response
	hits := resp.BucketHits
	sig := bucket.CanonicalSignature(hits)
	mismatch := resp.BackendError == "" && oracleRes.Regs != oracle.RegisterState(resp.FinalRegs)

	return candidateOutcome{
		words: words, oracleRes: oracleRes, backendResp: resp,
		hits: hits, signature: sig, mismatch: mismatch,
	}, nil
}

// WriteCorpusRecord appends rec to the corpus JSONL file.
func (s *Session) WriteCorpusRecord(rec CorpusRecord) error {
	return s.corpusOut.Append(rec)
}

// WriteBugRecord appends rec to the bug JSONL file and increments the
// session's bug counter.
func (s *Session) WriteBugRecord(rec BugRecord) error {
	s.bugsFound++
	return s.bugOut.Append(rec)
}

// RecordNovelty updates the session's novelty tracker for a candidate's
// signature and returns the bandit reward it earns.
func (s *Session) RecordNovelty(c candidateOutcome) feedback.Result {
	var ids []string
	for _, h := range c.hits {
		ids = append(ids, h.BucketID)
	}
	return s.Novelty.Record(c.signature, ids)
}
