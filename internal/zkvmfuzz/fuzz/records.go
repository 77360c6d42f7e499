// Package fuzz implements the evolutionary (Loop1) and directed
// witness-injection (Loop2) fuzzing drivers, their shared session state,
// and the corpus/bug JSONL record schemas.
package fuzz

import (
	"encoding/json"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/bucket"
)

// Seed is one line of the input seed JSONL file.
type Seed struct {
	Instructions []uint32       `json:"instructions"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// CorpusRecord is one line of the corpus JSONL output. Loop1 appends one
// when an input introduces a previously-unseen canonical signature; Loop2
// appends one for every baseline and injected phase.
type CorpusRecord struct {
	ZkvmCommit     string         `json:"zkvm_commit"`
	RngSeed        uint64         `json:"rng_seed"`
	TimeoutMs      uint64         `json:"timeout_ms"`
	TimedOut       bool           `json:"timed_out"`
	Mismatch       bool           `json:"mismatch"`
	BucketHitsSig  string         `json:"bucket_hits_sig"`
	Instructions   []uint32       `json:"instructions"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// MismatchRegister is one (index, oracle value, backend value) triple for
// a register that disagreed between the oracle and the backend.
type MismatchRegister struct {
	Index      int    `json:"index"`
	OracleVal  uint32 `json:"oracle_val"`
	BackendVal uint32 `json:"backend_val"`
}

// MarshalJSON encodes the triple as the array [index, oracle, backend].
func (m MismatchRegister) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint64{uint64(m.Index), uint64(m.OracleVal), uint64(m.BackendVal)})
}

// BugKind classifies why a BugRecord was emitted.
type BugKind string

const (
	BugMismatch                BugKind = "mismatch"
	BugException               BugKind = "exception"
	BugUnderconstrainedCandidate BugKind = "underconstrained_candidate"
)

// BugRecord extends CorpusRecord's base fields with diagnostic detail.
type BugRecord struct {
	ZkvmCommit    string             `json:"zkvm_commit"`
	RngSeed       uint64             `json:"rng_seed"`
	TimeoutMs     uint64             `json:"timeout_ms"`
	TimedOut      bool               `json:"timed_out"`
	Mismatch      bool               `json:"mismatch"`
	BucketHitsSig string             `json:"bucket_hits_sig"`
	Instructions  []uint32           `json:"instructions"`
	Metadata      map[string]any     `json:"metadata,omitempty"`

	MicroOpCount  int                `json:"micro_op_count"`
	BackendError  string             `json:"backend_error,omitempty"`
	OracleError   string             `json:"oracle_error,omitempty"`
	BucketHits    []bucket.Hit       `json:"bucket_hits"`
	MismatchRegs  []MismatchRegister `json:"mismatch_regs"`
}
