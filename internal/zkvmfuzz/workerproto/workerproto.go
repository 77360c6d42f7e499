// Package workerproto defines the wire protocol between the fuzzing
// drivers and the backend worker subprocess, and supervises that
// subprocess's lifecycle. The worker speaks one JSON object per line,
// each line prefixed by a fixed sentinel so framing survives a backend
// that also writes diagnostic output to the same stream.
package workerproto

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/bucket"
)

// Sentinel prefixes every request/response line on the worker's stdin and
// stdout. Any line without this prefix is treated as incidental backend
// log noise and discarded by the supervisor.
const Sentinel = "__ZKFUZZ_WORKER_JSON__ "

// Request asks the worker to execute a candidate program and report the
// resulting register file and coverage signal.
type Request struct {
	RequestID  uint64   `json:"request_id"`
	Words      []uint32 `json:"words"`
	InjectKind string   `json:"inject_kind,omitempty"`
	InjectStep uint64   `json:"inject_step,omitempty"`
}

// Response carries the worker's answer to a Request with the same
// RequestID. Exactly one of (FinalRegs populated, BackendError non-empty)
// holds for a response that did not time out.
type Response struct {
	RequestID    uint64       `json:"request_id"`
	FinalRegs    [32]uint32   `json:"final_regs"`
	MicroOpCount int          `json:"micro_op_count"`
	BucketHits   []bucket.Hit `json:"bucket_hits"`
	BackendError string       `json:"backend_error,omitempty"`

	// FieldCommit is a slot for a field-element encoded witness-column
	// tag shaped like a real zkVM's final commitment row. ExecuteReference
	// leaves it nil, nothing in the fuzzer reads it, and its json:"-" tag
	// keeps it out of the wire encoding.
	FieldCommit *field.Element `json:"-"`
}

// executionError records a non-fatal error produced while synthesizing a
// reference execution's trace, distinct from a decode/encode CodecError.
type executionError struct {
	Message string
	Cause   error
}

func (e *executionError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *executionError) Unwrap() error { return e.Cause }
