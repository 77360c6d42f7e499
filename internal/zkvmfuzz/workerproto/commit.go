package workerproto

import (
	"encoding/hex"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Commit8 derives the 8 hex character zkvm_commit tag corpus and bug
// records carry: the first 4 bytes of the blake2b-256 digest of the
// worker binary at path. Two fuzzing sessions against the same backend
// build always produce the same tag; a rebuilt backend produces a
// different one, so stale corpus entries are easy to spot in the JSONL
// output.
func Commit8(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &SupervisorError{Code: "commit_failed", Message: "read worker binary", Cause: err}
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:4]), nil
}
