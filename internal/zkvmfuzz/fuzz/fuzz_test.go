package fuzz

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidateRequiresWorkerCommand(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate())
	cfg.WithWorker("zkfuzz-worker", nil)
	require.NoError(t, cfg.Validate())
}

func TestConfigBuildersChain(t *testing.T) {
	cfg := DefaultConfig().
		WithRngSeed(42).
		WithTimeoutMs(500).
		WithMaxIterations(100).
		WithZkvmCommit("abcd1234")
	require.EqualValues(t, 42, cfg.RngSeed)
	require.EqualValues(t, 500, cfg.TimeoutMs)
	require.EqualValues(t, 100, cfg.MaxIterations)
	require.Equal(t, "abcd1234", cfg.ZkvmCommit)
}

func TestJSONLWriterAppendsOnePerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := openJSONLWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(CorpusRecord{BucketHitsSig: "a;b", Instructions: []uint32{1, 2}}))
	require.NoError(t, w.Append(CorpusRecord{BucketHitsSig: "c", Instructions: []uint32{3}}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, len(splitNonEmptyLines(string(data))))
}

func splitNonEmptyLines(s string) []string {
	var out []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			if line := s[start:i]; line != "" {
				out = append(out, line)
			}
			start = i + 1
		}
	}
	return out
}

func TestLoadSeedsMissingFileIsEmptyNotError(t *testing.T) {
	seeds, err := LoadSeeds(filepath.Join(t.TempDir(), "does-not-exist.jsonl"))
	require.NoError(t, err)
	require.Empty(t, seeds)
}

func TestLoadSeedsParsesInstructions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"instructions":[19,147]}`+"\n"), 0o644))
	seeds, err := LoadSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	require.Equal(t, []uint32{19, 147}, seeds[0].Instructions)
}

func newBareSession() *Session {
	return &Session{Config: DefaultConfig()}
}

func TestCorpusEntriesWithBucketFiltersBySignatureMembership(t *testing.T) {
	s := newBareSession()
	s.AddToCorpus([]uint32{1}, "alu.base_alu_seen;mem.access_seen")
	s.AddToCorpus([]uint32{2}, "auipc.seen")
	s.AddToCorpus([]uint32{3}, "mem.access_seen")

	matches := s.CorpusEntriesWithBucket("mem.access_seen")
	require.Len(t, matches, 2)
}

func TestPickProgramReturnsCorpusMember(t *testing.T) {
	s := newBareSession()
	s.RNG = rand.New(rand.NewSource(3))
	s.AddToCorpus([]uint32{7, 8, 9}, "x")
	require.Equal(t, []uint32{7, 8, 9}, s.PickProgram())
}

func TestBugRecordForCarriesKindMetadata(t *testing.T) {
	s := newBareSession()
	rec := bugRecordFor(s, candidateOutcome{words: []uint32{1}}, BugMismatch, "", "")
	require.Equal(t, string(BugMismatch), rec.Metadata["kind"])
}
