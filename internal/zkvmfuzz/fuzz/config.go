package fuzz

import (
	"fmt"
	"time"
)

// Config holds one fuzzing session's tunable parameters, following the
// same builder shape used throughout this module's other config types.
type Config struct {
	RngSeed        uint64
	TimeoutMs      uint64
	MaxIterations  uint64
	SeedPath       string
	CorpusPath     string
	BugPath        string
	WorkerCommand  string
	WorkerArgs     []string
	ZkvmCommit     string
}

// DefaultConfig returns a session configuration suitable for a short
// local run: a one second per-candidate timeout and no iteration cap.
func DefaultConfig() *Config {
	return &Config{
		RngSeed:       1,
		TimeoutMs:     1000,
		MaxIterations: 0,
		CorpusPath:    "corpus.jsonl",
		BugPath:       "bugs.jsonl",
	}
}

// Validate reports whether c is a runnable configuration.
func (c *Config) Validate() error {
	if c.TimeoutMs == 0 {
		return fmt.Errorf("fuzz: timeout_ms must be nonzero")
	}
	if c.CorpusPath == "" {
		return fmt.Errorf("fuzz: corpus_path must be set")
	}
	if c.BugPath == "" {
		return fmt.Errorf("fuzz: bug_path must be set")
	}
	if c.WorkerCommand == "" {
		return fmt.Errorf("fuzz: worker_command must be set")
	}
	return nil
}

// WithRngSeed sets the deterministic RNG seed.
func (c *Config) WithRngSeed(seed uint64) *Config { c.RngSeed = seed; return c }

// WithTimeoutMs sets the per-candidate soft timeout.
func (c *Config) WithTimeoutMs(ms uint64) *Config { c.TimeoutMs = ms; return c }

// WithMaxIterations caps the number of candidates a loop will execute; 0
// means unbounded.
func (c *Config) WithMaxIterations(n uint64) *Config { c.MaxIterations = n; return c }

// WithSeedPath sets the input seed JSONL file.
func (c *Config) WithSeedPath(p string) *Config { c.SeedPath = p; return c }

// WithCorpusPath sets the corpus JSONL output file.
func (c *Config) WithCorpusPath(p string) *Config { c.CorpusPath = p; return c }

// WithBugPath sets the bug JSONL output file.
func (c *Config) WithBugPath(p string) *Config { c.BugPath = p; return c }

// WithWorker sets the backend worker subprocess command and arguments.
func (c *Config) WithWorker(command string, args []string) *Config {
	c.WorkerCommand = command
	c.WorkerArgs = args
	return c
}

// WithZkvmCommit sets the backend build identifier recorded on every
// corpus/bug record.
func (c *Config) WithZkvmCommit(commit string) *Config { c.ZkvmCommit = commit; return c }

// Timeout returns TimeoutMs as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
