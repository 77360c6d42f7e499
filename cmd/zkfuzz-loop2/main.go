// Command zkfuzz-loop2 drives the directed witness-injection fuzzing
// loop against a backend worker subprocess, replaying corpus programs
// produced by zkfuzz-loop1 with specific witness columns deliberately
// under-constrained.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"gopkg.in/urfave/cli.v1"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/fuzz"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/logging"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/oracle"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/workerproto"
)

var (
	seedFlag       = cli.StringFlag{Name: "seed", Usage: "corpus JSONL file produced by zkfuzz-loop1, used as seeds"}
	corpusFlag     = cli.StringFlag{Name: "corpus", Value: "corpus.jsonl", Usage: "corpus JSONL output path"}
	bugFlag        = cli.StringFlag{Name: "bugs", Value: "bugs.jsonl", Usage: "bug JSONL output path"}
	rngSeedFlag    = cli.Uint64Flag{Name: "rng-seed", Value: 1, Usage: "deterministic RNG seed"}
	timeoutFlag    = cli.Uint64Flag{Name: "timeout-ms", Value: 1000, Usage: "per-candidate backend timeout"}
	maxIterFlag    = cli.Uint64Flag{Name: "max-iterations", Value: 0, Usage: "stop after this many candidates (0 = unbounded)"}
	workerFlag     = cli.StringFlag{Name: "worker", Usage: "backend worker command"}
	jsonLogFlag    = cli.BoolFlag{Name: "json-log", Usage: "emit log lines as JSON"}
	workerLoopFlag = cli.BoolFlag{Name: "worker-loop"}
)

func main() {
	app := cli.NewApp()
	app.Name = "zkfuzz-loop2"
	app.Usage = "directed witness-injection differential fuzzer for zkVM RV32IM backends"
	app.Flags = []cli.Flag{
		seedFlag, corpusFlag, bugFlag, rngSeedFlag, timeoutFlag, maxIterFlag, workerFlag, jsonLogFlag, workerLoopFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "zkfuzz-loop2:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool(workerLoopFlag.Name) {
		return workerproto.RunWorkerLoop(oracle.DefaultConfig(), os.Stdin, os.Stdout)
	}

	log := logging.New(logging.LevelInfo).WithJSON(c.Bool(jsonLogFlag.Name))

	workerCommand := c.String(workerFlag.Name)
	if workerCommand == "" {
		self, err := os.Executable()
		if err != nil {
			return cli.NewExitError("could not resolve self for default worker: "+err.Error(), 1)
		}
		workerCommand = self
	}

	// Seeds are loaded explicitly below and passed straight to RunLoop2,
	// which runs each one's baseline phase itself; cfg.SeedPath is left
	// unset so NewSession does not also load them into the live corpus.
	cfg := fuzz.DefaultConfig().
		WithCorpusPath(c.String(corpusFlag.Name)).
		WithBugPath(c.String(bugFlag.Name)).
		WithRngSeed(c.Uint64(rngSeedFlag.Name)).
		WithTimeoutMs(c.Uint64(timeoutFlag.Name)).
		WithMaxIterations(c.Uint64(maxIterFlag.Name)).
		WithWorker(workerCommand, []string{"--worker-loop"})

	commit, err := workerproto.Commit8(workerCommand)
	if err != nil {
		log.Warn("could not derive zkvm_commit tag", "err", err)
	} else {
		cfg = cfg.WithZkvmCommit(commit)
	}

	session, err := fuzz.NewSession(cfg, oracle.DefaultConfig())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer session.Close()

	seeds, err := fuzz.LoadSeeds(c.String(seedFlag.Name))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Info("received interrupt, stopping after current candidate")
		cancel()
	}()

	log.Info("starting loop2", "worker", workerCommand, "timeout_ms", cfg.TimeoutMs, "zkvm_commit", cfg.ZkvmCommit, "seeds", len(seeds))
	stats, err := fuzz.RunLoop2(ctx, session, seeds)
	log.Info("loop2 finished",
		"candidates_tried", stats.CandidatesTried,
		"confirmed", stats.Confirmed,
		"timeouts", stats.Timeouts,
	)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
