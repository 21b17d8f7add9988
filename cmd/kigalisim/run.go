package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/example/kigalisim/internal/engine/engineerr"
	"github.com/example/kigalisim/internal/engine/interpreter"
	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/montecarlo"
	"github.com/example/kigalisim/internal/engine/runner"
)

// Exit codes per the reference CLI surface: 0 success, 2 parse errors,
// 3 runtime errors, 4 I/O errors.
const (
	exitOK           = 0
	exitUsage        = 1
	exitParseError   = 2
	exitRuntimeError = 3
	exitIOError      = 4
)

func runCmd(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	out := fs.String("o", "", "output CSV path")
	simulations := fs.String("simulation", "", "comma-separated scenario names (default: all)")
	trials := fs.Int("trials", 0, "override declared trial count (0 = use script default)")
	workers := fs.Int("workers", 0, "bound the Monte Carlo worker pool (0 = GOMAXPROCS)")
	seed := fs.Int64("seed", 0, "override the base RNG seed (0 = config default)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *out == "" || fs.NArg() != 1 {
		fmt.Println("usage: kigalisim run -o <out.csv> [--simulation=a,b] [--trials=N] [--workers=N] [--seed=N] <script>")
		return exitUsage
	}
	scriptPath := fs.Arg(0)

	rt, err := buildRuntime(logger)
	if err != nil {
		logger.Error("build runtime failed", "error", err)
		return exitRuntimeError
	}
	defer rt.close()

	src, err := os.ReadFile(scriptPath)
	if err != nil {
		logger.Error("read script failed", "error", err)
		return exitIOError
	}

	result := lang.Parse(string(src))
	if !result.OK() {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		return exitParseError
	}
	prog := result.Program

	names, err := selectScenarios(prog, *simulations)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitParseError
	}

	runID := uuid.New()
	baseSeed := rt.cfg.MonteCarlo.DefaultSeed
	if *seed != 0 {
		baseSeed = *seed
	}

	tracer, shutdownTracer := setupTracing(rt.cfg.Tracing.Enabled)
	defer shutdownTracer(rt.ctx)

	cache := newResultCache(rt.ctx, rt.cfg.Cache.RedisURL, logger)
	defer cache.close()

	progress := newProgressPublisher(rt.cfg.Sinks.NATSURL, logger)
	defer progress.close()

	var allRows []runner.EngineResult
	var runtimeFailed bool

	for _, name := range names {
		var rows []runner.EngineResult
		cacheKey := cache.key(scriptPath, name, *trials, baseSeed)

		if cached, ok := cache.get(rt.ctx, cacheKey); ok {
			rows = cached
			logger.Info("scenario served from cache", "scenario", name, "rows", len(rows))
		} else {
			err := traceScenario(rt.ctx, tracer, name, *trials, func(context.Context) error {
				var runErr error
				rows, runErr = runScenario(prog, name, *trials, *workers, baseSeed, progress)
				return runErr
			})
			if err != nil {
				logger.Error("scenario failed", "scenario", name, "error", err)
				runtimeFailed = true
				continue
			}
			cache.set(rt.ctx, cacheKey, rows)
			logger.Info("scenario completed", "scenario", name, "rows", len(rows), "run_id", runID.String())
		}
		allRows = append(allRows, rows...)
	}

	f, err := os.Create(*out)
	if err != nil {
		logger.Error("create output file failed", "error", err)
		return exitIOError
	}
	defer f.Close()

	if err := runner.WriteCSV(f, allRows); err != nil {
		logger.Error("write csv failed", "error", err)
		return exitIOError
	}

	if rt.cfg.Sinks.S3Bucket != "" || rt.db != nil {
		var buf strings.Builder
		if err := runner.WriteCSV(&buf, allRows); err != nil {
			logger.Error("render csv for sink failed", "error", err)
			return exitIOError
		}
		if err := writeSinks(rt.ctx, rt, runID, strings.Join(names, "+"), baseSeed, allRows, []byte(buf.String())); err != nil {
			logger.Error("sink write failed", "error", err)
			return exitIOError
		}
	}

	if runtimeFailed {
		return exitRuntimeError
	}
	return exitOK
}

// runScenario runs a single scenario once (trials<=1 and no sampling
// nodes resolve deterministically via the literal resolver) or via the
// Monte Carlo driver when trials call for more than one trial.
func runScenario(prog *lang.ParsedProgram, name string, trialsOverride, workers int, seed int64, progress *progressPublisher) ([]runner.EngineResult, error) {
	scenario, ok := prog.SimulationByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: simulation %q", engineerr.ErrUnknownApplication, name)
	}

	trials := trialsOverride
	if trials <= 0 {
		trials = scenario.Trials
	}
	if trials <= 1 {
		return runner.Run(prog, name, runner.Options{
			Resolve: interpreter.LiteralResolver(),
			Progress: func(fraction float64) {
				progress.publish(name, fraction, 0, 0)
			},
		})
	}

	return montecarlo.Run(prog, name, montecarlo.Options{
		Trials:  trials,
		Workers: workers,
		Seed:    seed,
		Progress: func(completed, total int) {
			var fraction float64
			if total > 0 {
				fraction = float64(completed) / float64(total)
			}
			progress.publish(name, fraction, completed, total)
		},
	})
}

// selectScenarios resolves the --simulation flag against prog.Simulations.
// An empty flag selects every declared scenario; an unknown name is a
// hard error.
func selectScenarios(prog *lang.ParsedProgram, flagValue string) ([]string, error) {
	if flagValue == "" {
		var names []string
		for _, s := range prog.Simulations {
			names = append(names, s.Name)
		}
		if len(names) == 0 {
			return nil, errors.New("kigalisim: script declares no simulations")
		}
		return names, nil
	}

	var names []string
	for _, raw := range strings.Split(flagValue, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := prog.SimulationByName(name); !ok {
			return nil, fmt.Errorf("kigalisim: unknown simulation %q", name)
		}
		names = append(names, name)
	}
	return names, nil
}
