package montecarlo

import (
	"runtime"
	"sync"

	"github.com/example/kigalisim/internal/engine/engineerr"
	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/runner"
)

// ProgressFunc is invoked as trials complete; completed and total let the
// caller render an overall fraction without the driver importing any
// particular UI layer. Implementations must be non-blocking.
type ProgressFunc func(completed, total int)

// Options configures a Monte Carlo run.
type Options struct {
	// Trials overrides the scenario's declared trial count when > 0.
	Trials int

	// Workers bounds concurrent trial execution; 0 means
	// runtime.GOMAXPROCS(0).
	Workers int

	// Seed is the base seed trials derive their per-trial seed from.
	Seed int64

	// Progress, if non-nil, is called after each trial completes.
	Progress ProgressFunc

	// Cancel, if non-nil, is forwarded to every trial's runner.Options.
	Cancel <-chan struct{}
}

// Run executes scenarioName from prog across Options.Trials trials (or
// the scenario's own declared trial count if Options.Trials is 0),
// resampling any sampling node independently per trial with a
// deterministic per-(scenario,trial) seed. Each trial gets its own fresh
// SimulationState via runner.Run; there is no shared mutable state
// between trials, so trials run concurrently up to Options.Workers.
//
// Results are merged in trial order regardless of completion order.
func Run(prog *lang.ParsedProgram, scenarioName string, opts Options) ([]runner.EngineResult, error) {
	scenario, ok := prog.SimulationByName(scenarioName)
	if !ok {
		return nil, engineerr.NewUnknownApplication(scenarioName)
	}

	trials := opts.Trials
	if trials <= 0 {
		trials = scenario.Trials
	}
	if trials <= 0 {
		trials = 1
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > trials {
		workers = trials
	}

	perTrial := make([][]runner.EngineResult, trials)
	errs := make([]error, trials)

	var completed int
	var mu sync.Mutex

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trial := range jobs {
				seed := SeedFor(opts.Seed, scenarioName, trial)
				rows, err := runner.Run(prog, scenarioName, runner.Options{
					Trial:   trial,
					Resolve: NewResolver(seed),
					Cancel:  opts.Cancel,
				})

				mu.Lock()
				perTrial[trial] = rows
				errs[trial] = err
				completed++
				if opts.Progress != nil {
					opts.Progress(completed, trials)
				}
				mu.Unlock()
			}
		}()
	}

	for trial := 0; trial < trials; trial++ {
		jobs <- trial
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var merged []runner.EngineResult
	for _, rows := range perTrial {
		merged = append(merged, rows...)
	}
	return merged, nil
}
