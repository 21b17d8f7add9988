package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/montecarlo"
	"github.com/example/kigalisim/internal/logging"
)

// trialMetrics exposes Monte Carlo trial throughput and progress as
// Prometheus gauges/counters, grounded on the teacher's
// observability.MetricsHandler/PrometheusExporter pairing.
type trialMetrics struct {
	registry       *prometheus.Registry
	trialsTotal    prometheus.Counter
	trialsFailed   prometheus.Counter
	currentFrac    prometheus.Gauge
	activeRunGauge prometheus.Gauge
}

func newTrialMetrics() *trialMetrics {
	m := &trialMetrics{
		registry: prometheus.NewRegistry(),
		trialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kigalisim_trials_completed_total",
			Help: "Number of Monte Carlo trials completed across all runs.",
		}),
		trialsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kigalisim_trials_failed_total",
			Help: "Number of Monte Carlo trials that returned an error.",
		}),
		currentFrac: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kigalisim_run_progress_fraction",
			Help: "Fraction of the current simulation run's trials completed.",
		}),
		activeRunGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kigalisim_run_active",
			Help: "1 while a simulation run is in progress, 0 otherwise.",
		}),
	}
	m.registry.MustRegister(m.trialsTotal, m.trialsFailed, m.currentFrac, m.activeRunGauge)
	return m
}

func (m *trialMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// serveCmd starts an HTTP server exposing /metrics and /healthz, and (when
// a script path is given) runs its first simulation's Monte Carlo driver
// in the background so /metrics has live data to report.
func serveCmd(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "listen address (default: config KIGALISIM_METRICS_PORT)")
	scriptPath := fs.String("script", "", "optional script to run continuously for live metrics")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	rt, err := buildRuntime(logger)
	if err != nil {
		logger.Error("build runtime failed", "error", err)
		return exitRuntimeError
	}
	defer rt.close()

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%d", rt.cfg.Metrics.Port)
	}

	metrics := newTrialMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: listenAddr, Handler: logging.HTTPMiddleware(logger)(mux)}

	if *scriptPath != "" {
		go runForMetrics(rt, logger, *scriptPath, metrics)
	}

	ctx, cancel := signal.NotifyContext(rt.ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), rt.cfg.RequestTimeout)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", listenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("serve failed", "error", err)
		return exitRuntimeError
	}
	return exitOK
}

func runForMetrics(rt *runtime, logger *slog.Logger, scriptPath string, metrics *trialMetrics) {
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		logger.Error("read script failed", "error", err)
		return
	}
	result := lang.Parse(string(src))
	if !result.OK() {
		logger.Error("parse script failed", "errors", len(result.Errors))
		return
	}
	prog := result.Program
	if len(prog.Simulations) == 0 {
		logger.Error("script declares no simulations")
		return
	}

	scenario := prog.Simulations[0]
	metrics.activeRunGauge.Set(1)
	defer metrics.activeRunGauge.Set(0)

	trials := scenario.Trials
	if trials <= 0 {
		trials = 1
	}

	progress := func(completed, total int) {
		metrics.trialsTotal.Inc()
		if total > 0 {
			metrics.currentFrac.Set(float64(completed) / float64(total))
		}
	}

	_, err = montecarlo.Run(prog, scenario.Name, montecarlo.Options{
		Trials:   trials,
		Seed:     rt.cfg.MonteCarlo.DefaultSeed,
		Cancel:   rt.ctx.Done(),
		Progress: progress,
	})
	if err != nil {
		metrics.trialsFailed.Inc()
		logger.Error("metrics run failed", "error", err)
	}
}
