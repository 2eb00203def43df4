package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/canvaspilot/internal/config"
	"github.com/alexisbeaulieu97/canvaspilot/internal/engine"
	"github.com/alexisbeaulieu97/canvaspilot/internal/logger"
	"github.com/alexisbeaulieu97/canvaspilot/internal/metrics"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
	"github.com/alexisbeaulieu97/canvaspilot/internal/runctx"
	"github.com/alexisbeaulieu97/canvaspilot/internal/space"
	"github.com/alexisbeaulieu97/canvaspilot/internal/viewport"
)

type runOptions struct {
	PlanPath      string
	AdapterName   string
	MetricsListen string
	Verbose       bool
}

var runCmdRunner = runPlan

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute an automation plan against a live editor window",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose = root.verbose
			return runCmdRunner(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.PlanPath, "plan", "p", "", "Path to the plan file")
	cmd.Flags().StringVarP(&opts.AdapterName, "adapter", "a", "", "Platform adapter to drive the editor with")
	cmd.Flags().StringVar(&opts.MetricsListen, "metrics-listen", "", "Address to serve Prometheus metrics on (optional)")
	cmd.MarkFlagRequired("plan")    //nolint:errcheck
	cmd.MarkFlagRequired("adapter") //nolint:errcheck

	return cmd
}

func runPlan(opts runOptions) error {
	plan, err := config.ParsePlan(opts.PlanPath)
	if err != nil {
		return err
	}

	level := "info"
	if opts.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{
		Level:         level,
		HumanReadable: term.IsTerminal(int(os.Stdout.Fd())),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	adapter, err := ports.NewAdapter(opts.AdapterName, plan.Window.Title)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	meters := metrics.New(registry)
	if opts.MetricsListen != "" {
		go serveMetrics(opts.MetricsListen, registry, log)
	}

	canvasRegion := plan.Window.CanvasRegion
	if canvasRegion == "" {
		canvasRegion = "canvas"
	}

	backgroundColors, err := plan.Settings.ParsedBackgroundColors()
	if err != nil {
		return err
	}

	sp := space.New(adapter.Frames, plan.Window.Title, canvasRegion, log)
	calibrator := space.NewCalibrator(sp, adapter.Recognizer, log)
	aligner := viewport.NewAligner(sp, adapter.Frames, adapter.Recognizer, adapter.Input, log, meters, viewport.Config{
		WindowTitle:       plan.Window.Title,
		CanvasRegion:      canvasRegion,
		MarginRatio:       plan.Settings.MarginRatio,
		PanStepPixels:     plan.Settings.PanStepPixels,
		MaxSteps:          plan.Settings.MaxPanSteps,
		NoChangeThreshold: plan.Settings.NoChangeThreshold,
		NoChangeCap:       plan.Settings.NoChangeCap,
		SettleWait:        time.Duration(plan.Settings.SettleWaitMillis) * time.Millisecond,
		BackgroundColors:  backgroundColors,
	})
	orchestrator := engine.NewOrchestrator(sp, calibrator, aligner, adapter.Recognizer, adapter.Input,
		log, meters, plan.Settings.RetryLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := runctx.New(ctx, runctx.WithLogSink(func(message string) {
		log.Info(message)
	}))

	log.WithFields(map[string]any{"plan": plan.Name, "window": plan.Window.Title}).Info("starting run")
	summary, runErr := orchestrator.Execute(rc, plan)

	fmt.Fprintln(os.Stdout, renderLedger(summary))

	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error(err, "metrics endpoint stopped")
	}
}
