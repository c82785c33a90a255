package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/martinemde/deskagent/agentloop"
	"github.com/martinemde/deskagent/observability"
)

var errRunFailed = errors.New("run ended without completing the task")

type runOptions struct {
	context  string
	provider string
	model    string
	maxSteps int
	workdir  string
	json     bool
}

func newRunCmd(a *app, g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <task...>",
		Short: "Run the agent on a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, a, g, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&opts.context, "context", "", "extra context appended to the task")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider name (default active_provider)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model id (default active_model)")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "planner round budget (default max_steps)")
	cmd.Flags().StringVar(&opts.workdir, "workdir", "", "starting working directory (default home)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print steps as JSON lines")
	return cmd
}

func runTask(cmd *cobra.Command, a *app, g *globalOptions, opts *runOptions, task string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := g.logger(cmd, cfg)

	p, model, err := providerAndModel(cfg, opts.provider, opts.model)
	if err != nil {
		return err
	}
	client, err := a.newClient(p, model)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var metrics *observability.Metrics
	metricsAddr := cfg.MetricsAddr
	if g.metricsAddr != "" {
		metricsAddr = g.metricsAddr
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = observability.NewMetrics(reg)
		shutdown := serveMetrics(ctx, metricsAddr, reg, logger)
		defer shutdown()
	}

	agentCfg := cfg.AgentConfig()
	agentCfg.WorkingDir = opts.workdir
	agent := agentloop.NewAgent(client, agentCfg,
		agentloop.WithLogger(logger),
		agentloop.WithMetrics(metrics),
	)

	run, err := agent.Run(ctx, agentloop.RunRequest{
		Task:     task,
		Context:  opts.context,
		Model:    model,
		Provider: p.Name,
		MaxSteps: opts.maxSteps,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	var last agentloop.Step
	for step := range run.Steps() {
		last = step
		if opts.json {
			if err := enc.Encode(step); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, renderStep(step))
	}
	if !opts.json {
		fmt.Fprintln(out, renderStats(run.Stats()))
	}

	if last.Kind != agentloop.StepComplete {
		return errRunFailed
	}
	return nil
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *observability.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info(ctx, "serving metrics", "addr", addr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
