package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/turretctl/internal/automation"
	"github.com/san-kum/turretctl/internal/config"
	"github.com/san-kum/turretctl/internal/metrics"
	"github.com/san-kum/turretctl/internal/optim"
	"github.com/san-kum/turretctl/internal/pid"
	"github.com/san-kum/turretctl/internal/sim"
	"github.com/san-kum/turretctl/internal/storage"
	"github.com/san-kum/turretctl/internal/tui"
)

// settleTime is how much of a run the tracking metric ignores.
func settleTime(d float64) float64 { return math.Min(5, d/2) }

func newSimulator(cfg *config.Config, logger *zap.Logger) (*sim.Simulator, error) {
	target, err := simTarget(cfg)
	if err != nil {
		return nil, err
	}
	return sim.New(cfg.WithSimFrames().ControllerConfig(), target, sim.WithLogger(logger))
}

// simRunner runs cfg with the standard metrics attached.
func simRunner(logger *zap.Logger) automation.Runner {
	return func(ctx context.Context, cfg *config.Config) (*sim.Result, error) {
		s, err := newSimulator(cfg, logger)
		if err != nil {
			return nil, err
		}
		for _, m := range metrics.Standard(settleTime(cfg.Sim.Duration)) {
			s.AddMetric(m)
		}
		return s.Run(ctx, sim.Config{Duration: cfg.Sim.Duration})
	}
}

func runMeta(cfg *config.Config, label string) storage.RunMetadata {
	return storage.RunMetadata{
		Label:    label,
		RateHz:   float64(cfg.RateHz),
		Duration: cfg.Sim.Duration,
		Target:   cfg.Sim.Target.Kind,
		Kp:       cfg.Kp,
		Ki:       cfg.Ki,
		Kd:       cfg.Kd,
		BufferN:  cfg.BufferN,
	}
}

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := newSimulator(cfg, logger)
	if err != nil {
		return err
	}
	for _, m := range metrics.Standard(settleTime(cfg.Sim.Duration)) {
		s.AddMetric(m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !jsonOut {
		fmt.Printf("simulating %s target for %.1fs...\n", cfg.Sim.Target.Kind, cfg.Sim.Duration)
	}
	start := time.Now()
	result, err := s.Run(ctx, sim.Config{Duration: cfg.Sim.Duration, Realtime: realtime})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := runMeta(cfg, cfg.Sim.Target.Kind)
	if jsonOut {
		return storage.ExportJSON(os.Stdout, meta, result)
	}

	fmt.Printf("completed in %v\n", elapsed)
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(meta, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	fmt.Printf("steps: %d (failed: %d)\n", len(result.Samples), result.Failures)
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// the terminal belongs to the view; keep only errors
	cfg.Log.Level = "error"
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	title := fmt.Sprintf("turret / %s", cfg.Sim.Target.Kind)
	m, err := tui.NewModel(title, func() (*sim.Simulator, error) { return newSimulator(cfg, logger) })
	if err != nil {
		return err
	}
	return tui.Run(m)
}

func parseRange(s string) ([]float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) == 1 {
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("range %q: want start:stop:step", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] == v[1] {
		return []float64{v[0]}, nil
	}
	return optim.Values(v[0], v[1], v[2])
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var axes [3][]float64
	for i, r := range []string{tuneKp, tuneKi, tuneKd} {
		if axes[i], err = parseRange(r); err != nil {
			return err
		}
	}

	run := simRunner(zap.NewNop())
	eval := func(ctx context.Context, g pid.Gains) (map[string]float64, error) {
		trial := *cfg
		trial.Kp, trial.Ki, trial.Kd = g.Kp, g.Ki, g.Kd
		res, err := run(ctx, &trial)
		if err != nil {
			return nil, err
		}
		return res.Metrics, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gs := optim.NewGridSearch(axes[0], axes[1], axes[2])
	logger.Info("grid search started",
		zap.Int("trials", len(axes[0])*len(axes[1])*len(axes[2])),
		zap.String("metric", tuneMetric))

	trials, err := gs.Search(ctx, eval, tuneMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KP\tKI\tKD\t%s\tMAX_MISS\tEFFORT\n", strings.ToUpper(tuneMetric))
	for i, t := range trials {
		if i >= 10 {
			break
		}
		if t.Err != nil {
			fmt.Fprintf(w, "%.2f\t%.2f\t%.2f\terror: %v\t\t\n", t.Gains.Kp, t.Gains.Ki, t.Gains.Kd, t.Err)
			continue
		}
		fmt.Fprintf(w, "%.2f\t%.2f\t%.2f\t%.5f\t%.5f\t%.4f\n",
			t.Gains.Kp, t.Gains.Ki, t.Gains.Kd,
			t.Score(tuneMetric), t.Metrics["max_miss"], t.Metrics["control_effort"])
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunScenario(ctx, sc, cfg, simRunner(logger.Named("sim")), logger)
	if err != nil {
		return err
	}

	var st *storage.Store
	if !noSave {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tTARGET\tKP\tKI\tKD\tTRACKING_RMS\tMAX_MISS\tRUN")
	for i, r := range results {
		name := r.Step.Name
		if name == "" {
			name = strconv.Itoa(i + 1)
		}
		runID := "-"
		if st != nil && r.Step.SaveAs != "" {
			if runID, err = st.Save(runMeta(r.Config, r.Step.SaveAs), r.Result); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.5f\t%.5f\t%s\n",
			name, r.Config.Sim.Target.Kind, r.Config.Kp, r.Config.Ki, r.Config.Kd,
			r.Result.Metrics["tracking_rms"], r.Result.Metrics["max_miss"], runID)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mc := automation.MonteCarloConfig{
		Perturbation: mcSpread,
		NumTrials:    mcTrials,
		Seed:         mcSeed,
		MaxMiss:      mcMaxMiss,
	}
	results, err := automation.RunMonteCarlo(ctx, mc, cfg, simRunner(zap.NewNop()), logger)
	if err != nil {
		return err
	}

	stable, lost := automation.MonteCarloStats(results)
	worst := results[0]
	for _, r := range results[1:] {
		if r.FinalMiss > worst.FinalMiss {
			worst = r
		}
	}
	fmt.Printf("trials: %d  stable: %d  lost: %d\n", len(results), stable, lost)
	fmt.Printf("worst: trial %d centre (%.3f, %.3f, %.3f) final miss %.5f failures %d\n",
		worst.TrialID, worst.Center[0], worst.Center[1], worst.Center[2], worst.FinalMiss, worst.Failures)
	return nil
}
