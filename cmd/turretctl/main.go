package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/turretctl/internal/config"
	"github.com/san-kum/turretctl/internal/logging"
	"github.com/san-kum/turretctl/internal/sim"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	devLog     bool

	rateHz   int
	kp       float64
	ki       float64
	kd       float64
	bufferN  int
	aimFloor float64
	damping  float64

	duration   float64
	targetKind string
	realtime   bool
	noSave     bool
	jsonOut    bool

	port     string
	poseFeed string
	dryRun   bool
	pushGain bool

	column  string
	svgOut  string
	htmlOut string

	tuneKp     string
	tuneKi     string
	tuneKd     string
	tuneMetric string

	mcTrials  int
	mcSpread  float64
	mcSeed    int64
	mcMaxMiss float64
)

// main registers the turretctl commands and exits with status 1 if the
// selected command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "turretctl",
		Short:         "pan/tilt/aim turret tracking controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".turretctl", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "start from a named preset")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "human-readable development logging")

	gainFlags := func(cmd *cobra.Command) {
		cmd.Flags().IntVar(&rateHz, "rate", config.DefaultRateHz, "control rate in Hz")
		cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "cartesian proportional gain")
		cmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "cartesian integral gain")
		cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "cartesian derivative gain")
		cmd.Flags().IntVar(&bufferN, "buffer", config.DefaultBufferN, "error window length")
		cmd.Flags().Float64Var(&aimFloor, "aim-floor", config.DefaultAimFloor, "minimum aim joint extension")
		cmd.Flags().Float64Var(&damping, "damping", 0, "damped least squares factor")
	}
	targetFlags := func(cmd *cobra.Command) {
		cmd.Flags().Float64Var(&duration, "time", 30, "simulated duration in seconds")
		cmd.Flags().StringVar(&targetKind, "target", "circle", "target trajectory (static, circle, line)")
	}

	simCmd := &cobra.Command{
		Use:   "sim",
		Short: "run the controller against a simulated turret",
		RunE:  runSim,
	}
	gainFlags(simCmd)
	targetFlags(simCmd)
	simCmd.Flags().BoolVar(&realtime, "realtime", false, "pace steps at the control rate")
	simCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	simCmd.Flags().BoolVar(&jsonOut, "json", false, "write the run as JSON to stdout")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "simulate with a live terminal view",
		RunE:  runLive,
	}
	gainFlags(liveCmd)
	targetFlags(liveCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the control loop on a pose feed",
		Long: "run reads line-delimited JSON transforms from --poses (or stdin) and drives the\n" +
			"turret servos on --port. With --dry-run, or without a port, a kinematic turret\n" +
			"model closes the loop and joint states are written to stdout.",
		RunE: runHardware,
	}
	gainFlags(runCmd)
	runCmd.Flags().StringVar(&port, "port", "", "servo serial port")
	runCmd.Flags().StringVar(&poseFeed, "poses", "", "pose feed file, - for stdin")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "simulate the turret instead of driving servos")
	runCmd.Flags().BoolVar(&pushGain, "push-gains", false, "write motor gains before starting")

	gainsCmd := &cobra.Command{
		Use:   "gains",
		Short: "write the motor gain registers to the servos",
		RunE:  pushGains,
	}
	gainsCmd.Flags().StringVar(&port, "port", "", "servo serial port")
	gainsCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the gains instead of writing them")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a column of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "miss", "states.csv column to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON, or draw the run's paths",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&svgOut, "svg", "", "write a top-view svg of target and aim paths")
	exportCmd.Flags().StringVar(&htmlOut, "html", "", "write a top-view html chart of target and aim paths")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search cartesian gains in simulation",
		RunE:  tuneGains,
	}
	targetFlags(tuneCmd)
	tuneCmd.Flags().StringVar(&tuneKp, "kp-range", "1:9:2", "kp start:stop:step")
	tuneCmd.Flags().StringVar(&tuneKi, "ki-range", "0:2:0.5", "ki start:stop:step")
	tuneCmd.Flags().StringVar(&tuneKd, "kd-range", "0:0:1", "kd start:stop:step")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "tracking_rms", "metric to minimise")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a yaml scenario of simulated steps",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	gainFlags(scenarioCmd)
	scenarioCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store steps with save_as")

	mcCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run simulations with the target centre perturbed",
		RunE:  runMonteCarlo,
	}
	gainFlags(mcCmd)
	targetFlags(mcCmd)
	mcCmd.Flags().IntVar(&mcTrials, "trials", 20, "number of trials")
	mcCmd.Flags().Float64Var(&mcSpread, "spread", 0.05, "maximum centre offset per axis in metres")
	mcCmd.Flags().Int64Var(&mcSeed, "seed", 0, "random seed, 0 for time-based")
	mcCmd.Flags().Float64Var(&mcMaxMiss, "max-miss", 0.01, "final miss above which a trial counts as lost")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list gain presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-12s kp=%.2f ki=%.2f kd=%.2f buffer_n=%d rate_hz=%d\n",
					name, p.Kp, p.Ki, p.Kd, p.BufferN, p.RateHz)
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}

	rootCmd.AddCommand(simCmd, liveCmd, runCmd, gainsCmd, listCmd, plotCmd, exportCmd, tuneCmd,
		scenarioCmd, mcCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, preset, config file and explicitly set flags,
// in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.LoadOnto(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("rate") {
		cfg.RateHz = rateHz
	}
	if flags.Changed("kp") {
		cfg.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.Kd = kd
	}
	if flags.Changed("buffer") {
		cfg.BufferN = bufferN
	}
	if flags.Changed("aim-floor") {
		cfg.AimFloor = aimFloor
	}
	if flags.Changed("damping") {
		cfg.Damping = damping
	}
	if flags.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if flags.Changed("target") {
		cfg.Sim.Target.Kind = targetKind
	}
	if flags.Changed("port") {
		cfg.Hardware.Port = port
	}
	if flags.Changed("poses") {
		cfg.Hardware.PoseFeed = poseFeed
	}
	if flags.Changed("push-gains") {
		cfg.Hardware.PushGains = pushGain
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if devLog {
		cfg.Log.Development = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Development)
}

func simTarget(cfg *config.Config) (sim.Target, error) {
	t := cfg.Sim.Target
	center := r3.Vec{X: t.Center[0], Y: t.Center[1], Z: t.Center[2]}
	return sim.NewTarget(t.Kind, center, t.Radius, t.Speed)
}
