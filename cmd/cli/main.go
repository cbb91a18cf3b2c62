package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sbarendse/sweepscope/pkg/logger"
	"github.com/sbarendse/sweepscope/pkg/models"
	"github.com/sbarendse/sweepscope/pkg/sweepscope"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/analysis"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/sweep"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// A .env next to the binary may hold the port and database settings.
	_ = godotenv.Load()

	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "run":
		handleRun()
	case "list":
		handleList()
	case "show":
		handleShow()
	case "export":
		handleExport()
	case "delete":
		handleDelete()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
   _____                     _____
  / ___/      _____  ___    / ___/_________  ____  ___
  \__ \ | /| / / _ \/ _ \   \__ \/ ___/ __ \/ __ \/ _ \
 ___/ / |/ |/ /  __/  __/  ___/ / /__/ /_/ / /_/ /  __/
/____/|__/|__/\___/\___/  /____/\___/\____/ .___/\___/
                                         /_/
        Frequency Response Sweep Tool
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println(`Usage: sweepscope <command> [options]

Commands:
  run      Run a frequency sweep against the bench
  list     List stored sweep runs
  show     Show one run with its response summary
  export   Export a run's dataset (csv or json)
  delete   Delete a stored run

Run 'sweepscope <command> -h' for command options.`)
}

// sweepFileConfig is the YAML shape accepted by 'run -config'.
type sweepFileConfig struct {
	ScopePort       string  `yaml:"scope_port"`
	GeneratorPort   string  `yaml:"generator_port"`
	MinFreqHz       float64 `yaml:"min_freq_hz"`
	MaxFreqHz       float64 `yaml:"max_freq_hz"`
	StepHz          float64 `yaml:"step_hz"`
	Channel         int     `yaml:"channel"`
	DriftThreshold  float64 `yaml:"drift_threshold"`
	StepSettleMs    int     `yaml:"step_settle_ms"`
	AutosetSettleMs int     `yaml:"autoset_settle_ms"`
}

func handleRun() {
	log := logger.GetLogger()

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	dbPath := runCmd.String("db", getEnvOrDefault("SWEEP_DB_PATH", "sweepscope.sqlite3"), "Path to the SQLite database file")
	scopePort := runCmd.String("scope", getEnvOrDefault("SWEEP_SCOPE_PORT", "/dev/ttyUSB0"), "Serial port of the oscilloscope")
	genPort := runCmd.String("gen", getEnvOrDefault("SWEEP_GEN_PORT", "/dev/ttyUSB1"), "Serial port of the signal generator")
	configPath := runCmd.String("config", "", "YAML sweep configuration file (flags override)")
	minFreq := runCmd.Float64("min", 1000, "Sweep minimum frequency in Hz")
	maxFreq := runCmd.Float64("max", 10000, "Sweep maximum frequency in Hz")
	step := runCmd.Float64("step", 100, "Sweep step in Hz")
	channel := runCmd.Int("channel", 2, "Generator output channel (1 or 2)")
	threshold := runCmd.Float64("threshold", 0.4, "Period drift fraction that re-triggers autoset")
	plotPath := runCmd.String("plot", "", "Write the amplitude/frequency plot to this PNG (empty: skip)")
	open := runCmd.Bool("open", false, "Open the plot with xdg-open after the sweep")
	runCmd.Parse(os.Args[2:])

	cfg := sweep.DefaultConfig()

	if *configPath != "" {
		var fileCfg sweepFileConfig
		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to read config file: %v", err)
		}
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			log.Fatalf("Failed to parse config file: %v", err)
		}
		applyFileConfig(&cfg, scopePort, genPort, fileCfg)
	}

	// Explicit flags win over the config file.
	runCmd.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min":
			cfg.MinFreqHz = *minFreq
		case "max":
			cfg.MaxFreqHz = *maxFreq
		case "step":
			cfg.StepHz = *step
		case "channel":
			cfg.Channel = *channel
		case "threshold":
			cfg.DriftThreshold = *threshold
		}
	})
	if *configPath == "" {
		cfg.MinFreqHz = *minFreq
		cfg.MaxFreqHz = *maxFreq
		cfg.StepHz = *step
		cfg.Channel = *channel
		cfg.DriftThreshold = *threshold
	}

	svc, err := sweepscope.NewService(
		sweepscope.WithDBPath(*dbPath),
		sweepscope.WithScopePort(*scopePort),
		sweepscope.WithGeneratorPort(*genPort),
		sweepscope.WithSweepConfig(cfg),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer svc.Close()

	// Ctrl-C aborts the sweep between steps; the partial dataset is kept.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := svc.RunSweep(ctx)
	if err != nil {
		if res != nil && len(res.Measurements) > 0 {
			log.Warnf("Sweep aborted, %d measurements kept in run %s", len(res.Measurements), res.RunID)
		}
		log.Fatalf("Sweep failed: %v", err)
	}

	fmt.Printf("\nRun %s: %d measurements, %d autoset re-triggers\n",
		res.RunID, len(res.Measurements), res.AutosetCount)
	printSummary(res.Frequencies(), res.Amplitudes())

	if *plotPath != "" {
		if err := svc.RenderPlot(res.RunID, *plotPath); err != nil {
			log.Fatalf("Failed to render plot: %v", err)
		}
		fmt.Printf("Plot written to %s\n", *plotPath)
		if *open {
			if err := exec.Command("xdg-open", *plotPath).Start(); err != nil {
				log.Warnf("Failed to open plot viewer: %v", err)
			}
		}
	}
}

func applyFileConfig(cfg *sweep.Config, scopePort, genPort *string, fileCfg sweepFileConfig) {
	if fileCfg.ScopePort != "" {
		*scopePort = fileCfg.ScopePort
	}
	if fileCfg.GeneratorPort != "" {
		*genPort = fileCfg.GeneratorPort
	}
	if fileCfg.MinFreqHz > 0 {
		cfg.MinFreqHz = fileCfg.MinFreqHz
	}
	if fileCfg.MaxFreqHz > 0 {
		cfg.MaxFreqHz = fileCfg.MaxFreqHz
	}
	if fileCfg.StepHz > 0 {
		cfg.StepHz = fileCfg.StepHz
	}
	if fileCfg.Channel > 0 {
		cfg.Channel = fileCfg.Channel
	}
	if fileCfg.DriftThreshold > 0 {
		cfg.DriftThreshold = fileCfg.DriftThreshold
	}
	if fileCfg.StepSettleMs > 0 {
		cfg.StepSettle = time.Duration(fileCfg.StepSettleMs) * time.Millisecond
	}
	if fileCfg.AutosetSettleMs > 0 {
		cfg.AutosetSettle = time.Duration(fileCfg.AutosetSettleMs) * time.Millisecond
	}
}

func openService(dbPath string) sweepscope.Service {
	svc, err := sweepscope.NewService(sweepscope.WithDBPath(dbPath))
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	return svc
}

func handleList() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := listCmd.String("db", getEnvOrDefault("SWEEP_DB_PATH", "sweepscope.sqlite3"), "Path to the SQLite database file")
	listCmd.Parse(os.Args[2:])

	svc := openService(*dbPath)
	defer svc.Close()

	runs, err := svc.ListRuns()
	if err != nil {
		logger.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No sweep runs stored.")
		return
	}

	fmt.Printf("%-36s  %-19s  %-9s  %s\n", "ID", "STARTED", "STATUS", "RANGE")
	for _, run := range runs {
		fmt.Printf("%-36s  %-19s  %-9s  %g-%g Hz / %g Hz\n",
			run.ID, run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Status, run.MinFreqHz, run.MaxFreqHz, run.StepHz)
	}
}

func handleShow() {
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	dbPath := showCmd.String("db", getEnvOrDefault("SWEEP_DB_PATH", "sweepscope.sqlite3"), "Path to the SQLite database file")
	plotPath := showCmd.String("plot", "", "Write the run's plot to this PNG")
	showCmd.Parse(argsAfterID())

	runID := requireRunID()
	svc := openService(*dbPath)
	defer svc.Close()

	run, err := svc.GetRun(runID)
	if err != nil {
		logger.Fatalf("Failed to load run: %v", err)
	}
	ms, err := svc.Measurements(runID)
	if err != nil {
		logger.Fatalf("Failed to load measurements: %v", err)
	}

	fmt.Printf("Run:        %s\n", run.ID)
	fmt.Printf("Started:    %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Printf("Status:     %s\n", run.Status)
	if run.Error != "" {
		fmt.Printf("Error:      %s\n", run.Error)
	}
	fmt.Printf("Range:      %g Hz - %g Hz, step %g Hz\n", run.MinFreqHz, run.MaxFreqHz, run.StepHz)
	fmt.Printf("Threshold:  %g\n", run.DriftThreshold)
	fmt.Printf("Autosets:   %d\n", run.AutosetCount)
	fmt.Printf("Steps:      %d\n", len(ms))

	result := models.SweepResult{RunID: run.ID, Measurements: ms}
	printSummary(result.Frequencies(), result.Amplitudes())

	if *plotPath != "" {
		if err := svc.RenderPlot(runID, *plotPath); err != nil {
			logger.Fatalf("Failed to render plot: %v", err)
		}
		fmt.Printf("Plot written to %s\n", *plotPath)
	}
}

func printSummary(freqs, ampls []float64) {
	s, err := analysis.Summarize(freqs, ampls)
	if err != nil {
		return
	}
	fmt.Printf("\nResponse summary:\n")
	fmt.Printf("  Peak:      %.6g at %.6g Hz\n", s.PeakAmplitude, s.PeakFreqHz)
	fmt.Printf("  Mean ampl: %.6g\n", s.MeanAmplitude)
	if s.BandwidthHz > 0 {
		fmt.Printf("  -3 dB:     %.6g Hz - %.6g Hz (bandwidth %.6g Hz)\n",
			s.LowCutoffHz, s.HighCutoffHz, s.BandwidthHz)
	}
}

func handleExport() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := exportCmd.String("db", getEnvOrDefault("SWEEP_DB_PATH", "sweepscope.sqlite3"), "Path to the SQLite database file")
	format := exportCmd.String("format", "csv", "Export format: csv or json")
	outPath := exportCmd.String("out", "", "Output file (default: stdout)")
	exportCmd.Parse(argsAfterID())

	runID := requireRunID()
	svc := openService(*dbPath)
	defer svc.Close()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	switch *format {
	case "csv":
		if err := svc.ExportCSV(out, runID); err != nil {
			logger.Fatalf("Export failed: %v", err)
		}
	case "json":
		ms, err := svc.Measurements(runID)
		if err != nil {
			logger.Fatalf("Export failed: %v", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ms); err != nil {
			logger.Fatalf("Export failed: %v", err)
		}
	default:
		logger.Fatalf("Unknown export format: %s", *format)
	}
}

func handleDelete() {
	deleteCmd := flag.NewFlagSet("delete", flag.ExitOnError)
	dbPath := deleteCmd.String("db", getEnvOrDefault("SWEEP_DB_PATH", "sweepscope.sqlite3"), "Path to the SQLite database file")
	deleteCmd.Parse(argsAfterID())

	runID := requireRunID()
	svc := openService(*dbPath)
	defer svc.Close()

	if err := svc.DeleteRun(runID); err != nil {
		logger.Fatalf("Failed to delete run: %v", err)
	}
	fmt.Printf("Run %s deleted.\n", runID)
}

// requireRunID returns the positional run ID for show/export/delete.
func requireRunID() string {
	if len(os.Args) < 3 || os.Args[2] == "" || os.Args[2][0] == '-' {
		fmt.Println("A run ID is required.")
		printUsage()
		os.Exit(1)
	}
	return os.Args[2]
}

// argsAfterID returns the flag arguments following the positional run ID.
func argsAfterID() []string {
	if len(os.Args) < 4 {
		return nil
	}
	return os.Args[3:]
}
