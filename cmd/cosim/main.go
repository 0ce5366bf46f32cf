package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/coupling"
	"github.com/san-kum/cosim/internal/engine"
	"github.com/san-kum/cosim/internal/pointset"
	"github.com/san-kum/cosim/internal/storage"
	"github.com/san-kum/cosim/internal/transfer"
)

var (
	configFile string
	verbose    bool
	clean      bool
	step       string
	preset     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cosim",
		Short: "file-based coupling of simulation engines",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "coupling.yaml", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the coupling loop over all configured steps",
		RunE:  runCoupling,
	}
	runCmd.Flags().BoolVar(&clean, "clean", false, "remove the work directory before running")

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a starter config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset configuration")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	transferCmd := &cobra.Command{
		Use:   "transfer [from_engine] [to_engine]",
		Short: "map one step's fields between two engines without running them",
		Args:  cobra.ExactArgs(2),
		RunE:  transferOnce,
	}
	transferCmd.Flags().StringVar(&step, "step", "", "step whose output to read (required)")
	transferCmd.MarkFlagRequired("step")

	validateCmd := &cobra.Command{
		Use:   "validate [from_engine] [to_engine]",
		Short: "round-trip and neighbor-distance check between two engines",
		Args:  cobra.ExactArgs(2),
		RunE:  validateTransfer,
	}
	validateCmd.Flags().StringVar(&step, "step", "", "step whose output to read (required)")
	validateCmd.MarkFlagRequired("step")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list step snapshots",
		RunE:  listSnapshots,
	}

	exportCmd := &cobra.Command{
		Use:   "export [step] [engine]",
		Short: "export snapshot metadata",
		Args:  cobra.ExactArgs(2),
		RunE:  exportSnapshot,
	}

	rootCmd.AddCommand(runCmd, initCmd, presetsCmd, transferCmd, validateCmd, listCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func buildAdapter(cfg *config.Config, e config.EngineConfig) engine.Adapter {
	var runner *engine.Runner
	if e.Command != "" {
		runner = &engine.Runner{
			Command: e.Command,
			Args:    e.Args,
			Timeout: time.Duration(e.TimeoutSeconds * float64(time.Second)),
		}
	}
	dir := cfg.EngineDir(e)
	switch e.Kind {
	case "grid":
		a := engine.NewGrid(dir, e.Fields, runner)
		if e.OutputFile != "" {
			a.OutputFile = e.OutputFile
		}
		if e.InputFile != "" {
			a.InputFile = e.InputFile
		}
		return a
	default:
		a := engine.NewMesh(dir, e.Fields, runner)
		if e.OutputFile != "" {
			a.OutputFile = e.OutputFile
		}
		if e.InputFile != "" {
			a.InputFile = e.InputFile
		}
		return a
	}
}

// fileReader is the adapter-side parsing entry point, used for seeding the
// first step from files outside the step layout.
type fileReader interface {
	ReadFile(path, step string) (*pointset.Set, error)
}

func runCoupling(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts, err := cfg.TransferOptions()
	if err != nil {
		return err
	}

	if clean {
		if err := os.RemoveAll(cfg.WorkDir); err != nil {
			return err
		}
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st := storage.New(filepath.Join(cfg.WorkDir, "history"))
	if err := st.Init(); err != nil {
		return err
	}

	orch := coupling.New(coupling.Run{
		Name:    cfg.Name,
		WorkDir: cfg.WorkDir,
		Log:     logger,
		Store:   st,
	})

	adapters := make(map[string]engine.Adapter)
	for _, e := range cfg.Engines {
		a := buildAdapter(cfg, e)
		if err := orch.AddEngine(e.Name, a); err != nil {
			return err
		}
		adapters[e.Name] = a
	}

	ctx := context.Background()
	start := time.Now()
	base := ""

	for i, stepName := range cfg.Steps {
		if err := orch.BeginStep(stepName, base); err != nil {
			return err
		}

		if i == 0 {
			for _, e := range cfg.Engines {
				if e.InitialFile == "" {
					continue
				}
				r, ok := adapters[e.Name].(fileReader)
				if !ok {
					return fmt.Errorf("engine %s cannot seed from a file", e.Name)
				}
				set, err := r.ReadFile(e.InitialFile, stepName)
				if err != nil {
					return fmt.Errorf("seed %s: %w", e.Name, err)
				}
				if err := orch.Seed(e.Name, set); err != nil {
					return err
				}
			}
		}

		// Engines run in config order; each receives its inbound transfers
		// first, so an engine listed earlier feeds its fresh output to the
		// ones after it within the same step.
		for _, e := range cfg.Engines {
			for _, tr := range cfg.InboundTransfers(e.Name) {
				err := orch.TransferField(tr.From, tr.Field, tr.To, opts)
				if errors.Is(err, coupling.ErrNoData) {
					logger.Warn("transfer skipped",
						zap.String("from", tr.From),
						zap.String("to", tr.To),
						zap.String("field", tr.Field),
						zap.String("step", stepName),
						zap.Error(err))
					continue
				}
				if err != nil {
					return err
				}
			}
			if err := orch.RunStep(ctx, e.Name); err != nil {
				return err
			}
		}
		base = stepName
	}

	if err := orch.Finish(); err != nil {
		return err
	}

	fmt.Printf("completed %d steps in %v\n", len(cfg.Steps), time.Since(start).Round(time.Millisecond))
	fmt.Printf("snapshots: %s\n", filepath.Join(cfg.WorkDir, "history"))
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) > 0 {
		path = args[0]
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// ingestStep reads one engine's output for a step directly, outside any run.
func ingestStep(cfg *config.Config, name string) (*pointset.Set, config.EngineConfig, error) {
	for _, e := range cfg.Engines {
		if e.Name != name {
			continue
		}
		set, err := buildAdapter(cfg, e).Ingest(context.Background(), step)
		if err != nil {
			return nil, e, err
		}
		return set, e, nil
	}
	return nil, config.EngineConfig{}, fmt.Errorf("unknown engine: %s", name)
}

func transferOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	opts, err := cfg.TransferOptions()
	if err != nil {
		return err
	}

	src, fromCfg, err := ingestStep(cfg, args[0])
	if err != nil {
		return err
	}
	dst, toCfg, err := ingestStep(cfg, args[1])
	if err != nil {
		return err
	}

	for _, field := range fromCfg.Fields {
		values, err := src.Values(step, field)
		if err != nil {
			return err
		}
		mapped, err := transfer.Transfer(src, values, dst, opts)
		if err != nil {
			return err
		}
		if err := dst.SetFieldOrdered(step, field, mapped); err != nil {
			return err
		}
	}

	a := buildAdapter(cfg, toCfg)
	if err := a.Prepare(context.Background(), step, dst); err != nil {
		return err
	}
	fmt.Printf("wrote inputs for %s step %s\n", toCfg.Name, step)
	return nil
}

func validateTransfer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	opts, err := cfg.TransferOptions()
	if err != nil {
		return err
	}

	src, fromCfg, err := ingestStep(cfg, args[0])
	if err != nil {
		return err
	}
	dst, _, err := ingestStep(cfg, args[1])
	if err != nil {
		return err
	}

	fmt.Printf("validating %s -> %s at step %s (%s)\n\n", args[0], args[1], step, opts.Mode)

	ns, err := transfer.Neighbors(src, dst, opts.Neighbors, opts.Rigid)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NEIGHBORS\tMEAN\tSTD\tMIN\tMAX")
	fmt.Fprintf(w, "%d\t%.6g\t%.6g\t%.6g\t%.6g\n", ns.Count, ns.Mean, ns.Std, ns.Min, ns.Max)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()

	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tSOURCES\tTARGETS\tMEAN_ABS\tSTD_ABS\tMAX_ABS")
	for _, field := range fromCfg.Fields {
		values, err := src.Values(step, field)
		if err != nil {
			return err
		}
		rt, err := transfer.Validate(src, values, dst, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.6g\t%.6g\t%.6g\n",
			field, rt.Sources, rt.Targets, rt.MeanAbs, rt.StdAbs, rt.MaxAbs)
	}
	return w.Flush()
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	st := storage.New(filepath.Join(cfg.WorkDir, "history"))
	snaps, err := st.List()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("no snapshots found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tENGINE\tTIME\tPOINTS\tFIELDS\tCOMPUTE")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2fs\n",
			s.Step,
			s.Engine,
			s.Timestamp.Format("2006-01-02 15:04:05"),
			s.Points,
			len(s.Fields),
			s.ComputeTime,
		)
	}
	return w.Flush()
}

func exportSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	st := storage.New(filepath.Join(cfg.WorkDir, "history"))
	meta, err := st.LoadMetadata(args[0], args[1])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
