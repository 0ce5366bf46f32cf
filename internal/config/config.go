package config

import (
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/cosim/internal/transfer"
)

const (
	DefaultWorkDir        = "./work"
	DefaultMode           = "2d"
	DefaultTimeoutSeconds = 3600.0
)

type Config struct {
	Name      string           `yaml:"name"`
	WorkDir   string           `yaml:"work_dir"`
	Mode      string           `yaml:"mode"`
	Steps     []string         `yaml:"steps"`
	Engines   []EngineConfig   `yaml:"engines"`
	Transfers []TransferConfig `yaml:"transfers"`
	Transfer  TransferParams   `yaml:"transfer_params,omitempty"`
}

type EngineConfig struct {
	Name           string   `yaml:"name"`
	Kind           string   `yaml:"kind"`           // mesh or grid
	Dir            string   `yaml:"dir,omitempty"`  // defaults to <work_dir>/<name>
	Command        string   `yaml:"command,omitempty"`
	Args           []string `yaml:"args,omitempty"`
	TimeoutSeconds float64  `yaml:"timeout_seconds,omitempty"`
	Fields         []string `yaml:"fields"`
	OutputFile     string   `yaml:"output_file,omitempty"`
	InputFile      string   `yaml:"input_file,omitempty"`
	// InitialFile, when set, seeds the engine's data for the first step from
	// a file instead of waiting for the first ingest.
	InitialFile string `yaml:"initial_file,omitempty"`
}

type TransferConfig struct {
	From  string `yaml:"from"`
	Field string `yaml:"field"`
	To    string `yaml:"to"`
}

type TransferParams struct {
	Neighbors   int         `yaml:"neighbors,omitempty"`
	MaxDistance float64     `yaml:"max_distance,omitempty"`
	Rotation    [][]float64 `yaml:"rotation,omitempty"`
	Translation []float64   `yaml:"translation,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:    "coupling",
		WorkDir: DefaultWorkDir,
		Mode:    DefaultMode,
		Steps:   []string{"initial", "step_1"},
		Engines: []EngineConfig{
			{Name: "mechanical", Kind: "mesh", Fields: []string{"pore_pressure"}},
			{Name: "flow", Kind: "grid", Fields: []string{"pore_pressure"}},
		},
		Transfers: []TransferConfig{
			{From: "flow", Field: "pore_pressure", To: "mechanical"},
			{From: "mechanical", Field: "pore_pressure", To: "flow"},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{WorkDir: DefaultWorkDir, Mode: DefaultMode}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if len(c.Engines) == 0 {
		return fmt.Errorf("config: no engines defined")
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("config: no steps defined")
	}
	names := make(map[string]bool)
	for _, e := range c.Engines {
		if e.Name == "" {
			return fmt.Errorf("config: engine without a name")
		}
		if names[e.Name] {
			return fmt.Errorf("config: duplicate engine %q", e.Name)
		}
		names[e.Name] = true
		switch e.Kind {
		case "mesh", "grid":
		default:
			return fmt.Errorf("config: engine %q: unknown kind %q", e.Name, e.Kind)
		}
		if len(e.Fields) == 0 {
			return fmt.Errorf("config: engine %q: no fields", e.Name)
		}
	}
	for _, tr := range c.Transfers {
		if !names[tr.From] {
			return fmt.Errorf("config: transfer from unknown engine %q", tr.From)
		}
		if !names[tr.To] {
			return fmt.Errorf("config: transfer to unknown engine %q", tr.To)
		}
		if tr.Field == "" {
			return fmt.Errorf("config: transfer %s -> %s without a field", tr.From, tr.To)
		}
	}
	if _, err := parseMode(c.Mode); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, s := range c.Steps {
		if seen[s] {
			return fmt.Errorf("config: duplicate step %q", s)
		}
		seen[s] = true
	}
	return nil
}

func parseMode(s string) (transfer.Mode, error) {
	switch strings.ToLower(s) {
	case "", "2d":
		return transfer.Mode2D, nil
	case "3d":
		return transfer.Mode3D, nil
	default:
		return 0, fmt.Errorf("config: unknown mode %q", s)
	}
}

// TransferOptions builds the interpolation options shared by every transfer
// of the run, including the rigid coordinate transform when one is given.
func (c *Config) TransferOptions() (transfer.Options, error) {
	mode, err := parseMode(c.Mode)
	if err != nil {
		return transfer.Options{}, err
	}
	opts := transfer.Options{
		Mode:        mode,
		Neighbors:   c.Transfer.Neighbors,
		MaxDistance: c.Transfer.MaxDistance,
	}

	if len(c.Transfer.Rotation) == 0 && len(c.Transfer.Translation) == 0 {
		return opts, nil
	}

	rigid := &transfer.Rigid{}
	if n := len(c.Transfer.Translation); n > 0 {
		if n != 3 {
			return transfer.Options{}, fmt.Errorf("config: translation has %d components, want 3", n)
		}
		copy(rigid.Translation[:], c.Transfer.Translation)
	}
	if len(c.Transfer.Rotation) > 0 {
		if len(c.Transfer.Rotation) != 3 {
			return transfer.Options{}, fmt.Errorf("config: rotation has %d rows, want 3", len(c.Transfer.Rotation))
		}
		r := mat.NewDense(3, 3, nil)
		for i, row := range c.Transfer.Rotation {
			if len(row) != 3 {
				return transfer.Options{}, fmt.Errorf("config: rotation row %d has %d columns, want 3", i, len(row))
			}
			r.SetRow(i, row)
		}
		rigid.Rotation = r
	}
	opts.Rigid = rigid
	return opts, nil
}

// EngineDir resolves an engine's working directory against the run's WorkDir.
func (c *Config) EngineDir(e EngineConfig) string {
	if e.Dir != "" {
		return e.Dir
	}
	return c.WorkDir + "/" + e.Name
}

// InboundTransfers returns the transfers targeting the named engine, in
// config order.
func (c *Config) InboundTransfers(engineName string) []TransferConfig {
	var in []TransferConfig
	for _, tr := range c.Transfers {
		if tr.To == engineName {
			in = append(in, tr)
		}
	}
	return in
}
