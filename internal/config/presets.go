package config

var Presets = map[string]*Config{
	"two_way_2d": {
		Name:    "two_way_2d",
		WorkDir: DefaultWorkDir,
		Mode:    "2d",
		Steps:   []string{"initial", "step_1", "step_2"},
		Engines: []EngineConfig{
			{Name: "mechanical", Kind: "mesh", Fields: []string{"pore_pressure"}},
			{Name: "flow", Kind: "grid", Fields: []string{"pore_pressure"}},
		},
		Transfers: []TransferConfig{
			{From: "flow", Field: "pore_pressure", To: "mechanical"},
			{From: "mechanical", Field: "pore_pressure", To: "flow"},
		},
	},
	"one_way_3d": {
		Name:    "one_way_3d",
		WorkDir: DefaultWorkDir,
		Mode:    "3d",
		Steps:   []string{"initial", "step_1"},
		Engines: []EngineConfig{
			{Name: "flow", Kind: "grid", Fields: []string{"saturation"}},
			{Name: "mechanical", Kind: "mesh", Fields: []string{"saturation"}},
		},
		Transfers: []TransferConfig{
			{From: "flow", Field: "saturation", To: "mechanical"},
		},
		Transfer: TransferParams{Neighbors: 10},
	},
	"offset_frames_2d": {
		Name:    "offset_frames_2d",
		WorkDir: DefaultWorkDir,
		Mode:    "2d",
		Steps:   []string{"initial", "step_1"},
		Engines: []EngineConfig{
			{Name: "mechanical", Kind: "mesh", Fields: []string{"pore_pressure"}},
			{Name: "flow", Kind: "grid", Fields: []string{"pore_pressure"}},
		},
		Transfers: []TransferConfig{
			{From: "mechanical", Field: "pore_pressure", To: "flow"},
		},
		Transfer: TransferParams{
			Rotation: [][]float64{
				{0, -1, 0},
				{1, 0, 0},
				{0, 0, 1},
			},
			Translation: []float64{10, 0, 0},
		},
	},
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
