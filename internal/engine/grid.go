package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/san-kum/cosim/internal/pointset"
)

const (
	DefaultGridOutput = "results.dat"
	DefaultGridInput  = "fields.dat"
)

var _ Adapter = (*GridAdapter)(nil)

// GridAdapter drives a regular-grid engine whose output is space-separated,
// one record per grid point: x, y, z, one value per field. Grid points carry
// no native identifier; the record position is assigned as one.
type GridAdapter struct {
	Dir        string
	Fields     []string
	Runner     *Runner
	OutputFile string
	InputFile  string
}

func NewGrid(dir string, fields []string, runner *Runner) *GridAdapter {
	return &GridAdapter{
		Dir:        dir,
		Fields:     fields,
		Runner:     runner,
		OutputFile: DefaultGridOutput,
		InputFile:  DefaultGridInput,
	}
}

func (a *GridAdapter) StepDir(step string) string {
	return filepath.Join(a.Dir, step)
}

func (a *GridAdapter) Ingest(ctx context.Context, step string) (*pointset.Set, error) {
	path := filepath.Join(a.StepDir(step), a.OutputFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingStep)
	}
	return a.ReadFile(path, step)
}

// ReadFile parses a grid output file, assigning record positions as
// identifiers and tagging field values with the given step name.
func (a *GridAdapter) ReadFile(path, step string) (*pointset.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var defs []pointset.Def
	values := make([]map[int]float64, len(a.Fields))
	for i := range values {
		values[i] = make(map[int]float64)
	}

	want := 3 + len(a.Fields)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		cols := strings.Fields(text)
		if len(cols) != want {
			return nil, &ParseError{File: path, Line: line,
				Msg: fmt.Sprintf("expected %d space-separated columns, got %d", want, len(cols))}
		}

		var coord [3]float64
		for i := 0; i < 3; i++ {
			coord[i], err = strconv.ParseFloat(cols[i], 64)
			if err != nil {
				return nil, &ParseError{File: path, Line: line,
					Msg: fmt.Sprintf("coordinate %q: %v", cols[i], err)}
			}
		}
		id := len(defs)
		defs = append(defs, pointset.Def{ID: id, Coord: pointset.Coord{X: coord[0], Y: coord[1], Z: coord[2]}})

		for i := range a.Fields {
			v, err := strconv.ParseFloat(cols[3+i], 64)
			if err != nil {
				return nil, &ParseError{File: path, Line: line,
					Msg: fmt.Sprintf("value %q: %v", cols[3+i], err)}
			}
			values[i][id] = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	set, err := pointset.New(defs)
	if err != nil {
		return nil, &ParseError{File: path, Line: line, Msg: err.Error()}
	}
	for i, name := range a.Fields {
		if err := set.SetField(step, name, values[i]); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (a *GridAdapter) Prepare(ctx context.Context, step string, set *pointset.Set) error {
	dir := a.StepDir(step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return a.WriteFile(filepath.Join(dir, a.InputFile), step, set)
}

// WriteFile writes the configured fields for a step in the grid input schema.
func (a *GridAdapter) WriteFile(path, step string, set *pointset.Set) error {
	cols := make([][]float64, len(a.Fields))
	for i, name := range a.Fields {
		vals, err := set.Values(step, name)
		if err != nil {
			return err
		}
		cols[i] = vals
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, p := range set.Points() {
		fmt.Fprintf(w, "%s %s %s",
			formatFloat(p.Coord.X), formatFloat(p.Coord.Y), formatFloat(p.Coord.Z))
		for _, col := range cols {
			fmt.Fprintf(w, " %s", formatFloat(col[i]))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func (a *GridAdapter) Invoke(ctx context.Context, step string) error {
	if a.Runner == nil {
		return ErrNoCommand
	}
	return a.Runner.Run(ctx, a.StepDir(step))
}
