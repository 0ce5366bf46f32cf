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
	DefaultMeshOutput = "results.tsv"
	DefaultMeshInput  = "fields.tsv"
)

var _ Adapter = (*MeshAdapter)(nil)

// MeshAdapter drives a node-mesh engine whose output is tab-separated, one
// record per node: identifier, x, y, z, one value per field.
type MeshAdapter struct {
	Dir        string // engine root; step artifacts live in Dir/<step>/
	Fields     []string
	Runner     *Runner
	OutputFile string
	InputFile  string
}

func NewMesh(dir string, fields []string, runner *Runner) *MeshAdapter {
	return &MeshAdapter{
		Dir:        dir,
		Fields:     fields,
		Runner:     runner,
		OutputFile: DefaultMeshOutput,
		InputFile:  DefaultMeshInput,
	}
}

func (a *MeshAdapter) StepDir(step string) string {
	return filepath.Join(a.Dir, step)
}

func (a *MeshAdapter) Ingest(ctx context.Context, step string) (*pointset.Set, error) {
	path := filepath.Join(a.StepDir(step), a.OutputFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingStep)
	}
	return a.ReadFile(path, step)
}

// ReadFile parses a mesh output file, tagging field values with the given
// step name. Empty records are skipped; malformed ones are parse errors.
func (a *MeshAdapter) ReadFile(path, step string) (*pointset.Set, error) {
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

	want := 4 + len(a.Fields)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) != want {
			return nil, &ParseError{File: path, Line: line,
				Msg: fmt.Sprintf("expected %d tab-separated columns, got %d", want, len(cols))}
		}

		id, err := strconv.Atoi(strings.TrimSpace(cols[0]))
		if err != nil {
			return nil, &ParseError{File: path, Line: line,
				Msg: fmt.Sprintf("node number %q: %v", cols[0], err)}
		}
		var coord [3]float64
		for i := 0; i < 3; i++ {
			coord[i], err = strconv.ParseFloat(strings.TrimSpace(cols[1+i]), 64)
			if err != nil {
				return nil, &ParseError{File: path, Line: line,
					Msg: fmt.Sprintf("coordinate %q: %v", cols[1+i], err)}
			}
		}
		defs = append(defs, pointset.Def{ID: id, Coord: pointset.Coord{X: coord[0], Y: coord[1], Z: coord[2]}})

		for i := range a.Fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(cols[4+i]), 64)
			if err != nil {
				return nil, &ParseError{File: path, Line: line,
					Msg: fmt.Sprintf("value %q: %v", cols[4+i], err)}
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

func (a *MeshAdapter) Prepare(ctx context.Context, step string, set *pointset.Set) error {
	dir := a.StepDir(step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return a.WriteFile(filepath.Join(dir, a.InputFile), step, set)
}

// WriteFile writes the configured fields for a step in the mesh input schema.
func (a *MeshAdapter) WriteFile(path, step string, set *pointset.Set) error {
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
		fmt.Fprintf(w, "%d\t%s\t%s\t%s", p.ID,
			formatFloat(p.Coord.X), formatFloat(p.Coord.Y), formatFloat(p.Coord.Z))
		for _, col := range cols {
			fmt.Fprintf(w, "\t%s", formatFloat(col[i]))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func (a *MeshAdapter) Invoke(ctx context.Context, step string) error {
	if a.Runner == nil {
		return ErrNoCommand
	}
	return a.Runner.Run(ctx, a.StepDir(step))
}

// formatFloat keeps full precision; the transfer chain must not lose value
// information beyond interpolation error.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
