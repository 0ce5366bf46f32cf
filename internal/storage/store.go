// Package storage persists per-step point set snapshots so prior steps stay
// inspectable and a coupling run can be restarted from an ingested step.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/cosim/internal/pointset"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type SnapshotMetadata struct {
	Step        string    `json:"step"`
	Engine      string    `json:"engine"`
	Timestamp   time.Time `json:"timestamp"`
	Points      int       `json:"points"`
	Fields      []string  `json:"fields"`
	ComputeTime float64   `json:"compute_time_seconds"`
}

func (s *Store) snapshotDir(step, engine string) string {
	return filepath.Join(s.baseDir, step, engine)
}

// Save writes one engine's point set for a step as metadata.json plus
// points.csv. computeTime is the wall-clock duration of the engine run that
// produced the set.
func (s *Store) Save(step, engine string, set *pointset.Set, computeTime time.Duration) error {
	dir := s.snapshotDir(step, engine)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	fields := set.FieldNames(step)
	meta := SnapshotMetadata{
		Step:        step,
		Engine:      engine,
		Timestamp:   time.Now(),
		Points:      set.Len(),
		Fields:      fields,
		ComputeTime: computeTime.Seconds(),
	}

	metaFile, err := os.Create(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(dir, "points.csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"id", "x", "y", "z"}
	header = append(header, fields...)
	if err := w.Write(header); err != nil {
		return err
	}

	cols := make([][]float64, len(fields))
	for i, name := range fields {
		vals, err := set.Values(step, name)
		if err != nil {
			return err
		}
		cols[i] = vals
	}

	for i, p := range set.Points() {
		row := []string{
			strconv.Itoa(p.ID),
			strconv.FormatFloat(p.Coord.X, 'g', -1, 64),
			strconv.FormatFloat(p.Coord.Y, 'g', -1, 64),
			strconv.FormatFloat(p.Coord.Z, 'g', -1, 64),
		}
		for _, col := range cols {
			row = append(row, strconv.FormatFloat(col[i], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

// List returns the metadata of every snapshot in the store, ordered by step
// then engine directory name.
func (s *Store) List() ([]SnapshotMetadata, error) {
	steps, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SnapshotMetadata{}, nil
		}
		return nil, err
	}

	snaps := make([]SnapshotMetadata, 0)
	for _, stepEntry := range steps {
		if !stepEntry.IsDir() {
			continue
		}
		engines, err := os.ReadDir(filepath.Join(s.baseDir, stepEntry.Name()))
		if err != nil {
			continue
		}
		for _, engEntry := range engines {
			if !engEntry.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(s.baseDir, stepEntry.Name(), engEntry.Name(), "metadata.json"))
			if err != nil {
				continue
			}
			var meta SnapshotMetadata
			if err := json.Unmarshal(data, &meta); err != nil {
				continue
			}
			snaps = append(snaps, meta)
		}
	}

	return snaps, nil
}

// LoadMetadata reads one snapshot's metadata without touching its points.
func (s *Store) LoadMetadata(step, engine string) (*SnapshotMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.snapshotDir(step, engine), "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta SnapshotMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Load reconstructs a snapshot's point set, including every field stored for
// the step.
func (s *Store) Load(step, engine string) (*pointset.Set, error) {
	file, err := os.Open(filepath.Join(s.snapshotDir(step, engine), "points.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("snapshot %s/%s: empty points.csv", step, engine)
	}

	header := records[0]
	if len(header) < 4 {
		return nil, fmt.Errorf("snapshot %s/%s: malformed header", step, engine)
	}
	fields := header[4:]

	defs := make([]pointset.Def, 0, len(records)-1)
	values := make([]map[int]float64, len(fields))
	for i := range values {
		values[i] = make(map[int]float64)
	}

	for n, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("snapshot %s/%s: row %d has %d columns, want %d",
				step, engine, n+2, len(record), len(header))
		}
		id, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("snapshot %s/%s: row %d: %w", step, engine, n+2, err)
		}
		var coord [3]float64
		for i := 0; i < 3; i++ {
			coord[i], err = strconv.ParseFloat(record[1+i], 64)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s/%s: row %d: %w", step, engine, n+2, err)
			}
		}
		defs = append(defs, pointset.Def{ID: id, Coord: pointset.Coord{X: coord[0], Y: coord[1], Z: coord[2]}})

		for i := range fields {
			v, err := strconv.ParseFloat(record[4+i], 64)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s/%s: row %d: %w", step, engine, n+2, err)
			}
			values[i][id] = v
		}
	}

	set, err := pointset.New(defs)
	if err != nil {
		return nil, err
	}
	for i, name := range fields {
		if err := set.SetField(step, name, values[i]); err != nil {
			return nil, err
		}
	}
	return set, nil
}
