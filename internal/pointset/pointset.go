package pointset

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDuplicateID     = errors.New("duplicate point identifier")
	ErrUnknownID       = errors.New("unknown point identifier")
	ErrIncompleteField = errors.New("incomplete field")
	ErrFieldNotFound   = errors.New("field not found")
)

// Coord is a position in the owning engine's coordinate frame.
type Coord struct {
	X, Y, Z float64
}

// Point pairs a stable identifier with an immutable coordinate. For mesh
// engines the identifier is the mesh node number, for grid engines it is the
// ingestion record position.
type Point struct {
	ID    int
	Coord Coord
}

// Def declares one point when building a set.
type Def struct {
	ID    int
	Coord Coord
}

// Sample is one field value at one coordinate, returned in point order.
type Sample struct {
	Coord Coord
	Value float64
}

type fieldKey struct {
	step, field string
}

// Set is an ordered collection of points sharing one coordinate frame and one
// resolution. Coordinates never change after creation; a deformed geometry is
// a new Set. Field values are stored per (step, field) and a field is only
// valid for a step when every point carries a value.
type Set struct {
	points []Point
	index  map[int]int
	fields map[fieldKey][]float64
}

// New builds a Set from point definitions, preserving order.
func New(defs []Def) (*Set, error) {
	s := &Set{
		points: make([]Point, 0, len(defs)),
		index:  make(map[int]int, len(defs)),
		fields: make(map[fieldKey][]float64),
	}
	for _, d := range defs {
		if _, ok := s.index[d.ID]; ok {
			return nil, fmt.Errorf("point %d: %w", d.ID, ErrDuplicateID)
		}
		s.index[d.ID] = len(s.points)
		s.points = append(s.points, Point{ID: d.ID, Coord: d.Coord})
	}
	return s, nil
}

func (s *Set) Len() int { return len(s.points) }

// Points returns the points in order. The returned slice is a copy.
func (s *Set) Points() []Point {
	pts := make([]Point, len(s.points))
	copy(pts, s.points)
	return pts
}

// Coords returns the coordinates in point order.
func (s *Set) Coords() []Coord {
	cs := make([]Coord, len(s.points))
	for i, p := range s.points {
		cs[i] = p.Coord
	}
	return cs
}

// IDs returns the identifiers in point order.
func (s *Set) IDs() []int {
	ids := make([]int, len(s.points))
	for i, p := range s.points {
		ids[i] = p.ID
	}
	return ids
}

// Contains reports whether an identifier belongs to the set.
func (s *Set) Contains(id int) bool {
	_, ok := s.index[id]
	return ok
}

// SetField stores a field for a step. Every point must receive a value and
// every key must name a point in the set; partial fields are rejected.
func (s *Set) SetField(step, field string, values map[int]float64) error {
	for id := range values {
		if _, ok := s.index[id]; !ok {
			return fmt.Errorf("field %q step %q: point %d: %w", field, step, id, ErrUnknownID)
		}
	}
	vals := make([]float64, len(s.points))
	for i, p := range s.points {
		v, ok := values[p.ID]
		if !ok {
			return fmt.Errorf("field %q step %q: point %d has no value: %w", field, step, p.ID, ErrIncompleteField)
		}
		vals[i] = v
	}
	s.fields[fieldKey{step: step, field: field}] = vals
	return nil
}

// SetFieldOrdered stores values already laid out in point order, as produced
// by a transfer. The value count must match the set exactly.
func (s *Set) SetFieldOrdered(step, field string, vals []float64) error {
	if len(vals) != len(s.points) {
		return fmt.Errorf("field %q step %q: %d values for %d points: %w",
			field, step, len(vals), len(s.points), ErrIncompleteField)
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	s.fields[fieldKey{step: step, field: field}] = cp
	return nil
}

// Field returns (coordinate, value) pairs in point order.
func (s *Set) Field(step, field string) ([]Sample, error) {
	vals, err := s.Values(step, field)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, len(vals))
	for i, v := range vals {
		samples[i] = Sample{Coord: s.points[i].Coord, Value: v}
	}
	return samples, nil
}

// Values returns the raw field values in point order.
func (s *Set) Values(step, field string) ([]float64, error) {
	vals, ok := s.fields[fieldKey{step: step, field: field}]
	if !ok {
		return nil, fmt.Errorf("field %q step %q: %w", field, step, ErrFieldNotFound)
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	return cp, nil
}

// HasField reports whether a field has been populated for a step.
func (s *Set) HasField(step, field string) bool {
	_, ok := s.fields[fieldKey{step: step, field: field}]
	return ok
}

// FieldNames returns the names of all fields populated for a step, sorted.
func (s *Set) FieldNames(step string) []string {
	var names []string
	for k := range s.fields {
		if k.step == step {
			names = append(names, k.field)
		}
	}
	sort.Strings(names)
	return names
}

// CloneGeometry returns a new Set with identical identifiers and coordinates
// and no field storage. Used to start a new step without re-ingesting
// geometry.
func (s *Set) CloneGeometry() *Set {
	c := &Set{
		points: make([]Point, len(s.points)),
		index:  make(map[int]int, len(s.index)),
		fields: make(map[fieldKey][]float64),
	}
	copy(c.points, s.points)
	for id, i := range s.index {
		c.index[id] = i
	}
	return c
}
