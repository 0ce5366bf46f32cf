package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/cosim/internal/pointset"
)

func sampleSet(t *testing.T, step string) *pointset.Set {
	t.Helper()
	set, err := pointset.New([]pointset.Def{
		{ID: 1, Coord: pointset.Coord{X: 0, Y: 0}},
		{ID: 2, Coord: pointset.Coord{X: 1.5, Y: -0.25, Z: 2}},
		{ID: 7, Coord: pointset.Coord{X: 0, Y: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, set.SetField(step, "pore_pressure", map[int]float64{1: 10, 2: 20.5, 7: -3}))
	require.NoError(t, set.SetField(step, "saturation", map[int]float64{1: 0.1, 2: 0.2, 7: 0.3}))
	return set
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	set := sampleSet(t, "step_1")
	require.NoError(t, s.Save("step_1", "abaqus", set, 1500*time.Millisecond))

	loaded, err := s.Load("step_1", "abaqus")
	require.NoError(t, err)

	assert.Equal(t, set.IDs(), loaded.IDs())
	assert.Equal(t, set.Coords(), loaded.Coords())

	for _, field := range []string{"pore_pressure", "saturation"} {
		want, err := set.Values("step_1", field)
		require.NoError(t, err)
		got, err := loaded.Values("step_1", field)
		require.NoError(t, err)
		assert.Equal(t, want, got, field)
	}
}

func TestStoreMetadata(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	require.NoError(t, s.Save("step_1", "abaqus", sampleSet(t, "step_1"), 2*time.Second))

	meta, err := s.LoadMetadata("step_1", "abaqus")
	require.NoError(t, err)
	assert.Equal(t, "step_1", meta.Step)
	assert.Equal(t, "abaqus", meta.Engine)
	assert.Equal(t, 3, meta.Points)
	assert.Equal(t, []string{"pore_pressure", "saturation"}, meta.Fields)
	assert.Equal(t, 2.0, meta.ComputeTime)
}

func TestStoreList(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	require.NoError(t, s.Save("step_1", "abaqus", sampleSet(t, "step_1"), 0))
	require.NoError(t, s.Save("step_1", "pace3d", sampleSet(t, "step_1"), 0))
	require.NoError(t, s.Save("step_2", "abaqus", sampleSet(t, "step_2"), 0))

	snaps, err := s.List()
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.Equal(t, "step_1", snaps[0].Step)
	assert.Equal(t, "abaqus", snaps[0].Engine)
	assert.Equal(t, "pace3d", snaps[1].Engine)
	assert.Equal(t, "step_2", snaps[2].Step)
}

func TestStoreListEmpty(t *testing.T) {
	s := New(t.TempDir() + "/nonexistent")
	snaps, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestStoreLoadMissing(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Load("step_9", "abaqus")
	assert.Error(t, err)
}
