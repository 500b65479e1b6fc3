package volume

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"voxeltherm/internal/sim/lattice"
)

func testConfig(id string, lo, hi lattice.Vec3) Config {
	return Config{
		ID:                  id,
		Bounds:              lattice.NewBox(lo, hi),
		CellSize:            1,
		StartingTemperature: 20,
		MinTemperature:      -1000,
		MaxTemperature:      1000,
		StartingDensity:     1,
		Conductivity:        0.5,
		Clamp:               DefaultClampPolicy(),
	}
}

func newTestVolume(t *testing.T, cfg Config) *Volume {
	t.Helper()
	v, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new volume: %v", err)
	}
	return v
}

func temperatureAt(t *testing.T, v *Volume, key lattice.Vec3i) float64 {
	t.Helper()
	c, ok := v.Cell(key)
	if !ok {
		t.Fatalf("volume %s: no cell at %v", v.ID(), key)
	}
	return c.Temperature()
}

func totalHeat(v *Volume) float64 {
	sum := 0.0
	for _, k := range v.Keys() {
		c, _ := v.Cell(k)
		sum += c.Temperature()
	}
	return sum
}

func TestNew_BuildsSortedLattice(t *testing.T) {
	cfg := testConfig("A", lattice.V(0, 0, 0), lattice.V(4, 2, 2))
	cfg.CellSize = 2
	v := newTestVolume(t, cfg)
	want := []lattice.Vec3i{{X: 0}, {X: 2}}
	if got := v.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("keys: got %v want %v", got, want)
	}
	lo, hi := v.Extents()
	if lo != (lattice.Vec3i{}) || hi != (lattice.Vec3i{X: 2}) {
		t.Fatalf("extents: got %v..%v", lo, hi)
	}
	if c := v.CellCenter(lattice.Vec3i{X: 2}); c != lattice.V(3, 1, 1) {
		t.Fatalf("center: got %v", c)
	}
}

func TestNew_FractionalBoundsFloor(t *testing.T) {
	v := newTestVolume(t, testConfig("A", lattice.V(-0.5, 0.2, 0), lattice.V(1.7, 1.9, 1)))
	// floor(min) = (-1, 0, 0), floor(max) = (1, 1, 1)
	if v.Len() != 2 {
		t.Fatalf("len: got %d want 2 (%v)", v.Len(), v.Keys())
	}
	if _, ok := v.Cell(lattice.Vec3i{X: -1}); !ok {
		t.Fatalf("expected key (-1,0,0)")
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := testConfig("A", lattice.V(0, 0, 0), lattice.V(2, 2, 2))
	cfg.CellSize = 0
	if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidCellSize) {
		t.Fatalf("cell size 0: got %v", err)
	}

	cfg = testConfig("A", lattice.V(0, 0, 0), lattice.V(0.5, 2, 2))
	if _, err := New(cfg, nil); !errors.Is(err, ErrEmptyLattice) {
		t.Fatalf("degenerate bounds: got %v", err)
	}

	cfg = testConfig("A", lattice.V(0, 0, 0), lattice.V(2, 2, 2))
	cfg.MinTemperature, cfg.MaxTemperature = 10, 0
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected min > max to fail")
	}

	cfg = testConfig("A", lattice.V(0, 0, 0), lattice.V(2, 2, 2))
	cfg.CoolingRate = -1
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected negative cooling rate to fail")
	}
}

func TestNew_InitialTemperatureIsClamped(t *testing.T) {
	cfg := testConfig("A", lattice.V(0, 0, 0), lattice.V(2, 1, 1))
	cfg.MinTemperature, cfg.MaxTemperature = 0, 50
	cfg.InitialTemperature = func(k lattice.Vec3i) float64 {
		if k.X == 0 {
			return 500
		}
		return -5
	}
	v := newTestVolume(t, cfg)
	if got := temperatureAt(t, v, lattice.Vec3i{}); got != 50 {
		t.Fatalf("hot cell: got %v want 50", got)
	}
	if got := temperatureAt(t, v, lattice.Vec3i{X: 1}); got != 0 {
		t.Fatalf("cold cell: got %v want 0", got)
	}
}

func TestWorldPosToCell(t *testing.T) {
	v := newTestVolume(t, testConfig("A", lattice.V(0, 0, 0), lattice.V(2, 1, 1)))

	if k, ok := v.WorldPosToCell(lattice.V(1.5, 0.5, 0.5)); !ok || k != (lattice.Vec3i{X: 1}) {
		t.Fatalf("inside: got %v %v", k, ok)
	}
	// A shared face belongs to the first key in sorted order.
	if k, ok := v.WorldPosToCell(lattice.V(1, 0.5, 0.5)); !ok || k != (lattice.Vec3i{}) {
		t.Fatalf("shared face: got %v %v", k, ok)
	}
	if _, ok := v.WorldPosToCell(lattice.V(5, 0.5, 0.5)); ok {
		t.Fatalf("outside: expected no cell")
	}
	if _, ok := v.CellAt(lattice.V(-0.1, 0, 0)); ok {
		t.Fatalf("outside: expected no cell")
	}
}

func TestSurroundingCells_Counts(t *testing.T) {
	v := newTestVolume(t, testConfig("A", lattice.V(0, 0, 0), lattice.V(3, 3, 3)))
	center := lattice.Vec3i{X: 1, Y: 1, Z: 1}
	if got := len(v.SurroundingCells(center)); got != 26 {
		t.Fatalf("center neighbors: got %d want 26", got)
	}
	for _, k := range v.SurroundingKeys(center) {
		if k == center {
			t.Fatalf("center must not be its own neighbor")
		}
	}
	if got := len(v.SurroundingKeys(lattice.Vec3i{})); got != 7 {
		t.Fatalf("corner neighbors: got %d want 7", got)
	}

	pair := newTestVolume(t, testConfig("B", lattice.V(0, 0, 0), lattice.V(2, 1, 1)))
	if got := pair.SurroundingKeys(lattice.Vec3i{}); len(got) != 1 || got[0] != (lattice.Vec3i{X: 1}) {
		t.Fatalf("pair neighbors: got %v", got)
	}
}

func TestSurroundingCells_UsesCellSizeStep(t *testing.T) {
	cfg := testConfig("A", lattice.V(0, 0, 0), lattice.V(6, 2, 2))
	cfg.CellSize = 2
	v := newTestVolume(t, cfg)
	got := v.SurroundingKeys(lattice.Vec3i{X: 2})
	want := []lattice.Vec3i{{X: 0}, {X: 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("neighbors: got %v want %v", got, want)
	}
}

func TestStatsAndFrame(t *testing.T) {
	cfg := testConfig("A", lattice.V(0, 0, 0), lattice.V(2, 1, 1))
	cfg.InitialTemperature = func(k lattice.Vec3i) float64 { return float64(10 + 20*k.X) }
	v := newTestVolume(t, cfg)
	s := v.Stats()
	if s.Cells != 2 || s.MinTemperature != 10 || s.MaxTemperature != 30 || s.MeanTemperature != 20 {
		t.Fatalf("stats: %+v", s)
	}
	f := v.Frame()
	if f.ID != "A" || len(f.Cells) != 2 || f.Cells[1].Temperature != 30 {
		t.Fatalf("frame: %+v", f)
	}
	f.Cells[0].Temperature = 999
	if temperatureAt(t, v, lattice.Vec3i{}) != 10 {
		t.Fatalf("frame must be a copy")
	}
}

func TestPassiveCooling_Disabled(t *testing.T) {
	cfg := testConfig("A", lattice.V(0, 0, 0), lattice.V(1, 1, 1))
	cfg.CoolingRate = 5
	v := newTestVolume(t, cfg)
	v.PassiveCooling()
	if got := temperatureAt(t, v, lattice.Vec3i{}); got != 20 {
		t.Fatalf("cooling disabled: got %v want 20", got)
	}
}

func TestPassiveCooling_ClampsAtMin(t *testing.T) {
	cfg := testConfig("A", lattice.V(0, 0, 0), lattice.V(1, 1, 1))
	cfg.StartingTemperature = 0.005
	cfg.MinTemperature = 0
	cfg.PassiveCooling = true
	cfg.CoolingRate = 0.01
	v := newTestVolume(t, cfg)
	v.SimulationStep()
	if got := temperatureAt(t, v, lattice.Vec3i{}); got != 0 {
		t.Fatalf("cooled temperature: got %v want 0", got)
	}
}

func TestVolume_SetProberNil(t *testing.T) {
	v := newTestVolume(t, testConfig("A", lattice.V(0, 0, 0), lattice.V(1, 1, 1)))
	v.SetProber(nil)
	if _, ok := v.ResolveNeighborVolumeCell(lattice.Vec3i{}, lattice.Vec3i{X: 1}); ok {
		t.Fatalf("no prober: expected no neighbor cell")
	}
	if math.IsNaN(v.Stats().MeanTemperature) {
		t.Fatalf("mean must be defined")
	}
}
