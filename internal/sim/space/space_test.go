package space

import (
	"testing"

	"voxeltherm/internal/sim/entity"
	"voxeltherm/internal/sim/lattice"
	"voxeltherm/internal/sim/volume"
)

func newVolume(t *testing.T, id string, lo, hi lattice.Vec3, temperature float64) *volume.Volume {
	t.Helper()
	v, err := volume.New(volume.Config{
		ID:                  id,
		Bounds:              lattice.NewBox(lo, hi),
		CellSize:            1,
		StartingTemperature: temperature,
		MinTemperature:      0,
		MaxTemperature:      200,
		StartingDensity:     1,
		Conductivity:        0.5,
		Drag:                0.25,
		Clamp:               volume.DefaultClampPolicy(),
	}, nil)
	if err != nil {
		t.Fatalf("new volume %s: %v", id, err)
	}
	return v
}

func TestSpace_ProbeOrdersByDistance(t *testing.T) {
	s := New()
	far := newVolume(t, "a-far", lattice.V(4, 0, 0), lattice.V(5, 1, 1), 20)
	near := newVolume(t, "b-near", lattice.V(2, 0, 0), lattice.V(4, 1, 1), 20)
	for _, v := range []*volume.Volume{far, near} {
		if err := s.AddVolume(v); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := s.Add(Region{ID: "b-near"}); err == nil {
		t.Fatalf("expected duplicate region error")
	}

	hits := s.Probe(lattice.V(0.5, 0.5, 0.5), lattice.V(1, 0, 0), 10)
	if len(hits) != 2 {
		t.Fatalf("hits: got %d want 2", len(hits))
	}
	if hits[0].Grid.ID() != "b-near" || hits[0].Distance != 1.5 {
		t.Fatalf("first hit: %+v", hits[0])
	}
	if hits[1].Grid.ID() != "a-far" || hits[1].Point != lattice.V(4, 0.5, 0.5) {
		t.Fatalf("second hit: %+v", hits[1])
	}
	if got := s.Probe(lattice.V(0.5, 0.5, 0.5), lattice.V(1, 0, 0), 1); len(got) != 0 {
		t.Fatalf("short probe: got %d hits", len(got))
	}
}

func TestSpace_CrossVolumeHeat(t *testing.T) {
	s := New()
	hot := newVolume(t, "hot", lattice.V(0, 0, 0), lattice.V(1, 1, 1), 100)
	cold := newVolume(t, "cold", lattice.V(1, 0, 0), lattice.V(2, 1, 1), 50)
	for _, v := range []*volume.Volume{hot, cold} {
		if err := s.AddVolume(v); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	hot.SimulationStep()
	cold.SimulationStep()

	hc, _ := hot.Cell(lattice.Vec3i{})
	cc, _ := cold.Cell(lattice.Vec3i{X: 1})
	if hc.Temperature() != 75 || cc.Temperature() != 75 {
		t.Fatalf("temperatures: hot=%v cold=%v want 75/75", hc.Temperature(), cc.Temperature())
	}
}

func TestSpace_DetectOverlaps(t *testing.T) {
	s := New()
	a := newVolume(t, "a", lattice.V(0, 0, 0), lattice.V(2, 2, 2), 20)
	b := newVolume(t, "b", lattice.V(2, 0, 0), lattice.V(4, 2, 2), 20)
	for _, v := range []*volume.Volume{a, b} {
		if err := s.AddVolume(v); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	body := entity.New(entity.Config{ID: "e", Position: lattice.V(1, 1.5, 1.5), Velocity: lattice.V(3.125, 0, 0), Density: 1})
	ents := []volume.Entity{body}

	s.DetectOverlaps(ents)
	if id, _ := s.Inside("e"); id != "a" || len(a.Residents()) != 1 || body.Drag() != 0.25 {
		t.Fatalf("enter a: inside=%q residents=%d drag=%v", id, len(a.Residents()), body.Drag())
	}

	body.Step(1, lattice.V(0, 0, 0))
	s.DetectOverlaps(ents)
	if id, _ := s.Inside("e"); id != "b" {
		t.Fatalf("moved: inside=%q want b (pos %v)", id, body.Position())
	}
	if len(a.Residents()) != 0 || len(b.Residents()) != 1 {
		t.Fatalf("residents: a=%d b=%d", len(a.Residents()), len(b.Residents()))
	}
	if ref := body.CellRef(); ref.Volume != b || ref.Key != (lattice.Vec3i{X: 3, Y: 1, Z: 1}) {
		t.Fatalf("cell ref: %+v", ref.Key)
	}

	body.Step(5, lattice.V(0, 0, 0))
	s.DetectOverlaps(ents)
	if _, ok := s.Inside("e"); ok {
		t.Fatalf("expected body outside every region (pos %v)", body.Position())
	}
	if len(b.Residents()) != 0 || body.Drag() != 0 || body.CellRef().Valid() {
		t.Fatalf("exit: residents=%d drag=%v", len(b.Residents()), body.Drag())
	}
}

func TestSpace_SharedFaceGoesToLowestID(t *testing.T) {
	s := New()
	b := newVolume(t, "b", lattice.V(2, 0, 0), lattice.V(4, 2, 2), 20)
	a := newVolume(t, "a", lattice.V(0, 0, 0), lattice.V(2, 2, 2), 20)
	for _, v := range []*volume.Volume{b, a} {
		if err := s.AddVolume(v); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	body := entity.New(entity.Config{ID: "f", Position: lattice.V(2, 1.5, 1.5)})
	s.DetectOverlaps([]volume.Entity{body})
	if id, _ := s.Inside("f"); id != "a" {
		t.Fatalf("shared face: inside=%q want a", id)
	}
	if len(b.Residents()) != 0 {
		t.Fatalf("a body must be resident in one volume only")
	}
}

func TestSpace_DeadBodiesGetNoEvents(t *testing.T) {
	s := New()
	a := newVolume(t, "a", lattice.V(0, 0, 0), lattice.V(2, 2, 2), 20)
	if err := s.AddVolume(a); err != nil {
		t.Fatalf("add: %v", err)
	}
	live := entity.New(entity.Config{ID: "live", Position: lattice.V(0.5, 0.5, 0.5)})
	dead := entity.New(entity.Config{ID: "dead", Position: lattice.V(1.5, 0.5, 0.5)})
	ents := []volume.Entity{live, dead}
	s.DetectOverlaps(ents)
	if len(a.Residents()) != 2 {
		t.Fatalf("residents: got %d want 2", len(a.Residents()))
	}

	dead.Kill()
	s.DetectOverlaps(ents)
	if _, ok := s.Inside("dead"); ok {
		t.Fatalf("dead body must be forgotten")
	}
	// The stale entry is pruned on the next membership change.
	live.ApplyExternalForce(lattice.V(0, 100, 0))
	live.Step(1, lattice.V(0, 0, 0))
	s.DetectOverlaps(ents)
	if rs := a.Residents(); len(rs) != 0 {
		t.Fatalf("residents after prune: %d", len(rs))
	}
}
