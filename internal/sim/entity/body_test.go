package entity

import (
	"testing"

	"voxeltherm/internal/sim/lattice"
	"voxeltherm/internal/sim/volume"
)

func oneCellVolume(t *testing.T, temperature, conductivity float64) (*volume.Volume, *volume.Cell) {
	t.Helper()
	v, err := volume.New(volume.Config{
		ID:                  "V",
		Bounds:              lattice.NewBox(lattice.V(0, 0, 0), lattice.V(1, 1, 1)),
		CellSize:            1,
		StartingTemperature: temperature,
		MinTemperature:      -1000,
		MaxTemperature:      1000,
		StartingDensity:     1,
		Conductivity:        conductivity,
		Clamp:               volume.DefaultClampPolicy(),
	}, nil)
	if err != nil {
		t.Fatalf("new volume: %v", err)
	}
	c, _ := v.Cell(lattice.Vec3i{})
	return v, c
}

func TestBody_ReconcileWarmerBodyHeatsCell(t *testing.T) {
	v, c := oneCellVolume(t, 50, 0.5)
	b := New(Config{ID: "b", Position: lattice.V(0.5, 0.5, 0.5), Temperature: 100, Conductivity: 0.5})
	v.OnOverlap(b)
	if err := b.Reconcile(); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if b.Temperature() != 75 || c.Temperature() != 75 {
		t.Fatalf("temperatures: body=%v cell=%v want 75/75", b.Temperature(), c.Temperature())
	}
	if err := b.Reconcile(); err != nil {
		t.Fatalf("equal temperatures: %v", err)
	}
	if c.Exchanges() != 1 {
		t.Fatalf("equal temperatures must not exchange: %d", c.Exchanges())
	}
}

func TestBody_ReconcileCoolerBodyDrawsFromCell(t *testing.T) {
	v, c := oneCellVolume(t, 100, 0.5)
	b := New(Config{ID: "b", Position: lattice.V(0.5, 0.5, 0.5), Temperature: 50, Conductivity: 0.5})
	v.OnOverlap(b)
	if err := b.Reconcile(); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if b.Temperature() != 75 || c.Temperature() != 75 {
		t.Fatalf("temperatures: body=%v cell=%v want 75/75", b.Temperature(), c.Temperature())
	}
}

func TestBody_UnclampedByDefault(t *testing.T) {
	v, _ := oneCellVolume(t, 100, 1)
	b := New(Config{ID: "b", Position: lattice.V(0.5, 0.5, 0.5), Temperature: 0, Conductivity: 1})
	v.OnOverlap(b)
	if err := b.Reconcile(); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if b.Temperature() != 100 {
		t.Fatalf("unclamped body: got %v want 100", b.Temperature())
	}

	v, c := oneCellVolume(t, 100, 1)
	bounded := New(Config{ID: "b", Position: lattice.V(0.5, 0.5, 0.5), Conductivity: 1, Bounds: &Bounds{Min: 0, Max: 80}})
	v.OnOverlap(bounded)
	if err := bounded.Reconcile(); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if bounded.Temperature() != 80 || c.Temperature() != 0 {
		t.Fatalf("bounded body: body=%v cell=%v want 80/0", bounded.Temperature(), c.Temperature())
	}
}

func TestBody_ReconcileWithoutCell(t *testing.T) {
	b := New(Config{ID: "b", Temperature: 30})
	if err := b.Reconcile(); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if b.Temperature() != 30 {
		t.Fatalf("temperature changed without a cell: %v", b.Temperature())
	}
}

func TestBody_StepConsumesForces(t *testing.T) {
	b := New(Config{ID: "b", Mass: 2})
	b.ApplyExternalForce(lattice.V(0, 20, 0))
	b.ApplyExternalForce(lattice.V(4, 0, 0))
	b.Step(0.5, lattice.V(0, -10, 0))

	if got := b.Velocity(); got != lattice.V(1, 0, 0) {
		t.Fatalf("velocity: got %v want (1, 0, 0)", got)
	}
	if got := b.Position(); got != lattice.V(0.5, 0, 0) {
		t.Fatalf("position: got %v want (0.5, 0, 0)", got)
	}
	if !b.PendingForce().IsZero() {
		t.Fatalf("forces must be cleared: %v", b.PendingForce())
	}

	b.SetDrag(1)
	b.Step(1, lattice.V(0, 0, 0))
	if got := b.Velocity(); got != lattice.V(0.5, 0, 0) {
		t.Fatalf("damped velocity: got %v want (0.5, 0, 0)", got)
	}
}

func TestVent_HeatsUntilTarget(t *testing.T) {
	b := New(Config{ID: "vent", Temperature: 99})
	v := &Vent{Body: b, Target: 100, Rate: 0.5}
	for i := 0; i < 5; i++ {
		v.Update()
	}
	if b.Temperature() != 100 {
		t.Fatalf("vent temperature: got %v want 100", b.Temperature())
	}

	b.Kill()
	b.Heat(-10)
	v.Update()
	if b.Temperature() != 90 {
		t.Fatalf("dead vent must not heat: %v", b.Temperature())
	}
}

func TestBody_ConfineClampsPositionAndVelocity(t *testing.T) {
	b := New(Config{ID: "b", Position: lattice.V(2, -1, 0.5), Velocity: lattice.V(1, -3, 2)})
	box := lattice.NewBox(lattice.V(0, 0, 0), lattice.V(1, 1, 1))
	if !b.Confine(box) {
		t.Fatalf("expected body outside box")
	}
	if got := b.Position(); got != lattice.V(1, 0, 0.5) {
		t.Fatalf("position: got %+v", got)
	}
	if got := b.Velocity(); got != lattice.V(0, 0, 2) {
		t.Fatalf("velocity: got %+v", got)
	}
	if b.Confine(box) {
		t.Fatalf("second confine should be a no-op")
	}
}
