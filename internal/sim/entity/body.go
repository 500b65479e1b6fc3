package entity

import (
	"voxeltherm/internal/sim/lattice"
	"voxeltherm/internal/sim/volume"
)

// Bounds optionally clamps a body's temperature. Bodies are unclamped by default.
type Bounds struct {
	Min float64
	Max float64
}

type Config struct {
	ID           string
	Position     lattice.Vec3
	Velocity     lattice.Vec3
	Temperature  float64
	Conductivity float64
	Density      float64
	Mass         float64
	Bounds       *Bounds
}

// Body is a rigid occupant. It satisfies volume.Entity.
type Body struct {
	id       string
	position lattice.Vec3
	velocity lattice.Vec3

	temperature  float64
	conductivity float64
	density      float64
	mass         float64
	bounds       *Bounds

	drag  float64
	force lattice.Vec3
	dead  bool

	ref volume.CellRef
}

var _ volume.Entity = (*Body)(nil)

func New(cfg Config) *Body {
	mass := cfg.Mass
	if mass <= 0 {
		mass = 1
	}
	var b *Bounds
	if cfg.Bounds != nil {
		bb := *cfg.Bounds
		b = &bb
	}
	return &Body{
		id:           cfg.ID,
		position:     cfg.Position,
		velocity:     cfg.Velocity,
		temperature:  cfg.Temperature,
		conductivity: cfg.Conductivity,
		density:      cfg.Density,
		mass:         mass,
		bounds:       b,
	}
}

func (b *Body) ID() string                  { return b.id }
func (b *Body) Position() lattice.Vec3      { return b.position }
func (b *Body) Velocity() lattice.Vec3      { return b.velocity }
func (b *Body) Temperature() float64        { return b.temperature }
func (b *Body) Conductivity() float64       { return b.conductivity }
func (b *Body) Density() float64            { return b.density }
func (b *Body) Mass() float64               { return b.mass }
func (b *Body) Drag() float64               { return b.drag }
func (b *Body) Alive() bool                 { return !b.dead }
func (b *Body) CellRef() volume.CellRef     { return b.ref }
func (b *Body) SetCellRef(r volume.CellRef) { b.ref = r }
func (b *Body) SetDrag(d float64)           { b.drag = d }

// PendingForce is the force accumulated since the last Step.
func (b *Body) PendingForce() lattice.Vec3 { return b.force }

func (b *Body) ApplyExternalForce(f lattice.Vec3) { b.force = b.force.Add(f) }

// Kill marks the body as destroyed. Volumes drop it from their resident sets on the next
// membership change.
func (b *Body) Kill() { b.dead = true }

// Heat raises the body's own temperature, clamped when bounds are set.
func (b *Body) Heat(amount float64) { b.temperature = b.clamp(b.temperature + amount) }

func (b *Body) clamp(t float64) float64 {
	if b.bounds == nil {
		return t
	}
	return lattice.Clamp(t, b.bounds.Min, b.bounds.Max)
}

func (b *Body) ConductionExchange(foreignTemperature, foreignConductivity float64) (float64, error) {
	if foreignTemperature <= b.temperature {
		return 0, volume.ErrCoolerInitiator
	}
	avg := (foreignConductivity + b.conductivity) / 2
	heat := (foreignTemperature - b.temperature) * avg
	b.temperature = b.clamp(b.temperature + heat)
	return heat, nil
}

// Reconcile exchanges heat with the body's current cell. The warmer side initiates; nothing
// happens without a cell or at equal temperatures.
func (b *Body) Reconcile() error {
	c, ok := b.ref.Cell()
	if !ok {
		return nil
	}
	switch {
	case b.temperature > c.Temperature():
		heat, err := c.ConductionExchange(b.temperature, b.conductivity)
		if err != nil {
			return err
		}
		b.temperature = b.clamp(b.temperature - heat)
	case b.temperature < c.Temperature():
		if _, err := c.Donate(b, b.ref.Volume.ClampPolicy().EntityDonor); err != nil {
			return err
		}
	}
	return nil
}

// Step integrates one physics step with semi-implicit Euler. Accumulated forces are consumed
// and drag damps the velocity.
func (b *Body) Step(dt float64, gravity lattice.Vec3) {
	if b.dead || dt <= 0 {
		return
	}
	acc := gravity.Add(b.force.Scale(1 / b.mass))
	b.velocity = b.velocity.Add(acc.Scale(dt))
	if b.drag > 0 {
		b.velocity = b.velocity.Scale(1 / (1 + b.drag*dt))
	}
	b.position = b.position.Add(b.velocity.Scale(dt))
	b.force = lattice.Vec3{}
}

// Confine pulls the body back inside box. Velocity along every clamped axis is zeroed.
// It reports whether the body had left the box.
func (b *Body) Confine(box lattice.Box) bool {
	p := b.position.Array()
	v := b.velocity.Array()
	lo := box.Min.Array()
	hi := box.Max.Array()
	moved := false
	for i := 0; i < 3; i++ {
		c := lattice.Clamp(p[i], lo[i], hi[i])
		if c != p[i] {
			p[i] = c
			v[i] = 0
			moved = true
		}
	}
	if moved {
		b.position = lattice.FromArray(p)
		b.velocity = lattice.FromArray(v)
	}
	return moved
}
