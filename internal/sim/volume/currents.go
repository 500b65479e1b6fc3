package volume

import "voxeltherm/internal/sim/lattice"

// CalculateCurrents assigns each cell the average pull toward its colder neighbors and pushes
// the current of each resident's cell onto that resident. Nothing happens while fluid
// mechanics is off or the volume is empty.
func (v *Volume) CalculateCurrents() {
	if !v.cfg.FluidMechanics || len(v.residents) == 0 {
		return
	}
	for _, key := range v.keys {
		c := v.cells[key]
		var sum lattice.Vec3
		n := 0
		lattice.Ring(key, v.cfg.CellSize, func(k lattice.Vec3i) bool {
			if k == key {
				return true
			}
			nb, ok := v.cells[k]
			if !ok || nb.temperature >= c.temperature {
				return true
			}
			dir := k.Sub(key).Float().Normalize()
			sum = sum.Add(dir.Scale((c.temperature - nb.temperature) * v.cfg.ConvectionRate))
			n++
			return true
		})
		if n == 0 {
			c.setCurrent(lattice.Vec3{})
			continue
		}
		c.setCurrent(sum.Scale(1 / float64(n)))
	}

	for _, e := range v.residents {
		if e == nil || !e.Alive() {
			continue
		}
		c, ok := e.CellRef().Cell()
		if !ok {
			continue
		}
		e.ApplyExternalForce(c.current)
	}
}

// PhysicsStep is the fixed-rate force update of a plain volume.
func (v *Volume) PhysicsStep() {
	v.CalculateCurrents()
}
