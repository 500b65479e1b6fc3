package volume

import "voxeltherm/internal/sim/lattice"

// Grid is a region that carries a cell lattice.
type Grid interface {
	ID() string
	CellAt(pos lattice.Vec3) (*Cell, bool)
}

// Hit is one intersection reported by a Prober.
type Hit struct {
	Point    lattice.Vec3
	Distance float64
	// Grid is nil for regions without a cell lattice.
	Grid Grid
}

// Prober casts probes through world geometry. Hits are returned nearest first.
type Prober interface {
	Probe(origin, dir lattice.Vec3, maxDist float64) []Hit
}

// ResolveNeighborVolumeCell finds the cell of another volume bordering key in direction
// outward. The probe starts at the cell center and reaches cellSize+1; the first hit on a
// different grid decides the result.
func (v *Volume) ResolveNeighborVolumeCell(key, outward lattice.Vec3i) (*Cell, bool) {
	if v.prober == nil {
		return nil, false
	}
	hits := v.prober.Probe(v.CellCenter(key), outward.Float(), float64(v.cfg.CellSize+1))
	for _, h := range hits {
		if h.Grid == nil || h.Grid.ID() == v.cfg.ID {
			continue
		}
		return h.Grid.CellAt(h.Point)
	}
	return nil, false
}
