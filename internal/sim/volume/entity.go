package volume

import "voxeltherm/internal/sim/lattice"

// Entity is an occupant that exchanges heat with cells and receives forces from its volume.
type Entity interface {
	Participant

	ID() string
	Position() lattice.Vec3
	Density() float64
	Alive() bool

	CellRef() CellRef
	SetCellRef(CellRef)
	ApplyExternalForce(f lattice.Vec3)
	SetDrag(d float64)
}

// CellRef names the cell an entity currently occupies. It is a lookup key into the volume's
// lattice and is resolved again on every use.
type CellRef struct {
	Volume *Volume
	Key    lattice.Vec3i
}

func (r CellRef) Valid() bool {
	if r.Volume == nil {
		return false
	}
	_, ok := r.Volume.cells[r.Key]
	return ok
}

func (r CellRef) Cell() (*Cell, bool) {
	if r.Volume == nil {
		return nil, false
	}
	return r.Volume.Cell(r.Key)
}
