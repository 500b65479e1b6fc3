package volume

import "voxeltherm/internal/sim/lattice"

// SurroundingCells returns the existing 26-connected neighbors of key, center excluded.
func (v *Volume) SurroundingCells(key lattice.Vec3i) []*Cell {
	return v.appendSurroundingCells(nil, key)
}

// SurroundingKeys is SurroundingCells returning coordinates, in the same order.
func (v *Volume) SurroundingKeys(key lattice.Vec3i) []lattice.Vec3i {
	var out []lattice.Vec3i
	lattice.Ring(key, v.cfg.CellSize, func(k lattice.Vec3i) bool {
		if k == key {
			return true
		}
		if _, ok := v.cells[k]; ok {
			out = append(out, k)
		}
		return true
	})
	return out
}

func (v *Volume) appendSurroundingCells(dst []*Cell, key lattice.Vec3i) []*Cell {
	lattice.Ring(key, v.cfg.CellSize, func(k lattice.Vec3i) bool {
		if k == key {
			return true
		}
		if c, ok := v.cells[k]; ok {
			dst = append(dst, c)
		}
		return true
	})
	return dst
}

// onBoundary reports whether key sits on the grid's outer face in direction dir.
func (v *Volume) onBoundary(key, dir lattice.Vec3i) bool {
	switch {
	case dir.X > 0:
		return key.X == v.maxKey.X
	case dir.X < 0:
		return key.X == v.minKey.X
	case dir.Y > 0:
		return key.Y == v.maxKey.Y
	case dir.Y < 0:
		return key.Y == v.minKey.Y
	case dir.Z > 0:
		return key.Z == v.maxKey.Z
	case dir.Z < 0:
		return key.Z == v.minKey.Z
	}
	return false
}
