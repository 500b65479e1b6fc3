package volume

import (
	"errors"

	"voxeltherm/internal/sim/lattice"
)

// TransferHeat runs one diffusion pass. Cells are visited in sorted key order and exchange in
// place, so a cell warmed earlier in the pass donates with its updated temperature.
func (v *Volume) TransferHeat() {
	for _, key := range v.keys {
		c := v.cells[key]

		v.scratch = v.appendSurroundingCells(v.scratch[:0], key)
		for _, n := range v.scratch {
			if n.temperature < c.temperature {
				v.donate(c, n, key)
			}
		}

		for _, dir := range lattice.Faces {
			if !v.onBoundary(key, dir) {
				continue
			}
			n, ok := v.ResolveNeighborVolumeCell(key, dir)
			if !ok || n == c {
				continue
			}
			if n.temperature < c.temperature {
				v.donate(c, n, key)
			}
		}
	}
}

func (v *Volume) donate(c *Cell, target Participant, key lattice.Vec3i) {
	_, err := c.Donate(target, v.cfg.Clamp.CellDonor)
	if errors.Is(err, ErrCoolerInitiator) {
		v.coolerInitiations++
		v.log.Printf("volume %s cell %v: %v", v.cfg.ID, key, err)
	}
}

// PassiveCooling lowers every cell by the configured rate when cooling is enabled.
func (v *Volume) PassiveCooling() {
	if !v.cfg.PassiveCooling {
		return
	}
	for _, key := range v.keys {
		v.cells[key].PassiveCooling(v.cfg.CoolingRate)
	}
}

// SimulationStep is the fixed-rate thermal update.
func (v *Volume) SimulationStep() {
	v.TransferHeat()
	v.PassiveCooling()
}
