package volume

import (
	"log"

	"voxeltherm/internal/sim/lattice"
)

const (
	minDensityRatio = 0.5
	maxDensityRatio = 2.0
)

// BuoyantVolume is a volume whose residents are lifted or sunk by the density of the cell
// they occupy.
type BuoyantVolume struct {
	*Volume
	Gravity lattice.Vec3
}

func NewBuoyant(cfg Config, gravity lattice.Vec3, logger *log.Logger) (*BuoyantVolume, error) {
	if cfg.Kind == "" {
		cfg.Kind = KindWater
	}
	v, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &BuoyantVolume{Volume: v, Gravity: gravity}, nil
}

// DensityRatio is cell density over entity density clamped to [0.5, 2]. Entities without a
// positive density sink no further than the upper bound allows.
func DensityRatio(cellDensity, entityDensity float64) float64 {
	if entityDensity <= 0 {
		return maxDensityRatio
	}
	return lattice.Clamp(cellDensity/entityDensity, minDensityRatio, maxDensityRatio)
}

// BuoyancyForce opposes gravity's vertical component, scaled by the density ratio.
func BuoyancyForce(gravity lattice.Vec3, ratio float64) lattice.Vec3 {
	return lattice.Vec3{Y: -gravity.Y * ratio}
}

// ApplyBuoyancy pushes the buoyancy force onto every resident whose cell can be resolved.
func (b *BuoyantVolume) ApplyBuoyancy() {
	for _, e := range b.residents {
		if e == nil || !e.Alive() {
			continue
		}
		c, ok := b.CellAt(e.Position())
		if !ok {
			continue
		}
		e.ApplyExternalForce(BuoyancyForce(b.Gravity, DensityRatio(c.density, e.Density())))
	}
}

func (b *BuoyantVolume) PhysicsStep() {
	b.Volume.PhysicsStep()
	b.ApplyBuoyancy()
}
