package volume

import (
	"errors"
	"fmt"
	"strings"

	"voxeltherm/internal/sim/lattice"
)

var (
	ErrInvalidCellSize = errors.New("cell size must be > 0")
	ErrEmptyLattice    = errors.New("bounds produce an empty lattice")
)

type Kind string

const (
	KindAir   Kind = "air"
	KindWater Kind = "water"
)

// ClampPolicy decides whether a cell is clamped after it donates heat. A receiving cell is
// always clamped.
type ClampPolicy struct {
	// CellDonor clamps a cell after it donates to another cell.
	CellDonor bool
	// EntityDonor clamps a cell after it donates to an entity.
	EntityDonor bool
}

func DefaultClampPolicy() ClampPolicy {
	return ClampPolicy{CellDonor: false, EntityDonor: true}
}

type Config struct {
	ID     string
	Kind   Kind
	Bounds lattice.Box

	CellSize int

	StartingTemperature float64
	MinTemperature      float64
	MaxTemperature      float64
	StartingDensity     float64
	Conductivity        float64

	PassiveCooling bool
	CoolingRate    float64
	ConvectionRate float64
	FluidMechanics bool
	Drag           float64

	Clamp ClampPolicy

	// InitialTemperature overrides StartingTemperature per cell when set. The result is
	// clamped to [MinTemperature, MaxTemperature].
	InitialTemperature func(key lattice.Vec3i) float64
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("volume id must not be empty")
	}
	if c.CellSize <= 0 {
		return fmt.Errorf("volume %s: %w", c.ID, ErrInvalidCellSize)
	}
	if c.MinTemperature > c.MaxTemperature {
		return fmt.Errorf("volume %s: min temperature %.3f > max temperature %.3f", c.ID, c.MinTemperature, c.MaxTemperature)
	}
	if c.Conductivity < 0 || c.Conductivity > 1 {
		return fmt.Errorf("volume %s: conductivity must be in [0, 1]", c.ID)
	}
	if c.StartingDensity < 0 {
		return fmt.Errorf("volume %s: starting density must be >= 0", c.ID)
	}
	if c.CoolingRate < 0 || c.ConvectionRate < 0 || c.Drag < 0 {
		return fmt.Errorf("volume %s: cooling rate, convection rate and drag must be >= 0", c.ID)
	}
	switch c.Kind {
	case "", KindAir, KindWater:
	default:
		return fmt.Errorf("volume %s: unknown kind %q", c.ID, c.Kind)
	}
	return nil
}
