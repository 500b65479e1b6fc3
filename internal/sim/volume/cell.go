package volume

import (
	"errors"

	"voxeltherm/internal/sim/lattice"
)

// ErrCoolerInitiator is returned by ConductionExchange when the caller is not warmer than
// the receiver. The exchange is a no-op in that case.
var ErrCoolerInitiator = errors.New("conduction exchange called by cooler participant")

// Participant is anything that can take part in a conduction exchange.
type Participant interface {
	Temperature() float64
	Conductivity() float64
	// ConductionExchange receives heat from a warmer caller and returns the amount the
	// caller must subtract from its own temperature.
	ConductionExchange(foreignTemperature, foreignConductivity float64) (float64, error)
}

// Cell is one lattice cell of a volume.
type Cell struct {
	index int

	temperature float64
	minTemp     float64
	maxTemp     float64

	density      float64
	conductivity float64

	current   lattice.Vec3
	exchanges uint64
}

// NewCell creates a cell. index is the construction order and is kept for diagnostics only.
func NewCell(index int, temperature, minTemp, maxTemp, density, conductivity float64) *Cell {
	return &Cell{
		index:        index,
		temperature:  temperature,
		minTemp:      minTemp,
		maxTemp:      maxTemp,
		density:      density,
		conductivity: conductivity,
	}
}

func (c *Cell) Index() int                { return c.index }
func (c *Cell) Temperature() float64      { return c.temperature }
func (c *Cell) Density() float64          { return c.density }
func (c *Cell) Conductivity() float64     { return c.conductivity }
func (c *Cell) Current() lattice.Vec3     { return c.current }
func (c *Cell) Exchanges() uint64         { return c.exchanges }
func (c *Cell) Bounds() (lo, hi float64)  { return c.minTemp, c.maxTemp }
func (c *Cell) clamp(t float64) float64   { return lattice.Clamp(t, c.minTemp, c.maxTemp) }
func (c *Cell) setCurrent(v lattice.Vec3) { c.current = v }

func (c *Cell) ConductionExchange(foreignTemperature, foreignConductivity float64) (float64, error) {
	if foreignTemperature <= c.temperature {
		return 0, ErrCoolerInitiator
	}
	avg := (foreignConductivity + c.conductivity) / 2
	heat := (foreignTemperature - c.temperature) * avg
	c.temperature = c.clamp(c.temperature + heat)
	c.exchanges++
	return heat, nil
}

// Donate runs an exchange with c as the warmer side: target receives heat through its own
// ConductionExchange and c loses the returned amount. The donor side is clamped only when
// clamp is set.
func (c *Cell) Donate(target Participant, clamp bool) (float64, error) {
	heat, err := target.ConductionExchange(c.temperature, c.conductivity)
	if err != nil {
		return 0, err
	}
	c.temperature -= heat
	if clamp {
		c.temperature = c.clamp(c.temperature)
	}
	return heat, nil
}

func (c *Cell) PassiveCooling(rate float64) {
	c.temperature = c.clamp(c.temperature - rate)
}
