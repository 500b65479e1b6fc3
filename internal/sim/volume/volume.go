package volume

import (
	"fmt"
	"io"
	"log"
	"math"
	"slices"

	"voxeltherm/internal/sim/lattice"
)

// Volume is a bounded region partitioned into a lattice of cells.
//
// The cell map is mutated only by the volume's own steps. keys holds the same coordinates in
// lattice.Less order and drives every iteration, so a diffusion pass is reproducible.
type Volume struct {
	cfg Config
	log *log.Logger

	cells  map[lattice.Vec3i]*Cell
	keys   []lattice.Vec3i
	minKey lattice.Vec3i
	maxKey lattice.Vec3i

	residents []Entity
	prober    Prober

	coolerInitiations uint64
	scratch           []*Cell
}

// New builds the volume's lattice from cfg.Bounds. Keys run from floor(Bounds.Min) in steps of
// CellSize while they stay below floor(Bounds.Max).
func New(cfg Config, logger *log.Logger) (*Volume, error) {
	if cfg.Kind == "" {
		cfg.Kind = KindAir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	lo := cfg.Bounds.Min.Floor()
	hi := cfg.Bounds.Max.Floor()
	if hi.X <= lo.X || hi.Y <= lo.Y || hi.Z <= lo.Z {
		return nil, fmt.Errorf("volume %s: %w (min=%v max=%v)", cfg.ID, ErrEmptyLattice, lo, hi)
	}

	v := &Volume{
		cfg:   cfg,
		log:   logger,
		cells: map[lattice.Vec3i]*Cell{},
	}
	step := cfg.CellSize
	index := 0
	for z := lo.Z; z < hi.Z; z += step {
		for y := lo.Y; y < hi.Y; y += step {
			for x := lo.X; x < hi.X; x += step {
				key := lattice.Vec3i{X: x, Y: y, Z: z}
				temp := cfg.StartingTemperature
				if cfg.InitialTemperature != nil {
					temp = cfg.InitialTemperature(key)
				}
				temp = lattice.Clamp(temp, cfg.MinTemperature, cfg.MaxTemperature)
				v.cells[key] = NewCell(index, temp, cfg.MinTemperature, cfg.MaxTemperature, cfg.StartingDensity, cfg.Conductivity)
				v.keys = append(v.keys, key)
				index++
			}
		}
	}
	slices.SortFunc(v.keys, lattice.Compare)
	v.minKey = v.keys[0]
	v.maxKey = v.keys[0]
	for _, k := range v.keys {
		v.minKey = lattice.Vec3i{X: min(v.minKey.X, k.X), Y: min(v.minKey.Y, k.Y), Z: min(v.minKey.Z, k.Z)}
		v.maxKey = lattice.Vec3i{X: max(v.maxKey.X, k.X), Y: max(v.maxKey.Y, k.Y), Z: max(v.maxKey.Z, k.Z)}
	}
	return v, nil
}

// SetProber attaches the world geometry used for cross-volume lookups. Without one, boundary
// cells have no cross-volume neighbors.
func (v *Volume) SetProber(p Prober) { v.prober = p }

func (v *Volume) ID() string          { return v.cfg.ID }
func (v *Volume) Kind() Kind          { return v.cfg.Kind }
func (v *Volume) Config() Config      { return v.cfg }
func (v *Volume) CellSize() int       { return v.cfg.CellSize }
func (v *Volume) Bounds() lattice.Box { return v.cfg.Bounds }
func (v *Volume) Len() int            { return len(v.keys) }

// Base returns the plain grid, so specializations and the plain volume share one handle.
func (v *Volume) Base() *Volume { return v }

// ClampPolicy returns the donor clamp rules applied by this volume's cells.
func (v *Volume) ClampPolicy() ClampPolicy { return v.cfg.Clamp }

// Extents returns the smallest and largest key on each axis.
func (v *Volume) Extents() (lo, hi lattice.Vec3i) { return v.minKey, v.maxKey }

// Keys returns a copy of the sorted key list.
func (v *Volume) Keys() []lattice.Vec3i { return slices.Clone(v.keys) }

func (v *Volume) Cell(key lattice.Vec3i) (*Cell, bool) {
	c, ok := v.cells[key]
	return c, ok
}

// CellCenter maps a key to the world position at the middle of its cell.
func (v *Volume) CellCenter(key lattice.Vec3i) lattice.Vec3 {
	h := float64(v.cfg.CellSize) / 2
	return lattice.Vec3{X: float64(key.X) + h, Y: float64(key.Y) + h, Z: float64(key.Z) + h}
}

// WorldPosToCell scans the keys in order and returns the first cell whose box
// [key, key+cellSize] contains pos. ok is false when no cell does.
func (v *Volume) WorldPosToCell(pos lattice.Vec3) (lattice.Vec3i, bool) {
	ext := float64(v.cfg.CellSize)
	for _, k := range v.keys {
		lo := k.Float()
		if pos.X >= lo.X && pos.X <= lo.X+ext &&
			pos.Y >= lo.Y && pos.Y <= lo.Y+ext &&
			pos.Z >= lo.Z && pos.Z <= lo.Z+ext {
			return k, true
		}
	}
	return lattice.Vec3i{}, false
}

// CellAt resolves a world position to its cell.
func (v *Volume) CellAt(pos lattice.Vec3) (*Cell, bool) {
	k, ok := v.WorldPosToCell(pos)
	if !ok {
		return nil, false
	}
	return v.Cell(k)
}

// Residents returns a copy of the resident entity list in join order.
func (v *Volume) Residents() []Entity { return slices.Clone(v.residents) }

// Stats summarizes the grid.
type Stats struct {
	ID                string  `json:"id"`
	Cells             int     `json:"cells"`
	Residents         int     `json:"residents"`
	MinTemperature    float64 `json:"min_temperature"`
	MaxTemperature    float64 `json:"max_temperature"`
	MeanTemperature   float64 `json:"mean_temperature"`
	MeanDensity       float64 `json:"mean_density"`
	Exchanges         uint64  `json:"exchanges"`
	CoolerInitiations uint64  `json:"cooler_initiations,omitempty"`
}

func (v *Volume) Stats() Stats {
	s := Stats{
		ID:                v.cfg.ID,
		Cells:             len(v.keys),
		Residents:         len(v.residents),
		MinTemperature:    math.Inf(1),
		MaxTemperature:    math.Inf(-1),
		CoolerInitiations: v.coolerInitiations,
	}
	var sumT, sumD float64
	for _, k := range v.keys {
		c := v.cells[k]
		s.MinTemperature = math.Min(s.MinTemperature, c.temperature)
		s.MaxTemperature = math.Max(s.MaxTemperature, c.temperature)
		sumT += c.temperature
		sumD += c.density
		s.Exchanges += c.exchanges
	}
	n := float64(len(v.keys))
	s.MeanTemperature = sumT / n
	s.MeanDensity = sumD / n
	return s
}

// CellState is a read-only copy of one cell.
type CellState struct {
	Key         lattice.Vec3i `json:"key"`
	Temperature float64       `json:"temperature"`
	Density     float64       `json:"density"`
	Current     lattice.Vec3  `json:"current"`
	Exchanges   uint64        `json:"exchanges"`
}

// Frame is a read-only copy of the whole grid, for visualization and dumps.
type Frame struct {
	ID       string      `json:"id"`
	Kind     Kind        `json:"kind"`
	CellSize int         `json:"cell_size"`
	Bounds   lattice.Box `json:"bounds"`
	Cells    []CellState `json:"cells"`
}

func (v *Volume) Frame() Frame {
	f := Frame{
		ID:       v.cfg.ID,
		Kind:     v.cfg.Kind,
		CellSize: v.cfg.CellSize,
		Bounds:   v.cfg.Bounds,
		Cells:    make([]CellState, 0, len(v.keys)),
	}
	for _, k := range v.keys {
		c := v.cells[k]
		f.Cells = append(f.Cells, CellState{
			Key:         k,
			Temperature: c.temperature,
			Density:     c.density,
			Current:     c.current,
			Exchanges:   c.exchanges,
		})
	}
	return f
}
