package scene

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voxeltherm/internal/sim/entity"
	"voxeltherm/internal/sim/lattice"
	"voxeltherm/internal/sim/volume"
)

type Config struct {
	Volumes []VolumeSpec `yaml:"volumes"`
	Bodies  []BodySpec   `yaml:"bodies,omitempty"`
}

type VolumeSpec struct {
	ID       string     `yaml:"id"`
	Kind     string     `yaml:"kind"`
	Min      [3]float64 `yaml:"min"`
	Max      [3]float64 `yaml:"max"`
	CellSize int        `yaml:"cell_size"`

	StartingTemperature float64 `yaml:"starting_temperature"`
	MinTemperature      float64 `yaml:"min_temperature"`
	MaxTemperature      float64 `yaml:"max_temperature"`
	StartingDensity     float64 `yaml:"starting_density"`
	Conductivity        float64 `yaml:"conductivity"`

	PassiveCooling bool    `yaml:"passive_cooling"`
	CoolingRate    float64 `yaml:"cooling_rate"`
	ConvectionRate float64 `yaml:"convection_rate"`
	FluidMechanics bool    `yaml:"fluid_mechanics"`
	Drag           float64 `yaml:"drag"`

	Clamp            ClampSpec  `yaml:"clamp,omitempty"`
	TemperatureNoise *NoiseSpec `yaml:"temperature_noise,omitempty"`
}

// ClampSpec overrides volume.DefaultClampPolicy field by field.
type ClampSpec struct {
	CellDonor   *bool `yaml:"cell_donor,omitempty"`
	EntityDonor *bool `yaml:"entity_donor,omitempty"`
}

// NoiseSpec perturbs the starting temperature with seeded simplex noise.
type NoiseSpec struct {
	Seed      int64   `yaml:"seed"`
	Amplitude float64 `yaml:"amplitude"`
	Scale     float64 `yaml:"scale"`
	Octaves   int     `yaml:"octaves"`
}

type BodySpec struct {
	ID           string     `yaml:"id"`
	Position     [3]float64 `yaml:"position"`
	Velocity     [3]float64 `yaml:"velocity,omitempty"`
	Temperature  float64    `yaml:"temperature"`
	Conductivity float64    `yaml:"conductivity"`
	Density      float64    `yaml:"density"`
	Mass         float64    `yaml:"mass"`

	MinTemperature *float64 `yaml:"min_temperature,omitempty"`
	MaxTemperature *float64 `yaml:"max_temperature,omitempty"`

	Vent *VentSpec `yaml:"vent,omitempty"`
}

type VentSpec struct {
	Target float64 `yaml:"target"`
	Rate   float64 `yaml:"rate"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("volumes.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("volumes.yaml: %w", err)
	}
	return cfg, nil
}

// defaults is a pond under a column of air with a heated vent on the pond floor.
func defaults() Config {
	return Config{
		Volumes: []VolumeSpec{
			{
				ID:                  "air",
				Kind:                string(volume.KindAir),
				Min:                 [3]float64{0, 4, 0},
				Max:                 [3]float64{8, 8, 8},
				CellSize:            1,
				StartingTemperature: 20,
				MinTemperature:      -40,
				MaxTemperature:      120,
				StartingDensity:     0.0012,
				Conductivity:        0.05,
				PassiveCooling:      true,
				CoolingRate:         0.01,
				ConvectionRate:      0.1,
				FluidMechanics:      true,
				Drag:                0.1,
			},
			{
				ID:                  "pond",
				Kind:                string(volume.KindWater),
				Min:                 [3]float64{0, 0, 0},
				Max:                 [3]float64{8, 4, 8},
				CellSize:            1,
				StartingTemperature: 12,
				MinTemperature:      0,
				MaxTemperature:      100,
				StartingDensity:     1,
				Conductivity:        0.3,
				ConvectionRate:      0.5,
				FluidMechanics:      true,
				Drag:                2,
			},
		},
		Bodies: []BodySpec{
			{ID: "vent", Position: [3]float64{4, 0.5, 4}, Temperature: 90, Conductivity: 0.6, Density: 8, Mass: 50, Vent: &VentSpec{Target: 100, Rate: 0.5}},
			{ID: "buoy", Position: [3]float64{2.5, 2.5, 2.5}, Temperature: 12, Conductivity: 0.2, Density: 0.5, Mass: 1},
			{ID: "stone", Position: [3]float64{5.5, 6.5, 5.5}, Temperature: 20, Conductivity: 0.4, Density: 2.6, Mass: 3},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Volumes {
		v := &c.Volumes[i]
		v.ID = strings.TrimSpace(v.ID)
		v.Kind = strings.ToLower(strings.TrimSpace(v.Kind))
		if v.Kind == "" {
			v.Kind = string(volume.KindAir)
		}
		if v.CellSize == 0 {
			v.CellSize = 1
		}
		if v.MinTemperature == 0 && v.MaxTemperature == 0 {
			v.MaxTemperature = 100
		}
		if n := v.TemperatureNoise; n != nil {
			if n.Scale <= 0 {
				n.Scale = 0.1
			}
			if n.Octaves <= 0 {
				n.Octaves = 1
			}
		}
	}
	for i := range c.Bodies {
		b := &c.Bodies[i]
		b.ID = strings.TrimSpace(b.ID)
		if b.Mass <= 0 {
			b.Mass = 1
		}
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Volumes) == 0 {
		return fmt.Errorf("volumes must not be empty")
	}
	seen := map[string]bool{}
	for _, v := range c.Volumes {
		if v.ID == "" {
			return fmt.Errorf("volume id must not be empty")
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate volume id: %s", v.ID)
		}
		seen[v.ID] = true
		if err := v.VolumeConfig().Validate(); err != nil {
			return err
		}
		if n := v.TemperatureNoise; n != nil && n.Amplitude < 0 {
			return fmt.Errorf("volume %s temperature_noise.amplitude must be >= 0", v.ID)
		}
	}
	bodies := map[string]bool{}
	for _, b := range c.Bodies {
		if b.ID == "" {
			return fmt.Errorf("body id must not be empty")
		}
		if bodies[b.ID] {
			return fmt.Errorf("duplicate body id: %s", b.ID)
		}
		bodies[b.ID] = true
		if b.Conductivity < 0 || b.Conductivity > 1 {
			return fmt.Errorf("body %s conductivity must be in [0, 1]", b.ID)
		}
		if (b.MinTemperature == nil) != (b.MaxTemperature == nil) {
			return fmt.Errorf("body %s must set both min_temperature and max_temperature or neither", b.ID)
		}
		if b.MinTemperature != nil && *b.MinTemperature > *b.MaxTemperature {
			return fmt.Errorf("body %s min_temperature > max_temperature", b.ID)
		}
		if b.Vent != nil && b.Vent.Rate < 0 {
			return fmt.Errorf("body %s vent.rate must be >= 0", b.ID)
		}
	}
	return nil
}

// VolumeConfig converts the spec to a volume.Config. The noise field, if any, is attached by
// the scene.
func (v VolumeSpec) VolumeConfig() volume.Config {
	clamp := volume.DefaultClampPolicy()
	if v.Clamp.CellDonor != nil {
		clamp.CellDonor = *v.Clamp.CellDonor
	}
	if v.Clamp.EntityDonor != nil {
		clamp.EntityDonor = *v.Clamp.EntityDonor
	}
	return volume.Config{
		ID:                  v.ID,
		Kind:                volume.Kind(v.Kind),
		Bounds:              lattice.NewBox(lattice.FromArray(v.Min), lattice.FromArray(v.Max)),
		CellSize:            v.CellSize,
		StartingTemperature: v.StartingTemperature,
		MinTemperature:      v.MinTemperature,
		MaxTemperature:      v.MaxTemperature,
		StartingDensity:     v.StartingDensity,
		Conductivity:        v.Conductivity,
		PassiveCooling:      v.PassiveCooling,
		CoolingRate:         v.CoolingRate,
		ConvectionRate:      v.ConvectionRate,
		FluidMechanics:      v.FluidMechanics,
		Drag:                v.Drag,
		Clamp:               clamp,
	}
}

func (b BodySpec) BodyConfig() entity.Config {
	cfg := entity.Config{
		ID:           b.ID,
		Position:     lattice.FromArray(b.Position),
		Velocity:     lattice.FromArray(b.Velocity),
		Temperature:  b.Temperature,
		Conductivity: b.Conductivity,
		Density:      b.Density,
		Mass:         b.Mass,
	}
	if b.MinTemperature != nil && b.MaxTemperature != nil {
		cfg.Bounds = &entity.Bounds{Min: *b.MinTemperature, Max: *b.MaxTemperature}
	}
	return cfg
}
