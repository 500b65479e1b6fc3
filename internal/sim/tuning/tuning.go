package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// SimulationHz drives diffusion and passive cooling.
	SimulationHz int `yaml:"simulation_hz"`
	// PhysicsHz drives overlaps, currents, buoyancy and body integration.
	PhysicsHz int `yaml:"physics_hz"`
	// FrameHz drives heat sources and body temperature reconciliation.
	FrameHz int `yaml:"frame_hz"`

	Gravity [3]float64 `yaml:"gravity"`

	FrameEveryTicks int `yaml:"frame_every_ticks"`
	StatsEveryTicks int `yaml:"stats_every_ticks"`
	IndexQueue      int `yaml:"index_queue"`
}

func Defaults() Tuning {
	return Tuning{
		SimulationHz:    10,
		PhysicsHz:       50,
		FrameHz:         60,
		Gravity:         [3]float64{0, -9.81, 0},
		FrameEveryTicks: 50,
		StatsEveryTicks: 10,
		IndexQueue:      1024,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.SimulationHz <= 0 || t.PhysicsHz <= 0 || t.FrameHz <= 0 {
		return fmt.Errorf("simulation_hz, physics_hz and frame_hz must be > 0")
	}
	if t.FrameEveryTicks < 0 || t.StatsEveryTicks < 0 {
		return fmt.Errorf("frame_every_ticks and stats_every_ticks must be >= 0")
	}
	if t.IndexQueue < 0 {
		return fmt.Errorf("index_queue must be >= 0")
	}
	return nil
}
