package scene

import (
	"time"

	"voxeltherm/internal/sim/volume"
)

// Metrics is published by the loop after every tick. Readers get an immutable copy.
type Metrics struct {
	Tick         uint64
	StepDuration time.Duration
	Volumes      []volume.Stats
	Bodies       int
	Observers    int
}

// Metrics returns the last published value. It is safe to call from any goroutine.
func (s *Scene) Metrics() Metrics {
	if m := s.metrics.Load(); m != nil {
		return *m
	}
	return Metrics{}
}

func (s *Scene) publishMetrics(nowTick uint64, d time.Duration) {
	if s.lastStats == nil {
		s.lastStats = s.volumeStats()
	}
	alive := 0
	for _, b := range s.bodies {
		if b.Alive() {
			alive++
		}
	}
	s.metrics.Store(&Metrics{
		Tick:         nowTick,
		StepDuration: d,
		Volumes:      s.lastStats,
		Bodies:       alive,
		Observers:    len(s.observers),
	})
}
