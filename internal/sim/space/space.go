// Package space is the geometry and trigger layer the volumes run inside: it answers
// directional probes and turns body positions into overlap events.
package space

import (
	"cmp"
	"fmt"
	"slices"

	"voxeltherm/internal/sim/lattice"
	"voxeltherm/internal/sim/volume"
)

// Listener receives overlap events for one region.
type Listener interface {
	OnOverlap(e volume.Entity)
	OnOverlapEnd(e volume.Entity)
}

// Region is a trigger box. Grid and Listener are optional.
type Region struct {
	ID       string
	Bounds   lattice.Box
	Grid     volume.Grid
	Listener Listener
}

type Space struct {
	regions []Region
	inside  map[string]string // body id -> region id
}

func New() *Space {
	return &Space{inside: map[string]string{}}
}

// Add registers a region. Regions are kept in id order, which is also the order overlap
// detection tries them in.
func (s *Space) Add(r Region) error {
	if r.ID == "" {
		return fmt.Errorf("space: region id must not be empty")
	}
	i, found := slices.BinarySearchFunc(s.regions, r.ID, func(a Region, id string) int { return cmp.Compare(a.ID, id) })
	if found {
		return fmt.Errorf("space: duplicate region %q", r.ID)
	}
	s.regions = slices.Insert(s.regions, i, r)
	return nil
}

// AddVolume registers v as a region that both resolves probes and receives overlaps.
func (s *Space) AddVolume(v *volume.Volume) error {
	if err := s.Add(Region{ID: v.ID(), Bounds: v.Bounds(), Grid: v, Listener: v}); err != nil {
		return err
	}
	v.SetProber(s)
	return nil
}

func (s *Space) Regions() []Region { return slices.Clone(s.regions) }

// Probe casts a ray and returns every region it touches within maxDist, nearest first. Ties
// are broken by region id.
func (s *Space) Probe(origin, dir lattice.Vec3, maxDist float64) []volume.Hit {
	type hit struct {
		id string
		h  volume.Hit
	}
	var hits []hit
	for _, r := range s.regions {
		d, ok := r.Bounds.Intersect(origin, dir, maxDist)
		if !ok {
			continue
		}
		hits = append(hits, hit{id: r.ID, h: volume.Hit{Point: origin.Add(dir.Scale(d)), Distance: d, Grid: r.Grid}})
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.h.Distance, b.h.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	out := make([]volume.Hit, len(hits))
	for i := range hits {
		out[i] = hits[i].h
	}
	return out
}

// RegionAt returns the first region, in id order, containing pos.
func (s *Space) RegionAt(pos lattice.Vec3) (Region, bool) {
	for _, r := range s.regions {
		if r.Bounds.Contains(pos) {
			return r, true
		}
	}
	return Region{}, false
}

// Inside reports the region a body was assigned to by the last DetectOverlaps.
func (s *Space) Inside(bodyID string) (string, bool) {
	id, ok := s.inside[bodyID]
	return id, ok
}

// DetectOverlaps assigns each live entity to at most one region and emits events: OnOverlap
// every call while the entity stays inside, OnOverlapEnd on the old region when it leaves or
// moves to another one. Dead entities get no events.
func (s *Space) DetectOverlaps(entities []volume.Entity) {
	for _, e := range entities {
		if e == nil {
			continue
		}
		id := e.ID()
		if !e.Alive() {
			delete(s.inside, id)
			continue
		}
		prev, had := s.inside[id]
		next, ok := s.RegionAt(e.Position())
		if had && (!ok || next.ID != prev) {
			if r, found := s.region(prev); found && r.Listener != nil {
				r.Listener.OnOverlapEnd(e)
			}
			delete(s.inside, id)
		}
		if !ok {
			continue
		}
		s.inside[id] = next.ID
		if next.Listener != nil {
			next.Listener.OnOverlap(e)
		}
	}
}

func (s *Space) region(id string) (Region, bool) {
	i, found := slices.BinarySearchFunc(s.regions, id, func(a Region, id string) int { return cmp.Compare(a.ID, id) })
	if !found {
		return Region{}, false
	}
	return s.regions[i], true
}
