package lattice

import "math"

// Box is an axis-aligned bounding box in world space.
type Box struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

func NewBox(lo, hi Vec3) Box { return Box{Min: lo, Max: hi} }

func (b Box) Center() Vec3 { return b.Min.Add(b.Max).Scale(0.5) }

func (b Box) Size() Vec3 { return b.Max.Sub(b.Min) }

// Contains reports whether p lies inside b, faces included.
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersect casts a ray from origin along dir and returns the distance at which it first
// touches b, limited to [0, maxDist]. A ray starting inside b hits at distance 0.
// dir need not be normalized; the distance is measured in units of |dir|.
func (b Box) Intersect(origin, dir Vec3, maxDist float64) (float64, bool) {
	tmin := 0.0
	tmax := maxDist
	o := origin.Array()
	d := dir.Array()
	lo := b.Min.Array()
	hi := b.Max.Array()
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (lo[i] - o[i]) * inv
		t2 := (hi[i] - o[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}
