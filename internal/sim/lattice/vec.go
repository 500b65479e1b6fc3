package lattice

import "math"

// Vec3i is an integer lattice coordinate.
type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3i) Scale(s int) Vec3i { return Vec3i{X: v.X * s, Y: v.Y * s, Z: v.Z * s} }

func (v Vec3i) Float() Vec3 { return Vec3{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)} }

func (v Vec3i) Array() [3]int { return [3]int{v.X, v.Y, v.Z} }

// Less orders keys lexicographically on (x, y, z).
func Less(a, b Vec3i) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// Compare is Less as a three-way comparison, for slices.SortFunc.
func Compare(a, b Vec3i) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}

// Vec3 is a world-space vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

var (
	Zero = Vec3{}
	Up   = Vec3{Y: 1}
)

func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func FromArray(a [3]float64) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns the unit vector in v's direction, or the zero vector for a zero input.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Zero
	}
	return v.Scale(1 / l)
}

func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Floor returns the lattice point at or below v on every axis.
func (v Vec3) Floor() Vec3i {
	return Vec3i{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
