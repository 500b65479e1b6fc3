package lattice

// Faces are the six outward unit directions, in +x, -x, +y, -y, +z, -z order.
var Faces = [6]Vec3i{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Ring visits the 3x3x3 block of lattice points around center with the given step,
// center included, x outermost. fn returning false stops the walk.
func Ring(center Vec3i, step int, fn func(Vec3i) bool) {
	if step <= 0 {
		return
	}
	for x := center.X - step; x <= center.X+step; x += step {
		for y := center.Y - step; y <= center.Y+step; y += step {
			for z := center.Z - step; z <= center.Z+step; z += step {
				if !fn(Vec3i{X: x, Y: y, Z: z}) {
					return
				}
			}
		}
	}
}
