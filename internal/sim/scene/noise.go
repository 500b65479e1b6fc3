package scene

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"voxeltherm/internal/sim/lattice"
)

// temperatureField returns base plus fractal simplex noise in [-amplitude, amplitude].
func temperatureField(spec NoiseSpec, base float64) func(lattice.Vec3i) float64 {
	noise := opensimplex.NewNormalized(spec.Seed)
	return func(k lattice.Vec3i) float64 {
		n := octaveNoise(noise, float64(k.X), float64(k.Y), float64(k.Z), spec.Octaves, spec.Scale, 0.5)
		return base + spec.Amplitude*(2*n-1)
	}
}

func octaveNoise(noise opensimplex.Noise, x, y, z float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval3(x*frequency, y*frequency, z*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
