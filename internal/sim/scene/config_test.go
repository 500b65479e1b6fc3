package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxeltherm/internal/sim/lattice"
	"voxeltherm/internal/sim/volume"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Volumes) != 2 || len(cfg.Bodies) != 3 {
		t.Fatalf("got %d volumes, %d bodies", len(cfg.Volumes), len(cfg.Bodies))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	cfg, err := Load("../../../configs/volumes.yaml")
	if err != nil {
		t.Fatalf("load volumes.yaml: %v", err)
	}
	var pond *VolumeSpec
	for i := range cfg.Volumes {
		if cfg.Volumes[i].ID == "pond" {
			pond = &cfg.Volumes[i]
		}
	}
	if pond == nil || pond.Kind != string(volume.KindWater) {
		t.Fatalf("pond missing or wrong kind: %+v", pond)
	}
	vc := pond.VolumeConfig()
	if vc.Clamp != volume.DefaultClampPolicy() {
		t.Fatalf("clamp: got %+v", vc.Clamp)
	}
	for _, b := range cfg.Bodies {
		if b.ID == "stone" && b.BodyConfig().Bounds == nil {
			t.Fatalf("stone should carry temperature bounds")
		}
	}
}

func TestLoad_NormalizesAndRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"duplicate volume", "volumes:\n  - {id: a, min: [0,0,0], max: [1,1,1]}\n  - {id: a, min: [0,0,0], max: [1,1,1]}\n", "duplicate volume id"},
		{"conductivity", "volumes:\n  - {id: a, min: [0,0,0], max: [1,1,1], conductivity: 2}\n", "conductivity"},
		{"unknown kind", "volumes:\n  - {id: a, kind: lava, min: [0,0,0], max: [1,1,1]}\n", "kind"},
		{"half bounds", "volumes:\n  - {id: a, min: [0,0,0], max: [1,1,1]}\nbodies:\n  - {id: b, min_temperature: 0}\n", "both"},
		{"no volumes", "bodies: []\n", "volumes must not be empty"},
	}
	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "volumes.yaml")
		if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
			t.Fatalf("%s: write: %v", tc.name, err)
		}
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), tc.want) || !strings.HasPrefix(err.Error(), "volumes.yaml: ") {
			t.Fatalf("%s: got %v", tc.name, err)
		}
	}

	path := filepath.Join(t.TempDir(), "volumes.yaml")
	if err := os.WriteFile(path, []byte("volumes:\n  - {id: ' a ', kind: AIR, min: [0,0,0], max: [2,2,2]}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	v := cfg.Volumes[0]
	if v.ID != "a" || v.Kind != "air" || v.CellSize != 1 || v.MaxTemperature != 100 {
		t.Fatalf("normalized: %+v", v)
	}
}

func TestTemperatureField_SeededAndBounded(t *testing.T) {
	spec := NoiseSpec{Seed: 3, Amplitude: 2, Scale: 0.3, Octaves: 3}
	a := temperatureField(spec, 20)
	b := temperatureField(spec, 20)
	varied := false
	for x := 0; x < 6; x++ {
		for z := 0; z < 6; z++ {
			k := lattice.Vec3i{X: x, Y: 1, Z: z}
			ta := a(k)
			if ta != b(k) {
				t.Fatalf("same seed differs at %v", k)
			}
			if ta < 18 || ta > 22 {
				t.Fatalf("out of amplitude at %v: %v", k, ta)
			}
			if ta != 20 {
				varied = true
			}
		}
	}
	if !varied {
		t.Fatalf("noise field is flat")
	}
}
