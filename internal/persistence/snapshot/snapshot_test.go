package snapshot

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestFrame_WriteRead(t *testing.T) {
	frame := FrameV1{
		Header:       Header{RunID: "run-1", Tick: 42},
		SimulationHz: 10,
		PhysicsHz:    50,
		FrameHz:      60,
		Gravity:      [3]float64{0, -9.81, 0},
		Volumes: []VolumeV1{{
			ID:       "pond",
			Kind:     "water",
			CellSize: 1,
			Max:      [3]float64{2, 1, 1},
			Cells: []CellV1{
				{Key: [3]int{0, 0, 0}, Temperature: 75, Density: 1, Exchanges: 3},
				{Key: [3]int{1, 0, 0}, Temperature: 75, Density: 1, Current: [3]float64{0.5, 0, 0}},
			},
		}},
		Bodies: []BodyV1{{ID: "buoy", Pos: [3]float64{0.5, 0.5, 0.5}, Temperature: 30, Volume: "pond"}},
	}
	path := filepath.Join(t.TempDir(), "frames", FileName(42))
	if err := WriteFrame(path, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h.Version != Version || h.RunID != "run-1" || h.Tick != 42 {
		t.Fatalf("header: %+v", h)
	}

	got, err := ReadFrame(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame.Header.Version = Version
	if !reflect.DeepEqual(got, frame) {
		t.Fatalf("frame mismatch:\n got %+v\nwant %+v", got, frame)
	}
}

func TestReadFrame_Missing(t *testing.T) {
	if _, err := ReadFrame(filepath.Join(t.TempDir(), "nope.frame.zst")); err == nil {
		t.Fatalf("expected error")
	}
}
