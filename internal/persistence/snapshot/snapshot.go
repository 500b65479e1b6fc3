package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Version of the frame dump format.
const Version = 1

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
}

// FrameV1 is a read-only dump of a scene at one tick. It is written for inspection and
// replay tooling; scenes are never rebuilt from it.
type FrameV1 struct {
	Header Header `json:"header"`

	SimulationHz int        `json:"simulation_hz"`
	PhysicsHz    int        `json:"physics_hz"`
	FrameHz      int        `json:"frame_hz"`
	Gravity      [3]float64 `json:"gravity"`

	Volumes []VolumeV1 `json:"volumes"`
	Bodies  []BodyV1   `json:"bodies"`
}

type VolumeV1 struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	CellSize int        `json:"cell_size"`
	Min      [3]float64 `json:"min"`
	Max      [3]float64 `json:"max"`
	Cells    []CellV1   `json:"cells"`
}

type CellV1 struct {
	Key         [3]int     `json:"key"`
	Temperature float64    `json:"temperature"`
	Density     float64    `json:"density"`
	Current     [3]float64 `json:"current"`
	Exchanges   uint64     `json:"exchanges"`
}

type BodyV1 struct {
	ID          string     `json:"id"`
	Pos         [3]float64 `json:"pos"`
	Vel         [3]float64 `json:"vel"`
	Temperature float64    `json:"temperature"`
	Density     float64    `json:"density"`
	Volume      string     `json:"volume,omitempty"`
}

// FileName is the conventional file name of a frame dump at tick.
func FileName(tick uint64) string { return fmt.Sprintf("%d.frame.zst", tick) }

func WriteFrame(path string, frame FrameV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	if frame.Header.Version == 0 {
		frame.Header.Version = Version
	}
	hb, _ := json.Marshal(frame.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&frame); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadFrame(path string) (FrameV1, error) {
	var frame FrameV1
	br, closeFn, err := open(path)
	if err != nil {
		return frame, err
	}
	defer closeFn()

	// The header line is repeated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return frame, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&frame); err != nil {
		return frame, fmt.Errorf("gob decode: %w", err)
	}
	if frame.Header.Version != Version {
		return frame, fmt.Errorf("unsupported frame version %d", frame.Header.Version)
	}
	return frame, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	br, closeFn, err := open(path)
	if err != nil {
		return h, err
	}
	defer closeFn()
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

func open(path string) (*bufio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return bufio.NewReaderSize(dec, 256*1024), func() {
		dec.Close()
		_ = f.Close()
	}, nil
}
