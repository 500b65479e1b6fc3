package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	persistlog "voxeltherm/internal/persistence/log"
	"voxeltherm/internal/persistence/snapshot"
	"voxeltherm/internal/sim/scene"
	"voxeltherm/internal/sim/tuning"
)

// Digests only match when the scene is rebuilt from the configs the run started with; ticks
// are replayed from tick 0.
func main() {
	var (
		framePath = flag.String("frame", "", "path to a .frame.zst dump to summarize (optional)")
		ticksDir  = flag.String("ticks", "", "ticks dir containing ticks-*.jsonl.zst (optional)")
		configDir = flag.String("configs", "./configs", "config directory")
		fromTick  = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *framePath == "" && *ticksDir == "" {
		fmt.Fprintln(os.Stderr, "missing -frame or -ticks")
		os.Exit(2)
	}

	if *framePath != "" {
		f, err := snapshot.ReadFrame(*framePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read frame:", err)
			os.Exit(1)
		}
		for _, line := range summarizeFrame(f) {
			fmt.Println(line)
		}
	}
	if *ticksDir == "" {
		return
	}

	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	cfg, err := scene.Load(filepath.Join(*configDir, "volumes.yaml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load volumes:", err)
		os.Exit(1)
	}
	sc, err := scene.New(cfg, tune, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scene:", err)
		os.Exit(1)
	}

	files, err := persistlog.ListFiles(*ticksDir, "ticks")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	checked, err := replay(sc, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (last tick=%d)\n", checked, sc.CurrentTick())
}

// replay steps sc once per logged tick and compares digests from verifyFrom on. toTick 0
// means the whole log.
func replay(sc *scene.Scene, files []string, verifyFrom, toTick uint64) (uint64, error) {
	var (
		checked uint64
		runErr  error
	)
	for _, path := range files {
		done := false
		err := persistlog.ReadTicks(path, func(entry scene.TickLogEntry) bool {
			if toTick != 0 && entry.Tick > toTick {
				done = true
				return false
			}
			if entry.Tick != sc.CurrentTick() {
				runErr = fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", sc.CurrentTick(), entry.Tick, filepath.Base(path))
				return false
			}
			tick, got := sc.StepOnce()
			if tick >= verifyFrom {
				checked++
				if got != entry.Digest {
					runErr = fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, got, entry.Digest)
					return false
				}
			}
			return true
		})
		if err != nil {
			return checked, err
		}
		if runErr != nil {
			return checked, runErr
		}
		if done {
			break
		}
	}
	return checked, nil
}

func summarizeFrame(f snapshot.FrameV1) []string {
	out := []string{fmt.Sprintf("frame v%d run=%s tick=%d sim=%dHz physics=%dHz frame=%dHz volumes=%d bodies=%d",
		f.Header.Version, f.Header.RunID, f.Header.Tick, f.SimulationHz, f.PhysicsHz, f.FrameHz, len(f.Volumes), len(f.Bodies))}
	for _, v := range f.Volumes {
		lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
		for _, c := range v.Cells {
			lo = math.Min(lo, c.Temperature)
			hi = math.Max(hi, c.Temperature)
			sum += c.Temperature
		}
		if len(v.Cells) == 0 {
			out = append(out, fmt.Sprintf("  volume %s (%s) empty", v.ID, v.Kind))
			continue
		}
		out = append(out, fmt.Sprintf("  volume %s (%s) cells=%d temp min=%.2f max=%.2f mean=%.2f",
			v.ID, v.Kind, len(v.Cells), lo, hi, sum/float64(len(v.Cells))))
	}
	for _, b := range f.Bodies {
		in := b.Volume
		if in == "" {
			in = "-"
		}
		out = append(out, fmt.Sprintf("  body %s in=%s temp=%.2f pos=%s", b.ID, in, b.Temperature, formatVec(b.Pos)))
	}
	return out
}

func formatVec(v [3]float64) string {
	parts := make([]string, 0, 3)
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%.2f", x))
	}
	return "(" + strings.Join(parts, ",") + ")"
}
