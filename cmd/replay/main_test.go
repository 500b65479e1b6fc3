package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "voxeltherm/internal/persistence/log"
	"voxeltherm/internal/sim/scene"
	"voxeltherm/internal/sim/tuning"
)

func newScene(t *testing.T) *scene.Scene {
	t.Helper()
	cfg, err := scene.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sc, err := scene.New(cfg, tuning.Defaults(), nil)
	if err != nil {
		t.Fatalf("new scene: %v", err)
	}
	return sc
}

func recordRun(t *testing.T, ticks int) string {
	t.Helper()
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	sc := newScene(t)
	sc.SetTickLogger(tl)
	for i := 0; i < ticks; i++ {
		sc.StepOnce()
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return filepath.Join(dir, "ticks")
}

func TestReplay_VerifiesDigests(t *testing.T) {
	dir := recordRun(t, 25)
	files, err := persistlog.ListFiles(dir, "ticks")
	if err != nil || len(files) == 0 {
		t.Fatalf("list: files=%v err=%v", files, err)
	}

	checked, err := replay(newScene(t), files, 5, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 20 {
		t.Fatalf("checked: got %d want 20", checked)
	}

	sc := newScene(t)
	checked, err = replay(sc, files, 0, 9)
	if err != nil {
		t.Fatalf("replay to 9: %v", err)
	}
	if checked != 10 || sc.CurrentTick() != 10 {
		t.Fatalf("bounded replay: checked=%d tick=%d", checked, sc.CurrentTick())
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	files, err := persistlog.ListFiles(recordRun(t, 5), "ticks")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sc := newScene(t)
	sc.StepOnce()
	if _, err := replay(sc, files, 0, 0); err == nil || !strings.Contains(err.Error(), "tick mismatch") {
		t.Fatalf("expected tick mismatch, got %v", err)
	}
}

func TestSummarizeFrame(t *testing.T) {
	sc := newScene(t)
	sc.StepOnce()
	lines := summarizeFrame(sc.Snapshot())
	if len(lines) != 1+2+3 {
		t.Fatalf("lines: got %d\n%s", len(lines), strings.Join(lines, "\n"))
	}
	if !strings.Contains(lines[1], "volume air (air) cells=256") {
		t.Fatalf("air line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "volume pond (water)") {
		t.Fatalf("pond line: %q", lines[2])
	}
}
