package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"voxeltherm/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "frames":
			framesCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "runs"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		line := e.Name()
		if info, err := e.Info(); err == nil {
			line += "\t" + humanize.Time(info.ModTime())
		}
		fmt.Println(line)
	}
}

type frameFile struct {
	Tick     uint64 `json:"tick"`
	Path     string `json:"path"`
	Size     string `json:"size"`
	Modified string `json:"modified"`
}

func framesCmd(args []string) {
	fs := flag.NewFlagSet("frames", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	runID := fs.String("run", "", "run id")
	_ = fs.Parse(args)

	if strings.TrimSpace(*runID) == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	files, err := listFrames(filepath.Join(*dataDir, "runs", *runID, "frames"), time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "list frames:", err)
		os.Exit(1)
	}
	for _, f := range files {
		printJSON(f)
	}
}

// listFrames returns the frame dumps in dir, newest tick first.
func listFrames(dir string, now time.Time) ([]frameFile, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []frameFile
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".frame.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".frame.zst"), 10, 64)
		if err != nil || e.Name() != snapshot.FileName(tick) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, frameFile{
			Tick:     tick,
			Path:     filepath.Join(dir, e.Name()),
			Size:     humanize.Bytes(uint64(info.Size())),
			Modified: humanize.RelTime(info.ModTime(), now, "ago", "from now"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick > out[j].Tick })
	return out, nil
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
