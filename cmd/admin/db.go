package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"voxeltherm/internal/persistence/indexdb"
)

type dbQuery struct {
	runID  string
	volume string
	body   string
	limit  int
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index.sqlite)")
	runID := fs.String("run", "", "run id (optional; defaults to latest)")
	volumeID := fs.String("volume", "", "volume_id filter (volumes)")
	body := fs.String("body", "", "body filter (audits)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = runQuery(ctx, r, q, dbQuery{runID: *runID, volume: *volumeID, body: *body, limit: *limit}, printJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

type frameRowView struct {
	indexdb.FrameRow
	Size string `json:"size"`
}

// runQuery runs one named query and hands every row to emit.
func runQuery(ctx context.Context, r *indexdb.Reader, q string, opts dbQuery, emit func(any)) error {
	if opts.limit <= 0 {
		opts.limit = 20
	}
	if q == "runs" {
		rows, err := r.Runs(ctx, opts.limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			row.TuningJSON, row.SceneJSON = "", ""
			emit(row)
		}
		return nil
	}

	if opts.runID == "" {
		id, err := r.LatestRun(ctx)
		if err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("no runs found")
		}
		opts.runID = id
	}

	switch q {
	case "run":
		rows, err := r.Runs(ctx, 1<<20)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.RunID == opts.runID {
				emit(row)
				return nil
			}
		}
		return fmt.Errorf("run %s not found", opts.runID)
	case "ticks":
		rows, err := r.Ticks(ctx, opts.runID, opts.limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			emit(row)
		}
	case "volumes":
		rows, err := r.VolumeStats(ctx, opts.runID, opts.volume, opts.limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			emit(row)
		}
	case "audits":
		rows, err := r.Audits(ctx, opts.runID, opts.body, opts.limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			emit(row)
		}
	case "frames":
		rows, err := r.Frames(ctx, opts.runID, opts.limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			emit(frameRowView{FrameRow: row, Size: humanize.Bytes(uint64(row.Bytes))})
		}
	default:
		return fmt.Errorf("unknown query %q (runs|run|ticks|volumes|audits|frames)", q)
	}
	return nil
}
