package indexdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"voxeltherm/internal/sim/volume"
)

type RunRow struct {
	RunID      string `db:"run_id" json:"run_id"`
	StartedAt  string `db:"started_at" json:"started_at"`
	Volumes    int    `db:"volumes" json:"volumes"`
	Bodies     int    `db:"bodies" json:"bodies"`
	TuningJSON string `db:"tuning_json" json:"tuning_json,omitempty"`
	SceneJSON  string `db:"scene_json" json:"scene_json,omitempty"`
}

type TickRow struct {
	RunID  string `db:"run_id" json:"run_id"`
	Tick   int64  `db:"tick" json:"tick"`
	Digest string `db:"digest" json:"digest"`
}

type VolumeStatRow struct {
	RunID             string  `db:"run_id" json:"run_id"`
	Tick              int64   `db:"tick" json:"tick"`
	VolumeID          string  `db:"volume_id" json:"volume_id"`
	Cells             int     `db:"cells" json:"cells"`
	Residents         int     `db:"residents" json:"residents"`
	MinTemperature    float64 `db:"min_temperature" json:"min_temperature"`
	MaxTemperature    float64 `db:"max_temperature" json:"max_temperature"`
	MeanTemperature   float64 `db:"mean_temperature" json:"mean_temperature"`
	MeanDensity       float64 `db:"mean_density" json:"mean_density"`
	Exchanges         int64   `db:"exchanges" json:"exchanges"`
	CoolerInitiations int64   `db:"cooler_initiations" json:"cooler_initiations"`
}

type AuditRow struct {
	RunID  string `db:"run_id" json:"run_id"`
	Tick   int64  `db:"tick" json:"tick"`
	Seq    int    `db:"seq" json:"seq"`
	Body   string `db:"body" json:"body"`
	Action string `db:"action" json:"action"`
	Volume string `db:"volume" json:"volume"`
}

type FrameRow struct {
	RunID   string `db:"run_id" json:"run_id"`
	Tick    int64  `db:"tick" json:"tick"`
	Path    string `db:"path" json:"path"`
	Bytes   int64  `db:"bytes" json:"bytes"`
	Volumes int    `db:"volumes" json:"volumes"`
	Cells   int    `db:"cells" json:"cells"`
	Bodies  int    `db:"bodies" json:"bodies"`
}

func volumeStatRow(runID string, tick uint64, s volume.Stats) VolumeStatRow {
	return VolumeStatRow{
		RunID:             runID,
		Tick:              int64(tick),
		VolumeID:          s.ID,
		Cells:             s.Cells,
		Residents:         s.Residents,
		MinTemperature:    s.MinTemperature,
		MaxTemperature:    s.MaxTemperature,
		MeanTemperature:   s.MeanTemperature,
		MeanDensity:       s.MeanDensity,
		Exchanges:         int64(s.Exchanges),
		CoolerInitiations: int64(s.CoolerInitiations),
	}
}

// Reader runs read-only queries against an index file.
type Reader struct {
	db *sqlx.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	var out []RunRow
	err := r.db.SelectContext(ctx, &out, `SELECT run_id,started_at,volumes,bodies,tuning_json,scene_json FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	return out, err
}

// LatestRun returns the most recently started run id, or "" when the index is empty.
func (r *Reader) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (r *Reader) Ticks(ctx context.Context, runID string, limit int) ([]TickRow, error) {
	var out []TickRow
	err := r.db.SelectContext(ctx, &out, `SELECT run_id,tick,digest FROM ticks WHERE run_id=? ORDER BY tick DESC LIMIT ?`, runID, limit)
	return out, err
}

// VolumeStats returns the newest stats rows of a run, optionally for one volume.
func (r *Reader) VolumeStats(ctx context.Context, runID, volumeID string, limit int) ([]VolumeStatRow, error) {
	var out []VolumeStatRow
	q := `SELECT run_id,tick,volume_id,cells,residents,min_temperature,max_temperature,mean_temperature,mean_density,exchanges,cooler_initiations
		FROM volume_stats WHERE run_id=? AND (?='' OR volume_id=?) ORDER BY tick DESC, volume_id LIMIT ?`
	err := r.db.SelectContext(ctx, &out, q, runID, volumeID, volumeID, limit)
	return out, err
}

func (r *Reader) Audits(ctx context.Context, runID, body string, limit int) ([]AuditRow, error) {
	var out []AuditRow
	q := `SELECT run_id,tick,seq,body,action,volume FROM audits WHERE run_id=? AND (?='' OR body=?) ORDER BY tick DESC, seq DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &out, q, runID, body, body, limit)
	return out, err
}

func (r *Reader) Frames(ctx context.Context, runID string, limit int) ([]FrameRow, error) {
	var out []FrameRow
	err := r.db.SelectContext(ctx, &out, `SELECT run_id,tick,path,bytes,volumes,cells,bodies FROM frames WHERE run_id=? ORDER BY tick DESC LIMIT ?`, runID, limit)
	return out, err
}
