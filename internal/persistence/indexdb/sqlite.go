package indexdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"voxeltherm/internal/persistence/snapshot"
	"voxeltherm/internal/sim/scene"
)

// SQLiteIndex is a secondary, queryable index of one run. Writes are queued to a single
// writer goroutine and dropped when the queue is full; the JSONL logs and frame dumps remain
// the source of truth.
type SQLiteIndex struct {
	db    *sqlx.DB
	runID string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropAudit atomic.Uint64
	dropFrame atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqFrame
)

type req struct {
	kind reqKind

	tick  scene.TickLogEntry
	audit scene.AuditEntry
	frame FrameRow
}

// Stats reports queue pressure for metrics.
type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropTickTotal  uint64
	DropAuditTotal uint64
	DropFrameTotal uint64
}

// OpenSQLite opens (or creates) the index at path. Rows written through the returned index
// belong to runID. queue is the writer queue length; 0 picks a default.
func OpenSQLite(path, runID string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if queue <= 0 {
		queue = 1024
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		ch:    make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func open(path string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			volumes INTEGER NOT NULL,
			bodies INTEGER NOT NULL,
			tuning_json TEXT NOT NULL,
			scene_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS volume_stats (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			volume_id TEXT NOT NULL,
			cells INTEGER NOT NULL,
			residents INTEGER NOT NULL,
			min_temperature REAL NOT NULL,
			max_temperature REAL NOT NULL,
			mean_temperature REAL NOT NULL,
			mean_density REAL NOT NULL,
			exchanges INTEGER NOT NULL,
			cooler_initiations INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick, volume_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_volume_stats_volume ON volume_stats(run_id, volume_id, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			body TEXT NOT NULL,
			action TEXT NOT NULL,
			volume TEXT NOT NULL,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_body ON audits(run_id, body, tick);`,
		`CREATE TABLE IF NOT EXISTS frames (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			volumes INTEGER NOT NULL,
			cells INTEGER NOT NULL,
			bodies INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropAuditTotal: s.dropAudit.Load(),
		DropFrameTotal: s.dropFrame.Load(),
	}
}

// RecordRun stores the run header synchronously. It is called once at startup.
func (s *SQLiteIndex) RecordRun(ctx context.Context, startedAt time.Time, tune, cfg any, volumes, bodies int) error {
	if s == nil {
		return nil
	}
	tb, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	cb, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs(run_id,started_at,volumes,bodies,tuning_json,scene_json) VALUES(?,?,?,?,?,?)`,
		s.runID, startedAt.UTC().Format(time.RFC3339Nano), volumes, bodies, string(tb), string(cb),
	)
	return err
}

func (s *SQLiteIndex) WriteTick(entry scene.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry scene.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

// RecordFrame indexes a frame dump written to path.
func (s *SQLiteIndex) RecordFrame(path string, size int64, f snapshot.FrameV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := FrameRow{
		RunID:   s.runID,
		Tick:    int64(f.Header.Tick),
		Path:    path,
		Bytes:   size,
		Volumes: len(f.Volumes),
		Bodies:  len(f.Bodies),
	}
	for _, v := range f.Volumes {
		r.Cells += len(v.Cells)
	}
	select {
	case s.ch <- req{kind: reqFrame, frame: r}:
	default:
		s.dropFrame.Add(1)
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Preparex(`INSERT OR REPLACE INTO ticks(run_id,tick,digest) VALUES(?,?,?)`)
	insertStats, _ := s.db.PrepareNamed(`INSERT OR REPLACE INTO volume_stats(run_id,tick,volume_id,cells,residents,min_temperature,max_temperature,mean_temperature,mean_density,exchanges,cooler_initiations)
		VALUES(:run_id,:tick,:volume_id,:cells,:residents,:min_temperature,:max_temperature,:mean_temperature,:mean_density,:exchanges,:cooler_initiations)`)
	insertAudit, _ := s.db.Preparex(`INSERT OR REPLACE INTO audits(run_id,tick,seq,body,action,volume) VALUES(?,?,?,?,?,?)`)
	insertFrame, _ := s.db.PrepareNamed(`INSERT OR REPLACE INTO frames(run_id,tick,path,bytes,volumes,cells,bodies) VALUES(:run_id,:tick,:path,:bytes,:volumes,:cells,:bodies)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertStats != nil {
			_ = insertStats.Close()
		}
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if insertFrame != nil {
			_ = insertFrame.Close()
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertTick != nil {
				if _, err := tx.Stmtx(insertTick).Exec(s.runID, int64(r.tick.Tick), r.tick.Digest); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for _, vs := range r.tick.Volumes {
				if insertStats == nil {
					break
				}
				row := volumeStatRow(s.runID, r.tick.Tick, vs)
				if _, err := tx.NamedStmt(insertStats).Exec(row); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			if insertAudit != nil {
				if _, err := tx.Stmtx(insertAudit).Exec(s.runID, int64(a.Tick), seq, a.Body, a.Action, a.Volume); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqFrame:
			if insertFrame != nil {
				if _, err := tx.NamedStmt(insertFrame).Exec(r.frame); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
