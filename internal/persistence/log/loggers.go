package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxeltherm/internal/sim/scene"
)

// Rotation layouts for JSONLZstdWriter file names.
const (
	RotateHourly = "2006-01-02-15"
	RotateDaily  = "2006-01-02"
)

// JSONLZstdWriter appends JSON lines to zstd files under baseDir, starting a new file
// whenever the rotation layout formats the current UTC time differently.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	layout  string
	now     func() time.Time

	mu     sync.Mutex
	curKey string
	lines  uint64
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return NewJSONLZstdWriterLayout(baseDir, prefix, RotateHourly)
}

func NewJSONLZstdWriterLayout(baseDir, prefix, layout string) *JSONLZstdWriter {
	if layout == "" {
		layout = RotateHourly
	}
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		layout:  layout,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Lines is the number of entries written since creation.
func (w *JSONLZstdWriter) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	key := w.now().UTC().Format(w.layout)
	if key != w.curKey || w.w == nil {
		if err := w.rotateLocked(key); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(key string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curKey = key
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathFor(key string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, key))
}

// TickLogger writes one JSONL entry per simulation tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(runDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(v scene.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes membership transitions as JSONL entries (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(runDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v scene.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
