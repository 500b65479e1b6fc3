package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxeltherm/internal/metrics"
	persistlog "voxeltherm/internal/persistence/log"
	"voxeltherm/internal/persistence/snapshot"
	"voxeltherm/internal/sim/lattice"
	"voxeltherm/internal/sim/scene"
	"voxeltherm/internal/sim/tuning"
	"voxeltherm/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		volumesPath = flag.String("volumes", "", "path to volumes.yaml (default: <configs>/volumes.yaml)")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit/frame metadata)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	vp := strings.TrimSpace(*volumesPath)
	if vp == "" {
		vp = filepath.Join(*configDir, "volumes.yaml")
	}
	cfg, err := scene.Load(vp)
	if err != nil {
		logger.Fatalf("load volumes: %v", err)
	}

	sc, err := scene.New(cfg, tune, log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("scene: %v", err)
	}
	runDir := filepath.Join(*dataDir, "runs", sc.RunID())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		logger.Fatalf("run dir: %v", err)
	}
	logger.Printf("run %s: %s", sc.RunID(), sc)

	// Optional read-model index (does not affect sim determinism).
	idx, err := openIndex(*dataDir, sc.RunID(), tune.IndexQueue, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := idx.RecordRun(ctx, time.Now(), tune, cfg, len(sc.Volumes()), len(sc.Bodies())); err != nil {
			logger.Printf("index: record run: %v", err)
		}
		cancel()
	}

	tickLog := persistlog.NewTickLogger(runDir)
	auditLog := persistlog.NewAuditLogger(runDir)
	defer tickLog.Close()
	defer auditLog.Close()
	tl := multiTickLogger{a: tickLog}
	al := multiAuditLogger{a: auditLog}
	if idx != nil {
		tl.b, al.b = idx, idx
	}
	sc.SetTickLogger(tl)
	sc.SetAuditLogger(al)

	ctx, cancel := signalContext()
	defer cancel()

	// Frame dump writer.
	frameCh := make(chan snapshot.FrameV1, 2)
	sc.SetFrameSink(frameCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-frameCh:
				path := filepath.Join(runDir, "frames", snapshot.FileName(f.Header.Tick))
				if err := snapshot.WriteFrame(path, f); err != nil {
					logger.Printf("frame write: %v", err)
					continue
				}
				if idx == nil {
					continue
				}
				var size int64
				if st, err := os.Stat(path); err == nil {
					size = st.Size()
				}
				idx.RecordFrame(path, size, f)
			}
		}
	}()

	go func() {
		if err := sc.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("scene stopped: %v", err)
		}
	}()

	obsSrv := observer.NewServer(sc, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var indexSrc metrics.IndexSource
	if idx != nil {
		indexSrc = idx
	}
	reg.MustRegister(metrics.New(sc, indexSrc, obsSrv))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if envBool("VT_ENABLE_ADMIN_HTTP", true) {
		// Local-only.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(stateResponse(sc))
		})
	} else {
		logger.Printf("admin endpoints disabled (VT_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("VT_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

type adminState struct {
	RunID   string        `json:"run_id"`
	Tick    uint64        `json:"tick"`
	Metrics scene.Metrics `json:"metrics"`
	Extent  lattice.Box   `json:"extent"`
}

func stateResponse(sc *scene.Scene) adminState {
	return adminState{
		RunID:   sc.RunID(),
		Tick:    sc.CurrentTick(),
		Metrics: sc.Metrics(),
		Extent:  sc.Extent(),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiTickLogger struct {
	a scene.TickLogger
	b scene.TickLogger
}

func (m multiTickLogger) WriteTick(entry scene.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a scene.AuditLogger
	b scene.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry scene.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
