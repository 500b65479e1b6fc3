// Package scene runs a set of volumes and bodies from one loop goroutine.
package scene

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voxeltherm/internal/persistence/snapshot"
	"voxeltherm/internal/sim/entity"
	"voxeltherm/internal/sim/lattice"
	"voxeltherm/internal/sim/space"
	"voxeltherm/internal/sim/tuning"
	"voxeltherm/internal/sim/volume"
)

// Stepper is a volume as the scene drives it. *volume.Volume and *volume.BuoyantVolume both
// satisfy it.
type Stepper interface {
	ID() string
	Base() *volume.Volume
	SimulationStep()
	PhysicsStep()
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64         `json:"tick"`
	Volumes []volume.Stats `json:"volumes,omitempty"`
	Bodies  []BodySample   `json:"bodies,omitempty"`
	Digest  string         `json:"digest"`
}

type BodySample struct {
	ID          string     `json:"id"`
	Pos         [3]float64 `json:"pos"`
	Temperature float64    `json:"temperature"`
	Volume      string     `json:"volume,omitempty"`
}

// Audit actions.
const (
	ActionEnter = "ENTER"
	ActionExit  = "EXIT"
)

// AuditEntry records a body crossing a volume boundary.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Body   string `json:"body"`
	Action string `json:"action"`
	Volume string `json:"volume"`
}

type Scene struct {
	cfg  Config
	tune tuning.Tuning
	log  *log.Logger

	runID   string
	space   *space.Space
	volumes []Stepper
	bodies  []*entity.Body
	vents   []*entity.Vent
	gravity lattice.Vec3
	extent  lattice.Box

	physicsAcc int
	frameAcc   int
	physicsDt  float64

	tick atomic.Uint64

	// Optional sinks (may be nil).
	tickLogger  TickLogger
	auditLogger AuditLogger
	frameSink   chan<- snapshot.FrameV1

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string

	stop     chan struct{}
	stopOnce sync.Once

	lastStats []volume.Stats
	metrics   atomic.Pointer[Metrics]
}

// New builds every volume and body in cfg. Volumes are stepped in id order; water volumes
// get buoyancy.
func New(cfg Config, tune tuning.Tuning, logger *log.Logger) (*Scene, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := tune.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	volLog := log.New(logger.Writer(), "[volume] ", logger.Flags())

	s := &Scene{
		cfg:           cfg,
		tune:          tune,
		log:           log.New(logger.Writer(), "[scene] ", logger.Flags()),
		runID:         uuid.NewString(),
		space:         space.New(),
		gravity:       lattice.FromArray(tune.Gravity),
		physicsDt:     1 / float64(tune.PhysicsHz),
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
	}

	specs := slices.Clone(cfg.Volumes)
	slices.SortFunc(specs, func(a, b VolumeSpec) int { return strings.Compare(a.ID, b.ID) })
	for i, spec := range specs {
		vc := spec.VolumeConfig()
		if n := spec.TemperatureNoise; n != nil && n.Amplitude > 0 {
			vc.InitialTemperature = temperatureField(*n, spec.StartingTemperature)
		}
		var st Stepper
		if vc.Kind == volume.KindWater {
			bv, err := volume.NewBuoyant(vc, s.gravity, volLog)
			if err != nil {
				return nil, err
			}
			st = bv
		} else {
			v, err := volume.New(vc, volLog)
			if err != nil {
				return nil, err
			}
			st = v
		}
		if err := s.space.AddVolume(st.Base()); err != nil {
			return nil, err
		}
		s.volumes = append(s.volumes, st)

		b := st.Base().Bounds()
		if i == 0 {
			s.extent = b
		} else {
			s.extent = lattice.NewBox(
				lattice.V(math.Min(s.extent.Min.X, b.Min.X), math.Min(s.extent.Min.Y, b.Min.Y), math.Min(s.extent.Min.Z, b.Min.Z)),
				lattice.V(math.Max(s.extent.Max.X, b.Max.X), math.Max(s.extent.Max.Y, b.Max.Y), math.Max(s.extent.Max.Z, b.Max.Z)),
			)
		}
	}

	bodies := slices.Clone(cfg.Bodies)
	slices.SortFunc(bodies, func(a, b BodySpec) int { return strings.Compare(a.ID, b.ID) })
	for _, spec := range bodies {
		b := entity.New(spec.BodyConfig())
		s.bodies = append(s.bodies, b)
		if spec.Vent != nil {
			s.vents = append(s.vents, &entity.Vent{Body: b, Target: spec.Vent.Target, Rate: spec.Vent.Rate})
		}
	}
	s.publishMetrics(0, 0)
	return s, nil
}

func (s *Scene) SetTickLogger(l TickLogger)                   { s.tickLogger = l }
func (s *Scene) SetAuditLogger(l AuditLogger)                 { s.auditLogger = l }
func (s *Scene) SetFrameSink(ch chan<- snapshot.FrameV1)      { s.frameSink = ch }
func (s *Scene) ObserverJoin() chan<- ObserverJoinRequest     { return s.observerJoin }
func (s *Scene) ObserverSub() chan<- ObserverSubscribeRequest { return s.observerSub }
func (s *Scene) ObserverLeave() chan<- string                 { return s.observerLeave }

func (s *Scene) RunID() string          { return s.runID }
func (s *Scene) CurrentTick() uint64    { return s.tick.Load() }
func (s *Scene) Tuning() tuning.Tuning  { return s.tune }
func (s *Scene) Extent() lattice.Box    { return s.extent }
func (s *Scene) Space() *space.Space    { return s.space }
func (s *Scene) Volumes() []Stepper     { return slices.Clone(s.volumes) }
func (s *Scene) Bodies() []*entity.Body { return slices.Clone(s.bodies) }

func (s *Scene) Volume(id string) (*volume.Volume, bool) {
	for _, v := range s.volumes {
		if v.ID() == id {
			return v.Base(), true
		}
	}
	return nil, false
}

func (s *Scene) Body(id string) (*entity.Body, bool) {
	for _, b := range s.bodies {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}

func (s *Scene) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.tune.SimulationHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.observerJoin:
			s.handleObserverJoin(req)
		case req := <-s.observerSub:
			s.handleObserverSubscribe(req)
		case id := <-s.observerLeave:
			s.handleObserverLeave(id)
		case <-ticker.C:
			s.step()
		}
	}
}

// Stop ends Run. Later calls are no-ops.
func (s *Scene) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

// StepOnce advances the scene by a single tick with the same ordering as Run. It is meant for
// replays and tests.
func (s *Scene) StepOnce() (tick uint64, digest string) {
	tick = s.tick.Load()
	s.step()
	return tick, s.stateDigest(tick)
}

func (s *Scene) step() {
	start := time.Now()
	nowTick := s.tick.Load()

	// Fixed simulation step: diffusion then cooling, volumes in id order.
	for _, v := range s.volumes {
		v.SimulationStep()
	}

	s.physicsAcc += s.tune.PhysicsHz
	for s.physicsAcc >= s.tune.SimulationHz {
		s.physicsAcc -= s.tune.SimulationHz
		s.physicsStep(nowTick)
	}

	s.frameAcc += s.tune.FrameHz
	for s.frameAcc >= s.tune.SimulationHz {
		s.frameAcc -= s.tune.SimulationHz
		s.frameStep()
	}

	digest := s.stateDigest(nowTick)
	statsDue := s.tune.StatsEveryTicks > 0 && nowTick%uint64(s.tune.StatsEveryTicks) == 0
	if statsDue {
		s.lastStats = s.volumeStats()
	}
	if s.tickLogger != nil {
		entry := TickLogEntry{Tick: nowTick, Digest: digest}
		if statsDue {
			entry.Volumes = s.lastStats
			entry.Bodies = s.bodySamples()
		}
		_ = s.tickLogger.WriteTick(entry)
	}

	if s.frameSink != nil && s.tune.FrameEveryTicks > 0 && nowTick%uint64(s.tune.FrameEveryTicks) == 0 {
		select {
		case s.frameSink <- s.Snapshot():
		default:
			// Drop the frame if the sink is backed up.
		}
	}

	s.publishObservers(nowTick)
	s.publishMetrics(nowTick, time.Since(start))
	s.tick.Add(1)
}

// physicsStep assigns bodies to volumes, lets the volumes push forces and integrates bodies.
func (s *Scene) physicsStep(nowTick uint64) {
	entities := make([]volume.Entity, len(s.bodies))
	before := make([]string, len(s.bodies))
	for i, b := range s.bodies {
		entities[i] = b
		before[i], _ = s.space.Inside(b.ID())
	}
	s.space.DetectOverlaps(entities)
	for i, b := range s.bodies {
		after, _ := s.space.Inside(b.ID())
		if after == before[i] {
			continue
		}
		if before[i] != "" {
			s.audit(AuditEntry{Tick: nowTick, Body: b.ID(), Action: ActionExit, Volume: before[i]})
		}
		if after != "" {
			s.audit(AuditEntry{Tick: nowTick, Body: b.ID(), Action: ActionEnter, Volume: after})
		}
	}

	for _, v := range s.volumes {
		v.PhysicsStep()
	}
	for _, b := range s.bodies {
		b.Step(s.physicsDt, s.gravity)
		b.Confine(s.extent)
	}
}

// frameStep runs heat sources then body reconciliation.
func (s *Scene) frameStep() {
	for _, v := range s.vents {
		v.Update()
	}
	for _, b := range s.bodies {
		if !b.Alive() {
			continue
		}
		if err := b.Reconcile(); err != nil && !errors.Is(err, volume.ErrCoolerInitiator) {
			s.log.Printf("reconcile %s: %v", b.ID(), err)
		}
	}
}

func (s *Scene) audit(e AuditEntry) {
	if s.auditLogger == nil {
		return
	}
	if err := s.auditLogger.WriteAudit(e); err != nil {
		s.log.Printf("audit: %v", err)
	}
}

func (s *Scene) volumeStats() []volume.Stats {
	out := make([]volume.Stats, 0, len(s.volumes))
	for _, v := range s.volumes {
		out = append(out, v.Base().Stats())
	}
	return out
}

func (s *Scene) bodySamples() []BodySample {
	out := make([]BodySample, 0, len(s.bodies))
	for _, b := range s.bodies {
		in, _ := s.space.Inside(b.ID())
		out = append(out, BodySample{ID: b.ID(), Pos: b.Position().Array(), Temperature: b.Temperature(), Volume: in})
	}
	return out
}

// Snapshot copies the full scene state. Call it from the loop goroutine or while the scene is
// not running.
func (s *Scene) Snapshot() snapshot.FrameV1 {
	f := snapshot.FrameV1{
		Header:       snapshot.Header{Version: snapshot.Version, RunID: s.runID, Tick: s.tick.Load()},
		SimulationHz: s.tune.SimulationHz,
		PhysicsHz:    s.tune.PhysicsHz,
		FrameHz:      s.tune.FrameHz,
		Gravity:      s.tune.Gravity,
	}
	for _, st := range s.volumes {
		vf := st.Base().Frame()
		vv := snapshot.VolumeV1{
			ID:       vf.ID,
			Kind:     string(vf.Kind),
			CellSize: vf.CellSize,
			Min:      vf.Bounds.Min.Array(),
			Max:      vf.Bounds.Max.Array(),
			Cells:    make([]snapshot.CellV1, 0, len(vf.Cells)),
		}
		for _, c := range vf.Cells {
			vv.Cells = append(vv.Cells, snapshot.CellV1{
				Key:         c.Key.Array(),
				Temperature: c.Temperature,
				Density:     c.Density,
				Current:     c.Current.Array(),
				Exchanges:   c.Exchanges,
			})
		}
		f.Volumes = append(f.Volumes, vv)
	}
	for _, b := range s.bodies {
		in, _ := s.space.Inside(b.ID())
		f.Bodies = append(f.Bodies, snapshot.BodyV1{
			ID:          b.ID(),
			Pos:         b.Position().Array(),
			Vel:         b.Velocity().Array(),
			Temperature: b.Temperature(),
			Density:     b.Density(),
			Volume:      in,
		})
	}
	return f
}

// stateDigest hashes every cell temperature and body state in iteration order.
func (s *Scene) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }

	putU64(nowTick)
	for _, st := range s.volumes {
		v := st.Base()
		h.Write([]byte(v.ID()))
		for _, k := range v.Keys() {
			c, _ := v.Cell(k)
			putU64(uint64(int64(k.X)))
			putU64(uint64(int64(k.Y)))
			putU64(uint64(int64(k.Z)))
			putF64(c.Temperature())
		}
	}
	for _, b := range s.bodies {
		h.Write([]byte(b.ID()))
		p := b.Position()
		putF64(p.X)
		putF64(p.Y)
		putF64(p.Z)
		putF64(b.Temperature())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Scene) String() string {
	return fmt.Sprintf("scene %s (%d volumes, %d bodies)", s.runID, len(s.volumes), len(s.bodies))
}
