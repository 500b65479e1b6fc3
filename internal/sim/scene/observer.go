package scene

import (
	"encoding/json"
	"slices"

	"voxeltherm/internal/observerproto"
)

// ObserverJoinRequest registers a read-only observer session. Frames are delivered on Out
// with "send latest" semantics. All observer state is owned by the loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte

	Volumes []string
	Every   int
	Range   *[2]float64
}

// ObserverSubscribeRequest updates an existing session.
type ObserverSubscribeRequest struct {
	SessionID string

	Volumes []string
	Every   int
	Range   *[2]float64
}

type observerClient struct {
	id  string
	out chan []byte
	cfg observerCfg
}

type observerCfg struct {
	volumes []string
	every   uint64
	rng     *[2]float64
}

func newObserverCfg(volumes []string, every int, rng *[2]float64) observerCfg {
	cfg := observerCfg{volumes: slices.Clone(volumes), every: 1}
	if every > 0 {
		cfg.every = uint64(every)
	}
	if rng != nil {
		r := *rng
		cfg.rng = &r
	}
	return cfg
}

func (c observerCfg) wants(id string) bool {
	return len(c.volumes) == 0 || slices.Contains(c.volumes, id)
}

func (s *Scene) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	s.observers[req.SessionID] = &observerClient{
		id:  req.SessionID,
		out: req.Out,
		cfg: newObserverCfg(req.Volumes, req.Every, req.Range),
	}
}

func (s *Scene) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := s.observers[req.SessionID]
	if c == nil {
		return
	}
	c.cfg = newObserverCfg(req.Volumes, req.Every, req.Range)
}

func (s *Scene) handleObserverLeave(id string) {
	delete(s.observers, id)
}

func (s *Scene) publishObservers(nowTick uint64) {
	if len(s.observers) == 0 {
		return
	}
	for _, c := range s.observers {
		if nowTick%c.cfg.every != 0 {
			continue
		}
		b, err := json.Marshal(s.FrameMsg(nowTick, c.cfg.volumes, c.cfg.rng))
		if err != nil {
			continue
		}
		sendLatest(c.out, b)
	}
}

// FrameMsg builds the observer frame for the given volumes (all when empty). When rng is set
// each cell carries its temperature level within rng.
func (s *Scene) FrameMsg(tick uint64, volumes []string, rng *[2]float64) observerproto.FrameMsg {
	cfg := observerCfg{volumes: volumes, rng: rng}
	msg := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
	}
	for _, st := range s.volumes {
		if !cfg.wants(st.ID()) {
			continue
		}
		f := st.Base().Frame()
		vf := observerproto.VolumeFrame{
			ID:       f.ID,
			CellSize: f.CellSize,
			Cells:    make([]observerproto.CellState, 0, len(f.Cells)),
		}
		for _, c := range f.Cells {
			cs := observerproto.CellState{
				Key:         c.Key.Array(),
				Temperature: c.Temperature,
				Density:     c.Density,
				Current:     c.Current.Array(),
			}
			if cfg.rng != nil {
				lvl := observerproto.Level(c.Temperature, *cfg.rng)
				cs.Level = &lvl
			}
			vf.Cells = append(vf.Cells, cs)
		}
		msg.Volumes = append(msg.Volumes, vf)
	}
	for _, b := range s.bodies {
		in, _ := s.space.Inside(b.ID())
		if in != "" && !cfg.wants(in) {
			continue
		}
		msg.Bodies = append(msg.Bodies, observerproto.BodyState{
			ID:          b.ID(),
			Pos:         b.Position().Array(),
			Temperature: b.Temperature(),
			Volume:      in,
		})
	}
	return msg
}

// Bootstrap describes the static scene layout. It is safe to call from any goroutine.
func (s *Scene) Bootstrap() observerproto.BootstrapResponse {
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		RunID:           s.runID,
		Tick:            s.tick.Load(),
		SceneParams: observerproto.SceneParams{
			SimulationHz: s.tune.SimulationHz,
			PhysicsHz:    s.tune.PhysicsHz,
			FrameHz:      s.tune.FrameHz,
			Gravity:      s.tune.Gravity,
		},
	}
	for _, st := range s.volumes {
		v := st.Base()
		resp.Volumes = append(resp.Volumes, observerproto.VolumeInfo{
			ID:       v.ID(),
			Kind:     string(v.Kind()),
			CellSize: v.CellSize(),
			Min:      v.Bounds().Min.Array(),
			Max:      v.Bounds().Max.Array(),
			Cells:    v.Len(),
		})
	}
	return resp
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
