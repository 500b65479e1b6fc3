package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to update
// settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Volumes limits the stream to these volume ids. Empty means all volumes.
	Volumes []string `json:"volumes,omitempty"`
	// Every sends one frame per Every simulation ticks.
	Every int `json:"every,omitempty"`
	// Range, when set, adds a temperature level in [0, 1] to every cell.
	Range *[2]float64 `json:"range,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	RunID           string       `json:"run_id"`
	Tick            uint64       `json:"tick"`
	SceneParams     SceneParams  `json:"scene_params"`
	Volumes         []VolumeInfo `json:"volumes"`
}

type SceneParams struct {
	SimulationHz int        `json:"simulation_hz"`
	PhysicsHz    int        `json:"physics_hz"`
	FrameHz      int        `json:"frame_hz"`
	Gravity      [3]float64 `json:"gravity"`
}

type VolumeInfo struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	CellSize int        `json:"cell_size"`
	Min      [3]float64 `json:"min"`
	Max      [3]float64 `json:"max"`
	Cells    int        `json:"cells"`
}

// Server -> Client.
type FrameMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Volumes         []VolumeFrame `json:"volumes"`
	Bodies          []BodyState   `json:"bodies,omitempty"`
}

type VolumeFrame struct {
	ID       string      `json:"id"`
	CellSize int         `json:"cell_size"`
	Cells    []CellState `json:"cells"`
}

type CellState struct {
	Key         [3]int     `json:"key"`
	Temperature float64    `json:"temperature"`
	Density     float64    `json:"density"`
	Current     [3]float64 `json:"current"`
	Level       *float64   `json:"level,omitempty"`
}

type BodyState struct {
	ID          string     `json:"id"`
	Pos         [3]float64 `json:"pos"`
	Temperature float64    `json:"temperature"`
	Volume      string     `json:"volume,omitempty"`
}

// Level clamps t to r and maps it onto [0, 1]. A degenerate range maps everything to 0.
func Level(t float64, r [2]float64) float64 {
	lo, hi := r[0], r[1]
	if hi <= lo {
		return 0
	}
	if t < lo {
		t = lo
	}
	if t > hi {
		t = hi
	}
	return (t - lo) / (hi - lo)
}
