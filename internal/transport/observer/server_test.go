package observer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxeltherm/internal/observerproto"
	"voxeltherm/internal/sim/scene"
	"voxeltherm/internal/sim/tuning"
)

func startScene(t *testing.T) (*scene.Scene, *httptest.Server) {
	t.Helper()
	cfg, err := scene.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tune := tuning.Defaults()
	tune.SimulationHz = 50
	sc, err := scene.New(cfg, tune, nil)
	if err != nil {
		t.Fatalf("new scene: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sc.Run(ctx)
	}()

	srv := NewServer(sc, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", srv.WSHandler())
	hs := httptest.NewServer(mux)
	t.Cleanup(func() {
		hs.Close()
		cancel()
		<-done
	})
	return sc, hs
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServer_Bootstrap(t *testing.T) {
	sc, hs := startScene(t)
	resp, err := http.Get(hs.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.RunID != sc.RunID() || len(boot.Volumes) != 2 || boot.SceneParams.SimulationHz != 50 {
		t.Fatalf("bootstrap: %+v", boot)
	}

	post, err := http.Post(hs.URL+"/v1/observer/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("post status: %d", post.StatusCode)
	}
}

func TestServer_StreamsFramesAfterSubscribe(t *testing.T) {
	_, hs := startScene(t)
	conn := dial(t, hs)

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Volumes:         []string{"pond"},
		Range:           &[2]float64{0, 50},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame observerproto.FrameMsg
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != observerproto.TypeFrame || len(frame.Volumes) != 1 || frame.Volumes[0].ID != "pond" {
		t.Fatalf("frame: type=%s volumes=%d", frame.Type, len(frame.Volumes))
	}
	if c := frame.Volumes[0].Cells[0]; c.Level == nil {
		t.Fatalf("expected levels with a range")
	}

	// Widen the subscription; a later frame carries both volumes.
	sub.Volumes = nil
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(frame.Volumes) == 2 {
			return
		}
	}
	t.Fatalf("subscription update never applied")
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	_, hs := startScene(t)
	conn := dial(t, hs)
	if err := conn.WriteJSON(map[string]string{"type": "HELLO", "protocol_version": observerproto.Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestNormalizeSubscribe(t *testing.T) {
	sub := observerproto.SubscribeMsg{Every: 10000, Volumes: []string{" air ", "", "pond"}, Range: &[2]float64{5, 5}}
	normalizeSubscribe(&sub)
	if sub.Every != maxEvery || sub.Range != nil {
		t.Fatalf("got %+v", sub)
	}
	if len(sub.Volumes) != 2 || sub.Volumes[0] != "air" || sub.Volumes[1] != "pond" {
		t.Fatalf("volumes: %q", sub.Volumes)
	}
	sub = observerproto.SubscribeMsg{}
	normalizeSubscribe(&sub)
	if sub.Every != 1 {
		t.Fatalf("default every: %d", sub.Every)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"example.com:80": false,
		"":               false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%q: got %v want %v", addr, got, want)
		}
	}
}
