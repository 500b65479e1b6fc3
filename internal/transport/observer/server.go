package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxeltherm/internal/observerproto"
	"voxeltherm/internal/sim/scene"
)

// Scene is the part of *scene.Scene the observer server talks to.
type Scene interface {
	Bootstrap() observerproto.BootstrapResponse
	ObserverJoin() chan<- scene.ObserverJoinRequest
	ObserverSub() chan<- scene.ObserverSubscribeRequest
	ObserverLeave() chan<- string
}

const maxEvery = 600

type Server struct {
	scene Scene
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	sessions atomic.Int64
}

func NewServer(sc Scene, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		scene: sc,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Sessions is the number of connected observers.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.scene.Bootstrap())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 8)

		joinReq := scene.ObserverJoinRequest{
			SessionID: sid,
			Out:       out,
			Volumes:   sub.Volumes,
			Every:     sub.Every,
			Range:     sub.Range,
		}
		select {
		case s.scene.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		s.sessions.Add(1)
		s.log.Printf("observer %s joined from %s (volumes=%v every=%d)", sid, r.RemoteAddr, sub.Volumes, sub.Every)
		defer func() {
			s.sessions.Add(-1)
			select {
			case s.scene.ObserverLeave() <- sid:
			default:
				// Scene loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := parseSubscribe(msg)
			if !ok {
				continue
			}
			req := scene.ObserverSubscribeRequest{
				SessionID: sid,
				Volumes:   sub.Volumes,
				Every:     sub.Every,
				Range:     sub.Range,
			}
			select {
			case s.scene.ObserverSub() <- req:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.Every <= 0 {
		sub.Every = 1
	}
	if sub.Every > maxEvery {
		sub.Every = maxEvery
	}
	ids := sub.Volumes[:0]
	for _, id := range sub.Volumes {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	sub.Volumes = ids
	if sub.Range != nil && sub.Range[1] <= sub.Range[0] {
		sub.Range = nil
	}
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
