package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ashfall.game/internal/observerproto"
	"ashfall.game/internal/protocol"
	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/world"
)

// Server is a loopback-only, read-only feed for local UIs and debugging
// tools. Observers never mutate the world: every frame is built from QUERY
// commands, which don't bump the version or reach the audit log.
type Server struct {
	world *world.World
	cats  *catalogs.Catalogs
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, cats *catalogs.Catalogs, logger *log.Logger) *Server {
	return &Server{
		world: w,
		cats:  cats,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

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

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         s.world.ID(),
			Seed:            s.world.Seed(),
			Version:         s.world.Seq(),
			Catalogs: protocol.CatalogDigests{
				ItemsDigest:       s.cats.Items.Digest,
				SitesDigest:       s.cats.Sites.Digest,
				NPCsDigest:        s.cats.NPCs.Digest,
				SecretRoomsDigest: s.cats.SecretRooms.Digest,
				MonstersDigest:    s.cats.Monsters.Digest,
			},
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
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
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		normalizeSubscribe(&sub)

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 8)
		subUpdates := make(chan observerproto.SubscribeMsg, 1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Poller goroutine: watches the version counter and builds frames.
		go s.poll(ctx, sid, sub, subUpdates, out)

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
			var upd observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &upd); err != nil {
				continue
			}
			if upd.Type != "SUBSCRIBE" || upd.ProtocolVersion != observerproto.Version {
				continue
			}
			normalizeSubscribe(&upd)
			select {
			case subUpdates <- upd:
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

// poll sends one frame right away, then one frame each time the version
// counter moves. Frames that can't be queued are dropped; the next version
// change produces a fresh one.
func (s *Server) poll(ctx context.Context, sid string, sub observerproto.SubscribeMsg, subUpdates <-chan observerproto.SubscribeMsg, out chan<- []byte) {
	defer close(out)

	ticker := time.NewTicker(time.Duration(sub.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	var cmdN uint64
	var lastSent uint64
	sent := false

	emit := func() {
		ver := s.world.Seq()
		if sent && ver == lastSent {
			return
		}
		subjects := make(map[string]map[string]any, len(sub.Subjects))
		for _, subject := range sub.Subjects {
			cmdN++
			res, err := s.world.Do(ctx, protocol.CmdMsg{
				Type:            protocol.TypeCmd,
				ProtocolVersion: protocol.Version,
				ID:              fmt.Sprintf("%s-%d", sid, cmdN),
				Op:              protocol.OpQuery,
				Subject:         subject,
			})
			if err != nil {
				return
			}
			if res.OK {
				subjects[subject] = res.Data
			}
		}
		b, err := json.Marshal(observerproto.StateMsg{
			Type:            protocol.TypeState,
			ProtocolVersion: observerproto.Version,
			Version:         ver,
			Subjects:        subjects,
		})
		if err != nil {
			return
		}
		select {
		case out <- b:
			lastSent, sent = ver, true
		default:
		}
	}

	emit()
	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-subUpdates:
			sub = upd
			ticker.Reset(time.Duration(sub.PollIntervalMs) * time.Millisecond)
			sent = false
			emit()
		case <-ticker.C:
			emit()
		}
	}
}

var allowedSubjects = map[string]bool{
	"world": true, "bag": true, "home": true,
	"safe": true, "sites": true, "npcs": true,
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	var subjects []string
	for _, s := range sub.Subjects {
		if allowedSubjects[s] {
			subjects = append(subjects, s)
		}
	}
	if len(subjects) == 0 {
		subjects = []string{"world"}
	}
	sub.Subjects = subjects

	if sub.PollIntervalMs <= 0 {
		sub.PollIntervalMs = 500
	}
	if sub.PollIntervalMs < 100 {
		sub.PollIntervalMs = 100
	}
	if sub.PollIntervalMs > 5000 {
		sub.PollIntervalMs = 5000
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
