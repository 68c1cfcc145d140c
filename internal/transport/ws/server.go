package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ashfall.game/internal/protocol"
	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/world"
)

type Server struct {
	world *world.World
	cats  *catalogs.Catalogs
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, cats *catalogs.Catalogs, logger *log.Logger) *Server {
	return &Server{
		world: w,
		cats:  cats,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Handler upgrades the connection, runs the HELLO/WELCOME handshake, then
// serves CMD frames one at a time: every CMD gets exactly one RESULT with a
// matching ref, in order.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := s.handshake(conn)
		if sessionID == "" {
			return
		}

		out := make(chan []byte, 16)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, open := <-out:
					if !open {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(300 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCmd {
				continue
			}
			var cmd protocol.CmdMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				continue
			}

			var res protocol.ResultMsg
			if cmd.ProtocolVersion != protocol.Version {
				res = protocol.ResultMsg{
					Type:    protocol.TypeResult,
					Ref:     cmd.ID,
					OK:      false,
					Code:    protocol.ErrProtoBadRequest,
					Message: "bad protocol_version",
				}
			} else {
				res, err = s.world.Do(ctx, cmd)
				if err != nil {
					return
				}
			}

			b, err := json.Marshal(res)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"),
			time.Now().Add(time.Second))
		return ""
	}

	sessionID := newSessionID()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
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
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	return sessionID
}

func newSessionID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "S00000000"
	}
	return "S" + hex.EncodeToString(b[:])
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
