package observer

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ashfall.game/internal/observerproto"
	"ashfall.game/internal/protocol"
	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/tuning"
	"ashfall.game/internal/sim/world"
)

func startTestServer(t *testing.T) (*httptest.Server, *world.World) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := world.New(world.Config{ID: "test", Seed: 7}, cats, tuning.Defaults())
	if err != nil {
		t.Fatalf("new world: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(cancel)

	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	srv := NewServer(w, cats, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/admin/v1/observer/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", srv.WSHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, w
}

func TestBootstrap(t *testing.T) {
	ts, w := startTestServer(t)

	resp, err := http.Get(ts.URL + "/admin/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.ProtocolVersion != observerproto.Version {
		t.Fatalf("protocol version = %q", boot.ProtocolVersion)
	}
	if boot.WorldID != "test" || boot.Seed != w.Seed() {
		t.Fatalf("bootstrap = %+v", boot)
	}
	if boot.Catalogs.ItemsDigest == "" {
		t.Fatalf("missing catalog digests")
	}
}

func dialObserver(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/admin/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) observerproto.StateMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var st observerproto.StateMsg
	if err := json.Unmarshal(msg, &st); err != nil {
		t.Fatalf("unmarshal %s: %v", msg, err)
	}
	return st
}

func TestSubscribe_StateOnVersionChange(t *testing.T) {
	ts, w := startTestServer(t)
	conn := dialObserver(t, ts)

	sub, _ := json.Marshal(observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		Subjects:        []string{"world", "bag"},
		PollIntervalMs:  100,
	})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	first := readState(t, conn)
	if first.Type != "STATE" || first.Version != 0 {
		t.Fatalf("first frame = %+v", first)
	}
	if first.Subjects["world"] == nil || first.Subjects["bag"] == nil {
		t.Fatalf("subjects missing: %v", first.Subjects)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := w.Do(ctx, protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ID:              "C1",
		Op:              protocol.OpExplore,
		SiteID:          1,
		BattleWon:       true,
	})
	if err != nil || !res.OK {
		t.Fatalf("explore: %v %+v", err, res)
	}

	next := readState(t, conn)
	if next.Version != res.Version {
		t.Fatalf("frame version = %d, want %d", next.Version, res.Version)
	}
}

func TestSubscribe_RejectsBadHandshake(t *testing.T) {
	ts, _ := startTestServer(t)
	conn := dialObserver(t, ts)

	sub, _ := json.Marshal(observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: "9.9",
	})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close on version mismatch")
	}
}

func TestNormalizeSubscribe(t *testing.T) {
	sub := observerproto.SubscribeMsg{Subjects: []string{"bag", "chunk", ""}}
	normalizeSubscribe(&sub)
	if len(sub.Subjects) != 1 || sub.Subjects[0] != "bag" {
		t.Fatalf("subjects = %v", sub.Subjects)
	}
	if sub.PollIntervalMs != 500 {
		t.Fatalf("default interval = %d", sub.PollIntervalMs)
	}

	sub = observerproto.SubscribeMsg{PollIntervalMs: 99999}
	normalizeSubscribe(&sub)
	if sub.Subjects[0] != "world" || sub.PollIntervalMs != 5000 {
		t.Fatalf("clamp = %+v", sub)
	}
}
