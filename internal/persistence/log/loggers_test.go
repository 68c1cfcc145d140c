package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"ashfall.game/internal/sim/world"
)

func TestAuditLogger_WritesReadableJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	entries := []world.AuditEntry{
		{Seq: 1, Op: "EXPLORE", OK: true, SiteID: 1},
		{Seq: 2, Op: "TRADE_COMMIT", OK: false, Code: "E_BAD_TRADE", NPCID: 1},
	}
	for _, e := range entries {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "audit", "audit-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("audit files = %v, %v", files, err)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var got []world.AuditEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e world.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("lines = %d, want 2", len(got))
	}
	if got[0].Op != "EXPLORE" || !got[0].OK {
		t.Fatalf("first line = %+v", got[0])
	}
	if got[1].Code != "E_BAD_TRADE" || got[1].NPCID != 1 {
		t.Fatalf("second line = %+v", got[1])
	}
}
