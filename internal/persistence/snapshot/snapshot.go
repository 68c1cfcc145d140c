package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Seq     uint64 `json:"seq"`
}

// SnapshotV1 is the whole-world save record. Every field is a plain
// serializable value; schema validation and migration belong to the caller.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed        int64  `json:"seed"`
	WorldSeq    uint64 `json:"world_seq"`
	ItemsDigest string `json:"items_digest,omitempty"`

	SafeBuilt bool  `json:"safe_built"`
	Unlocked  []int `json:"unlocked_sites,omitempty"`

	Bag  map[string]int `json:"bag"`
	Home map[string]int `json:"home"`
	Safe map[string]int `json:"safe"`

	Sites []SiteV1 `json:"sites"`
	NPCs  []NPCV1  `json:"npcs"`
}

type RoomV1 struct {
	Type       string   `json:"type"`
	Monsters   []string `json:"monsters,omitempty"`
	Difficulty int      `json:"difficulty,omitempty"`
	WorkType   int      `json:"work_type,omitempty"`

	ProduceValue int              `json:"produce_value,omitempty"`
	ProduceList  []ProduceEntryV1 `json:"produce_list,omitempty"`
	FixedLoot    []string         `json:"fixed_loot,omitempty"`
}

type ProduceEntryV1 struct {
	ItemID string `json:"item_id"`
	Weight int    `json:"weight"`
}

type SiteV1 struct {
	ID      int            `json:"id"`
	Pos     [2]int         `json:"pos"`
	Step    int            `json:"step"`
	Rooms   []RoomV1       `json:"rooms"`
	Storage map[string]int `json:"storage"`

	SecretRoomType    int      `json:"secret_room_type,omitempty"`
	SecretShowedCount int      `json:"secret_showed_count"`
	SecretEntryShown  bool     `json:"secret_entry_shown"`
	InSecretRooms     bool     `json:"in_secret_rooms"`
	SecretRooms       []RoomV1 `json:"secret_rooms,omitempty"`
	SecretStep        int      `json:"secret_step"`

	Closed       bool `json:"closed"`
	UnderAttack  bool `json:"under_attack"`
	HaveNewItems bool `json:"have_new_items"`
}

type NPCV1 struct {
	ID           int             `json:"id"`
	Pos          [2]int          `json:"pos"`
	Reputation   int             `json:"reputation"`
	MaxRep       int             `json:"max_rep"`
	TradingCount int             `json:"trading_count"`
	Alert        int             `json:"alert"`
	Storage      map[string]int  `json:"storage"`
	SentGifts    []int           `json:"sent_gifts,omitempty"`
	StealLog     []StealLogV1    `json:"steal_log,omitempty"`
	PendingGifts []PendingGiftV1 `json:"pending_gifts,omitempty"`
}

type StealLogV1 struct {
	Day    int    `json:"day"`
	ItemID string `json:"item_id"`
	Num    int    `json:"num"`
	Caught bool   `json:"caught"`
}

type PendingGiftV1 struct {
	ItemID string `json:"item_id,omitempty"`
	Num    int    `json:"num,omitempty"`
	SiteID int    `json:"site_id,omitempty"`
}

func Write(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
