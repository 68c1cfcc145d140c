package site

import (
	"ashfall.game/internal/persistence/snapshot"
	"ashfall.game/internal/sim/catalogs"
)

type RoomType string

const (
	RoomBattle RoomType = "battle"
	RoomWork   RoomType = "work"
)

// Room is one explorable unit of a Site. Immutable once generated; consumed
// exactly once when the site step passes it.
type Room struct {
	Type RoomType

	// Battle rooms.
	Monsters   []string
	Difficulty int

	// Work rooms. Loot is rolled against the produce budget on successful
	// completion; FixedLoot is deposited as-is.
	WorkType     int
	ProduceValue int
	ProduceList  []catalogs.ProduceEntry
	FixedLoot    []string
}

func roomToV1(r Room) snapshot.RoomV1 {
	v := snapshot.RoomV1{
		Type:         string(r.Type),
		Monsters:     append([]string(nil), r.Monsters...),
		Difficulty:   r.Difficulty,
		WorkType:     r.WorkType,
		ProduceValue: r.ProduceValue,
		FixedLoot:    append([]string(nil), r.FixedLoot...),
	}
	for _, e := range r.ProduceList {
		v.ProduceList = append(v.ProduceList, snapshot.ProduceEntryV1{ItemID: e.ItemID, Weight: e.Weight})
	}
	return v
}

func roomFromV1(v snapshot.RoomV1) Room {
	r := Room{
		Type:         RoomType(v.Type),
		Monsters:     append([]string(nil), v.Monsters...),
		Difficulty:   v.Difficulty,
		WorkType:     v.WorkType,
		ProduceValue: v.ProduceValue,
		FixedLoot:    append([]string(nil), v.FixedLoot...),
	}
	for _, e := range v.ProduceList {
		r.ProduceList = append(r.ProduceList, catalogs.ProduceEntry{ItemID: e.ItemID, Weight: e.Weight})
	}
	return r
}

func roomsToV1(rooms []Room) []snapshot.RoomV1 {
	out := make([]snapshot.RoomV1, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomToV1(r))
	}
	return out
}

func roomsFromV1(rooms []snapshot.RoomV1) []Room {
	out := make([]Room, 0, len(rooms))
	for _, v := range rooms {
		out = append(out, roomFromV1(v))
	}
	return out
}
