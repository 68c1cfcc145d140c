package site

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"ashfall.game/internal/persistence/snapshot"
	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/economy"
	"ashfall.game/internal/sim/inventory"
	"ashfall.game/internal/sim/tuning"
)

var (
	ErrSiteComplete   = errors.New("site already fully explored")
	ErrSiteClosed     = errors.New("site closed")
	ErrNoSecretEntry  = errors.New("no secret entry pending")
	ErrInSecretRooms  = errors.New("already inside secret rooms")
	ErrNotSecretEntry = errors.New("not at a secret entry decision")
)

// Site is the exploration state machine for one map location: a fixed room
// sequence walked front to back, an unlimited on-site stash, and an optional
// secret-room branch.
//
// All mutation happens on the world goroutine; Site itself is not safe for
// concurrent use.
type Site struct {
	ID      int
	Pos     [2]int
	Step    int
	Rooms   []Room
	Storage *inventory.Storage

	// Secret-room branch state. secretCfg is nil for sites without one.
	SecretRoomType    int
	SecretShowedCount int
	SecretEntryShown  bool
	InSecretRooms     bool
	SecretRooms       []Room
	SecretStep        int

	Closed       bool
	UnderAttack  bool
	HaveNewItems bool

	cfg       catalogs.SiteDef
	secretCfg *catalogs.SecretRoomsDef
	cats      *catalogs.Catalogs
	tun       tuning.Tuning
	gen       *economy.Generator
}

// AdvanceResult reports the observable outcome of one room advance.
type AdvanceResult struct {
	RoomType  RoomType
	Won       bool
	Deposited []string

	SecretEntryShown bool
	SiteCompleted    bool
	SecretCompleted  bool
	UnlockSites      []int
}

// New builds a site from its catalog definition. Rooms are not generated yet;
// call Init (fresh world) or Restore (from a snapshot).
func New(id int, cats *catalogs.Catalogs, tun tuning.Tuning, gen *economy.Generator, rng *rand.Rand) (*Site, error) {
	cfg, ok := cats.Sites.ByID[id]
	if !ok {
		return nil, fmt.Errorf("site %d: no catalog entry", id)
	}
	s := &Site{
		ID:      id,
		Pos:     cfg.Coordinate,
		Storage: inventory.New(fmt.Sprintf("site_%d", id), &cats.Items, tun),
		cfg:     cfg,
		cats:    cats,
		tun:     tun,
		gen:     gen,
	}
	if cfg.SecretRoomsID != 0 {
		sc, ok := cats.SecretRooms.ByID[cfg.SecretRoomsID]
		if !ok {
			return nil, fmt.Errorf("site %d: secret rooms config %d not found", id, cfg.SecretRoomsID)
		}
		s.secretCfg = &sc
		s.SecretRoomType = rng.IntN(tun.SecretWorkRoomTypes)
	}
	return s, nil
}

// Init generates the room sequence for a fresh site.
func (s *Site) Init(rng *rand.Rand) {
	s.Rooms = s.genRooms(rng)
	s.Step = 0
}

func randRange(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// monsterPack picks one candidate pack for the difficulty tier. Missing tiers
// yield no pack; the battle room is skipped, matching the content set's own
// gaps.
func (s *Site) monsterPack(rng *rand.Rand, difficulty int) ([]string, bool) {
	packs := s.cats.Monsters.ByDifficulty[difficulty]
	if len(packs) == 0 {
		return nil, false
	}
	return append([]string(nil), packs[rng.IntN(len(packs))]...), true
}

func (s *Site) genBattleRooms(rng *rand.Rand) []Room {
	rooms := make([]Room, 0, s.cfg.BattleRooms)
	for i := 0; i < s.cfg.BattleRooms; i++ {
		diff := randRange(rng, s.cfg.Difficulty[0], s.cfg.Difficulty[1])
		pack, ok := s.monsterPack(rng, diff)
		if !ok {
			continue
		}
		rooms = append(rooms, Room{Type: RoomBattle, Monsters: pack, Difficulty: diff})
	}
	return rooms
}

func (s *Site) genWorkRooms(rng *rand.Rand) []Room {
	rooms := make([]Room, 0, s.cfg.WorkRooms)
	for i := 0; i < s.cfg.WorkRooms; i++ {
		rooms = append(rooms, Room{
			Type:         RoomWork,
			WorkType:     rng.IntN(s.tun.WorkRoomTypes),
			ProduceValue: s.cfg.ProduceValue,
			ProduceList:  s.cfg.ProduceList,
		})
	}
	if len(rooms) > 0 && len(s.cfg.FixedProduceList) > 0 {
		// Fixed drops land in one random work room, expanded per unit.
		target := rng.IntN(len(rooms))
		for _, fd := range s.cfg.FixedProduceList {
			for n := 0; n < fd.Num; n++ {
				rooms[target].FixedLoot = append(rooms[target].FixedLoot, fd.ItemID)
			}
		}
	}
	return rooms
}

// genRooms orders the site: shuffled mix of battle and work rooms, with one
// work room held back for the final position so exploration always ends on a
// payoff when the site has any work rooms at all.
func (s *Site) genRooms(rng *rand.Rand) []Room {
	battle := s.genBattleRooms(rng)
	work := s.genWorkRooms(rng)

	var last *Room
	if len(work) > 0 {
		i := rng.IntN(len(work))
		r := work[i]
		work = append(work[:i], work[i+1:]...)
		last = &r
	}

	rooms := make([]Room, 0, len(battle)+len(work)+1)
	rooms = append(rooms, battle...)
	rooms = append(rooms, work...)
	rng.Shuffle(len(rooms), func(i, j int) { rooms[i], rooms[j] = rooms[j], rooms[i] })
	if last != nil {
		rooms = append(rooms, *last)
	}
	return rooms
}

// CurrentRoom returns the room the next advance will consume, honoring the
// secret branch when inside it.
func (s *Site) CurrentRoom() (Room, bool) {
	if s.InSecretRooms {
		if s.SecretStep >= len(s.SecretRooms) {
			return Room{}, false
		}
		return s.SecretRooms[s.SecretStep], true
	}
	if s.Step >= len(s.Rooms) {
		return Room{}, false
	}
	return s.Rooms[s.Step], true
}

// Advance consumes the current room. The step moves forward regardless of the
// battle outcome: a lost fight still spends the room. Work-room loot is rolled
// and deposited only on success; a roll error aborts the whole advance so no
// partial deposit is ever observed.
func (s *Site) Advance(rng *rand.Rand, won bool) (AdvanceResult, error) {
	if s.Closed {
		return AdvanceResult{}, ErrSiteClosed
	}
	if s.InSecretRooms {
		return s.advanceSecret(rng, won)
	}
	if s.Step >= len(s.Rooms) {
		return AdvanceResult{}, ErrSiteComplete
	}

	room := s.Rooms[s.Step]
	res := AdvanceResult{RoomType: room.Type, Won: won}

	if room.Type == RoomWork && won {
		loot, err := s.rollRoomLoot(rng, room)
		if err != nil {
			return AdvanceResult{}, err
		}
		s.depositLoot(loot)
		res.Deposited = loot
	}

	s.Step++
	if s.Step >= len(s.Rooms) {
		res.SiteCompleted = true
		res.UnlockSites = append([]int(nil), s.cfg.UnlockSites...)
	}

	if s.testSecretEntry(rng) {
		res.SecretEntryShown = true
	}
	return res, nil
}

func (s *Site) advanceSecret(rng *rand.Rand, won bool) (AdvanceResult, error) {
	if s.SecretStep >= len(s.SecretRooms) {
		return AdvanceResult{}, ErrSiteComplete
	}
	room := s.SecretRooms[s.SecretStep]
	res := AdvanceResult{RoomType: room.Type, Won: won}

	if room.Type == RoomWork && won {
		loot, err := s.rollRoomLoot(rng, room)
		if err != nil {
			return AdvanceResult{}, err
		}
		s.depositLoot(loot)
		res.Deposited = loot
	}

	s.SecretStep++
	if s.SecretStep >= len(s.SecretRooms) {
		// Exhausting the branch is an exit like any other: the discovery
		// counter jumps to its maximum and this site never offers another
		// entry.
		s.InSecretRooms = false
		res.SecretCompleted = true
		if s.secretCfg != nil {
			s.SecretShowedCount = s.secretCfg.MaxCount
		}
	}
	return res, nil
}

func (s *Site) rollRoomLoot(rng *rand.Rand, room Room) ([]string, error) {
	var loot []string
	if room.ProduceValue > 0 && len(room.ProduceList) > 0 {
		rolled, err := s.gen.RollValue(rng, room.ProduceValue, room.ProduceList)
		if err != nil {
			return nil, fmt.Errorf("site %d: %w", s.ID, err)
		}
		loot = rolled
	}
	loot = append(loot, room.FixedLoot...)
	return loot, nil
}

func (s *Site) depositLoot(itemIDs []string) {
	for _, id := range itemIDs {
		// Site storage is unlimited; Add only fails on unknown ids, which
		// the roll already rejected.
		if err := s.Storage.Add(id, 1); err == nil {
			s.HaveNewItems = true
		}
	}
}

// testSecretEntry rolls for secret-room discovery after a normal-room advance.
// At most one pending entry at a time, and at most MaxCount discoveries over
// the site's lifetime.
func (s *Site) testSecretEntry(rng *rand.Rand) bool {
	if s.secretCfg == nil || s.InSecretRooms || s.SecretEntryShown {
		return false
	}
	if s.SecretShowedCount >= s.secretCfg.MaxCount {
		return false
	}
	if rng.Float64() >= s.secretCfg.Probability {
		return false
	}
	s.SecretEntryShown = true
	s.SecretShowedCount++
	s.SecretRooms = s.genSecretRooms(rng)
	s.SecretStep = 0
	return true
}

// genSecretRooms builds the secret branch: all battle rooms except a final
// work room carrying the secret produce budget. Battle difficulty is the
// site's own range shifted by the configured offsets, clamped to the global
// difficulty band.
func (s *Site) genSecretRooms(rng *rand.Rand) []Room {
	n := randRange(rng, s.secretCfg.MinRooms, s.secretCfg.MaxRooms)

	rooms := make([]Room, 0, n)
	for i := 0; i < n-1; i++ {
		diff := randRange(rng,
			s.cfg.Difficulty[0]+s.secretCfg.MinDifficultyOffset,
			s.cfg.Difficulty[1]+s.secretCfg.MaxDifficultyOffset)
		if diff < s.tun.SecretDifficultyMin {
			diff = s.tun.SecretDifficultyMin
		}
		if diff > s.tun.SecretDifficultyMax {
			diff = s.tun.SecretDifficultyMax
		}
		pack, _ := s.monsterPack(rng, diff)
		rooms = append(rooms, Room{Type: RoomBattle, Monsters: pack, Difficulty: diff})
	}

	rooms = append(rooms, Room{
		Type:         RoomWork,
		WorkType:     rng.IntN(s.tun.SecretWorkRoomTypes),
		ProduceValue: s.secretCfg.ProduceValue,
		ProduceList:  s.secretCfg.ProduceList,
	})
	return rooms
}

// EnterSecretRooms accepts a pending entry and switches exploration to the
// secret branch.
func (s *Site) EnterSecretRooms() error {
	if s.InSecretRooms {
		return ErrInSecretRooms
	}
	if !s.SecretEntryShown {
		return ErrNoSecretEntry
	}
	s.InSecretRooms = true
	s.SecretEntryShown = false
	s.SecretStep = 0
	return nil
}

// LeaveSecretRooms declines a pending entry or abandons the branch mid-way.
// Either way the opportunity is gone for good: the discovery counter jumps to
// its maximum so this site never offers another entry.
func (s *Site) LeaveSecretRooms() error {
	if !s.SecretEntryShown && !s.InSecretRooms {
		return ErrNotSecretEntry
	}
	s.InSecretRooms = false
	s.SecretEntryShown = false
	if s.secretCfg != nil {
		s.SecretShowedCount = s.secretCfg.MaxCount
	}
	return nil
}

func (s *Site) IsSiteEnd() bool {
	return s.Step >= len(s.Rooms) && !s.InSecretRooms
}

// CanClose reports whether the site is spent: fully explored and stripped.
func (s *Site) CanClose() bool {
	return s.IsSiteEnd() && s.Storage.IsEmpty()
}

// Close marks the site closed. Idempotent; only valid once spent.
func (s *Site) Close() error {
	if !s.CanClose() {
		return fmt.Errorf("site %d: not ready to close", s.ID)
	}
	s.Closed = true
	return nil
}

// ProgressStr reports completed rooms over total, e.g. "3/7".
func (s *Site) ProgressStr() string {
	return fmt.Sprintf("%d/%d", s.Step, len(s.Rooms))
}

// CurrentProgressStr reports the room being explored, 1-indexed.
func (s *Site) CurrentProgressStr() string {
	if s.InSecretRooms {
		return fmt.Sprintf("%d/%d", s.SecretStep+1, len(s.SecretRooms))
	}
	return fmt.Sprintf("%d/%d", s.Step+1, len(s.Rooms))
}

func (s *Site) AllItemNum() int { return s.Storage.AllItemNum() }

// Withdraw moves items from the site stash into target. Clearing the stash
// also clears the new-items marker.
func (s *Site) Withdraw(itemID string, count int, target *inventory.Storage) error {
	if err := s.Storage.Transfer(itemID, count, target); err != nil {
		return err
	}
	if s.Storage.IsEmpty() {
		s.HaveNewItems = false
	}
	return nil
}

// Raid removes one pseudo-random line from the stash and flags the site.
// Returns false when nothing raidable is held.
func (s *Site) Raid(rng *rand.Rand, excluded map[string]struct{}) (inventory.Line, bool) {
	ln, ok := s.Storage.RandomLine(rng, excluded)
	if !ok {
		return inventory.Line{}, false
	}
	if err := s.Storage.Remove(ln.ItemID, ln.Count); err != nil {
		return inventory.Line{}, false
	}
	s.UnderAttack = true
	return ln, true
}

func (s *Site) ClearUnderAttack() { s.UnderAttack = false }

func (s *Site) Save() snapshot.SiteV1 {
	return snapshot.SiteV1{
		ID:      s.ID,
		Pos:     s.Pos,
		Step:    s.Step,
		Rooms:   roomsToV1(s.Rooms),
		Storage: s.Storage.Save(),

		SecretRoomType:    s.SecretRoomType,
		SecretShowedCount: s.SecretShowedCount,
		SecretEntryShown:  s.SecretEntryShown,
		InSecretRooms:     s.InSecretRooms,
		SecretRooms:       roomsToV1(s.SecretRooms),
		SecretStep:        s.SecretStep,

		Closed:       s.Closed,
		UnderAttack:  s.UnderAttack,
		HaveNewItems: s.HaveNewItems,
	}
}

// Restore replaces state from a snapshot record. Rooms are trusted as saved;
// a nil record initializes a fresh site instead.
func (s *Site) Restore(rng *rand.Rand, saved *snapshot.SiteV1) {
	if saved == nil {
		s.Init(rng)
		return
	}
	s.Pos = saved.Pos
	s.Step = saved.Step
	s.Rooms = roomsFromV1(saved.Rooms)
	s.Storage.Restore(saved.Storage)

	s.SecretRoomType = saved.SecretRoomType
	s.SecretShowedCount = saved.SecretShowedCount
	s.SecretEntryShown = saved.SecretEntryShown
	s.InSecretRooms = saved.InSecretRooms
	s.SecretRooms = roomsFromV1(saved.SecretRooms)
	s.SecretStep = saved.SecretStep

	s.Closed = saved.Closed
	s.UnderAttack = saved.UnderAttack
	s.HaveNewItems = saved.HaveNewItems
}
