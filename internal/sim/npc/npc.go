package npc

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"ashfall.game/internal/persistence/snapshot"
	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/inventory"
	"ashfall.game/internal/sim/tuning"
)

const (
	ReputationMax = catalogs.ReputationLevels - 1
	AlertMax      = 30
)

var ErrNoNeedItem = errors.New("npc has no need item at this level")

// PendingGift is a reputation reward not yet delivered to the player: either
// an item grant or a site reveal.
type PendingGift struct {
	ItemID string
	Num    int
	SiteID int
}

// StealEntry records one raid or theft against this NPC, for alert decay.
type StealEntry struct {
	Day    int
	ItemID string
	Num    int
	Caught bool
}

// NPC is one trading character. Reputation gates its trading stock, favorite
// prices, need items, and gifts; all four tables are indexed 0..ReputationMax.
type NPC struct {
	ID           int
	Pos          [2]int
	Reputation   int
	MaxRep       int // highest level ever reached; gates one-time unlocks
	TradingCount int
	Alert        int
	Storage      *inventory.Storage

	SentGifts    []int // levels whose gifts were already queued
	PendingGifts []PendingGift
	StealLog     []StealEntry

	cfg  catalogs.NPCDef
	cats *catalogs.Catalogs
	tun  tuning.Tuning
}

// New builds an NPC at reputation 0 with its level-0 stock unlocked.
func New(id int, cats *catalogs.Catalogs, tun tuning.Tuning) (*NPC, error) {
	cfg, ok := cats.NPCs.ByID[id]
	if !ok {
		return nil, fmt.Errorf("npc %d: no catalog entry", id)
	}
	n := &NPC{
		ID:      id,
		Pos:     cfg.Coordinate,
		MaxRep:  -1,
		Storage: inventory.New(fmt.Sprintf("npc_%d", id), &cats.Items, tun),
		cfg:     cfg,
		cats:    cats,
		tun:     tun,
	}
	n.unlockByReputation()
	return n, nil
}

// ChangeReputation shifts reputation by delta, clamped to [0, ReputationMax].
// Returns false when already pinned at the boundary in delta's direction.
// Raising past MaxRep unlocks the newly reached levels' stock and gifts.
func (n *NPC) ChangeReputation(delta int) bool {
	if n.Reputation >= ReputationMax && delta > 0 {
		return false
	}
	if n.Reputation <= 0 && delta < 0 {
		return false
	}
	n.Reputation += delta
	if n.Reputation < 0 {
		n.Reputation = 0
	}
	if n.Reputation > ReputationMax {
		n.Reputation = ReputationMax
	}
	n.unlockByReputation()
	return true
}

// unlockByReputation grants the one-time rewards for every level between the
// previous high-water mark and the current reputation. Levels are never
// granted twice, even if reputation later drops and recovers.
func (n *NPC) unlockByReputation() {
	if n.Reputation <= n.MaxRep {
		return
	}
	for level := n.MaxRep + 1; level <= n.Reputation; level++ {
		n.unlockTrading(level)
		n.unlockGift(level)
	}
	n.MaxRep = n.Reputation
}

func (n *NPC) unlockTrading(level int) {
	for _, drop := range n.cfg.Trading[level] {
		// NPC stock is unlimited storage; Add fails only on unknown ids.
		_ = n.Storage.Add(drop.ItemID, drop.Num)
	}
}

func (n *NPC) unlockGift(level int) {
	g := n.cfg.Gift[level]
	if g == nil {
		return
	}
	for _, sent := range n.SentGifts {
		if sent == level {
			return
		}
	}
	n.SentGifts = append(n.SentGifts, level)
	n.PendingGifts = append(n.PendingGifts, PendingGift{ItemID: g.ItemID, Num: g.Num, SiteID: g.SiteID})
}

// TakePendingGifts drains and returns the queued gifts.
func (n *NPC) TakePendingGifts() []PendingGift {
	out := n.PendingGifts
	n.PendingGifts = nil
	return out
}

// UpdateTradingItems rebuilds the stock from scratch: every level up to the
// current reputation contributes its trading table again. Restocks consumed
// goods; used on world maintenance ticks.
func (n *NPC) UpdateTradingItems() {
	n.Storage = inventory.New(fmt.Sprintf("npc_%d", n.ID), &n.cats.Items, n.tun)
	for level := 0; level <= n.Reputation; level++ {
		n.unlockTrading(level)
	}
}

// NeedItem returns the active request: the highest-level non-nil need entry
// at or below the current reputation.
func (n *NPC) NeedItem() *catalogs.NeedItem {
	for level := n.Reputation; level >= 0; level-- {
		if ni := n.cfg.NeedItem[level]; ni != nil {
			return ni
		}
	}
	return nil
}

// TakeNeedItem consumes the requested items from bag and raises reputation by
// one. Fails without side effects when the bag cannot cover the request.
func (n *NPC) TakeNeedItem(bag *inventory.Storage) error {
	ni := n.NeedItem()
	if ni == nil {
		return ErrNoNeedItem
	}
	if err := bag.Remove(ni.ItemID, ni.Num); err != nil {
		return err
	}
	n.ChangeReputation(1)
	return nil
}

// RateFor returns the price multiplier this NPC applies to itemID at the
// current reputation level. 1.0 for anything not on the favorite list.
func (n *NPC) RateFor(itemID string) float64 {
	for _, fav := range n.cfg.Favorite[n.Reputation] {
		if fav.ItemID == itemID {
			return fav.Price
		}
	}
	return 1.0
}

// AppraiseLine values count units of itemID at this NPC's rates.
func (n *NPC) AppraiseLine(itemID string, count int) float64 {
	def, ok := n.cats.Items.Defs[itemID]
	if !ok {
		return 0
	}
	return float64(def.Value) * n.RateFor(itemID) * float64(count)
}

// ChangeAlert shifts the alert level, clamped to [0, AlertMax]. Returns false
// when pinned at the boundary in delta's direction.
func (n *NPC) ChangeAlert(delta int) bool {
	if n.Alert >= AlertMax && delta > 0 {
		return false
	}
	if n.Alert <= 0 && delta < 0 {
		return false
	}
	n.Alert += delta
	if n.Alert < 0 {
		n.Alert = 0
	}
	if n.Alert > AlertMax {
		n.Alert = AlertMax
	}
	return true
}

// RecordSteal logs a theft and raises alert when the player was caught.
func (n *NPC) RecordSteal(day int, itemID string, num int, caught bool) {
	n.StealLog = append(n.StealLog, StealEntry{Day: day, ItemID: itemID, Num: num, Caught: caught})
	if caught {
		n.ChangeAlert(10)
		n.ChangeReputation(-1)
	}
}

// RandomStockLine exposes the stock to raids, sharing the inventory's
// stack-scaling pick.
func (n *NPC) RandomStockLine(rng *rand.Rand, excluded map[string]struct{}) (inventory.Line, bool) {
	return n.Storage.RandomLine(rng, excluded)
}

func (n *NPC) Save() snapshot.NPCV1 {
	v := snapshot.NPCV1{
		ID:           n.ID,
		Pos:          n.Pos,
		Reputation:   n.Reputation,
		MaxRep:       n.MaxRep,
		TradingCount: n.TradingCount,
		Alert:        n.Alert,
		Storage:      n.Storage.Save(),
		SentGifts:    append([]int(nil), n.SentGifts...),
	}
	for _, e := range n.StealLog {
		v.StealLog = append(v.StealLog, snapshot.StealLogV1{Day: e.Day, ItemID: e.ItemID, Num: e.Num, Caught: e.Caught})
	}
	for _, g := range n.PendingGifts {
		v.PendingGifts = append(v.PendingGifts, snapshot.PendingGiftV1{ItemID: g.ItemID, Num: g.Num, SiteID: g.SiteID})
	}
	return v
}

// Restore replaces state from a snapshot record. A nil record leaves the
// freshly constructed level-0 state in place.
func (n *NPC) Restore(saved *snapshot.NPCV1) {
	if saved == nil {
		return
	}
	n.Pos = saved.Pos
	n.Reputation = saved.Reputation
	n.MaxRep = saved.MaxRep
	n.TradingCount = saved.TradingCount
	n.Alert = saved.Alert
	n.Storage.Restore(saved.Storage)
	n.SentGifts = append([]int(nil), saved.SentGifts...)
	n.StealLog = nil
	for _, e := range saved.StealLog {
		n.StealLog = append(n.StealLog, StealEntry{Day: e.Day, ItemID: e.ItemID, Num: e.Num, Caught: e.Caught})
	}
	n.PendingGifts = nil
	for _, g := range saved.PendingGifts {
		n.PendingGifts = append(n.PendingGifts, PendingGift{ItemID: g.ItemID, Num: g.Num, SiteID: g.SiteID})
	}
}
