package npc

import (
	"errors"
	"fmt"

	"ashfall.game/internal/sim/inventory"
)

var (
	ErrTradeFlushed      = errors.New("trade session already settled")
	ErrTradeUnacceptable = errors.New("offer does not cover goods value")
	ErrNothingTaken      = errors.New("nothing taken from stock")
)

// TradeSession is a two-sided barter negotiation against one NPC. All moves
// happen on preview copies of the player bag and the NPC stock; the real
// inventories mutate exactly once, at Commit. A settled session (committed or
// cancelled) rejects every further call.
//
// Prices are appraised at the NPC's current reputation level, including its
// per-item favorite multipliers, on both sides of the table.
type TradeSession struct {
	npc *NPC
	bag *inventory.Storage

	bagPreview   *inventory.Storage
	stockPreview *inventory.Storage

	offered map[string]int // player goods pledged to the NPC
	taken   map[string]int // NPC goods claimed by the player

	flushed bool
}

// NewTradeSession opens a negotiation. The previews inherit the real
// inventories' capacity rules, so a claim that would overflow the bag fails
// at Take time, not at Commit.
func NewTradeSession(n *NPC, bag *inventory.Storage) *TradeSession {
	return &TradeSession{
		npc:          n,
		bag:          bag,
		bagPreview:   bag.Clone("trade_bag"),
		stockPreview: n.Storage.Clone("trade_stock"),
		offered:      map[string]int{},
		taken:        map[string]int{},
	}
}

func (t *TradeSession) guard() error {
	if t.flushed {
		return ErrTradeFlushed
	}
	return nil
}

// Offer pledges count units from the bag to the NPC.
func (t *TradeSession) Offer(itemID string, count int) error {
	if err := t.guard(); err != nil {
		return err
	}
	if err := t.bagPreview.Transfer(itemID, count, t.stockPreview); err != nil {
		return err
	}
	t.offered[itemID] += count
	return nil
}

// Retract takes back part of the pledge.
func (t *TradeSession) Retract(itemID string, count int) error {
	if err := t.guard(); err != nil {
		return err
	}
	if t.offered[itemID] < count {
		return fmt.Errorf("retract %dx %s: only %d offered: %w",
			count, itemID, t.offered[itemID], inventory.ErrInsufficientQuantity)
	}
	if err := t.stockPreview.Transfer(itemID, count, t.bagPreview); err != nil {
		return err
	}
	t.offered[itemID] -= count
	if t.offered[itemID] == 0 {
		delete(t.offered, itemID)
	}
	return nil
}

// Take claims count units of NPC stock into the bag. Fails when the claim
// would not fit the bag alongside everything already in the preview.
func (t *TradeSession) Take(itemID string, count int) error {
	if err := t.guard(); err != nil {
		return err
	}
	available := t.stockPreview.Count(itemID) - t.offered[itemID]
	if available < count {
		return fmt.Errorf("take %dx %s: only %d in stock: %w",
			count, itemID, available, inventory.ErrInsufficientQuantity)
	}
	if err := t.stockPreview.Transfer(itemID, count, t.bagPreview); err != nil {
		return err
	}
	t.taken[itemID] += count
	return nil
}

// Return hands back part of a claim.
func (t *TradeSession) Return(itemID string, count int) error {
	if err := t.guard(); err != nil {
		return err
	}
	if t.taken[itemID] < count {
		return fmt.Errorf("return %dx %s: only %d taken: %w",
			count, itemID, t.taken[itemID], inventory.ErrInsufficientQuantity)
	}
	if err := t.bagPreview.Transfer(itemID, count, t.stockPreview); err != nil {
		return err
	}
	t.taken[itemID] -= count
	if t.taken[itemID] == 0 {
		delete(t.taken, itemID)
	}
	return nil
}

// OfferedValue appraises the pledge at the NPC's rates.
func (t *TradeSession) OfferedValue() float64 {
	total := 0.0
	for id, count := range t.offered {
		total += t.npc.AppraiseLine(id, count)
	}
	return total
}

// TakenValue appraises the claim at the NPC's rates.
func (t *TradeSession) TakenValue() float64 {
	total := 0.0
	for id, count := range t.taken {
		total += t.npc.AppraiseLine(id, count)
	}
	return total
}

// Balance is pledge value minus claim value. Non-negative means the NPC
// comes out even or ahead.
func (t *TradeSession) Balance() float64 {
	return t.OfferedValue() - t.TakenValue()
}

// Acceptable reports whether the NPC would settle: something is claimed and
// the pledge covers it.
func (t *TradeSession) Acceptable() bool {
	return len(t.taken) > 0 && t.Balance() >= 0
}

// BagPreview exposes the would-be bag for display. Read-only by convention.
func (t *TradeSession) BagPreview() *inventory.Storage { return t.bagPreview }

// StockPreview exposes the would-be NPC stock for display.
func (t *TradeSession) StockPreview() *inventory.Storage { return t.stockPreview }

// Commit settles the trade: both real inventories jump to their preview
// state in one step and the session is spent. An unacceptable trade leaves
// everything untouched and the session still open.
func (t *TradeSession) Commit() error {
	if err := t.guard(); err != nil {
		return err
	}
	if len(t.taken) == 0 {
		return ErrNothingTaken
	}
	if t.Balance() < 0 {
		return ErrTradeUnacceptable
	}
	t.bag.Restore(t.bagPreview.Save())
	t.npc.Storage.Restore(t.stockPreview.Save())
	t.npc.TradingCount++
	t.flushed = true
	return nil
}

// Cancel abandons the negotiation. The real inventories were never touched,
// so there is nothing to roll back; the session is simply spent.
func (t *TradeSession) Cancel() error {
	if err := t.guard(); err != nil {
		return err
	}
	t.flushed = true
	return nil
}
