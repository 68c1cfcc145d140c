package inventory

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/tuning"
)

var (
	// ErrCapacityExceeded and ErrInsufficientQuantity are expected,
	// recoverable conditions; the UI shows them as "not enough room/items".
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrUnknownItem          = errors.New("unknown item")
)

// Line is one inventory row for queries and transfer reports.
type Line struct {
	ItemID string
	Count  int
}

// Storage is a weight-constrained keyed multiset of items. It owns no
// business rules beyond capacity and non-negativity; counts are always > 0
// (zero-count entries are deleted).
//
// maxWeight is re-derived on every call so Bag/Safe capacity reacts
// immediately to ownership and building changes; nil means unlimited.
type Storage struct {
	name      string
	items     map[string]int
	cat       *catalogs.ItemCatalog
	bulkBatch int
	maxWeight func() int
}

func New(name string, cat *catalogs.ItemCatalog, tun tuning.Tuning) *Storage {
	return &Storage{
		name:      name,
		items:     map[string]int{},
		cat:       cat,
		bulkBatch: tun.BulkBatchSize,
	}
}

// NewFixed builds a storage with a static weight cap.
func NewFixed(name string, cat *catalogs.ItemCatalog, tun tuning.Tuning, max int) *Storage {
	s := New(name, cat, tun)
	s.maxWeight = func() int { return max }
	return s
}

// NewBag builds the player bag. Capacity is base weight plus a bonus per
// capacity item owned anywhere (bag or home storage, not equipped state);
// ownedAnywhere answers that question for the whole estate.
func NewBag(cat *catalogs.ItemCatalog, tun tuning.Tuning, ownedAnywhere func(itemID string) bool) *Storage {
	s := New("player", cat, tun)
	base := tun.BagBaseWeight
	bonuses := tun.BagBonusItems
	s.maxWeight = func() int {
		max := base
		ids := make([]string, 0, len(bonuses))
		for id := range bonuses {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if ownedAnywhere(id) {
				max += bonuses[id]
			}
		}
		return max
	}
	return s
}

// NewSafe builds the safe. Capacity is granted only while the safe building
// is active; otherwise nothing can be added, but existing contents stay
// readable. A capability gate, not a destructive lock.
func NewSafe(cat *catalogs.ItemCatalog, tun tuning.Tuning, active func() bool) *Storage {
	s := New("safe", cat, tun)
	cap := tun.SafeMaxWeight
	s.maxWeight = func() int {
		if active() {
			return cap
		}
		return 0
	}
	return s
}

func (s *Storage) Name() string { return s.name }

// MaxWeight reports the current cap, or -1 for unlimited storage.
func (s *Storage) MaxWeight() int {
	if s.maxWeight == nil {
		return -1
	}
	return s.maxWeight()
}

// lineWeight weighs one item line. Zero-unit-weight items are bulk goods
// weighed in batches of bulkBatch.
func (s *Storage) lineWeight(def catalogs.ItemDef, count int) int {
	if count <= 0 {
		return 0
	}
	if def.Weight == 0 {
		return (count + s.bulkBatch - 1) / s.bulkBatch
	}
	return def.Weight * count
}

func (s *Storage) Weight() int {
	total := 0
	for id, count := range s.items {
		if def, ok := s.cat.Defs[id]; ok {
			total += s.lineWeight(def, count)
		}
	}
	return total
}

// CanAdd reports whether count units of itemID fit under the current cap.
// The cap is looked up at call time, never cached.
func (s *Storage) CanAdd(itemID string, count int) bool {
	def, ok := s.cat.Defs[itemID]
	if !ok {
		return false
	}
	if s.maxWeight == nil {
		return true
	}
	cur := s.items[itemID]
	next := s.Weight() - s.lineWeight(def, cur) + s.lineWeight(def, cur+count)
	return next <= s.maxWeight()
}

func (s *Storage) Add(itemID string, count int) error {
	if count <= 0 {
		return fmt.Errorf("add %s: count must be positive", itemID)
	}
	if _, ok := s.cat.Defs[itemID]; !ok {
		return fmt.Errorf("add %s: %w", itemID, ErrUnknownItem)
	}
	if !s.CanAdd(itemID, count) {
		return fmt.Errorf("add %dx %s to %s: %w", count, itemID, s.name, ErrCapacityExceeded)
	}
	s.items[itemID] += count
	return nil
}

func (s *Storage) Remove(itemID string, count int) error {
	if count <= 0 {
		return fmt.Errorf("remove %s: count must be positive", itemID)
	}
	cur := s.items[itemID]
	if cur < count {
		return fmt.Errorf("remove %dx %s from %s (have %d): %w", count, itemID, s.name, cur, ErrInsufficientQuantity)
	}
	if cur == count {
		delete(s.items, itemID)
	} else {
		s.items[itemID] = cur - count
	}
	return nil
}

func (s *Storage) Count(itemID string) int { return s.items[itemID] }

// ValidateItem reports whether at least count units are held.
func (s *Storage) ValidateItem(itemID string, count int) bool {
	return s.items[itemID] >= count
}

func (s *Storage) IsEmpty() bool { return len(s.items) == 0 }

func (s *Storage) AllItemNum() int {
	total := 0
	for _, count := range s.items {
		total += count
	}
	return total
}

// Lines returns all held lines sorted by item id.
func (s *Storage) Lines() []Line {
	out := make([]Line, 0, len(s.items))
	for id, count := range s.items {
		if count <= 0 {
			continue
		}
		out = append(out, Line{ItemID: id, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// ItemsByType returns held lines whose id starts with the category prefix.
func (s *Storage) ItemsByType(typePrefix string) []Line {
	var out []Line
	for _, ln := range s.Lines() {
		if strings.HasPrefix(ln.ItemID, typePrefix) {
			out = append(out, ln)
		}
	}
	return out
}

// Transfer moves count units to target as one combined operation: a failed
// add rolls the remove back, so no caller ever observes a half-applied move.
func (s *Storage) Transfer(itemID string, count int, target *Storage) error {
	if err := s.Remove(itemID, count); err != nil {
		return err
	}
	if err := target.Add(itemID, count); err != nil {
		s.items[itemID] += count
		return err
	}
	return nil
}

// TransferAll moves every held line into target, best-effort per line in
// item-id order. Lines the target cannot hold stay put and are reported;
// nothing is silently dropped.
func (s *Storage) TransferAll(target *Storage) []Line {
	var failed []Line
	for _, ln := range s.Lines() {
		if err := s.Transfer(ln.ItemID, ln.Count, target); err != nil {
			failed = append(failed, ln)
		}
	}
	return failed
}

// RandomLine picks a pseudo-random held line outside the excluded set, with
// a take amount scaled down for large stacks and valuable items. Used by
// site raids.
func (s *Storage) RandomLine(rng *rand.Rand, excluded map[string]struct{}) (Line, bool) {
	var candidates []string
	for _, ln := range s.Lines() {
		if _, skip := excluded[ln.ItemID]; skip {
			continue
		}
		candidates = append(candidates, ln.ItemID)
	}
	if len(candidates) == 0 {
		return Line{}, false
	}

	itemID := candidates[rng.IntN(len(candidates))]
	held := s.items[itemID]

	amount := held
	if held > 10 {
		amount = 3 + rng.IntN(7)
	} else if held > 3 {
		amount = 1 + rng.IntN(held-2)
	}
	if def, ok := s.cat.Defs[itemID]; ok && def.Value >= 15 {
		switch {
		case def.Value > 45:
			amount = (amount + 3) / 4
		case def.Value >= 30:
			amount = (amount + 2) / 3
		default:
			amount = (amount*2 + 2) / 3
		}
	}
	if amount < 1 {
		amount = 1
	}
	if amount > held {
		amount = held
	}
	return Line{ItemID: itemID, Count: amount}, true
}

// Clone returns an independent copy sharing the catalog and capacity rule.
// Mutating the clone never touches the original; trade previews rely on this.
func (s *Storage) Clone(name string) *Storage {
	c := &Storage{
		name:      name,
		items:     make(map[string]int, len(s.items)),
		cat:       s.cat,
		bulkBatch: s.bulkBatch,
		maxWeight: s.maxWeight,
	}
	for id, count := range s.items {
		c.items[id] = count
	}
	return c
}

// Save returns the plain serializable record for this inventory.
func (s *Storage) Save() map[string]int {
	out := make(map[string]int, len(s.items))
	for id, count := range s.items {
		out[id] = count
	}
	return out
}

// Restore replaces contents from a saved record. Capacity is not re-checked:
// saves are trusted, and Bag capacity may legitimately shrink between runs.
func (s *Storage) Restore(saved map[string]int) {
	s.items = make(map[string]int, len(saved))
	for id, count := range saved {
		if count > 0 {
			s.items[id] = count
		}
	}
}
