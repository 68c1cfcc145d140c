package world

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync/atomic"

	"ashfall.game/internal/persistence/snapshot"
	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/economy"
	"ashfall.game/internal/sim/inventory"
	"ashfall.game/internal/sim/npc"
	"ashfall.game/internal/sim/site"
	"ashfall.game/internal/sim/tuning"
)

type Config struct {
	ID        string
	Seed      int64
	SafeBuilt bool
}

// raidKeepList names items raiders never take from a site depository.
var raidKeepList = map[string]struct{}{
	"item_special_dog":           {},
	"item_special_first_aid_kit": {},
}

// World is the single-player estate: the bag, home and safe inventories, every
// site and NPC, and at most one open trade session. All state is owned by the
// loop goroutine started in Run; the channels in loop.go are the only way in.
type World struct {
	cfg  Config
	cats *catalogs.Catalogs
	tun  tuning.Tuning
	gen  *economy.Generator
	rng  *rand.Rand

	// seq bumps on every applied mutation. UIs poll it to detect change
	// instead of diffing deep state.
	seq atomic.Uint64

	bag  *inventory.Storage
	home *inventory.Storage
	safe *inventory.Storage

	safeBuilt bool

	sites    map[int]*site.Site
	siteIDs  []int
	unlocked map[int]bool
	npcs     map[int]*npc.NPC
	npcIDs   []int

	trade    *npc.TradeSession
	tradeNPC int

	inbox chan CmdEnvelope
	stop  chan struct{}

	// Optional collaborators (may be nil). Implemented in
	// internal/persistence/*.
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1
}

// AuditEntry records one applied command for the audit trail.
type AuditEntry struct {
	Seq     uint64         `json:"seq"`
	Op      string         `json:"op"`
	OK      bool           `json:"ok"`
	Code    string         `json:"code,omitempty"`
	SiteID  int            `json:"site_id,omitempty"`
	NPCID   int            `json:"npc_id,omitempty"`
	ItemID  string         `json:"item_id,omitempty"`
	Count   int            `json:"count,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// New builds a fresh world: every catalog site generated, every NPC at
// reputation zero, empty inventories. Determinism comes entirely from the
// seed; two worlds with the same seed and catalogs are identical.
func New(cfg Config, cats *catalogs.Catalogs, tun tuning.Tuning) (*World, error) {
	w := &World{
		cfg:       cfg,
		cats:      cats,
		tun:       tun,
		gen:       economy.NewGenerator(&cats.Items),
		rng:       rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)>>1|1)),
		safeBuilt: cfg.SafeBuilt,
		sites:     map[int]*site.Site{},
		unlocked:  map[int]bool{},
		npcs:      map[int]*npc.NPC{},
		inbox:     make(chan CmdEnvelope, 64),
		stop:      make(chan struct{}),
	}

	w.home = inventory.New("home", &cats.Items, tun)
	w.bag = inventory.NewBag(&cats.Items, tun, func(itemID string) bool {
		return w.bag.Count(itemID) > 0 || w.home.Count(itemID) > 0
	})
	w.safe = inventory.NewSafe(&cats.Items, tun, func() bool { return w.safeBuilt })

	// Sites named in another site's unlock list start locked.
	lockedBy := map[int]bool{}
	for _, def := range cats.Sites.ByID {
		for _, id := range def.UnlockSites {
			lockedBy[id] = true
		}
	}

	for id := range cats.Sites.ByID {
		w.siteIDs = append(w.siteIDs, id)
	}
	sort.Ints(w.siteIDs)
	for _, id := range w.siteIDs {
		s, err := site.New(id, cats, tun, w.gen, w.rng)
		if err != nil {
			return nil, err
		}
		s.Init(w.rng)
		w.sites[id] = s
		w.unlocked[id] = !lockedBy[id]
	}

	for id := range cats.NPCs.ByID {
		w.npcIDs = append(w.npcIDs, id)
	}
	sort.Ints(w.npcIDs)
	for _, id := range w.npcIDs {
		n, err := npc.New(id, cats, tun)
		if err != nil {
			return nil, err
		}
		w.npcs[id] = n
	}

	return w, nil
}

func (w *World) ID() string      { return w.cfg.ID }
func (w *World) Seq() uint64     { return w.seq.Load() }
func (w *World) Seed() int64     { return w.cfg.Seed }
func (w *World) bump()           { w.seq.Add(1) }
func (w *World) SafeBuilt() bool { return w.safeBuilt }

// SetSafeBuilt flips the external "safe building active" predicate. Safe
// capacity follows immediately; contents are untouched either way.
func (w *World) SetSafeBuilt(v bool) {
	w.safeBuilt = v
	w.bump()
}

func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	e.Seq = w.seq.Load()
	_ = w.auditLogger.WriteAudit(e)
}

// ExportSnapshot captures the full world state. Loop-goroutine only.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: 1,
			WorldID: w.cfg.ID,
			Seq:     w.seq.Load(),
		},
		Seed:        w.cfg.Seed,
		WorldSeq:    w.seq.Load(),
		ItemsDigest: w.cats.Items.Digest,
		SafeBuilt:   w.safeBuilt,
		Bag:         w.bag.Save(),
		Home:        w.home.Save(),
		Safe:        w.safe.Save(),
	}
	for _, id := range w.siteIDs {
		if w.unlocked[id] {
			snap.Unlocked = append(snap.Unlocked, id)
		}
		snap.Sites = append(snap.Sites, w.sites[id].Save())
	}
	for _, id := range w.npcIDs {
		snap.NPCs = append(snap.NPCs, w.npcs[id].Save())
	}
	return snap
}

// ImportSnapshot replaces in-memory state with the snapshot. Sites or NPCs
// present in the snapshot but absent from the catalogs are dropped; the
// reverse keeps the freshly generated state. Call before Run, or from the
// loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != 1 {
		return fmt.Errorf("snapshot version %d not supported", s.Header.Version)
	}
	if s.ItemsDigest != "" && s.ItemsDigest != w.cats.Items.Digest {
		return fmt.Errorf("snapshot items digest %.12s does not match loaded catalog %.12s",
			s.ItemsDigest, w.cats.Items.Digest)
	}

	w.safeBuilt = s.SafeBuilt
	w.bag.Restore(s.Bag)
	w.home.Restore(s.Home)
	w.safe.Restore(s.Safe)

	for id := range w.unlocked {
		w.unlocked[id] = false
	}
	for _, id := range s.Unlocked {
		if _, ok := w.sites[id]; ok {
			w.unlocked[id] = true
		}
	}

	for i := range s.Sites {
		sv := &s.Sites[i]
		if st, ok := w.sites[sv.ID]; ok {
			st.Restore(w.rng, sv)
		}
	}
	for i := range s.NPCs {
		nv := &s.NPCs[i]
		if n, ok := w.npcs[nv.ID]; ok {
			n.Restore(nv)
		}
	}

	w.trade = nil
	w.tradeNPC = 0
	w.seq.Store(s.WorldSeq)
	return nil
}
