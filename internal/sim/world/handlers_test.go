package world

import (
	"testing"

	"ashfall.game/internal/protocol"
	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/tuning"
)

func newTestWorld(t *testing.T, seed int64) *World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := New(Config{ID: "test", Seed: seed}, cats, tuning.Defaults())
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func cmd(op string) protocol.CmdMsg {
	return protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ID:              "C1",
		Op:              op,
	}
}

// exploreSite clears every room of a site with forced battle wins, declining
// any secret entry along the way.
func exploreSite(t *testing.T, w *World, siteID int) {
	t.Helper()
	for i := 0; i < 30; i++ {
		c := cmd(protocol.OpExplore)
		c.SiteID = siteID
		c.BattleWon = true
		res := w.Apply(c)
		if !res.OK {
			t.Fatalf("explore site %d: %s %s", siteID, res.Code, res.Message)
		}
		if res.Data["secret_entry"] == true {
			lv := cmd(protocol.OpLeaveSecret)
			lv.SiteID = siteID
			if lr := w.Apply(lv); !lr.OK {
				t.Fatalf("leave secret: %s", lr.Code)
			}
		}
		if res.Data["site_done"] == true {
			return
		}
	}
	t.Fatalf("site %d never completed", siteID)
}

func TestApply_UnknownOp(t *testing.T) {
	w := newTestWorld(t, 1)
	res := w.Apply(cmd("TELEPORT"))
	if res.OK || res.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown op: %+v", res)
	}
	if res.Type != protocol.TypeResult || res.Ref != "C1" {
		t.Fatalf("result envelope not stamped: %+v", res)
	}
}

func TestApply_LockedSiteRejected(t *testing.T) {
	w := newTestWorld(t, 1)

	// Sites 2 and 3 are unlock rewards and start locked; 1 and 4 are open.
	c := cmd(protocol.OpExplore)
	c.SiteID = 2
	c.BattleWon = true
	if res := w.Apply(c); res.OK || res.Code != protocol.ErrInvalidTarget {
		t.Fatalf("locked site explored: %+v", res)
	}

	c.SiteID = 99
	if res := w.Apply(c); res.OK || res.Code != protocol.ErrInvalidTarget {
		t.Fatalf("unknown site explored: %+v", res)
	}
}

func TestApply_ExploreCompletionUnlocksChain(t *testing.T) {
	w := newTestWorld(t, 7)

	if w.unlocked[2] {
		t.Fatalf("site 2 unlocked before clearing site 1")
	}
	exploreSite(t, w, 1)
	if !w.unlocked[2] {
		t.Fatalf("clearing site 1 did not unlock site 2")
	}

	// The cleared site rejects further exploration.
	c := cmd(protocol.OpExplore)
	c.SiteID = 1
	c.BattleWon = true
	if res := w.Apply(c); res.OK || res.Code != protocol.ErrSiteDone {
		t.Fatalf("explore after completion: %+v", res)
	}

	// And its stash holds the work-room deposits.
	q := cmd(protocol.OpQuery)
	q.Subject = "site"
	q.SiteID = 1
	res := w.Apply(q)
	if !res.OK {
		t.Fatalf("query: %+v", res)
	}
	if res.Data["items"].(int) == 0 {
		t.Fatalf("cleared site stash is empty")
	}
	if res.Data["new_items"] != true {
		t.Fatalf("new-items marker not visible")
	}
}

func TestApply_VersionBumpsOnMutationOnly(t *testing.T) {
	w := newTestWorld(t, 3)

	q := cmd(protocol.OpQuery)
	q.Subject = "world"
	before := w.Seq()
	if res := w.Apply(q); !res.OK {
		t.Fatalf("query: %+v", res)
	}
	if w.Seq() != before {
		t.Fatalf("query bumped version")
	}

	// A failed mutation does not bump either.
	c := cmd(protocol.OpDepositHome)
	c.ItemID = "item_mat_rope"
	c.Count = 1
	if res := w.Apply(c); res.OK {
		t.Fatalf("deposit from empty bag succeeded")
	}
	if w.Seq() != before {
		t.Fatalf("failed command bumped version")
	}

	// A successful one does.
	if err := w.bag.Add("item_mat_rope", 1); err != nil {
		t.Fatalf("seed bag: %v", err)
	}
	if res := w.Apply(c); !res.OK {
		t.Fatalf("deposit: %+v", res)
	}
	if w.Seq() != before+1 {
		t.Fatalf("version = %d, want %d", w.Seq(), before+1)
	}
}

func TestApply_BagMoves(t *testing.T) {
	w := newTestWorld(t, 3)

	if err := w.bag.Add("item_mat_rope", 4); err != nil {
		t.Fatalf("seed bag: %v", err)
	}

	c := cmd(protocol.OpDepositHome)
	c.ItemID = "item_mat_rope"
	c.Count = 3
	if res := w.Apply(c); !res.OK {
		t.Fatalf("deposit home: %+v", res)
	}
	if w.home.Count("item_mat_rope") != 3 || w.bag.Count("item_mat_rope") != 1 {
		t.Fatalf("deposit split wrong: home %d bag %d",
			w.home.Count("item_mat_rope"), w.bag.Count("item_mat_rope"))
	}

	back := cmd(protocol.OpWithdrawHome)
	back.ItemID = "item_mat_rope"
	back.Count = 2
	if res := w.Apply(back); !res.OK {
		t.Fatalf("withdraw home: %+v", res)
	}
	if w.bag.Count("item_mat_rope") != 3 {
		t.Fatalf("bag rope = %d, want 3", w.bag.Count("item_mat_rope"))
	}

	missing := cmd(protocol.OpDepositHome)
	if res := w.Apply(missing); res.OK || res.Code != protocol.ErrBadRequest {
		t.Fatalf("deposit without item: %+v", res)
	}
}

func TestApply_SafeRequiresBuilding(t *testing.T) {
	w := newTestWorld(t, 3)
	if err := w.bag.Add("item_mat_rope", 1); err != nil {
		t.Fatalf("seed bag: %v", err)
	}

	c := cmd(protocol.OpDepositSafe)
	c.ItemID = "item_mat_rope"
	c.Count = 1
	if res := w.Apply(c); res.OK || res.Code != protocol.ErrCapacity {
		t.Fatalf("deposit into unbuilt safe: %+v", res)
	}

	w.SetSafeBuilt(true)
	if res := w.Apply(c); !res.OK {
		t.Fatalf("deposit into built safe: %+v", res)
	}
	if w.safe.Count("item_mat_rope") != 1 {
		t.Fatalf("safe rope = %d", w.safe.Count("item_mat_rope"))
	}
}

func TestApply_WithdrawSiteSweep(t *testing.T) {
	w := newTestWorld(t, 9)
	exploreSite(t, w, 4)

	stashed := w.sites[4].AllItemNum()
	if stashed == 0 {
		t.Fatalf("site 4 stash empty after clear")
	}

	c := cmd(protocol.OpWithdrawSite)
	c.SiteID = 4
	res := w.Apply(c)
	if !res.OK {
		t.Fatalf("sweep: %+v", res)
	}
	if res.Data["remaining"].(int) != 0 {
		t.Fatalf("sweep left %v behind: %v", res.Data["remaining"], res.Data["left_behind"])
	}
	if w.bag.AllItemNum() != stashed {
		t.Fatalf("bag holds %d, want %d", w.bag.AllItemNum(), stashed)
	}
	if w.sites[4].HaveNewItems {
		t.Fatalf("new-items marker survived sweep")
	}
}

func TestApply_WithdrawSiteSingleItem(t *testing.T) {
	w := newTestWorld(t, 9)
	if err := w.sites[4].Storage.Add("item_mat_wood", 6); err != nil {
		t.Fatalf("seed stash: %v", err)
	}

	c := cmd(protocol.OpWithdrawSite)
	c.SiteID = 4
	c.ItemID = "item_mat_wood"
	c.Count = 2
	if res := w.Apply(c); !res.OK {
		t.Fatalf("withdraw: %+v", res)
	}
	if w.bag.Count("item_mat_wood") != 2 {
		t.Fatalf("bag wood = %d, want 2", w.bag.Count("item_mat_wood"))
	}

	// Count omitted: take the whole stack.
	full := cmd(protocol.OpWithdrawSite)
	full.SiteID = 4
	full.ItemID = "item_mat_wood"
	if res := w.Apply(full); !res.OK {
		t.Fatalf("withdraw rest: %+v", res)
	}
	if w.bag.Count("item_mat_wood") != 6 {
		t.Fatalf("bag wood = %d, want 6", w.bag.Count("item_mat_wood"))
	}

	empty := cmd(protocol.OpWithdrawSite)
	empty.SiteID = 4
	empty.ItemID = "item_mat_wood"
	if res := w.Apply(empty); res.OK || res.Code != protocol.ErrNoItems {
		t.Fatalf("withdraw from empty stash: %+v", res)
	}
}

func TestApply_GiveNeedItemRaisesReputation(t *testing.T) {
	w := newTestWorld(t, 3)
	if err := w.bag.Add("item_mat_cloth", 5); err != nil {
		t.Fatalf("seed bag: %v", err)
	}

	c := cmd(protocol.OpGiveNeedItem)
	c.NPCID = 1
	res := w.Apply(c)
	if !res.OK {
		t.Fatalf("give: %+v", res)
	}
	if res.Data["reputation"].(int) != 1 {
		t.Fatalf("reputation = %v, want 1", res.Data["reputation"])
	}
	if w.bag.Count("item_mat_cloth") != 0 {
		t.Fatalf("bag kept the delivery")
	}
	// The level-1 gift (2x jerky) is dropped off at home.
	if w.home.Count("item_food_jerky") != 2 {
		t.Fatalf("home jerky = %d, want 2", w.home.Count("item_food_jerky"))
	}

	short := cmd(protocol.OpGiveNeedItem)
	short.NPCID = 1
	if res := w.Apply(short); res.OK || res.Code != protocol.ErrNoItems {
		t.Fatalf("give with empty bag: %+v", res)
	}
}

func TestDeliverGifts_SiteReveal(t *testing.T) {
	w := newTestWorld(t, 3)

	if w.unlocked[4] != true {
		t.Fatalf("site 4 should start unlocked in this content set")
	}
	// NPC 2's level-6 gift reveals site 3, which starts locked.
	if w.unlocked[3] {
		t.Fatalf("site 3 unlocked too early")
	}
	n := w.npcs[2]
	n.ChangeReputation(6)
	gifts := w.deliverGifts(n)
	if len(gifts) == 0 {
		t.Fatalf("no gifts delivered")
	}
	if !w.unlocked[3] {
		t.Fatalf("site gift did not unlock site 3")
	}
}

func TestApply_RaidSite(t *testing.T) {
	w := newTestWorld(t, 9)
	exploreSite(t, w, 4)

	before := w.sites[4].AllItemNum()
	c := cmd(protocol.OpRaidSite)
	c.SiteID = 4
	res := w.Apply(c)
	if !res.OK || res.Data["raided"] != true {
		t.Fatalf("raid: %+v", res)
	}
	lost := res.Data["lost"].(protocol.ItemStack)
	if lost.Count <= 0 {
		t.Fatalf("raid lost nothing: %+v", lost)
	}
	if got := w.sites[4].AllItemNum(); got != before-lost.Count {
		t.Fatalf("stash = %d after losing %d from %d", got, lost.Count, before)
	}
	if !w.sites[4].UnderAttack {
		t.Fatalf("raid did not flag the site")
	}

	// An empty stash raids to nothing, without error.
	emptyTarget := cmd(protocol.OpRaidSite)
	emptyTarget.SiteID = 1
	if res := w.Apply(emptyTarget); !res.OK || res.Data["raided"] != false {
		t.Fatalf("raid on empty site: %+v", res)
	}
}

func TestApply_QuerySubjects(t *testing.T) {
	w := newTestWorld(t, 3)

	for _, subject := range []string{"bag", "home", "safe", "sites", "npcs", "world"} {
		q := cmd(protocol.OpQuery)
		q.Subject = subject
		if res := w.Apply(q); !res.OK {
			t.Fatalf("query %s: %+v", subject, res)
		}
	}

	q := cmd(protocol.OpQuery)
	q.Subject = "safe"
	res := w.Apply(q)
	if res.Data["built"] != false {
		t.Fatalf("safe built = %v, want false", res.Data["built"])
	}

	q = cmd(protocol.OpQuery)
	q.Subject = "npc"
	q.NPCID = 1
	res = w.Apply(q)
	if !res.OK {
		t.Fatalf("query npc: %+v", res)
	}
	need := res.Data["need_item"].(protocol.ItemStack)
	if need.Item != "item_mat_cloth" || need.Count != 5 {
		t.Fatalf("need item = %+v", need)
	}

	bad := cmd(protocol.OpQuery)
	bad.Subject = "weather"
	if res := w.Apply(bad); res.OK || res.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown subject: %+v", res)
	}
}

type capturedAudit struct {
	entries []AuditEntry
}

func (c *capturedAudit) WriteAudit(e AuditEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func TestApply_AuditsMutationsNotQueries(t *testing.T) {
	w := newTestWorld(t, 3)
	rec := &capturedAudit{}
	w.SetAuditLogger(rec)

	q := cmd(protocol.OpQuery)
	q.Subject = "world"
	w.Apply(q)
	if len(rec.entries) != 0 {
		t.Fatalf("query audited: %+v", rec.entries)
	}

	c := cmd(protocol.OpExplore)
	c.SiteID = 1
	c.BattleWon = true
	w.Apply(c)
	if len(rec.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.Op != protocol.OpExplore || !e.OK || e.SiteID != 1 {
		t.Fatalf("audit entry = %+v", e)
	}

	// Failures are audited too, with their code.
	fail := cmd(protocol.OpExplore)
	fail.SiteID = 2
	w.Apply(fail)
	if len(rec.entries) != 2 || rec.entries[1].OK || rec.entries[1].Code == "" {
		t.Fatalf("failure audit = %+v", rec.entries)
	}
}
