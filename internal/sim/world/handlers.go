package world

import (
	"errors"
	"fmt"

	"ashfall.game/internal/protocol"
	"ashfall.game/internal/sim/economy"
	"ashfall.game/internal/sim/inventory"
	"ashfall.game/internal/sim/npc"
	"ashfall.game/internal/sim/site"
)

// Apply executes one command against world state. Loop-goroutine only; the
// transport reaches it through Inbox/Do.
func (w *World) Apply(cmd protocol.CmdMsg) protocol.ResultMsg {
	var res protocol.ResultMsg
	switch cmd.Op {
	case protocol.OpExplore:
		res = w.handleExplore(cmd)
	case protocol.OpEnterSecret:
		res = w.handleEnterSecret(cmd)
	case protocol.OpLeaveSecret:
		res = w.handleLeaveSecret(cmd)
	case protocol.OpWithdrawSite:
		res = w.handleWithdrawSite(cmd)
	case protocol.OpDepositHome:
		res = w.handleBagMove(cmd, w.bag, w.home)
	case protocol.OpWithdrawHome:
		res = w.handleBagMove(cmd, w.home, w.bag)
	case protocol.OpDepositSafe:
		res = w.handleBagMove(cmd, w.bag, w.safe)
	case protocol.OpWithdrawSafe:
		res = w.handleBagMove(cmd, w.safe, w.bag)
	case protocol.OpTradeOpen, protocol.OpTradeOffer, protocol.OpTradeRetract,
		protocol.OpTradeTake, protocol.OpTradeReturn, protocol.OpTradeCommit,
		protocol.OpTradeCancel:
		res = w.handleTrade(cmd)
	case protocol.OpGiveNeedItem:
		res = w.handleGiveNeedItem(cmd)
	case protocol.OpRaidSite:
		res = w.handleRaidSite(cmd)
	case protocol.OpQuery:
		res = w.handleQuery(cmd)
	default:
		res = fail(protocol.ErrBadRequest, fmt.Sprintf("unknown op %q", cmd.Op))
	}

	res.Type = protocol.TypeResult
	res.Ref = cmd.ID
	res.Version = w.seq.Load()

	if cmd.Op != protocol.OpQuery {
		w.audit(AuditEntry{
			Op:     cmd.Op,
			OK:     res.OK,
			Code:   res.Code,
			SiteID: cmd.SiteID,
			NPCID:  cmd.NPCID,
			ItemID: cmd.ItemID,
			Count:  cmd.Count,
		})
	}
	return res
}

func ok(data map[string]any) protocol.ResultMsg {
	return protocol.ResultMsg{OK: true, Data: data}
}

func fail(code, msg string) protocol.ResultMsg {
	return protocol.ResultMsg{OK: false, Code: code, Message: msg}
}

// failErr maps domain errors onto protocol codes.
func failErr(err error) protocol.ResultMsg {
	var unresolvable *economy.UnresolvableWildcardError
	switch {
	case errors.Is(err, inventory.ErrCapacityExceeded):
		return fail(protocol.ErrCapacity, err.Error())
	case errors.Is(err, inventory.ErrInsufficientQuantity):
		return fail(protocol.ErrNoItems, err.Error())
	case errors.Is(err, inventory.ErrUnknownItem):
		return fail(protocol.ErrInvalidTarget, err.Error())
	case errors.Is(err, economy.ErrEmptyTable):
		return fail(protocol.ErrEmptyTable, err.Error())
	case errors.As(err, &unresolvable):
		return fail(protocol.ErrNoMatch, err.Error())
	case errors.Is(err, site.ErrSiteClosed):
		return fail(protocol.ErrSiteClosed, err.Error())
	case errors.Is(err, site.ErrSiteComplete):
		return fail(protocol.ErrSiteDone, err.Error())
	default:
		return fail(protocol.ErrInternal, err.Error())
	}
}

func (w *World) siteFor(id int) (*site.Site, protocol.ResultMsg, bool) {
	s, okSite := w.sites[id]
	if !okSite {
		return nil, fail(protocol.ErrInvalidTarget, fmt.Sprintf("no site %d", id)), false
	}
	if !w.unlocked[id] {
		return nil, fail(protocol.ErrInvalidTarget, fmt.Sprintf("site %d not unlocked", id)), false
	}
	return s, protocol.ResultMsg{}, true
}

func (w *World) npcFor(id int) (*npc.NPC, protocol.ResultMsg, bool) {
	n, okNPC := w.npcs[id]
	if !okNPC {
		return nil, fail(protocol.ErrInvalidTarget, fmt.Sprintf("no npc %d", id)), false
	}
	return n, protocol.ResultMsg{}, true
}

func (w *World) handleExplore(cmd protocol.CmdMsg) protocol.ResultMsg {
	s, res, okSite := w.siteFor(cmd.SiteID)
	if !okSite {
		return res
	}

	adv, err := s.Advance(w.rng, cmd.BattleWon)
	if err != nil {
		return failErr(err)
	}
	w.bump()

	if adv.SiteCompleted {
		for _, id := range adv.UnlockSites {
			if _, exists := w.sites[id]; exists {
				w.unlocked[id] = true
			}
		}
	}

	data := map[string]any{
		"room_type": string(adv.RoomType),
		"won":       adv.Won,
		"progress":  s.CurrentProgressStr(),
		"site_done": s.IsSiteEnd(),
	}
	if len(adv.Deposited) > 0 {
		data["deposited"] = adv.Deposited
	}
	if adv.SecretEntryShown {
		data["secret_entry"] = true
	}
	if adv.SecretCompleted {
		data["secret_done"] = true
	}
	if len(adv.UnlockSites) > 0 {
		data["unlocked_sites"] = adv.UnlockSites
	}
	return ok(data)
}

func (w *World) handleEnterSecret(cmd protocol.CmdMsg) protocol.ResultMsg {
	s, res, okSite := w.siteFor(cmd.SiteID)
	if !okSite {
		return res
	}
	if err := s.EnterSecretRooms(); err != nil {
		return fail(protocol.ErrBadRequest, err.Error())
	}
	w.bump()
	return ok(map[string]any{
		"rooms":    len(s.SecretRooms),
		"progress": s.CurrentProgressStr(),
	})
}

func (w *World) handleLeaveSecret(cmd protocol.CmdMsg) protocol.ResultMsg {
	s, res, okSite := w.siteFor(cmd.SiteID)
	if !okSite {
		return res
	}
	if err := s.LeaveSecretRooms(); err != nil {
		return fail(protocol.ErrBadRequest, err.Error())
	}
	w.bump()
	return ok(map[string]any{"foreclosed": true})
}

func (w *World) handleWithdrawSite(cmd protocol.CmdMsg) protocol.ResultMsg {
	if w.trade != nil {
		return fail(protocol.ErrSessionOpen, "bag is locked by an open trade")
	}
	s, res, okSite := w.siteFor(cmd.SiteID)
	if !okSite {
		return res
	}

	// No item named: sweep the whole depository, best-effort per line.
	if cmd.ItemID == "" {
		failed := s.Storage.TransferAll(w.bag)
		w.bump()
		data := map[string]any{"remaining": s.AllItemNum()}
		if len(failed) > 0 {
			data["left_behind"] = stacksFromLines(failed)
		}
		return ok(data)
	}

	count := cmd.Count
	if count <= 0 {
		count = s.Storage.Count(cmd.ItemID)
	}
	if count <= 0 {
		return fail(protocol.ErrNoItems, fmt.Sprintf("site %d holds no %s", cmd.SiteID, cmd.ItemID))
	}
	if err := s.Withdraw(cmd.ItemID, count, w.bag); err != nil {
		return failErr(err)
	}
	w.bump()
	return ok(map[string]any{"moved": count, "bag_weight": w.bag.Weight()})
}

// handleBagMove serves the four fixed-pair transfer ops.
func (w *World) handleBagMove(cmd protocol.CmdMsg, from, to *inventory.Storage) protocol.ResultMsg {
	if w.trade != nil {
		return fail(protocol.ErrSessionOpen, "bag is locked by an open trade")
	}
	if cmd.ItemID == "" || cmd.Count <= 0 {
		return fail(protocol.ErrBadRequest, "item_id and positive count required")
	}
	if err := from.Transfer(cmd.ItemID, cmd.Count, to); err != nil {
		return failErr(err)
	}
	w.bump()
	return ok(map[string]any{
		"from_weight": from.Weight(),
		"to_weight":   to.Weight(),
	})
}

func (w *World) handleGiveNeedItem(cmd protocol.CmdMsg) protocol.ResultMsg {
	if w.trade != nil {
		return fail(protocol.ErrSessionOpen, "bag is locked by an open trade")
	}
	n, res, okNPC := w.npcFor(cmd.NPCID)
	if !okNPC {
		return res
	}

	need := n.NeedItem()
	if need == nil {
		return fail(protocol.ErrNoMatch, fmt.Sprintf("npc %d wants nothing right now", cmd.NPCID))
	}
	if err := n.TakeNeedItem(w.bag); err != nil {
		return failErr(err)
	}
	w.bump()

	data := map[string]any{
		"gave":       need.ItemID,
		"num":        need.Num,
		"reputation": n.Reputation,
	}
	if gifts := w.deliverGifts(n); len(gifts) > 0 {
		data["gifts"] = gifts
	}
	return ok(data)
}

// deliverGifts drains pending reputation gifts: item gifts land in home
// storage (the NPC drops them off), site gifts reveal locked sites.
func (w *World) deliverGifts(n *npc.NPC) []map[string]any {
	var out []map[string]any
	for _, g := range n.TakePendingGifts() {
		entry := map[string]any{}
		if g.ItemID != "" && g.Num > 0 {
			if err := w.home.Add(g.ItemID, g.Num); err == nil {
				entry["item"] = g.ItemID
				entry["num"] = g.Num
			}
		}
		if g.SiteID != 0 {
			if _, exists := w.sites[g.SiteID]; exists {
				w.unlocked[g.SiteID] = true
				entry["site"] = g.SiteID
			}
		}
		if len(entry) > 0 {
			out = append(out, entry)
		}
	}
	return out
}

func (w *World) handleRaidSite(cmd protocol.CmdMsg) protocol.ResultMsg {
	s, res, okSite := w.siteFor(cmd.SiteID)
	if !okSite {
		return res
	}
	ln, raided := s.Raid(w.rng, raidKeepList)
	if !raided {
		return ok(map[string]any{"raided": false})
	}
	w.bump()
	return ok(map[string]any{
		"raided": true,
		"lost":   protocol.ItemStack{Item: ln.ItemID, Count: ln.Count},
	})
}

func stacksFromLines(lines []inventory.Line) []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(lines))
	for _, ln := range lines {
		out = append(out, protocol.ItemStack{Item: ln.ItemID, Count: ln.Count})
	}
	return out
}
