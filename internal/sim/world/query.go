package world

import (
	"fmt"

	"ashfall.game/internal/protocol"
	"ashfall.game/internal/sim/inventory"
)

// handleQuery serves read-only projections. Queries never bump the version
// counter and never reach the audit trail.
func (w *World) handleQuery(cmd protocol.CmdMsg) protocol.ResultMsg {
	switch cmd.Subject {
	case "bag":
		return ok(inventoryData(w.bag))
	case "home":
		return ok(inventoryData(w.home))
	case "safe":
		data := inventoryData(w.safe)
		data["built"] = w.safeBuilt
		return ok(data)
	case "site":
		return w.querySite(cmd.SiteID)
	case "sites":
		return w.querySites()
	case "npc":
		return w.queryNPC(cmd.NPCID)
	case "npcs":
		return w.queryNPCs()
	case "world":
		return ok(map[string]any{
			"id":      w.cfg.ID,
			"seed":    w.cfg.Seed,
			"version": w.seq.Load(),
		})
	default:
		return fail(protocol.ErrBadRequest, fmt.Sprintf("unknown query subject %q", cmd.Subject))
	}
}

func inventoryData(s *inventory.Storage) map[string]any {
	return map[string]any{
		"items":      stacksFromLines(s.Lines()),
		"weight":     s.Weight(),
		"max_weight": s.MaxWeight(),
	}
}

func (w *World) querySite(id int) protocol.ResultMsg {
	s, okSite := w.sites[id]
	if !okSite {
		return fail(protocol.ErrInvalidTarget, fmt.Sprintf("no site %d", id))
	}
	data := map[string]any{
		"id":        s.ID,
		"pos":       s.Pos,
		"unlocked":  w.unlocked[id],
		"progress":  s.ProgressStr(),
		"site_done": s.IsSiteEnd(),
		"can_close": s.CanClose(),
		"closed":    s.Closed,
		"items":     s.AllItemNum(),
		"storage":   stacksFromLines(s.Storage.Lines()),
		"new_items": s.HaveNewItems,
		"raided":    s.UnderAttack,
	}
	if room, inRange := s.CurrentRoom(); inRange {
		data["room_type"] = string(room.Type)
		if room.Type == "battle" {
			data["difficulty"] = room.Difficulty
			data["monsters"] = room.Monsters
		} else {
			data["work_type"] = room.WorkType
		}
	}
	if s.SecretEntryShown {
		data["secret_entry"] = true
	}
	if s.InSecretRooms {
		data["secret_progress"] = s.CurrentProgressStr()
	}
	return ok(data)
}

func (w *World) querySites() protocol.ResultMsg {
	list := make([]map[string]any, 0, len(w.siteIDs))
	for _, id := range w.siteIDs {
		s := w.sites[id]
		list = append(list, map[string]any{
			"id":        id,
			"unlocked":  w.unlocked[id],
			"progress":  s.ProgressStr(),
			"site_done": s.IsSiteEnd(),
			"closed":    s.Closed,
			"items":     s.AllItemNum(),
		})
	}
	return ok(map[string]any{"sites": list})
}

func (w *World) queryNPC(id int) protocol.ResultMsg {
	n, okNPC := w.npcs[id]
	if !okNPC {
		return fail(protocol.ErrInvalidTarget, fmt.Sprintf("no npc %d", id))
	}
	data := map[string]any{
		"id":            n.ID,
		"pos":           n.Pos,
		"reputation":    n.Reputation,
		"max_rep":       n.MaxRep,
		"alert":         n.Alert,
		"trading_count": n.TradingCount,
		"stock":         stacksFromLines(n.Storage.Lines()),
	}
	if need := n.NeedItem(); need != nil {
		data["need_item"] = protocol.ItemStack{Item: need.ItemID, Count: need.Num}
	}
	return ok(data)
}

func (w *World) queryNPCs() protocol.ResultMsg {
	list := make([]map[string]any, 0, len(w.npcIDs))
	for _, id := range w.npcIDs {
		n := w.npcs[id]
		list = append(list, map[string]any{
			"id":         id,
			"reputation": n.Reputation,
			"alert":      n.Alert,
		})
	}
	return ok(map[string]any{"npcs": list})
}
