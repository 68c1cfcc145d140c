package world

import (
	"errors"
	"fmt"

	"ashfall.game/internal/protocol"
	"ashfall.game/internal/sim/npc"
)

func (w *World) handleTrade(cmd protocol.CmdMsg) protocol.ResultMsg {
	if cmd.Op == protocol.OpTradeOpen {
		return w.handleTradeOpen(cmd)
	}
	if w.trade == nil {
		return fail(protocol.ErrNoSession, "no trade session open")
	}

	switch cmd.Op {
	case protocol.OpTradeOffer:
		return w.tradeMove(cmd, w.trade.Offer)
	case protocol.OpTradeRetract:
		return w.tradeMove(cmd, w.trade.Retract)
	case protocol.OpTradeTake:
		return w.tradeMove(cmd, w.trade.Take)
	case protocol.OpTradeReturn:
		return w.tradeMove(cmd, w.trade.Return)
	case protocol.OpTradeCommit:
		return w.handleTradeCommit()
	case protocol.OpTradeCancel:
		return w.handleTradeCancel()
	default:
		return fail(protocol.ErrBadRequest, fmt.Sprintf("unknown trade op %q", cmd.Op))
	}
}

func (w *World) handleTradeOpen(cmd protocol.CmdMsg) protocol.ResultMsg {
	if w.trade != nil {
		return fail(protocol.ErrSessionOpen, fmt.Sprintf("trade with npc %d already open", w.tradeNPC))
	}
	n, res, okNPC := w.npcFor(cmd.NPCID)
	if !okNPC {
		return res
	}
	w.trade = npc.NewTradeSession(n, w.bag)
	w.tradeNPC = cmd.NPCID
	return ok(map[string]any{
		"npc":        cmd.NPCID,
		"reputation": n.Reputation,
		"stock":      stacksFromLines(n.Storage.Lines()),
	})
}

func (w *World) tradeMove(cmd protocol.CmdMsg, move func(string, int) error) protocol.ResultMsg {
	if cmd.ItemID == "" || cmd.Count <= 0 {
		return fail(protocol.ErrBadRequest, "item_id and positive count required")
	}
	if err := move(cmd.ItemID, cmd.Count); err != nil {
		if errors.Is(err, npc.ErrTradeFlushed) {
			return fail(protocol.ErrNoSession, err.Error())
		}
		return failErr(err)
	}
	return ok(w.tradeStatus())
}

func (w *World) tradeStatus() map[string]any {
	return map[string]any{
		"offered_value": w.trade.OfferedValue(),
		"taken_value":   w.trade.TakenValue(),
		"balance":       w.trade.Balance(),
		"acceptable":    w.trade.Acceptable(),
	}
}

func (w *World) handleTradeCommit() protocol.ResultMsg {
	err := w.trade.Commit()
	switch {
	case err == nil:
		w.trade = nil
		w.tradeNPC = 0
		w.bump()
		return ok(map[string]any{
			"committed":  true,
			"bag_weight": w.bag.Weight(),
		})
	case errors.Is(err, npc.ErrTradeUnacceptable), errors.Is(err, npc.ErrNothingTaken):
		// Session stays open; the player can rebalance and retry.
		return fail(protocol.ErrBadTrade, err.Error())
	case errors.Is(err, npc.ErrTradeFlushed):
		return fail(protocol.ErrNoSession, err.Error())
	default:
		return failErr(err)
	}
}

func (w *World) handleTradeCancel() protocol.ResultMsg {
	if err := w.trade.Cancel(); err != nil {
		return fail(protocol.ErrNoSession, err.Error())
	}
	w.trade = nil
	w.tradeNPC = 0
	return ok(map[string]any{"cancelled": true})
}
