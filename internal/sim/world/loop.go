package world

import (
	"context"
	"time"

	"ashfall.game/internal/protocol"
)

// CmdEnvelope carries one command into the loop goroutine. Resp receives
// exactly one result; it must be buffered (cap >= 1) so the loop never
// blocks on a slow client.
type CmdEnvelope struct {
	Cmd  protocol.CmdMsg
	Resp chan protocol.ResultMsg
}

func (w *World) Inbox() chan<- CmdEnvelope { return w.inbox }

func (w *World) Stop() { close(w.stop) }

// Run owns all world state until it returns. Commands run to completion one
// at a time; snapshots are exported on a timer and handed to the sink, with
// the actual disk write happening off-thread.
func (w *World) Run(ctx context.Context) error {
	interval := time.Duration(w.tun.SnapshotEverySec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case env := <-w.inbox:
			env.Resp <- w.Apply(env.Cmd)
		case <-ticker.C:
			w.emitSnapshot()
		}
	}
}

func (w *World) emitSnapshot() {
	if w.snapshotSink == nil {
		return
	}
	snap := w.ExportSnapshot()
	select {
	case w.snapshotSink <- snap:
	default:
		// Writer is behind; skip this cadence rather than stall the loop.
	}
}

// Do submits a command and waits for its result. Safe from any goroutine
// while Run is live.
func (w *World) Do(ctx context.Context, cmd protocol.CmdMsg) (protocol.ResultMsg, error) {
	resp := make(chan protocol.ResultMsg, 1)
	select {
	case w.inbox <- CmdEnvelope{Cmd: cmd, Resp: resp}:
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	}
	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	}
}
