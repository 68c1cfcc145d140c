package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"ashfall.game/internal/protocol"
	"ashfall.game/internal/sim/catalogs"
	"ashfall.game/internal/sim/tuning"
	"ashfall.game/internal/sim/world"
)

// cmd/sim drives the engine headlessly: explore every site to completion,
// sweep the depositories, and print what the economy produced. Useful for
// sanity-checking loot tables and produce budgets after a config change.
func main() {
	var (
		configDir = flag.String("configs", "./configs", "config directory")
		seed      = flag.Int64("seed", 1, "world seed")
		runs      = flag.Int("runs", 1, "number of fresh worlds to simulate")
		winRate   = flag.Int("win_rate", 100, "battle win percentage (0-100)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[sim] ", 0)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tune := tuning.Defaults()

	totals := map[string]int{}
	battles, won, secrets := 0, 0, 0

	for run := 0; run < *runs; run++ {
		w, err := world.New(world.Config{
			ID:   fmt.Sprintf("sim_%d", run),
			Seed: *seed + int64(run),
		}, cats, tune)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}

		b, wn, sc := exploreAll(w, *winRate)
		battles += b
		won += wn
		secrets += sc

		res := w.Apply(protocol.CmdMsg{Op: protocol.OpQuery, Subject: "sites"})
		if !res.OK {
			logger.Fatalf("query sites: %s", res.Message)
		}
		collect(w, totals)
	}

	logger.Printf("runs=%d battles=%d won=%d secret_rooms=%d", *runs, battles, won, secrets)
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		logger.Printf("%-48s %6d", id, totals[id])
	}
}

// exploreAll walks every unlocked site to the end, entering any secret rooms
// it stumbles into, until no site makes progress.
func exploreAll(w *world.World, winRate int) (battles, won, secrets int) {
	wins := 0
	for pass := 0; pass < 64; pass++ {
		progressed := false
		res := w.Apply(protocol.CmdMsg{Op: protocol.OpQuery, Subject: "sites"})
		sites, _ := res.Data["sites"].([]map[string]any)
		for _, entry := range sites {
			id, _ := entry["id"].(int)
			unlocked, _ := entry["unlocked"].(bool)
			done, _ := entry["site_done"].(bool)
			if !unlocked || done {
				continue
			}
			for step := 0; step < 256; step++ {
				battleWon := true
				q := w.Apply(protocol.CmdMsg{Op: protocol.OpQuery, Subject: "site", SiteID: id})
				if q.OK {
					if rt, _ := q.Data["room_type"].(string); rt == "battle" {
						battles++
						battleWon = wins%100 < winRate
						wins++
						if battleWon {
							won++
						}
					}
				}
				adv := w.Apply(protocol.CmdMsg{Op: protocol.OpExplore, SiteID: id, BattleWon: battleWon})
				if !adv.OK {
					break
				}
				progressed = true
				if entered, _ := adv.Data["secret_entry"].(bool); entered {
					if e := w.Apply(protocol.CmdMsg{Op: protocol.OpEnterSecret, SiteID: id}); e.OK {
						secrets++
					}
				}
				if doneNow, _ := adv.Data["site_done"].(bool); doneNow {
					break
				}
			}
		}
		if !progressed {
			break
		}
	}
	return battles, won, secrets
}

// collect sweeps every site depository through the bag into the running
// totals. The bag cap would throttle a real player; the census bypasses it by
// reading depositories directly.
func collect(w *world.World, totals map[string]int) {
	res := w.Apply(protocol.CmdMsg{Op: protocol.OpQuery, Subject: "sites"})
	sites, _ := res.Data["sites"].([]map[string]any)
	for _, entry := range sites {
		id, _ := entry["id"].(int)
		q := w.Apply(protocol.CmdMsg{Op: protocol.OpQuery, Subject: "site", SiteID: id})
		if !q.OK {
			continue
		}
		stacks, _ := q.Data["storage"].([]protocol.ItemStack)
		for _, st := range stacks {
			totals[st.Item] += st.Count
		}
	}
}
