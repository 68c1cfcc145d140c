package economy

import (
	"fmt"
	"math/rand/v2"

	"ashfall.game/internal/sim/catalogs"
)

// Generator rolls loot-table entries against a value budget.
type Generator struct {
	items    *catalogs.ItemCatalog
	resolver *Resolver
}

func NewGenerator(items *catalogs.ItemCatalog) *Generator {
	return &Generator{items: items, resolver: NewResolver(items)}
}

func (g *Generator) Resolver() *Resolver { return g.resolver }

// RollValue draws weighted entries from list until their summed value meets
// the budget. The loop decrements, it does not hit the budget exactly: the
// final drop may overshoot, so the result is always worth >= produceValue.
// A failed wildcard resolution fails the whole roll; dropping it silently
// would understate the promised value.
func (g *Generator) RollValue(rng *rand.Rand, produceValue int, list []catalogs.ProduceEntry) ([]string, error) {
	var itemIDs []string
	remaining := produceValue

	for remaining > 0 {
		entry, err := Pick(rng, list, func(e catalogs.ProduceEntry) int { return e.Weight })
		if err != nil {
			return nil, err
		}
		id, err := g.resolver.ResolveItemID(rng, entry.ItemID)
		if err != nil {
			return nil, err
		}
		def, ok := g.items.Defs[id]
		if !ok {
			return nil, fmt.Errorf("loot roll: unknown item %q", id)
		}
		// Catalog load guarantees value > 0, so the loop terminates.
		remaining -= def.Value
		itemIDs = append(itemIDs, id)
	}
	return itemIDs, nil
}
