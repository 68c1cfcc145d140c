package economy

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"ashfall.game/internal/sim/catalogs"
)

// legacyPatterns maps numeric wildcard codes from the original content set to
// symbolic category globs. Consulted once at resolution entry; nothing past
// the resolver ever sees a numeric code.
var legacyPatterns = map[string]string{
	"1101**": "item_mat_*",
	"1102**": "item_med_*",
	"1103**": "item_food_*",
	"1104**": "item_weapon_*",
	"1105**": "item_armor_*",
	"1106**": "item_tool_*",
	"1107**": "item_model_*",
	"1301**": "item_equip_*",
	"1305**": "item_ammo_*",
	"1305*1": "item_ammo_*",
}

// wildcardBlacklist lists items that must never drop from wildcard rolls:
// premium backpacks, quest items, and other hand-granted gear.
var wildcardBlacklist = map[string]struct{}{
	"item_ammo_enhanced_backpack":            {},
	"item_ammo_military_grade_backpack":      {},
	"item_special_dog":                       {},
	"item_special_first_aid_kit":             {},
	"item_equip_other_boot":                  {},
	"item_ammo_motorcycle":                   {},
	"item_ammo_strong_flashlight":            {},
	"item_ammo_hyper_detector":               {},
	"item_weapon_explosive_rocket_launcher":  {},
	"item_weapon_explosive_grenade":          {},
	"item_model_motorcycle_engine":           {},
	"item_buff_protoplasm_serum":             {},
	"item_buff_transmission_blocker":         {},
	"item_buff_stimpack":                     {},
	"item_buff_military_ration":              {},
	"item_mat_fertilizer":                    {},
}

// UnresolvableWildcardError reports a wildcard pattern with zero candidates.
// Callers must treat it as a hard failure of the whole generation, not a
// skippable roll.
type UnresolvableWildcardError struct {
	Pattern string
}

func (e *UnresolvableWildcardError) Error() string {
	return fmt.Sprintf("no item matches pattern %q", e.Pattern)
}

// Resolver turns item-id patterns into concrete item ids.
type Resolver struct {
	items *catalogs.ItemCatalog
}

func NewResolver(items *catalogs.ItemCatalog) *Resolver {
	return &Resolver{items: items}
}

// ResolveItemID resolves a pattern to one concrete item id.
//
// Exact ids pass through verbatim. Wildcard patterns select uniformly among
// the catalog ids that match and are not blacklisted; each candidate is
// equally likely regardless of any loot-table weight.
func (r *Resolver) ResolveItemID(rng *rand.Rand, pattern string) (string, error) {
	if sub, ok := legacyPatterns[pattern]; ok {
		pattern = sub
	}
	if !strings.Contains(pattern, "*") {
		return pattern, nil
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return "", fmt.Errorf("pattern %q: %w", pattern, err)
	}

	candidates := make([]string, 0, 16)
	for _, id := range r.items.IDs {
		if _, banned := wildcardBlacklist[id]; banned {
			continue
		}
		if re.MatchString(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", &UnresolvableWildcardError{Pattern: pattern}
	}
	return candidates[rng.IntN(len(candidates))], nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, `.*`)
	return regexp.Compile("^" + quoted + "$")
}
