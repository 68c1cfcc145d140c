package economy

import (
	"errors"
	"strings"
	"testing"

	"ashfall.game/internal/sim/catalogs"
)

func loadTestCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func TestResolver_ExactIDPassesThrough(t *testing.T) {
	cats := loadTestCatalogs(t)
	r := NewResolver(&cats.Items)
	rng := testRNG(1)

	id, err := r.ResolveItemID(rng, "item_mat_rope")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "item_mat_rope" {
		t.Fatalf("exact id changed: %q", id)
	}
}

func TestResolver_WildcardMatchesCategory(t *testing.T) {
	cats := loadTestCatalogs(t)
	r := NewResolver(&cats.Items)
	rng := testRNG(9)

	for i := 0; i < 100; i++ {
		id, err := r.ResolveItemID(rng, "item_med_*")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !strings.HasPrefix(id, "item_med_") {
			t.Fatalf("wildcard resolved outside category: %q", id)
		}
	}
}

func TestResolver_LegacyNumericCode(t *testing.T) {
	cats := loadTestCatalogs(t)
	r := NewResolver(&cats.Items)
	rng := testRNG(5)

	for i := 0; i < 50; i++ {
		id, err := r.ResolveItemID(rng, "1103**")
		if err != nil {
			t.Fatalf("resolve legacy code: %v", err)
		}
		if !strings.HasPrefix(id, "item_food_") {
			t.Fatalf("legacy food code resolved to %q", id)
		}
	}
}

func TestResolver_BlacklistNeverDrops(t *testing.T) {
	cats := loadTestCatalogs(t)
	r := NewResolver(&cats.Items)
	rng := testRNG(11)

	// item_special_dog and item_special_first_aid_kit are blacklisted;
	// item_special_big_bag is not, so the wildcard resolves only to it.
	for i := 0; i < 100; i++ {
		id, err := r.ResolveItemID(rng, "item_special_*")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if id != "item_special_big_bag" {
			t.Fatalf("blacklisted item dropped from wildcard: %q", id)
		}
	}
}

func TestResolver_FullyBlacklistedCategory(t *testing.T) {
	cats := loadTestCatalogs(t)
	r := NewResolver(&cats.Items)
	rng := testRNG(2)

	// Every item_ammo_* catalog entry is blacklisted, so the pattern has
	// zero candidates and must fail hard.
	_, err := r.ResolveItemID(rng, "item_ammo_*")
	var unresolvable *UnresolvableWildcardError
	if !errors.As(err, &unresolvable) {
		t.Fatalf("expected UnresolvableWildcardError, got %v", err)
	}
	if unresolvable.Pattern != "item_ammo_*" {
		t.Fatalf("error carries wrong pattern: %q", unresolvable.Pattern)
	}
}

func TestResolver_NoMatch(t *testing.T) {
	cats := loadTestCatalogs(t)
	r := NewResolver(&cats.Items)
	rng := testRNG(2)

	_, err := r.ResolveItemID(rng, "item_vehicle_*")
	var unresolvable *UnresolvableWildcardError
	if !errors.As(err, &unresolvable) {
		t.Fatalf("expected UnresolvableWildcardError, got %v", err)
	}
}
