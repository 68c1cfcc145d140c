package economy

import (
	"errors"
	"math/rand/v2"
)

// ErrEmptyTable means a weighted draw was attempted on an empty entry list.
// Well-formed config never triggers this; callers treat it as fatal.
var ErrEmptyTable = errors.New("weighted draw on empty table")

// Pick selects one entry with probability proportional to its weight.
//
// The roll is drawn from [0,total] inclusive of both ends; the walk returns
// the first entry whose cumulative weight reaches the roll. Existing balance
// tables depend on the inclusive draw, so it stays inclusive.
func Pick[E any](rng *rand.Rand, entries []E, weight func(E) int) (E, error) {
	var zero E
	if len(entries) == 0 {
		return zero, ErrEmptyTable
	}

	total := 0
	for _, e := range entries {
		total += weight(e)
	}

	r := rng.IntN(total + 1)
	acc := 0
	for _, e := range entries {
		acc += weight(e)
		if r <= acc {
			return e, nil
		}
	}
	// Unreached unless rounding starves the walk; never the primary path.
	return entries[len(entries)-1], nil
}
