// Package roller samples one result from a stored roll table according
// to its roll mode.
package roller

import (
	"context"
	"errors"
	"fmt"

	"github.com/gm-tools/encounterbot/internal/tables"
)

// ErrEmptyTable is returned when the selected table has no entries.
var ErrEmptyTable = errors.New("table has no entries")

// ErrNoValidWeights is returned when a weight-mode table has no entry
// with a weight.
var ErrNoValidWeights = errors.New("weight mode table has no valid weights")

// ErrMissingMaxRoll is returned when a range-mode table has no
// positive max roll.
var ErrMissingMaxRoll = errors.New("range mode table missing max_roll")

// ErrNoRangeMatched is returned when a range draw falls into a gap
// between entries. Coverage of 1..max_roll is not guaranteed by
// import validation, so this is a legitimate possible miss in the
// tenant's authored table, not a data corruption signal.
var ErrNoRangeMatched = errors.New("no range matched roll")

// Roller samples results from stored tables.
type Roller struct {
	store tables.Store
	src   Source
}

// New constructs a Roller.
//
// Precondition: store must be non-nil; src may be nil to use the
// crypto/rand-backed default.
func New(store tables.Store, src Source) *Roller {
	if src == nil {
		src = NewCryptoSource()
	}
	return &Roller{store: store, src: src}
}

// Roll fetches the table matching the selector exactly and samples one
// entry according to its roll mode. The second return value is a
// provenance label describing how the result was derived.
//
// Postcondition: Returns tables.ErrTableNotFound when no definition
// matches, ErrEmptyTable when it matches with zero entries, or a
// mode-specific failure; otherwise a non-empty result.
func (r *Roller) Roll(ctx context.Context, tenantID int64, group tables.Group, regionID *int, typeKey *string) (string, string, error) {
	def, err := r.store.Definition(ctx, tenantID, group, regionID, typeKey)
	if err != nil {
		return "", "", err
	}
	if len(def.Entries) == 0 {
		return "", "", ErrEmptyTable
	}

	switch def.Mode {
	case tables.ModeUniform:
		entry := def.Entries[r.src.Intn(len(def.Entries))]
		return entry.Result, "uniform", nil

	case tables.ModeWeight:
		return r.rollWeighted(def.Entries)

	case tables.ModeRange:
		return r.rollRange(def)

	default:
		return "", "", fmt.Errorf("unknown roll mode %q", def.Mode)
	}
}

// rollWeighted draws a uniform integer in [1, sum of weights] and
// walks the entries in stored order, returning the first whose
// cumulative weight reaches the draw. Entries without a weight are
// excluded from the candidate set.
func (r *Roller) rollWeighted(entries []tables.Entry) (string, string, error) {
	total := 0
	candidates := entries[:0:0]
	for _, e := range entries {
		if e.Weight == nil {
			continue
		}
		total += *e.Weight
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return "", "", ErrNoValidWeights
	}

	draw := r.src.Intn(total) + 1
	acc := 0
	for _, e := range candidates {
		acc += *e.Weight
		if draw <= acc {
			return e.Result, "weight", nil
		}
	}
	// Unreachable while total == sum(weights); kept as a guard.
	return candidates[len(candidates)-1].Result, "weight", nil
}

// rollRange draws a uniform integer in [1, MaxRoll] and returns the
// entry whose [min, max] interval contains the draw.
func (r *Roller) rollRange(def tables.Definition) (string, string, error) {
	if def.MaxRoll == nil || *def.MaxRoll <= 0 {
		return "", "", ErrMissingMaxRoll
	}

	maxRoll := *def.MaxRoll
	draw := r.src.Intn(maxRoll) + 1
	for _, e := range def.Entries {
		if e.Min == nil || e.Max == nil {
			continue
		}
		if *e.Min <= draw && draw <= *e.Max {
			return e.Result, fmt.Sprintf("range d%d=%d", maxRoll, draw), nil
		}
	}
	return "", "", fmt.Errorf("%w %d", ErrNoRangeMatched, draw)
}
