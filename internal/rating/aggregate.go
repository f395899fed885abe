// Package rating keeps the denormalised rating_avg / rating_count pair of
// an entry in line with its reviews.
package rating

import (
	"context"
	"fmt"
)

// Aggregate is the derived rating summary stored on an entry.
type Aggregate struct {
	Avg   float64 `json:"rating_avg"`
	Count int     `json:"rating_count"`
}

// FetchFunc returns every rating currently recorded for entryID.
type FetchFunc func(ctx context.Context, entryID string) ([]int, error)

// WriteFunc persists agg on entryID.
type WriteFunc func(ctx context.Context, entryID string, agg Aggregate) error

// Compute returns the unrounded mean and the count of ratings.
// An empty set yields the zero Aggregate.
func Compute(ratings []int) Aggregate {
	if len(ratings) == 0 {
		return Aggregate{}
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return Aggregate{
		Avg:   float64(sum) / float64(len(ratings)),
		Count: len(ratings),
	}
}

// Recompute reads the full rating set for entryID, computes the aggregate
// and writes it back. The returned Aggregate is what was written.
func Recompute(ctx context.Context, entryID string, fetch FetchFunc, write WriteFunc) (Aggregate, error) {
	ratings, err := fetch(ctx, entryID)
	if err != nil {
		return Aggregate{}, fmt.Errorf("fetch ratings for %s: %w", entryID, err)
	}

	agg := Compute(ratings)
	if err := write(ctx, entryID, agg); err != nil {
		return Aggregate{}, fmt.Errorf("write aggregate for %s: %w", entryID, err)
	}
	return agg, nil
}
