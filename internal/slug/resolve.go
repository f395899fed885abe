package slug

import (
	"context"
	"fmt"
	"strconv"
)

// MaxAttempts bounds the number of existence probes Resolve makes.
const MaxAttempts = 10000

// ExistsFunc reports whether slug is already used by an entry other than
// excludeID. An empty excludeID excludes nothing.
type ExistsFunc func(ctx context.Context, slug, excludeID string) (bool, error)

// ExhaustedError is returned when every probed suffix was taken.
type ExhaustedError struct {
	Candidate string
	Attempts  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("slug %q: no free suffix after %d attempts", e.Candidate, e.Attempts)
}

// Resolve returns candidate if it is free, otherwise the first free
// candidate-1, candidate-2, ... suffix.
//
// The result is unique only at the moment of the last probe; callers
// writing it must still handle a unique violation from the store.
func Resolve(ctx context.Context, candidate, excludeID string, exists ExistsFunc) (string, error) {
	final := candidate
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		taken, err := exists(ctx, final, excludeID)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", final, err)
		}
		if !taken {
			return final, nil
		}

		final = candidate + "-" + strconv.Itoa(attempt)
	}

	return "", &ExhaustedError{Candidate: candidate, Attempts: MaxAttempts}
}
