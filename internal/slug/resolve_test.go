package slug

import (
	"context"
	"errors"
	"testing"
)

func setExists(taken ...string) ExistsFunc {
	set := make(map[string]bool, len(taken))
	for _, s := range taken {
		set[s] = true
	}
	return func(_ context.Context, slug, _ string) (bool, error) {
		return set[slug], nil
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		taken []string
		want  string
	}{
		{"free", nil, "royal-vegas"},
		{"base taken", []string{"royal-vegas"}, "royal-vegas-1"},
		{"base and first suffix taken", []string{"royal-vegas", "royal-vegas-1"}, "royal-vegas-2"},
		{"gap is reused", []string{"royal-vegas", "royal-vegas-2"}, "royal-vegas-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(context.Background(), "royal-vegas", "", setExists(tt.taken...))
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_PassesExcludeID(t *testing.T) {
	// the entry being edited owns "royal-vegas"; it must not collide with itself
	exists := func(_ context.Context, slug, excludeID string) (bool, error) {
		return slug == "royal-vegas" && excludeID != "entry-1", nil
	}

	got, err := Resolve(context.Background(), "royal-vegas", "entry-1", exists)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "royal-vegas" {
		t.Fatalf("Resolve = %q, want royal-vegas", got)
	}
}

func TestResolve_Exhausted(t *testing.T) {
	calls := 0
	always := func(context.Context, string, string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := Resolve(context.Background(), "busy", "", always)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if exhausted.Candidate != "busy" || exhausted.Attempts != MaxAttempts {
		t.Fatalf("unexpected error fields: %+v", exhausted)
	}
	if calls != MaxAttempts {
		t.Fatalf("probes = %d, want %d", calls, MaxAttempts)
	}
}

func TestResolve_StoreError(t *testing.T) {
	boom := errors.New("connection reset")
	failing := func(context.Context, string, string) (bool, error) {
		return false, boom
	}

	_, err := Resolve(context.Background(), "royal-vegas", "", failing)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, "royal-vegas", "", setExists())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
