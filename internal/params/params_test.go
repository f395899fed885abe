package params

import (
	"net/url"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		page   int
		offset int
	}{
		{"", DefaultLimit, 1, 0},
		{"limit=10&page=3", 10, 3, 20},
		{"limit=0", DefaultLimit, 1, 0},
		{"limit=500", MaxLimit, 1, 0},
		{"limit=abc&page=-2", DefaultLimit, 1, 0},
		{"page=2", DefaultLimit, 2, DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p := ParsePagination(q)
			if p.Limit != tt.limit || p.Page != tt.page || p.Offset != tt.offset {
				t.Fatalf("got %+v", p)
			}
		})
	}
}

func TestComputeMeta(t *testing.T) {
	p := Pagination{Limit: 10, Page: 2, Offset: 10}
	p.ComputeMeta(25)

	if p.TotalPages != 3 || !p.HasNext || !p.HasPrev || p.Total != 25 {
		t.Fatalf("got %+v", p)
	}

	p = Pagination{Limit: 10, Page: 1}
	p.ComputeMeta(0)
	if p.TotalPages != 0 || p.HasNext || p.HasPrev {
		t.Fatalf("empty result: %+v", p)
	}
}

func TestScalars(t *testing.T) {
	q, _ := url.ParseQuery("min_rating=4.5&promo_only=true&verified=maybe&bad=NaN&q=+vegas+")

	if v, ok := Float(q, "min_rating"); !ok || v != 4.5 {
		t.Fatalf("Float = %v, %v", v, ok)
	}
	if _, ok := Float(q, "bad"); ok {
		t.Fatal("NaN accepted")
	}
	if v, ok := Bool(q, "promo_only"); !ok || !v {
		t.Fatalf("Bool = %v, %v", v, ok)
	}
	if _, ok := Bool(q, "verified"); ok {
		t.Fatal("invalid bool accepted")
	}
	if _, ok := Bool(q, "missing"); ok {
		t.Fatal("missing bool reported present")
	}
	if s := String(q, "q"); s != "vegas" {
		t.Fatalf("String = %q", s)
	}
}
