package entries

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"casinodir/internal/rating"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

const entryID = "5f0c8a52-8a1b-4c55-9a51-54a3a0c3e001"

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewRepository(mock)
}

func TestSlugExists(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM casinos WHERE slug = \$1 AND id::text <> \$2\)`).
		WithArgs("royal-vegas", entryID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	got, err := repo.SlugExists(context.Background(), "royal-vegas", entryID)
	if err != nil {
		t.Fatalf("SlugExists: %v", err)
	}
	if !got {
		t.Fatal("SlugExists = false, want true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWriteAggregate(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec(`UPDATE casinos SET rating_avg = \$1, rating_count = \$2 WHERE id = \$3`).
		WithArgs(4.0, 3, entryID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.WriteAggregate(context.Background(), entryID, rating.Aggregate{Avg: 4, Count: 3}); err != nil {
		t.Fatalf("WriteAggregate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWriteAggregate_MissingEntry(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec(`UPDATE casinos SET rating_avg`).
		WithArgs(0.0, 0, entryID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.WriteAggregate(context.Background(), entryID, rating.Aggregate{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLockForUpdate(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(`SELECT id::text FROM casinos WHERE id = \$1 FOR UPDATE`).
		WithArgs(entryID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(entryID))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if err := repo.LockForUpdate(context.Background(), entryID); err != nil {
		t.Fatalf("LockForUpdate: %v", err)
	}
	if err := repo.LockForUpdate(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetSlug_Conflict(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec(`UPDATE casinos SET slug = \$1`).
		WithArgs("royal-vegas", entryID).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: SlugConstraint})

	err := repo.SetSlug(context.Background(), entryID, "royal-vegas")
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("err = %v, want ErrSlugTaken", err)
	}
}

func TestListMissingSlug(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(`SELECT id::text, name FROM casinos WHERE slug IS NULL OR slug = ''`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow("a", "Royal Vegas").
			AddRow("b", "Казино Рояль"))

	got, err := repo.ListMissingSlug(context.Background())
	if err != nil {
		t.Fatalf("ListMissingSlug: %v", err)
	}
	if len(got) != 2 || got[1].Name != "Казино Рояль" {
		t.Fatalf("unexpected stubs: %+v", got)
	}
}

func TestDeleteAndClearReferences(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec(`UPDATE casinos SET sister_site_of = NULL`).
		WithArgs(entryID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`DELETE FROM casinos WHERE id = \$1`).
		WithArgs(entryID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := repo.ClearSisterReferences(context.Background(), entryID)
	if err != nil || n != 2 {
		t.Fatalf("ClearSisterReferences = %d, %v; want 2, nil", n, err)
	}
	if err := repo.Delete(context.Background(), entryID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	mock, repo := newMock(t)

	bonus := "200% up to $500"
	featured := true

	mock.ExpectExec(`UPDATE casinos SET bonus = \$1, is_featured = \$2, updated_at = now\(\) WHERE id = \$3`).
		WithArgs(bonus, featured, entryID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Update(context.Background(), entryID, Patch{Bonus: &bonus, IsFeatured: &featured}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := repo.Update(context.Background(), entryID, Patch{}); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("empty patch err = %v, want ErrNoChanges", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdate_ClearsNullableColumns(t *testing.T) {
	mock, repo := newMock(t)

	title := "Royal Vegas Review"
	mock.ExpectExec(`UPDATE casinos SET title = \$1, promo_code_expires_at = NULL, editorial_rating = NULL, sister_site_of = NULL, updated_at = now\(\) WHERE id = \$2`).
		WithArgs(title, entryID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	p := Patch{
		Title:              Some(title),
		PromoCodeExpiresAt: Clear[time.Time](),
		EditorialRating:    Clear[float64](),
		SisterSiteOf:       Some(""),
	}
	if err := repo.Update(context.Background(), entryID, p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPatchDecode(t *testing.T) {
	var p Patch
	if err := json.Unmarshal([]byte(`{"promo_code_expires_at": null, "country": "Malta"}`), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !p.PromoCodeExpiresAt.Set || !p.PromoCodeExpiresAt.Null {
		t.Errorf("null expiry not marked clear: %+v", p.PromoCodeExpiresAt)
	}
	if v := p.Country.Ptr(); v == nil || *v != "Malta" {
		t.Errorf("country = %v, want Malta", v)
	}
	if p.Title.Set {
		t.Error("absent title marked set")
	}
	if p.Empty() {
		t.Error("patch with a cleared field reported empty")
	}
}

func TestBuildWhere(t *testing.T) {
	verified := true
	where, args := buildWhere(Filter{
		Query:     "vegas",
		Type:      TypeSisterSite,
		MinRating: 3.5,
		PromoOnly: true,
		Verified:  &verified,
	})

	want := " WHERE (name ILIKE $1 OR bonus ILIKE $1 OR COALESCE(description, '') ILIKE $1)" +
		" AND entry_type = $2 AND rating_avg >= $3" +
		" AND promo_code IS NOT NULL AND promo_code <> '' AND (promo_code_expires_at IS NULL OR promo_code_expires_at > now())" +
		" AND verified = $4"
	if where != want {
		t.Fatalf("where =\n%s\nwant\n%s", where, want)
	}
	if len(args) != 4 || args[0] != "%vegas%" || args[1] != "sister-site" {
		t.Fatalf("unexpected args: %v", args)
	}

	if where, args := buildWhere(Filter{}); where != "" || len(args) != 0 {
		t.Fatalf("empty filter produced %q %v", where, args)
	}
}

func TestCount(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM casinos`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))

	n, err := repo.Count(context.Background())
	if err != nil || n != 5 {
		t.Fatalf("Count = %d, %v; want 5, nil", n, err)
	}
}
