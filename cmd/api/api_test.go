package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"casinodir/internal/auth"
	"casinodir/internal/config"
	"casinodir/internal/directory"
	"casinodir/internal/domain/entries"
	"casinodir/internal/domain/storage/memstore"
	"casinodir/internal/domain/users"
	"casinodir/internal/ratelimiter"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	testSecret       = "test-secret"
	maintenanceToken = "maint-token"
)

type fakeMedia struct {
	uploads int
	deleted []string
}

func (f *fakeMedia) UploadLogo(_ context.Context, file io.Reader, entryID string) (string, error) {
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	f.uploads++
	return "https://res.cloudinary.com/demo/image/upload/v1/casino-logos/" + entryID + ".png", nil
}

func (f *fakeMedia) Delete(_ context.Context, assetURL string) error {
	f.deleted = append(f.deleted, assetURL)
	return nil
}

type testEnv struct {
	app   *application
	mux   http.Handler
	store *memstore.Store
	jwt   *auth.JWTAuthenticator
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.Basic = config.Basic{User: "ops", Pass: "secret"}
	cfg.Maintenance.Token = maintenanceToken
	cfg.RateLimiter = ratelimiter.Config{RequestsPerTimeFrame: 100, TimeFrame: time.Minute, Enabled: true}
	for _, m := range mutate {
		m(&cfg)
	}

	ms := memstore.New()
	logger := zap.NewNop().Sugar()
	jwtAuth := auth.NewJWTAuthenticator(testSecret, cfg.Auth.Token.Audience, "")

	rl := ratelimiter.NewFixedWindowLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
	t.Cleanup(rl.Stop)

	app := &application{
		config:        cfg,
		logger:        logger,
		dir:           directory.New(ms.Repos(), ms, logger),
		users:         ms.Repos().Users,
		authenticator: jwtAuth,
		rateLimiter:   rl,
	}
	return &testEnv{app: app, mux: app.mount(), store: ms, jwt: jwtAuth}
}

// login registers a profile and returns a bearer token for it.
func (e *testEnv) login(t *testing.T, email string, admin bool) (string, string) {
	t.Helper()
	id := uuid.NewString()
	e.store.PutProfile(users.Profile{ID: id, Email: email, IsAdmin: admin})
	token, err := e.jwt.IssueAccessToken(id, email, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return id, token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, authz string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func bearer(token string) string { return "Bearer " + token }

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rr.Body.String())
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d: %s", rr.Code, want, rr.Body.String())
	}
}

func (e *testEnv) createEntry(t *testing.T, in directory.EntryInput) *entries.Entry {
	t.Helper()
	got, err := e.app.dir.CreateEntry(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.createEntry(t, directory.EntryInput{Name: "Royal Vegas"})

	rr := env.do(t, http.MethodGet, "/v1/health", nil, "")
	expectStatus(t, rr, http.StatusOK)

	var h HealthResponse
	decodeData(t, rr, &h)
	if h.Status != "ok" || h.Tables["casinos"].Count != 1 {
		t.Fatalf("health = %+v", h)
	}

	env.store.Fail["CountEntries"] = context.DeadlineExceeded
	expectStatus(t, env.do(t, http.MethodGet, "/v1/health", nil, ""), http.StatusServiceUnavailable)
}

func TestListEntries(t *testing.T) {
	env := newTestEnv(t)
	env.createEntry(t, directory.EntryInput{Name: "Royal Vegas", License: "Malta Gaming Authority"})
	env.createEntry(t, directory.EntryInput{Name: "Betway", License: "UK Gambling Commission"})
	env.createEntry(t, directory.EntryInput{Name: "Casino Blog", Type: entries.TypeBlog})

	rr := env.do(t, http.MethodGet, "/v1/entries?type=casino&limit=1", nil, "")
	expectStatus(t, rr, http.StatusOK)

	var list EntryListResponse
	decodeData(t, rr, &list)
	if len(list.Entries) != 1 || list.Pagination.Total != 2 || !list.Pagination.HasNext {
		t.Fatalf("list = %+v", list)
	}

	rr = env.do(t, http.MethodGet, "/v1/entries?license=UK+Gambling+Commission", nil, "")
	decodeData(t, rr, &list)
	if len(list.Entries) != 1 || list.Entries[0].Name != "Betway" {
		t.Fatalf("license filter = %+v", list.Entries)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/v1/entries?type=proxy", nil, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/entries?min_rating=9", nil, ""), http.StatusBadRequest)

	rr = env.do(t, http.MethodGet, "/v1/entries/facets", nil, "")
	expectStatus(t, rr, http.StatusOK)
	var f entries.Facets
	decodeData(t, rr, &f)
	if len(f.Licenses) != 2 {
		t.Fatalf("facets = %+v", f)
	}
}

func TestGetEntry(t *testing.T) {
	env := newTestEnv(t)
	e := env.createEntry(t, directory.EntryInput{Name: "Royal Vegas Casino"})

	for _, ref := range []string{"royal-vegas-casino", e.ID} {
		rr := env.do(t, http.MethodGet, "/v1/entries/"+ref, nil, "")
		expectStatus(t, rr, http.StatusOK)

		var d directory.Detail
		decodeData(t, rr, &d)
		if d.Entry.ID != e.ID {
			t.Fatalf("GET %s returned %s", ref, d.Entry.ID)
		}
	}

	expectStatus(t, env.do(t, http.MethodGet, "/v1/entries/unknown", nil, ""), http.StatusNotFound)
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	e := env.createEntry(t, directory.EntryInput{Name: "Royal Vegas Casino"})
	path := "/v1/entries/" + e.ID + "/reviews"

	expectStatus(t, env.do(t, http.MethodPost, path, directory.ReviewInput{Username: "a", Rating: 5, Comment: "x"}, ""), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodPost, path, directory.ReviewInput{Username: "a", Rating: 5, Comment: "x"}, "Bearer nope"), http.StatusUnauthorized)

	_, alice := env.login(t, "alice@example.com", false)
	_, bob := env.login(t, "bob@example.com", false)
	_, admin := env.login(t, "admin@example.com", true)

	rr := env.do(t, http.MethodPost, path, directory.ReviewInput{Username: "alice", Rating: 5, Comment: "fast payouts"}, bearer(alice))
	expectStatus(t, rr, http.StatusCreated)
	var first ReviewResponse
	decodeData(t, rr, &first)
	if first.Aggregate.Avg != 5 || first.Aggregate.Count != 1 {
		t.Fatalf("aggregate = %+v", first.Aggregate)
	}

	rr = env.do(t, http.MethodPost, path, directory.ReviewInput{Username: "bob", Rating: 3, Comment: "ok"}, bearer(bob))
	expectStatus(t, rr, http.StatusCreated)
	var second ReviewResponse
	decodeData(t, rr, &second)
	if second.Aggregate.Avg != 4 || second.Aggregate.Count != 2 {
		t.Fatalf("aggregate = %+v", second.Aggregate)
	}

	rr = env.do(t, http.MethodPost, path, directory.ReviewInput{Username: "bob", Rating: 9, Comment: "ok"}, bearer(bob))
	expectStatus(t, rr, http.StatusBadRequest)
	if !strings.Contains(rr.Body.String(), "please select a rating") {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, path, nil, "")
	expectStatus(t, rr, http.StatusOK)
	var list []map[string]any
	decodeData(t, rr, &list)
	if len(list) != 2 {
		t.Fatalf("reviews = %d", len(list))
	}

	rr = env.do(t, http.MethodGet, "/v1/entries/"+e.Slug+"/reviews", nil, "")
	expectStatus(t, rr, http.StatusOK)
	var bySlug []map[string]any
	decodeData(t, rr, &bySlug)
	if len(bySlug) != 2 {
		t.Fatalf("reviews by slug = %d, want 2", len(bySlug))
	}
	expectStatus(t, env.do(t, http.MethodGet, "/v1/entries/no-such-casino/reviews", nil, ""), http.StatusNotFound)

	expectStatus(t, env.do(t, http.MethodDelete, "/v1/reviews/"+first.Review.ID, nil, bearer(bob)), http.StatusForbidden)

	rr = env.do(t, http.MethodDelete, "/v1/reviews/"+first.Review.ID, nil, bearer(alice))
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodDelete, "/v1/reviews/"+second.Review.ID, nil, bearer(admin))
	expectStatus(t, rr, http.StatusOK)
	var agg struct {
		Avg   float64 `json:"rating_avg"`
		Count int     `json:"rating_count"`
	}
	decodeData(t, rr, &agg)
	if agg.Avg != 0 || agg.Count != 0 {
		t.Fatalf("aggregate after deleting all = %+v", agg)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/v1/entries/"+uuid.NewString()+"/reviews", directory.ReviewInput{Username: "a", Rating: 4, Comment: "x"}, bearer(alice)), http.StatusNotFound)
}

func TestReviewRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.RateLimiter.RequestsPerTimeFrame = 1
	})
	e := env.createEntry(t, directory.EntryInput{Name: "Betway"})
	_, alice := env.login(t, "alice@example.com", false)
	path := "/v1/entries/" + e.ID + "/reviews"

	expectStatus(t, env.do(t, http.MethodPost, path, directory.ReviewInput{Username: "alice", Rating: 4, Comment: "x"}, bearer(alice)), http.StatusCreated)

	rr := env.do(t, http.MethodPost, path, directory.ReviewInput{Username: "alice", Rating: 4, Comment: "y"}, bearer(alice))
	expectStatus(t, rr, http.StatusTooManyRequests)
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}

func TestRateLimiterMiddleware_AnonymousKeyIgnoresPort(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.RateLimiter.RequestsPerTimeFrame = 1
	})
	h := env.app.RateLimiterMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i, tc := range []struct {
		addr string
		want int
	}{
		{"203.0.113.7:50000", http.StatusNoContent},
		{"203.0.113.7:50001", http.StatusTooManyRequests},
		{"198.51.100.2:50000", http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = tc.addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("request %d from %s: status %d, want %d", i, tc.addr, rr.Code, tc.want)
		}
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.login(t, "alice@example.com", true)

	rr := env.do(t, http.MethodGet, "/v1/me", nil, bearer(token))
	expectStatus(t, rr, http.StatusOK)

	var p users.Profile
	decodeData(t, rr, &p)
	if p.ID != id || !p.IsAdmin {
		t.Fatalf("profile = %+v", p)
	}

	// first sighting of a token subject creates the profile
	fresh := uuid.NewString()
	tok, _ := env.jwt.IssueAccessToken(fresh, "new@example.com", time.Hour)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/me", nil, bearer(tok)), http.StatusOK)
	if _, err := env.store.Repos().Users.GetByID(context.Background(), fresh); err != nil {
		t.Fatalf("profile not created: %v", err)
	}

	// a token without an email claim keeps the stored address
	bare, _ := env.jwt.IssueAccessToken(id, "", time.Hour)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/me", nil, bearer(bare)), http.StatusOK)
	if _, err := env.store.Repos().Users.GetByEmail(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("email lost after emailless token: %v", err)
	}
}

func TestAdminEntries(t *testing.T) {
	env := newTestEnv(t)
	_, user := env.login(t, "user@example.com", false)
	_, admin := env.login(t, "admin@example.com", true)

	in := map[string]any{"name": "Royal Vegas Casino", "bonus": "100 free spins", "license": "Malta Gaming Authority"}
	expectStatus(t, env.do(t, http.MethodPost, "/v1/admin/entries", in, bearer(user)), http.StatusForbidden)

	rr := env.do(t, http.MethodPost, "/v1/admin/entries", in, bearer(admin))
	expectStatus(t, rr, http.StatusCreated)
	var created entries.Entry
	decodeData(t, rr, &created)
	if created.Slug != "royal-vegas-casino" || created.Type != entries.TypeCasino {
		t.Fatalf("created = %+v", created)
	}

	rr = env.do(t, http.MethodPost, "/v1/admin/entries", in, bearer(admin))
	expectStatus(t, rr, http.StatusCreated)
	var dup entries.Entry
	decodeData(t, rr, &dup)
	if dup.Slug != "royal-vegas-casino-1" {
		t.Fatalf("duplicate slug = %q", dup.Slug)
	}

	bad := map[string]any{"name": "Old Proxy", "entry_type": "proxy"}
	expectStatus(t, env.do(t, http.MethodPost, "/v1/admin/entries", bad, bearer(admin)), http.StatusBadRequest)
	unknown := map[string]any{"name": "X", "rating_avg": 5}
	expectStatus(t, env.do(t, http.MethodPost, "/v1/admin/entries", unknown, bearer(admin)), http.StatusBadRequest)

	patch := map[string]any{"name": "Royal Vegas", "is_featured": true}
	rr = env.do(t, http.MethodPatch, "/v1/admin/entries/"+created.ID, patch, bearer(admin))
	expectStatus(t, rr, http.StatusOK)
	var updated entries.Entry
	decodeData(t, rr, &updated)
	if updated.Name != "Royal Vegas" || updated.Slug != "royal-vegas-casino" || !updated.IsFeatured {
		t.Fatalf("updated = %+v", updated)
	}

	expectStatus(t, env.do(t, http.MethodPatch, "/v1/admin/entries/"+created.ID, map[string]any{"rating_count": 3}, bearer(admin)), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPatch, "/v1/admin/entries/"+created.ID, map[string]any{"editorial_rating": 7}, bearer(admin)), http.StatusBadRequest)

	rr = env.do(t, http.MethodPatch, "/v1/admin/entries/"+created.ID, map[string]any{"editorial_rating": 4.5, "title": "Royal Vegas Review"}, bearer(admin))
	expectStatus(t, rr, http.StatusOK)
	rr = env.do(t, http.MethodPatch, "/v1/admin/entries/"+created.ID, map[string]any{"editorial_rating": nil, "title": nil}, bearer(admin))
	expectStatus(t, rr, http.StatusOK)
	var cleared entries.Entry
	decodeData(t, rr, &cleared)
	if cleared.EditorialRating != nil || cleared.Title != nil {
		t.Fatalf("null did not clear: rating=%v title=%v", cleared.EditorialRating, cleared.Title)
	}
	expectStatus(t, env.do(t, http.MethodPatch, "/v1/admin/entries/"+uuid.NewString(), patch, bearer(admin)), http.StatusNotFound)

	expectStatus(t, env.do(t, http.MethodPost, "/v1/admin/entries/"+created.ID+"/recompute", nil, bearer(admin)), http.StatusOK)

	rr = env.do(t, http.MethodGet, "/v1/admin/dashboard", nil, bearer(admin))
	expectStatus(t, rr, http.StatusOK)
	var dash directory.Dashboard
	decodeData(t, rr, &dash)
	if len(dash.Entries) != 2 {
		t.Fatalf("dashboard entries = %d", len(dash.Entries))
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/v1/admin/entries/"+created.ID, nil, bearer(admin)), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/entries/royal-vegas-casino", nil, ""), http.StatusNotFound)
}

func logoRequest(t *testing.T, path, contentType, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="logo"; filename="logo.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("\x89PNG fake image"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(token))
	return req
}

func TestUploadLogo(t *testing.T) {
	env := newTestEnv(t)
	e := env.createEntry(t, directory.EntryInput{Name: "LeoVegas"})
	_, admin := env.login(t, "admin@example.com", true)
	path := "/v1/admin/entries/" + e.ID + "/logo"

	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, logoRequest(t, path, "image/png", admin))
	expectStatus(t, rr, http.StatusServiceUnavailable)

	media := &fakeMedia{}
	env.app.media = media
	env.mux = env.app.mount()

	rr = httptest.NewRecorder()
	env.mux.ServeHTTP(rr, logoRequest(t, path, "text/plain", admin))
	expectStatus(t, rr, http.StatusBadRequest)

	rr = httptest.NewRecorder()
	env.mux.ServeHTTP(rr, logoRequest(t, path, "image/png", admin))
	expectStatus(t, rr, http.StatusOK)
	var got entries.Entry
	decodeData(t, rr, &got)
	if !strings.Contains(got.LogoURL, e.ID) || media.uploads != 1 {
		t.Fatalf("logo = %q uploads = %d", got.LogoURL, media.uploads)
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/v1/admin/entries/"+e.ID, nil, bearer(admin)), http.StatusOK)
	if len(media.deleted) != 1 || media.deleted[0] != got.LogoURL {
		t.Fatalf("deleted = %v", media.deleted)
	}
}

func TestMaintenance(t *testing.T) {
	env := newTestEnv(t)
	tok := bearer(maintenanceToken)

	rr := env.do(t, http.MethodPost, "/v1/maintenance/seed", nil, "Bearer wrong")
	expectStatus(t, rr, http.StatusUnauthorized)
	if !strings.Contains(rr.Body.String(), "Unauthorized. Provide a valid authorization token.") {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/v1/maintenance/seed", nil, tok)
	expectStatus(t, rr, http.StatusOK)
	var seed SeedResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &seed); err != nil {
		t.Fatal(err)
	}
	if !seed.Success || seed.Message != "Seeding completed: 5 added, 0 skipped, 0 errors" {
		t.Fatalf("seed = %+v", seed)
	}

	rr = env.do(t, http.MethodPost, "/v1/maintenance/seed", nil, tok)
	json.Unmarshal(rr.Body.Bytes(), &seed)
	if seed.Message != "Seeding completed: 0 added, 5 skipped, 0 errors" {
		t.Fatalf("second seed = %q", seed.Message)
	}

	env.store.PutEntry(entries.Entry{Name: "Royal Vegas Casino", Type: entries.TypeCasino})
	rr = env.do(t, http.MethodPost, "/v1/maintenance/backfill-slugs", nil, tok)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "Migration completed. Updated 1 casinos with slugs.") {
		t.Fatalf("body = %s", rr.Body.String())
	}

	expectStatus(t, env.do(t, http.MethodPost, "/v1/maintenance/make-admin", map[string]string{"email": "ghost@example.com"}, tok), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, "/v1/maintenance/make-admin", map[string]string{"email": "not-an-email"}, tok), http.StatusBadRequest)

	env.login(t, "carol@example.com", false)
	expectStatus(t, env.do(t, http.MethodPost, "/v1/maintenance/make-admin", map[string]string{"email": "carol@example.com"}, tok), http.StatusOK)

	rr = env.do(t, http.MethodGet, "/v1/maintenance/make-admin?email=carol@example.com", nil, tok)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"is_admin":true`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestMaintenance_TokenNotConfigured(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Maintenance.Token = "" })

	rr := env.do(t, http.MethodPost, "/v1/maintenance/seed", nil, bearer("anything"))
	expectStatus(t, rr, http.StatusInternalServerError)
}

func TestOperationalRoutes(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(t, http.MethodGet, "/v1/metrics", nil, ""), http.StatusUnauthorized)

	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte("ops:secret"))
	rr := env.do(t, http.MethodGet, "/v1/metrics", nil, basic)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "directory_http_request_duration_seconds") {
		t.Fatal("http metrics not exported")
	}

	expectStatus(t, env.do(t, http.MethodGet, "/v1/debug/vars", nil, basic), http.StatusOK)

	wrong := "Basic " + base64.StdEncoding.EncodeToString([]byte("ops:nope"))
	expectStatus(t, env.do(t, http.MethodGet, "/v1/debug/vars", nil, wrong), http.StatusUnauthorized)
}
