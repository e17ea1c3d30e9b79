package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap/zaptest"

	"bookmarksync/internal/bus"
	"bookmarksync/internal/domain"
	sqlitedriver "bookmarksync/internal/driver/sqlite"
	"bookmarksync/internal/health"
	"bookmarksync/internal/service"
)

// ============================================================================
// Helpers
// ============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	d, err := sqlitedriver.New(sqlitedriver.Config{Dir: t.TempDir(), CreateMissing: true}, logger)
	if err != nil {
		t.Fatalf("sqlite driver: %v", err)
	}
	t.Cleanup(func() { d.Close(context.Background()) })

	b := bus.NewLocal(logger)
	t.Cleanup(func() { b.Close() })

	svc := service.New(service.Deps{Driver: d, Bus: b, Logger: logger}, service.Options{
		Instance:  "test",
		Databases: []string{"movies"},
		Health:    health.Options{Interval: time.Hour},
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)

	srv := httptest.NewServer(New(svc, logger).Router(nil))
	t.Cleanup(srv.Close)
	return srv, svc
}

func postTransaction(t *testing.T, srv *httptest.Server, database string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(srv.URL+"/api/databases/"+database+"/transactions", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func statements(stmts ...string) TransactionRequest {
	req := TransactionRequest{}
	for _, s := range stmts {
		req.Statements = append(req.Statements, Statement{Statement: s})
	}
	return req
}

// ============================================================================
// Transaction Tests
// ============================================================================

func TestRunTransaction(t *testing.T) {
	srv, svc := newTestServer(t)

	req := TransactionRequest{Statements: []Statement{
		{Statement: "CREATE TABLE movies (title TEXT, year INTEGER)"},
		{Statement: "INSERT INTO movies VALUES (:title, :year)", Params: map[string]any{"title": "Heat", "year": 1995}},
		{Statement: "SELECT title, year FROM movies"},
	}}
	resp := postTransaction(t, srv, "movies", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body TransactionResponse
	decode(t, resp, &body)

	if body.TransactionID == "" {
		t.Error("transaction_id is empty")
	}
	if len(body.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(body.Results))
	}
	rows := body.Results[2]
	if len(rows) != 1 || rows[0]["title"] != "Heat" || rows[0]["year"] != float64(1995) {
		t.Errorf("rows = %v", rows)
	}
	if len(body.Bookmarks) != 1 {
		t.Fatalf("bookmarks = %v", body.Bookmarks)
	}

	local, _ := svc.Bookmarks("movies")
	if !local.Contains(domain.Bookmark(body.Bookmarks[0])) {
		t.Errorf("local store %v missing %s", local, body.Bookmarks[0])
	}
}

func TestRunTransactionErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name     string
		database string
		body     any
		want     int
	}{
		{"unknown database", "people", statements("SELECT 1"), http.StatusNotFound},
		{"no statements", "movies", TransactionRequest{}, http.StatusBadRequest},
		{"empty statement", "movies", statements(""), http.StatusBadRequest},
		{"malformed body", "movies", "not an object", http.StatusBadRequest},
		{"bad statement", "movies", statements("SELEKT nothing"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postTransaction(t, srv, tt.database, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body ErrorResponse
			decode(t, resp, &body)
			if body.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestFailedTransactionLeavesBookmarksAlone(t *testing.T) {
	srv, svc := newTestServer(t)

	resp := postTransaction(t, srv, "movies", statements("CREATE TABLE t (id INTEGER)", "SELEKT"))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	local, _ := svc.Bookmarks("movies")
	if !local.IsEmpty() {
		t.Errorf("bookmarks = %v, want empty", local)
	}
}

// ============================================================================
// Read Tests
// ============================================================================

func TestGetBookmarks(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/databases/movies/bookmarks")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var empty BookmarksResponse
	decode(t, resp, &empty)
	if empty.Database != "movies" || len(empty.Bookmarks) != 0 {
		t.Errorf("before commit = %+v", empty)
	}

	var committed TransactionResponse
	decode(t, postTransaction(t, srv, "movies", statements("CREATE TABLE t (id INTEGER)")), &committed)

	resp, err = http.Get(srv.URL + "/api/databases/movies/bookmarks")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var after BookmarksResponse
	decode(t, resp, &after)
	if len(after.Bookmarks) != 1 || after.Bookmarks[0] != committed.Bookmarks[0] {
		t.Errorf("after commit = %v, want %v", after.Bookmarks, committed.Bookmarks)
	}

	resp, err = http.Get(srv.URL + "/api/databases/people/bookmarks")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown database status = %d", resp.StatusCode)
	}
}

func TestListDatabases(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/databases", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	var infos []service.DatabaseInfo
	decode(t, resp, &infos)
	if len(infos) != 1 || infos[0].Name != "movies" || !infos[0].Watching {
		t.Errorf("databases = %+v", infos)
	}
}

// ============================================================================
// Helper Tests
// ============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"selection", &domain.DatabaseSelectionError{Database: "x"}, http.StatusNotFound},
		{"connection", &domain.ConnectionError{Target: "datastore", Err: errors.New("refused")}, http.StatusServiceUnavailable},
		{"conflict", &domain.CommitConflictError{Database: "x", Err: errors.New("busy")}, http.StatusConflict},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"closed", domain.ErrTransactionClosed, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNormalizeParams(t *testing.T) {
	got := normalizeParams(map[string]any{"year": float64(1995), "rating": 7.5, "title": "Heat"})
	if got["year"] != int64(1995) {
		t.Errorf("year = %#v", got["year"])
	}
	if got["rating"] != 7.5 {
		t.Errorf("rating = %#v", got["rating"])
	}
	if got["title"] != "Heat" {
		t.Errorf("title = %#v", got["title"])
	}
	if normalizeParams(nil) != nil {
		t.Error("nil params should stay nil")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := New(nil, zaptest.NewLogger(t))
	panicking := h.Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

// ============================================================================
// Event Forwarding Tests
// ============================================================================

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingBroadcaster) Broadcast(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestForwardEvents(t *testing.T) {
	events := service.NewEventBus()
	b := &recordingBroadcaster{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ForwardEvents(ctx, events, b)
		close(done)
	}()

	// Subscribe happens inside the goroutine; publish until it is seen
	deadline := time.Now().Add(2 * time.Second)
	for b.count() == 0 && time.Now().Before(deadline) {
		events.Publish(service.Event{Type: service.EventBookmarksMerged, Payload: domain.BookmarkEvent{Database: "movies"}})
		time.Sleep(5 * time.Millisecond)
	}
	if b.count() == 0 {
		t.Fatal("no event forwarded")
	}

	b.mu.Lock()
	first := b.events[0]
	b.mu.Unlock()
	if first != string(service.EventBookmarksMerged) {
		t.Errorf("event = %s", first)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ForwardEvents did not return after cancel")
	}
}
