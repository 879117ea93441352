package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/dbopen"
	"github.com/linkeep/linkeep/store"
)

func testServer(t *testing.T) (*Server, *bus.Dispatcher, *store.Store) {
	t.Helper()
	st, err := store.Wrap(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	d := bus.NewDispatcher()
	return New(d, st), d, st
}

func TestHealthz(t *testing.T) {
	s, _, _ := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	if ct := rec.Header().Get("X-Content-Type-Options"); ct != "nosniff" {
		t.Fatalf("security headers not applied: %q", ct)
	}
}

func TestMessage_DispatchesToBus(t *testing.T) {
	s, d, _ := testServer(t)
	d.Register("ECHO", func(_ context.Context, payload json.RawMessage) (any, error) {
		return json.RawMessage(payload), nil
	})

	body := strings.NewReader(`{"type":"ECHO","payload":{"x":1}}`)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body)
	}
	var env bus.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if !env.Success {
		t.Fatalf("envelope failed: %s", env.Error)
	}
}

func TestMessage_UnknownTypeStays200(t *testing.T) {
	s, _, _ := testServer(t)

	body := strings.NewReader(`{"type":"NOPE"}`)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message", body))

	// Protocol errors live inside the envelope, not on the HTTP layer.
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var env bus.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Success {
		t.Fatal("unknown type must fail in the envelope")
	}
	if env.Error != "Unknown message type: NOPE" {
		t.Fatalf("got error %q", env.Error)
	}
}

func TestMessage_BadJSON(t *testing.T) {
	s, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestMessage_MissingType(t *testing.T) {
	s, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"payload":{}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestGetBookmark(t *testing.T) {
	s, _, st := testServer(t)

	id, err := st.SaveBookmark(context.Background(), store.Bookmark{
		URL: "https://example.com/", Title: "T",
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookmarks/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body)
	}
	var b store.Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if b.ID != id || b.Title != "T" {
		t.Fatalf("got %+v", b)
	}
}

func TestGetBookmark_NotFound(t *testing.T) {
	s, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookmarks/bmk_missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d", rec.Code)
	}
}
