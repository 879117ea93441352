package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linkeep/linkeep/assemble"
)

func testPayload() *assemble.UploadPayload {
	return &assemble.UploadPayload{
		HTMLContent: "<html></html>",
		Title:       "T",
		URL:         "https://example.com/",
		Images:      []assemble.UploadImage{},
	}
}

func TestUploadSnapshot_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SnapshotResponse{ID: "snap_9", ImageCount: 0})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok123")
	resp, err := c.UploadSnapshot(context.Background(), "bmk_1", testPayload())
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID != "snap_9" {
		t.Fatalf("got id %q", resp.ID)
	}
	if gotPath != "/api/bookmarks/bmk_1/snapshot" {
		t.Fatalf("got path %q", gotPath)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("got auth %q", gotAuth)
	}
	if _, ok := gotBody["html_content"]; !ok {
		t.Fatal("upload body missing html_content")
	}
}

func TestUploadSnapshot_StatusCategories(t *testing.T) {
	cases := []struct {
		status int
		want   Category
	}{
		{401, CategoryAuth},
		{403, CategoryPermission},
		{429, CategoryRateLimit},
		{500, CategoryServer},
		{503, CategoryServer},
		{400, CategoryServer},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rejected", tc.status)
		}))

		c := New(srv.URL, "")
		_, err := c.UploadSnapshot(context.Background(), "bmk_1", testPayload())
		srv.Close()

		var ue *UploadError
		if !errors.As(err, &ue) {
			t.Fatalf("status %d: expected UploadError, got %T: %v", tc.status, err, err)
		}
		if ue.Category != tc.want {
			t.Errorf("status %d: got category %q, want %q", tc.status, ue.Category, tc.want)
		}
		if ue.Status != tc.status {
			t.Errorf("status %d not carried: %d", tc.status, ue.Status)
		}
	}
}

func TestUploadSnapshot_NetworkError(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "")
	_, err := c.UploadSnapshot(context.Background(), "bmk_1", testPayload())
	var ue *UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UploadError, got %T: %v", err, err)
	}
	if ue.Category != CategoryNetwork {
		t.Fatalf("got category %q, want network", ue.Category)
	}
	if ue.Unwrap() == nil {
		t.Fatal("network error must carry its cause")
	}
}

func TestUploadSnapshot_AnonymousOmitsAuthHeader(t *testing.T) {
	var gotAuth string
	present := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, present = r.Header["Authorization"]
		json.NewEncoder(w).Encode(SnapshotResponse{ID: "s"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.UploadSnapshot(context.Background(), "bmk_1", testPayload()); err != nil {
		t.Fatal(err)
	}
	if present || gotAuth != "" {
		t.Fatalf("anonymous client sent Authorization %q", gotAuth)
	}
}
