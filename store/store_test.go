package store

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/linkeep/linkeep/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s, err := Wrap(db)
	if err != nil {
		t.Fatalf("wrap store: %v", err)
	}
	return s
}

func TestSaveBookmark_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.SaveBookmark(ctx, Bookmark{
		URL:         "https://example.com/post",
		Title:       "A Post",
		Description: "desc",
		Tags:        []string{"go", "testing"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty id")
	}

	b, err := s.GetBookmark(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if b.Title != "A Post" || b.URL != "https://example.com/post" {
		t.Fatalf("got %+v", b)
	}
	if len(b.Tags) != 2 || b.Tags[0] != "go" || b.Tags[1] != "testing" {
		t.Fatalf("got tags %v", b.Tags)
	}
	if b.CreatedAt == 0 {
		t.Fatal("created_at not set")
	}
}

func TestSaveBookmark_DuplicateURL(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.SaveBookmark(ctx, Bookmark{URL: "https://example.com/", Title: "One"})
	if err != nil {
		t.Fatal(err)
	}

	second, err := s.SaveBookmark(ctx, Bookmark{URL: "https://example.com/", Title: "Two"})
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if second != first {
		t.Fatalf("duplicate save returned id %q, want existing %q", second, first)
	}

	// The original record is untouched.
	b, err := s.GetBookmark(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if b.Title != "One" {
		t.Fatalf("existing bookmark overwritten: %q", b.Title)
	}
}

func TestSaveBookmark_RequiresURL(t *testing.T) {
	s := testStore(t)
	if _, err := s.SaveBookmark(context.Background(), Bookmark{Title: "no url"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveBookmark_SkipsEmptyTags(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.SaveBookmark(ctx, Bookmark{
		URL:  "https://example.com/t",
		Tags: []string{"a", "", "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.GetBookmark(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Tags) != 1 || b.Tags[0] != "a" {
		t.Fatalf("got tags %v", b.Tags)
	}
}

func TestGetBookmark_NotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.GetBookmark(context.Background(), "bmk_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SetSetting(ctx, "capture.inline_css", "true"); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetSetting(ctx, "capture.inline_css")
	if err != nil {
		t.Fatal(err)
	}
	if v != "true" {
		t.Fatalf("got %q", v)
	}

	// Upsert replaces.
	if err := s.SetSetting(ctx, "capture.inline_css", "false"); err != nil {
		t.Fatal(err)
	}
	v, _ = s.GetSetting(ctx, "capture.inline_css")
	if v != "false" {
		t.Fatalf("got %q after upsert", v)
	}
}

func TestSettings_MissingKeyIsEmpty(t *testing.T) {
	s := testStore(t)
	v, err := s.GetSetting(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Fatalf("got %q", v)
	}
}

func TestAllSettings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	keys := map[string]string{
		"capture.timeout":        "45s",
		"capture.extract_images": "false",
	}
	for k, v := range keys {
		if err := s.SetSetting(ctx, k, v); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.AllSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(keys) {
		t.Fatalf("got %d settings, want %d", len(all), len(keys))
	}
	for k, v := range keys {
		if all[k] != v {
			t.Errorf("key %q: got %q, want %q", k, all[k], v)
		}
	}
}
