package watch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// Single connection so PRAGMA changes are visible to all callers.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func setUserVersion(t *testing.T, db *sql.DB, v int) {
	t.Helper()
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		t.Fatal(err)
	}
}

func TestPragmaDataVersion(t *testing.T) {
	db := testDB(t)
	v, err := PragmaDataVersion(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if v < 0 {
		t.Fatalf("expected non-negative version, got %d", v)
	}
}

func TestPragmaUserVersion(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	v, err := PragmaUserVersion(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}

	setUserVersion(t, db, 42)
	v, err = PragmaUserVersion(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestOnChange_FiresOnVersionChange(t *testing.T) {
	db := testDB(t)

	var reloads atomic.Int32
	w := New(db, Options{
		Interval: 20 * time.Millisecond,
		Detector: PragmaUserVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		reloads.Add(1)
		return nil
	})

	// Wait for the initial version to be seeded.
	time.Sleep(50 * time.Millisecond)

	setUserVersion(t, db, 1)
	time.Sleep(80 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("expected 1 reload, got %d", got)
	}

	setUserVersion(t, db, 2)
	time.Sleep(80 * time.Millisecond)
	if got := reloads.Load(); got != 2 {
		t.Fatalf("expected 2 reloads, got %d", got)
	}

	// No change, no extra reload.
	time.Sleep(80 * time.Millisecond)
	if got := reloads.Load(); got != 2 {
		t.Fatalf("expected still 2, got %d", got)
	}
}

func TestOnChange_ErrorDoesNotAdvanceVersion(t *testing.T) {
	db := testDB(t)

	var calls atomic.Int32
	w := New(db, Options{
		Interval: 20 * time.Millisecond,
		Detector: PragmaUserVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	setUserVersion(t, db, 1)

	// First attempt fails, the version stays behind, and the next poll
	// retries the same change.
	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got < 2 {
		t.Fatalf("expected retry after error, got %d calls", got)
	}
	if w.Version() != 1 {
		t.Fatalf("version not advanced after successful retry: %d", w.Version())
	}
}

func TestOnChange_StopsOnCancel(t *testing.T) {
	db := testDB(t)

	w := New(db, Options{Interval: 10 * time.Millisecond, Detector: PragmaUserVersion})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.OnChange(ctx, func() error { return nil })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnChange did not stop on cancel")
	}
}
