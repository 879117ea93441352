// Package watch provides a "poll SQLite, detect change, reload" loop.
// linkeep uses it to hot-reload capture settings: the UI writes to the
// settings table and the orchestrator picks the change up without a
// restart.
//
//	w := watch.New(db, watch.Options{Interval: time.Second})
//	go w.OnChange(ctx, func() error { return orch.ReloadSettings(ctx) })
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token from the database. Two calls
// returning different values mean "something changed". int64 maps
// naturally to PRAGMA data_version or a MAX(updated_at) query.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// PragmaDataVersion is the default detector: SQLite's data_version
// counter, which advances whenever another connection commits.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// PragmaUserVersion reads SQLite's user_version, an application-owned
// counter. Useful when writers bump it explicitly after a batch of
// changes.
func PragmaUserVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Detector overrides the default PragmaDataVersion detector.
	Detector ChangeDetector
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = PragmaDataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a SQLite database and runs an action on change.
type Watcher struct {
	db      *sql.DB
	opts    Options
	version atomic.Int64
}

// New creates a Watcher. Call OnChange to start the loop.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Version returns the last successfully processed version token.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx is cancelled, polling at opts.Interval.
// When the detector reports a new version, action runs. If action
// returns an error the version is NOT advanced — the action is retried
// on the next poll cycle.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	// Seed the initial version so startup state does not count as a change.
	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	log.Info("watch: started", "interval", w.opts.Interval)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			return
		case <-ticker.C:
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() {
				continue
			}
			if err := action(); err != nil {
				log.Warn("watch: reload failed, will retry", "error", err)
				continue
			}
			w.version.Store(cur)
			log.Debug("watch: reloaded", "version", cur)
		}
	}
}
