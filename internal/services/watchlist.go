package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/codyseavey/crypto-tracker/internal/database"
	"github.com/codyseavey/crypto-tracker/internal/metrics"
	"github.com/codyseavey/crypto-tracker/internal/storage"
)

// WatchlistStore is the persisted set of starred coin ids. Insertion order is
// kept for display. Every call re-reads storage and every mutation is written
// through before it returns, so several stores may share one backend.
type WatchlistStore struct {
	store storage.Store

	mu  sync.Mutex
	ids []string
}

func NewWatchlistStore(store storage.Store) *WatchlistStore {
	return &WatchlistStore{store: store}
}

// Load reads the watchlist from storage. Missing or corrupt data yields an
// empty watchlist.
func (w *WatchlistStore) Load(ctx context.Context) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.loadLocked(ctx)
	return w.snapshotLocked()
}

func (w *WatchlistStore) loadLocked(ctx context.Context) {
	var ids []string
	err := storage.GetJSON(ctx, w.store, database.WatchlistKey, &ids)

	var corrupt *storage.CorruptError
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		ids = nil
	case errors.As(err, &corrupt):
		log.Printf("Watchlist: ignoring corrupt stored value: %v", err)
		metrics.PersistenceCorruptReadsTotal.WithLabelValues(database.WatchlistKey).Inc()
		ids = nil
	default:
		log.Printf("Watchlist: failed to read stored value: %v", err)
		ids = nil
	}

	w.ids = dedupeIDs(ids)
	metrics.WatchlistSize.Set(float64(len(w.ids)))
}

// List returns the watchlist in insertion order.
func (w *WatchlistStore) List(ctx context.Context) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.loadLocked(ctx)
	return w.snapshotLocked()
}

func (w *WatchlistStore) Contains(ctx context.Context, coinID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.loadLocked(ctx)
	return indexOf(w.ids, coinID) >= 0
}

// Toggle adds coinID if absent and removes it if present, then persists the
// result. It reports whether the id is now on the watchlist.
func (w *WatchlistStore) Toggle(ctx context.Context, coinID string) (bool, []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.loadLocked(ctx)

	coinID = strings.TrimSpace(coinID)
	added := false
	if i := indexOf(w.ids, coinID); i >= 0 {
		w.ids = append(w.ids[:i:i], w.ids[i+1:]...)
	} else if coinID != "" {
		w.ids = append(w.ids, coinID)
		added = true
	}

	if err := storage.SetJSON(ctx, w.store, database.WatchlistKey, w.ids); err != nil {
		log.Printf("Watchlist: failed to persist: %v", err)
		metrics.PersistenceWriteFailuresTotal.WithLabelValues(database.WatchlistKey).Inc()
	}
	metrics.WatchlistSize.Set(float64(len(w.ids)))

	return added, w.snapshotLocked()
}

func (w *WatchlistStore) snapshotLocked() []string {
	out := make([]string, len(w.ids))
	copy(out, w.ids)
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
