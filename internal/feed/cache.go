package feed

import (
	"sync/atomic"
	"time"

	"tarediiran-industries.com/transit-board/internal/arrivals"
)

// Entry is an immutable cached fetch result.
type Entry struct {
	Pair      arrivals.Pair
	FetchedAt time.Time
}

func (entry Entry) Age(now time.Time) time.Duration {
	return now.Sub(entry.FetchedAt)
}

// Cache holds the last successful fetch. Only the Client in this package
// writes it; readers always observe a complete pair.
type Cache struct {
	entry atomic.Pointer[Entry]
}

func NewCache() *Cache {
	return &Cache{}
}

// Load returns the last good entry, or ok=false before any fetch succeeded.
func (cache *Cache) Load() (Entry, bool) {
	entry := cache.entry.Load()
	if entry == nil {
		return Entry{}, false
	}
	return *entry, true
}

func (cache *Cache) store(pair arrivals.Pair, fetchedAt time.Time) Entry {
	entry := &Entry{Pair: clonePair(pair), FetchedAt: fetchedAt}
	cache.entry.Store(entry)
	return *entry
}

func clonePair(pair arrivals.Pair) arrivals.Pair {
	return arrivals.Pair{
		Uptown:   cloneSnapshot(pair.Uptown),
		Downtown: cloneSnapshot(pair.Downtown),
	}
}

func cloneSnapshot(snapshot arrivals.Snapshot) arrivals.Snapshot {
	minutes := make([]int, len(snapshot.Minutes))
	copy(minutes, snapshot.Minutes)
	return arrivals.Snapshot{Direction: snapshot.Direction, Minutes: minutes}
}
