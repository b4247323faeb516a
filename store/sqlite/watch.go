/*
watch.go - Cross-process change detection

PURPOSE:
  Several processes (the API server, the ledgerctl CLI, a second server
  instance) can share one database file. Appends made through a Store
  publish to that Store's subscribers only; the Watcher polls the
  transaction table and republishes snapshots for watched profiles that
  another writer changed.

DESIGN:
  - Runs a background goroutine with configurable poll interval
  - Tracks the highest seq it has seen; only rows after it count
  - Republishing our own appends again is harmless: snapshots replace,
    they never merge

CONFIGURATION:
  - Interval: How often to poll (default: 2 seconds)

USAGE:
  watcher := sqlite.NewWatcher(store)
  watcher.Start()
  // ... later
  watcher.Stop()
*/
package sqlite

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/observability"
)

// Watcher republishes snapshots after writes from other processes.
type Watcher struct {
	Store    *Store
	Interval time.Duration

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastSeq int64
	started bool
}

// NewWatcher creates a watcher with the default interval.
func NewWatcher(store *Store) *Watcher {
	return &Watcher{
		Store:    store,
		Interval: 2 * time.Second,
	}
}

// Start records the current high-water mark and begins polling.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	seq, err := w.Store.LatestSeq(context.Background())
	if err != nil {
		return err
	}
	w.lastSeq = seq
	w.stop = make(chan struct{})
	w.ticker = time.NewTicker(w.Interval)
	w.started = true
	w.wg.Add(1)

	go w.run()

	log.Printf("[Watcher] Started with poll interval: %v", w.Interval)
	return nil
}

// Stop stops polling and waits for an in-progress poll to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.ticker.Stop()
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
	log.Println("[Watcher] Stopped")
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ticker.C:
			if _, err := w.Poll(context.Background()); err != nil {
				log.Printf("[Watcher] Poll failed: %v", err)
			}
		case <-w.stop:
			return
		}
	}
}

// Poll checks once for new rows and republishes the affected profiles that
// have subscribers. It returns the profiles it republished.
func (w *Watcher) Poll(ctx context.Context) ([]generic.ProfileID, error) {
	w.mu.Lock()
	since := w.lastSeq
	w.mu.Unlock()

	changed, latest, err := w.Store.ChangedSince(ctx, since)
	if err != nil {
		observability.RecordWatcherPoll("error")
		return nil, err
	}
	if len(changed) == 0 {
		observability.RecordWatcherPoll("idle")
		return nil, nil
	}

	w.mu.Lock()
	if latest > w.lastSeq {
		w.lastSeq = latest
	}
	w.mu.Unlock()

	watched := make(map[generic.ProfileID]bool)
	for _, id := range w.Store.WatchedProfiles() {
		watched[id] = true
	}

	var published []generic.ProfileID
	for _, id := range changed {
		if !watched[id] {
			continue
		}
		if err := w.Store.Publish(ctx, id); err != nil {
			log.Printf("[Watcher] Error publishing %s: %v", id, err)
			continue
		}
		published = append(published, id)
	}
	observability.RecordWatcherPoll("changed")
	return published, nil
}
