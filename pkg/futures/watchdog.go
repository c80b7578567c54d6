package futures

import (
	"sync"
	"time"

	"github.com/veiloq/futures-stream/pkg/logging"
)

// WatchDog is the shared liveness monitor. Every open connection registers
// itself with a receive limit and a force-close hook; the monitor loop scans
// the registry and force-closes any connection whose last activity is older
// than its limit. Closing the transport routes the connection into its own
// closing path, so reconnection never runs on the monitor goroutine.
type WatchDog struct {
	mu      sync.Mutex
	entries map[string]*watchEntry

	interval time.Duration
	logger   logging.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

type watchEntry struct {
	lastActivity time.Time
	limit        time.Duration
	forceClose   func()
}

// NewWatchDog creates a monitor polling at the given interval. The interval
// must be well below the receive limits of the connections it watches.
func NewWatchDog(interval time.Duration, logger logging.Logger) *WatchDog {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	w := &WatchDog{
		entries:  make(map[string]*watchEntry),
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Register adds a connection to the registry, overwriting any previous entry
// with the same id. forceClose is invoked when the connection goes stale; it
// must only close the transport, never block.
func (w *WatchDog) Register(id string, limit time.Duration, forceClose func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[id] = &watchEntry{
		lastActivity: time.Now(),
		limit:        limit,
		forceClose:   forceClose,
	}
}

// Touch records activity for a connection. Touching an unregistered id is a
// no-op.
func (w *WatchDog) Touch(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entries[id]; ok {
		e.lastActivity = time.Now()
	}
}

// Unregister removes a connection from the registry. Idempotent; safe to
// call from any goroutine.
func (w *WatchDog) Unregister(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, id)
}

// Stop terminates the monitor loop. Idempotent.
func (w *WatchDog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *WatchDog) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case now := <-ticker.C:
			w.sweep(now)
		}
	}
}

// sweep force-closes every stale connection and drops its registry entry.
// The close hook only shuts the transport; the connection notices on its own
// goroutine and applies its reconnect policy there.
func (w *WatchDog) sweep(now time.Time) {
	w.mu.Lock()
	var stale []*watchEntry
	for id, e := range w.entries {
		if now.Sub(e.lastActivity) > e.limit {
			w.logger.Warn("stale connection detected",
				logging.String("connection", id),
				logging.Duration("idle", now.Sub(e.lastActivity)),
				logging.Duration("limit", e.limit),
			)
			stale = append(stale, e)
			delete(w.entries, id)
		}
	}
	w.mu.Unlock()

	for _, e := range stale {
		e.forceClose()
	}
}
