package googletasks

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"gtodo/internal/prefs"
)

// createdKey is the state key holding first-seen times by task id.
const createdKey = "created_v1"

// createdTimes pins a creation time on each task the first time the client
// sees it. The API only exposes Updated, which moves on every edit.
type createdTimes struct {
	store prefs.Store
	log   *slog.Logger

	mu     sync.Mutex
	times  map[string]time.Time
	loaded bool
}

func newCreatedTimes(store prefs.Store, logger *slog.Logger) *createdTimes {
	if store == nil {
		store = prefs.NewMemory()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &createdTimes{store: store, log: logger}
}

// stamp returns the pinned time for id, pinning seen when id is new.
func (c *createdTimes) stamp(id string, seen time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	if t, ok := c.times[id]; ok {
		return t
	}
	c.times[id] = seen
	c.save()
	return seen
}

// keep drops every id not in live.
func (c *createdTimes) keep(live map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	changed := false
	for id := range c.times {
		if !live[id] {
			delete(c.times, id)
			changed = true
		}
	}
	if changed {
		c.save()
	}
}

func (c *createdTimes) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	if _, ok := c.times[id]; ok {
		delete(c.times, id)
		c.save()
	}
}

// load reads the stored times once. Caller holds c.mu.
func (c *createdTimes) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.times = make(map[string]time.Time)

	raw, ok, err := c.store.Get(createdKey)
	if err != nil {
		c.log.Warn("failed to load task creation times", "error", err)
		return
	}
	if !ok || raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), &c.times); err != nil {
		c.log.Warn("stored task creation times are invalid", "error", err)
		c.times = make(map[string]time.Time)
	}
}

// save persists the times. Caller holds c.mu.
func (c *createdTimes) save() {
	data, err := json.Marshal(c.times)
	if err != nil {
		c.log.Warn("failed to encode task creation times", "error", err)
		return
	}
	if err := c.store.Set(createdKey, string(data)); err != nil {
		c.log.Warn("failed to save task creation times", "error", err)
	}
}
