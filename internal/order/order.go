// Package order keeps a client-local display order for tasks.
//
// The persisted sequence is a JSON array of task IDs stored under StorageKey.
// Live snapshots from the task facade are merged with it: IDs the store no
// longer returns are ignored, and tasks missing from the sequence are treated
// as new and placed first, in snapshot order.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gtodo/internal/prefs"
	"gtodo/internal/service"
	"gtodo/internal/tasks"
)

const (
	// StorageKey is the prefs key holding the persisted sequence.
	StorageKey = "tasks_order_v1"

	// DefaultDebounce is the delay applied to sequence writes caused by deletes.
	DefaultDebounce = 500 * time.Millisecond
)

var (
	// ErrNotReady is returned by mutations issued before Load.
	ErrNotReady = errors.New("order not loaded")

	// ErrNotPermutation is returned by Reorder when the IDs do not match the current list.
	ErrNotPermutation = errors.New("reorder must be a permutation of the current list")
)

// State is the lifecycle state of a List.
type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

// Source is the subset of the task facade a List needs.
type Source interface {
	Remove(ctx context.Context, id string) error
	ClearCompleted(ctx context.Context) (int, error)
	Subscribe(ctx context.Context, view tasks.View, fn tasks.Listener) (*tasks.Subscription, error)
}

// Options configures a List.
type Options struct {
	// Debounce delays sequence writes after Delete. Zero means DefaultDebounce.
	Debounce time.Duration

	// Logger receives persistence warnings. Nil discards.
	Logger *slog.Logger
}

// List is the materialized, order-resolved task list.
type List struct {
	src      Source
	store    prefs.Store
	log      *slog.Logger
	debounce time.Duration

	mu    sync.Mutex
	state State
	seq   []string
	live  []service.Task
	items []service.Task

	timer   *time.Timer
	pending bool

	listeners map[int]func([]service.Task)
	nextID    int
	version   uint64

	// notifyMu orders deliveries; notified is the newest version delivered.
	notifyMu sync.Mutex
	notified uint64

	sub       *tasks.Subscription
}

// New creates an uninitialized List.
func New(src Source, store prefs.Store, opts Options) *List {
	l := &List{
		src:       src,
		store:     store,
		log:       opts.Logger,
		debounce:  opts.Debounce,
		listeners: make(map[int]func([]service.Task)),
	}
	if l.log == nil {
		l.log = slog.New(slog.DiscardHandler)
	}
	if l.debounce <= 0 {
		l.debounce = DefaultDebounce
	}
	return l
}

// Start loads the persisted sequence and subscribes to the facade's "all" view.
func (l *List) Start(ctx context.Context) error {
	l.Load()
	sub, err := l.src.Subscribe(ctx, tasks.ViewAll, l.Apply)
	if err != nil {
		return fmt.Errorf("subscribe to tasks: %w", err)
	}
	l.mu.Lock()
	l.sub = sub
	l.mu.Unlock()
	return nil
}

// Load reads the persisted sequence and moves the List to Ready.
// Read failures are logged and treated as no persisted order.
func (l *List) Load() {
	seq := l.read()

	l.mu.Lock()
	l.seq = seq
	l.state = Ready
	l.items = Merge(l.seq, l.live)
	snap, ver := l.changed()
	l.mu.Unlock()

	l.notify(snap, ver)
}

// Apply replaces the live snapshot. When Ready the merge is recomputed.
func (l *List) Apply(live []service.Task) {
	l.mu.Lock()
	l.live = append([]service.Task(nil), live...)
	if l.state != Ready {
		l.mu.Unlock()
		return
	}
	l.items = Merge(l.seq, l.live)
	snap, ver := l.changed()
	l.mu.Unlock()

	l.notify(snap, ver)
}

// State returns the lifecycle state.
func (l *List) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Items returns a copy of the materialized list.
func (l *List) Items() []service.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Sequence returns a copy of the in-memory persisted sequence.
func (l *List) Sequence() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.seq...)
}

// OnChange registers fn to receive the materialized list after every change.
// A snapshot older than one already delivered is skipped. fn must not mutate
// the List. The returned func unregisters it.
func (l *List) OnChange(fn func([]service.Task)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

// Reorder replaces the list with the given permutation of its IDs and
// persists the sequence immediately.
func (l *List) Reorder(ids []string) error {
	l.mu.Lock()
	if l.state != Ready {
		l.mu.Unlock()
		return ErrNotReady
	}

	byID := make(map[string]service.Task, len(l.items))
	for _, t := range l.items {
		byID[t.ID] = t
	}
	if len(ids) != len(byID) {
		l.mu.Unlock()
		return ErrNotPermutation
	}
	next := make([]service.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			l.mu.Unlock()
			return ErrNotPermutation
		}
		delete(byID, id)
		next = append(next, t)
	}

	l.items = next
	l.seq = append([]string(nil), ids...)
	l.cancelPending()
	l.write(l.seq)
	snap, ver := l.changed()
	l.mu.Unlock()

	l.notify(snap, ver)
	return nil
}

// Move moves the task with id to position pos (0-based) and persists the result.
func (l *List) Move(id string, pos int) error {
	items := l.Items()
	from := -1
	ids := make([]string, 0, len(items))
	for i, t := range items {
		if t.ID == id {
			from = i
			continue
		}
		ids = append(ids, t.ID)
	}
	if from < 0 {
		return fmt.Errorf("move %s: %w", id, service.ErrNotFound)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(ids) {
		pos = len(ids)
	}
	ids = append(ids[:pos], append([]string{id}, ids[pos:]...)...)
	return l.Reorder(ids)
}

// Delete removes a task through the facade, then drops it from the sequence
// and the materialized list. The sequence write is debounced.
func (l *List) Delete(ctx context.Context, id string) error {
	if l.State() != Ready {
		return ErrNotReady
	}
	if err := l.src.Remove(ctx, id); err != nil {
		return err
	}

	l.mu.Lock()
	l.seq = without(l.seq, map[string]bool{id: true})
	l.schedule()
	l.items = withoutTasks(l.items, map[string]bool{id: true})
	snap, ver := l.changed()
	l.mu.Unlock()

	l.notify(snap, ver)
	return nil
}

// ClearCompleted deletes every completed task through the facade and purges
// their IDs from the sequence. Completed IDs are captured from the
// materialized list before the call, since the store forgets them after it.
func (l *List) ClearCompleted(ctx context.Context) (int, error) {
	l.mu.Lock()
	if l.state != Ready {
		l.mu.Unlock()
		return 0, ErrNotReady
	}
	completed := make(map[string]bool)
	for _, t := range l.items {
		if t.IsCompleted {
			completed[t.ID] = true
		}
	}
	l.mu.Unlock()

	n, err := l.src.ClearCompleted(ctx)
	if err != nil && n == 0 {
		return 0, err
	}

	l.mu.Lock()
	purge := completed
	if err != nil {
		// Partial failure: only purge what the store actually dropped.
		purge = make(map[string]bool)
		stillLive := make(map[string]bool, len(l.live))
		for _, t := range l.live {
			stillLive[t.ID] = true
		}
		for id := range completed {
			if !stillLive[id] {
				purge[id] = true
			}
		}
	}
	if len(purge) > 0 {
		l.seq = without(l.seq, purge)
		l.cancelPending()
		l.write(l.seq)
		l.items = withoutTasks(l.items, purge)
	}
	snap, ver := l.changed()
	l.mu.Unlock()

	l.notify(snap, ver)
	return n, err
}

// Flush writes a pending debounced sequence now.
func (l *List) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pending {
		return
	}
	l.cancelPending()
	l.write(l.seq)
}

// Close flushes pending writes and cancels the facade subscription.
func (l *List) Close() {
	l.Flush()
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// Merge orders live according to seq: tasks absent from seq come first in
// live order, followed by the rest in seq order. IDs in seq that live does
// not contain are skipped.
func Merge(seq []string, live []service.Task) []service.Task {
	remaining := make(map[string]service.Task, len(live))
	for _, t := range live {
		remaining[t.ID] = t
	}

	existing := make([]service.Task, 0, len(live))
	for _, id := range seq {
		if t, ok := remaining[id]; ok {
			existing = append(existing, t)
			delete(remaining, id)
		}
	}

	out := make([]service.Task, 0, len(live))
	for _, t := range live {
		if _, ok := remaining[t.ID]; ok {
			out = append(out, t)
			delete(remaining, t.ID)
		}
	}
	return append(out, existing...)
}

func (l *List) read() []string {
	raw, ok, err := l.store.Get(StorageKey)
	if err != nil {
		l.log.Warn("failed to load saved task order", "error", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var seq []string
	if err := json.Unmarshal([]byte(raw), &seq); err != nil {
		l.log.Warn("saved task order is invalid", "error", err)
		return nil
	}
	return seq
}

// write persists seq. Caller holds l.mu.
func (l *List) write(seq []string) {
	if seq == nil {
		seq = []string{}
	}
	data, err := json.Marshal(seq)
	if err != nil {
		l.log.Warn("failed to encode task order", "error", err)
		return
	}
	if err := l.store.Set(StorageKey, string(data)); err != nil {
		l.log.Warn("failed to persist task order", "error", err)
		return
	}
	l.log.Debug("task order saved", "ids", len(seq))
}

// schedule arms the debounce timer. Caller holds l.mu.
func (l *List) schedule() {
	l.pending = true
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.debounce, l.Flush)
}

// cancelPending disarms the debounce timer. Caller holds l.mu.
func (l *List) cancelPending() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.pending = false
}

// snapshot copies the materialized list. Caller holds l.mu.
func (l *List) snapshot() []service.Task {
	return append([]service.Task(nil), l.items...)
}

// changed bumps the version and copies the materialized list. Caller holds l.mu.
func (l *List) changed() ([]service.Task, uint64) {
	l.version++
	return l.snapshot(), l.version
}

// notify delivers items to listeners unless a newer version already went out.
func (l *List) notify(items []service.Task, ver uint64) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	if ver <= l.notified {
		return
	}
	l.notified = ver

	l.mu.Lock()
	fns := make([]func([]service.Task), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(items)
	}
}

func without(ids []string, drop map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

func withoutTasks(items []service.Task, drop map[string]bool) []service.Task {
	out := make([]service.Task, 0, len(items))
	for _, t := range items {
		if !drop[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
