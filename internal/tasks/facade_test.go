package tasks_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gtodo/internal/service"
	"gtodo/internal/tasks"
	"gtodo/internal/testutil"
)

func newFacade() (*testutil.FakeService, *tasks.Facade) {
	svc := testutil.NewFakeService()
	return svc, tasks.New(svc, nil)
}

func TestCreate_NotCompleted(t *testing.T) {
	_, f := newFacade()
	ctx := context.Background()

	created, err := f.Create(ctx, "  Buy milk  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.IsCompleted {
		t.Error("expected new task to be active")
	}
	if created.Text != "Buy milk" {
		t.Errorf("expected trimmed text, got %q", created.Text)
	}
}

func TestCreate_EmptyText(t *testing.T) {
	svc, f := newFacade()

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := f.Create(context.Background(), text); !errors.Is(err, tasks.ErrEmptyText) {
			t.Errorf("create %q: expected ErrEmptyText, got %v", text, err)
		}
	}
	if svc.Calls["Create"] != 0 {
		t.Errorf("expected no store calls, got %d", svc.Calls["Create"])
	}
}

func TestViews_PartitionAll(t *testing.T) {
	svc, f := newFacade()
	svc.AddTask("a", "A", false)
	svc.AddTask("b", "B", true)
	svc.AddTask("c", "C", false)
	ctx := context.Background()

	all, _ := f.ListAll(ctx)
	active, _ := f.ListActive(ctx)
	completed, _ := f.ListCompleted(ctx)

	if len(active)+len(completed) != len(all) {
		t.Fatalf("expected active+completed == all, got %d+%d != %d", len(active), len(completed), len(all))
	}
	seen := make(map[string]bool)
	for _, a := range active {
		seen[a.ID] = true
	}
	for _, c := range completed {
		if seen[c.ID] {
			t.Errorf("task %s in both views", c.ID)
		}
	}
	// Newest first.
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("expected newest first, got %s..%s", all[0].ID, all[2].ID)
	}
}

func TestUpdate_Idempotent(t *testing.T) {
	svc, f := newFacade()
	svc.AddTask("a", "A", false)
	ctx := context.Background()

	if err := f.Update(ctx, "a", true); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := f.Update(ctx, "a", true); err != nil {
		t.Fatalf("second update: %v", err)
	}
	completed, _ := f.ListCompleted(ctx)
	if len(completed) != 1 {
		t.Errorf("expected 1 completed task, got %d", len(completed))
	}
}

func TestUpdate_NotFound(t *testing.T) {
	_, f := newFacade()

	err := f.Update(context.Background(), "missing", true)
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	svc, f := newFacade()
	svc.AddTask("a", "A", false)
	ctx := context.Background()

	if err := f.Toggle(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if !svc.Snapshot()[0].IsCompleted {
		t.Error("expected completed after first toggle")
	}
	if err := f.Toggle(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if svc.Snapshot()[0].IsCompleted {
		t.Error("expected active after second toggle")
	}
	if err := f.Toggle(ctx, "nope"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemove_MissingIsFailure(t *testing.T) {
	_, f := newFacade()

	if err := f.Remove(context.Background(), "missing"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClearCompleted_RemovesExactlyCompleted(t *testing.T) {
	svc, f := newFacade()
	svc.AddTask("a", "A", true)
	svc.AddTask("b", "B", false)
	svc.AddTask("c", "C", true)
	ctx := context.Background()

	n, err := f.ClearCompleted(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	completed, _ := f.ListCompleted(ctx)
	if len(completed) != 0 {
		t.Errorf("expected no completed tasks, got %d", len(completed))
	}
	all, _ := f.ListAll(ctx)
	if len(all) != 1 || all[0].ID != "b" {
		t.Errorf("expected only b to remain, got %+v", all)
	}
}

func TestClearCompleted_Failure(t *testing.T) {
	svc, f := newFacade()
	svc.AddTask("a", "A", true)
	svc.ClearErr = errors.New("unavailable")

	n, err := f.ClearCompleted(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var partial *tasks.PartialError
	if errors.As(err, &partial) {
		t.Error("expected plain error when nothing was deleted")
	}
	if n != 0 {
		t.Errorf("expected 0 deleted, got %d", n)
	}
}

func TestScenario_BuyMilk(t *testing.T) {
	_, f := newFacade()
	ctx := context.Background()

	if _, err := f.Create(ctx, "Buy milk"); err != nil {
		t.Fatal(err)
	}
	all, _ := f.ListAll(ctx)
	if len(all) != 1 || all[0].Text != "Buy milk" || all[0].IsCompleted {
		t.Fatalf("unexpected tasks after create: %+v", all)
	}

	if err := f.Update(ctx, all[0].ID, true); err != nil {
		t.Fatal(err)
	}
	completed, _ := f.ListCompleted(ctx)
	active, _ := f.ListActive(ctx)
	if len(completed) != 1 || len(active) != 0 {
		t.Fatalf("expected 1 completed and 0 active, got %d and %d", len(completed), len(active))
	}

	n, err := f.ClearCompleted(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected deleted 1, got %d", n)
	}
	all, _ = f.ListAll(ctx)
	if len(all) != 0 {
		t.Errorf("expected empty list, got %d", len(all))
	}
}

func TestSubscribe_DeliversSnapshots(t *testing.T) {
	_, f := newFacade()
	ctx := context.Background()

	var allSnaps, activeSnaps [][]service.Task
	subAll, err := f.Subscribe(ctx, tasks.ViewAll, func(s []service.Task) { allSnaps = append(allSnaps, s) })
	if err != nil {
		t.Fatal(err)
	}
	subActive, err := f.Subscribe(ctx, tasks.ViewActive, func(s []service.Task) { activeSnaps = append(activeSnaps, s) })
	if err != nil {
		t.Fatal(err)
	}

	if len(allSnaps) != 1 || len(allSnaps[0]) != 0 {
		t.Fatalf("expected one empty initial snapshot, got %v", allSnaps)
	}

	created, _ := f.Create(ctx, "one")
	if got := allSnaps[len(allSnaps)-1]; len(got) != 1 || got[0].ID != created.ID {
		t.Errorf("expected snapshot with created task, got %+v", got)
	}

	f.Update(ctx, created.ID, true)
	if got := activeSnaps[len(activeSnaps)-1]; len(got) != 0 {
		t.Errorf("expected empty active snapshot, got %+v", got)
	}

	subAll.Cancel()
	subAll.Cancel()
	before := len(allSnaps)
	f.Create(ctx, "two")
	if len(allSnaps) != before {
		t.Error("expected no delivery after cancel")
	}
	subActive.Cancel()
}

func TestSubscribe_ListError(t *testing.T) {
	svc, f := newFacade()
	svc.ListErr = errors.New("offline")

	if _, err := f.Subscribe(context.Background(), tasks.ViewAll, func([]service.Task) {}); err == nil {
		t.Error("expected subscribe to fail")
	}
}

func TestRefresh_PicksUpExternalChanges(t *testing.T) {
	svc, f := newFacade()
	ctx := context.Background()

	var last []service.Task
	if _, err := f.Subscribe(ctx, tasks.ViewAll, func(s []service.Task) { last = s }); err != nil {
		t.Fatal(err)
	}

	svc.AddTask("ext", "from elsewhere", false)
	if err := f.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 || last[0].ID != "ext" {
		t.Errorf("expected external task after refresh, got %+v", last)
	}
}

// gatedService holds the first armed List call open until released.
type gatedService struct {
	*testutil.FakeService

	mu       sync.Mutex
	armed    bool
	held     chan struct{}
	release  chan struct{}
	listed   chan struct{} // closed on the first List after the held one
	sawHeld  bool
	signaled bool
}

func (g *gatedService) List(ctx context.Context, filter service.Filter) ([]service.Task, error) {
	out, err := g.FakeService.List(ctx, filter)

	g.mu.Lock()
	hold := g.armed
	g.armed = false
	if !hold && g.sawHeld && !g.signaled {
		g.signaled = true
		close(g.listed)
	}
	if hold {
		g.sawHeld = true
	}
	g.mu.Unlock()

	if hold {
		close(g.held)
		<-g.release
	}
	return out, err
}

func TestSubscribe_OverlappingMutationsEndOnNewestSnapshot(t *testing.T) {
	svc := &gatedService{
		FakeService: testutil.NewFakeService(),
		held:        make(chan struct{}),
		release:     make(chan struct{}),
		listed:      make(chan struct{}),
	}
	f := tasks.New(svc, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var last []service.Task
	if _, err := f.Subscribe(ctx, tasks.ViewAll, func(s []service.Task) {
		mu.Lock()
		last = s
		mu.Unlock()
	}); err != nil {
		t.Fatal(err)
	}

	svc.mu.Lock()
	svc.armed = true
	svc.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.Create(ctx, "first")
	}()
	<-svc.held

	go func() {
		defer wg.Done()
		f.Create(ctx, "second")
	}()
	// Give the second publish a chance to run ahead of the held one.
	select {
	case <-svc.listed:
	case <-time.After(50 * time.Millisecond):
	}
	close(svc.release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(last) != 2 {
		t.Fatalf("expected latest snapshot with 2 tasks, got %+v", last)
	}
	if last[0].Text != "second" || last[1].Text != "first" {
		t.Errorf("expected newest first, got %+v", last)
	}
}

func TestSubscribe_SeesChangeDuringInitialFetch(t *testing.T) {
	svc := &gatedService{
		FakeService: testutil.NewFakeService(),
		armed:       true,
		held:        make(chan struct{}),
		release:     make(chan struct{}),
		listed:      make(chan struct{}),
	}
	f := tasks.New(svc, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var last []service.Task
	subscribed := make(chan error, 1)
	go func() {
		_, err := f.Subscribe(ctx, tasks.ViewAll, func(s []service.Task) {
			mu.Lock()
			last = s
			mu.Unlock()
		})
		subscribed <- err
	}()
	<-svc.held

	created := make(chan struct{})
	go func() {
		f.Create(ctx, "late")
		close(created)
	}()
	select {
	case <-svc.listed:
	case <-time.After(50 * time.Millisecond):
	}
	close(svc.release)
	if err := <-subscribed; err != nil {
		t.Fatal(err)
	}
	<-created

	mu.Lock()
	defer mu.Unlock()
	if len(last) != 1 || last[0].Text != "late" {
		t.Errorf("expected subscriber to see the task created while subscribing, got %+v", last)
	}
}
