package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/go-cmp/cmp"

	"gtodo/internal/order"
	"gtodo/internal/prefs"
	"gtodo/internal/service"
	"gtodo/internal/tasks"
	"gtodo/internal/testutil"
	"gtodo/internal/theme"
)

func newTestServer(t *testing.T) (*Server, *testutil.FakeService) {
	t.Helper()
	svc := testutil.NewFakeService()
	facade := tasks.New(svc, nil)
	store := prefs.NewMemory()
	list := order.New(facade, store, order.Options{Debounce: 10 * time.Millisecond})
	if err := list.Start(context.Background()); err != nil {
		t.Fatalf("start order: %v", err)
	}
	t.Cleanup(list.Close)

	srv := New(facade, list, theme.Load(store, nil), Options{})
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func decodeTasks(t *testing.T, w *httptest.ResponseRecorder) []service.Task {
	t.Helper()
	var out []service.Task
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	return out
}

func ids(ts []service.Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["order"] != "ready" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestCreateAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/tasks", `{"text":"Buy milk"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body)
	}
	var created service.Task
	json.NewDecoder(w.Body).Decode(&created)
	if created.Text != "Buy milk" || created.IsCompleted {
		t.Errorf("unexpected created task %+v", created)
	}

	got := decodeTasks(t, do(t, srv, http.MethodGet, "/api/tasks", ""))
	if len(got) != 1 || got[0].ID != created.ID {
		t.Errorf("expected created task listed, got %+v", got)
	}
}

func TestCreate_EmptyText(t *testing.T) {
	srv, svc := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/tasks", `{"text":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if svc.Calls["Create"] != 0 {
		t.Errorf("expected no store call, got %d", svc.Calls["Create"])
	}
}

func TestCreate_StoreFailure(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.CreateErr = errors.New("disk full")

	w := do(t, srv, http.MethodPost, "/api/tasks", `{"text":"x"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if !strings.Contains(body["error"], "disk full") {
		t.Errorf("expected error body, got %v", body)
	}
}

func TestUpdateTask(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.AddTask("a", "A", false)
	srv.facade.Refresh(context.Background())

	if w := do(t, srv, http.MethodPatch, "/api/tasks/a", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing field: expected 400, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodPatch, "/api/tasks/missing", `{"isCompleted":true}`); w.Code != http.StatusNotFound {
		t.Errorf("missing task: expected 404, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodPatch, "/api/tasks/a", `{"isCompleted":true}`); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	completed := decodeTasks(t, do(t, srv, http.MethodGet, "/api/tasks?filter=completed", ""))
	if len(completed) != 1 || completed[0].ID != "a" {
		t.Errorf("expected a completed, got %+v", completed)
	}
	active := decodeTasks(t, do(t, srv, http.MethodGet, "/api/tasks?filter=active", ""))
	if len(active) != 0 {
		t.Errorf("expected no active tasks, got %+v", active)
	}
}

func TestListTasks_InvalidFilter(t *testing.T) {
	srv, _ := newTestServer(t)

	if w := do(t, srv, http.MethodGet, "/api/tasks?filter=soon", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestDeleteAndClear(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.AddTask("a", "A", true)
	svc.AddTask("b", "B", false)
	svc.AddTask("c", "C", true)
	srv.facade.Refresh(context.Background())

	if w := do(t, srv, http.MethodDelete, "/api/tasks/b", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodDelete, "/api/tasks/b", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}

	w := do(t, srv, http.MethodPost, "/api/tasks/clear-completed", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]int
	json.NewDecoder(w.Body).Decode(&body)
	if body["deleted"] != 2 {
		t.Errorf("expected deleted 2, got %v", body)
	}
	if got := decodeTasks(t, do(t, srv, http.MethodGet, "/api/tasks", "")); len(got) != 0 {
		t.Errorf("expected empty list, got %+v", got)
	}
}

func TestClearCompleted_Partial(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.AddTask("a", "A", true)
	svc.AddTask("b", "B", true)
	srv.facade.Refresh(context.Background())
	svc.ClearErr = errors.New("unavailable")
	svc.ClearFailAfter = 1

	w := do(t, srv, http.MethodPost, "/api/tasks/clear-completed", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["deleted"] != float64(1) {
		t.Errorf("expected deleted 1 in body, got %v", body)
	}
}

func TestReorder(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.AddTask("a", "A", false)
	svc.AddTask("b", "B", false)
	svc.AddTask("c", "C", false)
	srv.facade.Refresh(context.Background())

	if w := do(t, srv, http.MethodPut, "/api/order", `{"ids":["a","b"]}`); w.Code != http.StatusBadRequest {
		t.Errorf("non-permutation: expected 400, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodPut, "/api/order", `{"ids":["a","c","b"]}`); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	got := ids(decodeTasks(t, do(t, srv, http.MethodGet, "/api/tasks", "")))
	if diff := cmp.Diff([]string{"a", "c", "b"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTheme(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	json.NewDecoder(do(t, srv, http.MethodGet, "/api/theme", "").Body).Decode(&body)
	if body["theme"] != "system" || body["resolved"] != "light" {
		t.Errorf("expected system resolving to light, got %v", body)
	}
	json.NewDecoder(do(t, srv, http.MethodGet, "/api/theme?platform=dark", "").Body).Decode(&body)
	if body["resolved"] != "dark" {
		t.Errorf("expected system to follow platform dark, got %v", body)
	}
	if w := do(t, srv, http.MethodGet, "/api/theme?platform=sepia", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad platform, got %d", w.Code)
	}

	if w := do(t, srv, http.MethodPut, "/api/theme", `{"theme":"neon"}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	json.NewDecoder(do(t, srv, http.MethodPut, "/api/theme", `{"theme":"toggle"}`).Body).Decode(&body)
	if body["theme"] != "dark" {
		t.Errorf("expected dark after toggle, got %v", body)
	}
	if srv.theme.Current() != theme.Dark {
		t.Errorf("expected manager dark, got %s", srv.theme.Current())
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) Frame {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func TestWebSocket_PushesSnapshots(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.AddTask("a", "A", false)
	srv.facade.Refresh(context.Background())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	first := readFrame(t, ctx, conn)
	if first.Type != FrameSnapshot || len(first.Tasks) != 1 || first.Tasks[0].ID != "a" {
		t.Fatalf("unexpected initial frame %+v", first)
	}

	resp, err := http.Post(ts.URL+"/api/tasks", "application/json", bytes.NewBufferString(`{"text":"B"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	// New tasks come first in the ordered list.
	for {
		f := readFrame(t, ctx, conn)
		if len(f.Tasks) == 2 {
			if f.Tasks[0].Text != "B" || f.Tasks[1].ID != "a" {
				t.Errorf("unexpected snapshot order %+v", f.Tasks)
			}
			break
		}
	}
}

func TestHub_SlowClientKeepsNewestSnapshot(t *testing.T) {
	h := NewHub(func() []service.Task { return nil }, slog.New(slog.DiscardHandler))
	c := newClient(nil)
	h.clients[c] = struct{}{}

	for i := range 40 {
		h.Publish([]service.Task{{ID: fmt.Sprintf("t%d", i)}})
	}

	data, closed := c.take()
	if closed {
		t.Fatal("expected client open")
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if len(f.Tasks) != 1 || f.Tasks[0].ID != "t39" {
		t.Errorf("expected newest snapshot t39, got %+v", f.Tasks)
	}
	if data, _ := c.take(); data != nil {
		t.Errorf("expected a single pending frame, got %s", data)
	}

	h.Close()
	if _, closed := c.take(); !closed {
		t.Error("expected client closed after hub close")
	}
}
