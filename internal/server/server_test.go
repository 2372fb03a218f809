package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/brigade/internal/config"
	"github.com/me/brigade/internal/scheduler"
	"github.com/me/brigade/internal/store"
	"github.com/me/brigade/pkg/model"
)

var placedAt = time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

type fixture struct {
	srv   *Server
	store *store.SQLiteStore
}

func testServer(t *testing.T, opts ...Option) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	// Orders are placed at placedAt and complete ten minutes later.
	engine := scheduler.NewEngine(st, st, logger,
		scheduler.WithClock(scheduler.ClockFunc(func() time.Time { return placedAt.Add(10 * time.Minute) })))

	opts = append([]Option{WithClock(func() time.Time { return placedAt })}, opts...)
	return fixture{
		srv:   New(config.DefaultServerConfig(), st, engine, logger, opts...),
		store: st,
	}
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string, wantStatus int) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
		}
	}
	return env
}

func doGet(t *testing.T, srv *Server, path string) envelope {
	t.Helper()
	return do(t, srv, "GET", path, "", http.StatusOK)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
	return v
}

func createWorkspace(t *testing.T, srv *Server) string {
	t.Helper()
	env := do(t, srv, "POST", "/api/v1/workspaces/", `{"name":"Main Street","admin_email":"chef@example.com"}`, http.StatusCreated)
	return decode[model.Workspace](t, env).ID
}

func createDish(t *testing.T, srv *Server, wid, body string) model.Dish {
	t.Helper()
	env := do(t, srv, "POST", "/api/v1/workspaces/"+wid+"/dishes/", body, http.StatusCreated)
	return decode[model.Dish](t, env)
}

func placeOrder(t *testing.T, srv *Server, wid, body string) model.OrderReceipt {
	t.Helper()
	env := do(t, srv, "POST", "/api/v1/workspaces/"+wid+"/orders/", body, http.StatusCreated)
	return decode[model.OrderReceipt](t, env)
}

func TestDiscovery(t *testing.T) {
	f := testServer(t)
	env := doGet(t, f.srv, "/api/v1/")
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if env.RequestID == "" {
		t.Error("request_id is empty")
	}

	data := decode[discoveryResponse](t, env)
	if data.Name != "brigade API" {
		t.Errorf("name = %q, want brigade API", data.Name)
	}
	if len(data.Endpoints) < 10 {
		t.Errorf("endpoints count = %d, want >= 10", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	f := testServer(t)
	data := decode[healthResponse](t, doGet(t, f.srv, "/api/v1/health"))
	if data.Status != "healthy" {
		t.Errorf("health status = %q, want healthy", data.Status)
	}
	if data.Version != Version || data.Scheduler != "running" {
		t.Errorf("health = %+v", data)
	}
}

func TestResponseEnvelope_XRequestIDHeader(t *testing.T) {
	f := testServer(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)

	hdr := w.Header().Get("X-Request-ID")
	if !strings.HasPrefix(hdr, "req_") {
		t.Errorf("X-Request-ID = %q, want req_ prefix", hdr)
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	if env.RequestID != hdr {
		t.Errorf("envelope request_id = %q, header = %q", env.RequestID, hdr)
	}
}

func TestWorkspaces(t *testing.T) {
	f := testServer(t)
	wid := createWorkspace(t, f.srv)
	if !strings.HasPrefix(wid, "ws_") {
		t.Errorf("id = %q, want ws_ prefix", wid)
	}

	got := decode[model.Workspace](t, doGet(t, f.srv, "/api/v1/workspaces/"+wid+"/"))
	if got.Name != "Main Street" {
		t.Errorf("name = %q", got.Name)
	}

	env := doGet(t, f.srv, "/api/v1/workspaces/")
	if env.Pagination == nil || env.Pagination.Total != 1 {
		t.Errorf("pagination = %+v, want total 1", env.Pagination)
	}

	env = do(t, f.srv, "GET", "/api/v1/workspaces/ws_missing/", "", http.StatusNotFound)
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}

	env = do(t, f.srv, "POST", "/api/v1/workspaces/", `{"name":"  "}`, http.StatusBadRequest)
	if env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
	do(t, f.srv, "POST", "/api/v1/workspaces/", "not json", http.StatusBadRequest)
}

func TestCreateWorkspace_AutoSeed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatal(err)
	}
	st.Migrate(context.Background())
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultServerConfig()
	cfg.SeedMenu = true
	srv := New(cfg, st, scheduler.NewEngine(st, st, logger), logger)

	wid := createWorkspace(t, srv)
	dishes := decode[[]model.Dish](t, doGet(t, srv, "/api/v1/workspaces/"+wid+"/dishes/"))
	if len(dishes) != 10 {
		t.Errorf("dishes = %d, want 10", len(dishes))
	}
}

func TestMenuSeedAndUnload(t *testing.T) {
	f := testServer(t)
	wid := createWorkspace(t, f.srv)
	base := "/api/v1/workspaces/" + wid + "/dishes/"

	if dishes := decode[[]model.Dish](t, doGet(t, f.srv, base)); len(dishes) != 0 {
		t.Fatalf("new workspace has %d dishes", len(dishes))
	}

	env := do(t, f.srv, "POST", base+"seed", "", http.StatusCreated)
	if seeded := decode[[]model.Dish](t, env); len(seeded) != 10 {
		t.Errorf("seeded %d dishes, want 10", len(seeded))
	}
	env = do(t, f.srv, "POST", base+"seed", "", http.StatusConflict)
	if env.Error == nil || env.Error.Code != model.ErrConflict {
		t.Errorf("error = %+v, want CONFLICT", env.Error)
	}

	env = do(t, f.srv, "DELETE", base, "", http.StatusOK)
	if n := decode[map[string]any](t, env)["deleted"]; n != float64(10) {
		t.Errorf("deleted = %v, want 10", n)
	}
	if dishes := decode[[]model.Dish](t, doGet(t, f.srv, base)); len(dishes) != 0 {
		t.Errorf("%d dishes left after unload", len(dishes))
	}
}

func TestDishCRUD(t *testing.T) {
	f := testServer(t)
	wid := createWorkspace(t, f.srv)
	other := createWorkspace(t, f.srv)

	dish := createDish(t, f.srv, wid, `{"name":"Pad Thai","prep_minutes":12,"ingredients":["Peanuts","Eggs","Shrimp"]}`)
	if !strings.HasPrefix(dish.ID, "dish_") || dish.WorkspaceID != wid {
		t.Errorf("dish = %+v", dish)
	}
	path := "/api/v1/workspaces/" + wid + "/dishes/" + dish.ID + "/"

	got := decode[model.Dish](t, doGet(t, f.srv, path))
	if got.Name != "Pad Thai" || len(got.Ingredients) != 3 {
		t.Errorf("got %+v", got)
	}

	env := do(t, f.srv, "PUT", path, `{"name":"Pad Thai","prep_minutes":14,"ingredients":["Eggs"]}`, http.StatusOK)
	if upd := decode[model.Dish](t, env); upd.PrepMinutes != 14 || len(upd.Ingredients) != 1 {
		t.Errorf("updated = %+v", upd)
	}

	do(t, f.srv, "PUT", path, `{"name":"","prep_minutes":0}`, http.StatusBadRequest)
	do(t, f.srv, "POST", "/api/v1/workspaces/"+wid+"/dishes/", `{"name":"Toast"}`, http.StatusBadRequest)

	// Dishes are scoped to their workspace.
	do(t, f.srv, "GET", "/api/v1/workspaces/"+other+"/dishes/"+dish.ID+"/", "", http.StatusNotFound)

	do(t, f.srv, "DELETE", path, "", http.StatusOK)
	do(t, f.srv, "GET", path, "", http.StatusNotFound)
}

func TestCheckAllergies(t *testing.T) {
	f := testServer(t)
	wid := createWorkspace(t, f.srv)
	dish := createDish(t, f.srv, wid, `{"name":"Pad Thai","prep_minutes":12,"ingredients":["Peanuts","Eggs","Shrimp"]}`)
	path := "/api/v1/workspaces/" + wid + "/dishes/" + dish.ID + "/allergies"

	report := decode[model.AllergyReport](t, do(t, f.srv, "POST", path, `{"allergies":["shrimp"," PEANUTS "]}`, http.StatusOK))
	if len(report.Conflicts) != 2 || report.Conflicts[0] != "Peanuts" || report.Conflicts[1] != "Shrimp" {
		t.Errorf("conflicts = %v, want [Peanuts Shrimp]", report.Conflicts)
	}

	report = decode[model.AllergyReport](t, do(t, f.srv, "POST", path, `{"allergies":["Dairy"]}`, http.StatusOK))
	if len(report.Conflicts) != 0 || !strings.Contains(report.Message, "No allergy conflict") {
		t.Errorf("report = %+v", report)
	}
}

func TestOrderLifecycle(t *testing.T) {
	f := testServer(t)
	wid := createWorkspace(t, f.srv)
	steak := createDish(t, f.srv, wid, `{"name":"Grilled Steak","prep_minutes":20,"ingredients":["Meat","Pepper"]}`)
	bread := createDish(t, f.srv, wid, `{"name":"Garlic Bread","prep_minutes":5,"ingredients":["Gluten","Dairy","Garlic"]}`)
	orders := "/api/v1/workspaces/" + wid + "/orders/"

	do(t, f.srv, "GET", orders+"next", "", http.StatusNoContent)

	t1 := placeOrder(t, f.srv, wid, `{"dish_id":"`+steak.ID+`","table_number":4,"is_vip":true}`).Task
	t2 := placeOrder(t, f.srv, wid, `{"dish_id":"`+bread.ID+`","table_number":9,"quantity":2,"allergies":["dairy"]}`)

	if !t1.StartAt.Equal(placedAt.Add(20*time.Minute)) || t1.PrepMinutes != 20 || t1.Quantity != 1 {
		t.Errorf("t1 = %+v", t1)
	}
	if len(t2.AllergenConflicts) != 1 || t2.AllergenConflicts[0] != "Dairy" {
		t.Errorf("allergen conflicts = %v, want [Dairy]", t2.AllergenConflicts)
	}

	// VIP first even though it starts later.
	queue := decode[[]model.Task](t, doGet(t, f.srv, orders+"queue"))
	if len(queue) != 2 || queue[0].ID != t1.ID || queue[1].ID != t2.Task.ID {
		t.Fatalf("queue = %v", queue)
	}
	if next := decode[model.Task](t, doGet(t, f.srv, orders+"next")); next.ID != t1.ID {
		t.Errorf("next = %s, want %s", next.ID, t1.ID)
	}

	done := decode[model.Task](t, do(t, f.srv, "POST", orders+t1.ID+"/complete", "", http.StatusOK))
	if done.State != model.TaskStateCompleted {
		t.Errorf("state = %s, want COMPLETED", done.State)
	}
	do(t, f.srv, "POST", orders+t1.ID+"/complete", "", http.StatusConflict)

	history := decode[[]model.Task](t, doGet(t, f.srv, orders+"history"))
	if len(history) != 1 || history[0].ID != t1.ID {
		t.Errorf("history = %v", history)
	}

	// Ten observed minutes against a 20 minute estimate.
	updated, _ := f.store.GetDish(context.Background(), steak.ID)
	if updated.PrepMinutes != 19 {
		t.Errorf("steak estimate = %d, want 19", updated.PrepMinutes)
	}
	row, _ := f.store.GetTask(context.Background(), t1.ID)
	if row == nil || row.State != model.TaskStateCompleted {
		t.Errorf("stored row = %+v", row)
	}

	stats := decode[scheduler.LaneStats](t, doGet(t, f.srv, orders+"stats"))
	if stats.Active != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v", stats)
	}

	undone := decode[model.Task](t, do(t, f.srv, "POST", orders+"undo", "", http.StatusOK))
	if undone.ID != t1.ID || undone.State != model.TaskStateActive {
		t.Errorf("undone = %+v", undone)
	}
	env := do(t, f.srv, "POST", orders+"undo", "", http.StatusConflict)
	if env.Error == nil || env.Error.Code != model.ErrConflict {
		t.Errorf("error = %+v, want CONFLICT", env.Error)
	}

	if got := decode[model.Task](t, doGet(t, f.srv, orders+t2.Task.ID+"/")); got.TableNumber != 9 {
		t.Errorf("lookup = %+v", got)
	}

	do(t, f.srv, "DELETE", orders+t2.Task.ID+"/", "", http.StatusOK)
	do(t, f.srv, "DELETE", orders+t2.Task.ID+"/", "", http.StatusNotFound)
	do(t, f.srv, "GET", orders+t2.Task.ID+"/", "", http.StatusNotFound)
	if row, _ := f.store.GetTask(context.Background(), t2.Task.ID); row != nil {
		t.Error("purged order still stored")
	}
}

func TestPlaceOrder_Errors(t *testing.T) {
	f := testServer(t)
	wid := createWorkspace(t, f.srv)
	other := createWorkspace(t, f.srv)
	dish := createDish(t, f.srv, other, `{"name":"Soup","prep_minutes":8}`)
	orders := "/api/v1/workspaces/" + wid + "/orders/"

	env := do(t, f.srv, "POST", orders, `{"table_number":1}`, http.StatusBadRequest)
	if env.Error == nil || len(env.Error.Details) == 0 || env.Error.Details[0].Field != "dish_id" {
		t.Errorf("error = %+v, want dish_id detail", env.Error)
	}
	do(t, f.srv, "POST", orders, `{"dish_id":"dish_missing"}`, http.StatusNotFound)
	do(t, f.srv, "POST", orders, `{"dish_id":"`+dish.ID+`"}`, http.StatusNotFound)
	do(t, f.srv, "POST", orders, `{"dish_id":"x","quantity":-1}`, http.StatusBadRequest)
	do(t, f.srv, "POST", "/api/v1/workspaces/ws_missing/orders/", `{"dish_id":"x"}`, http.StatusNotFound)
}

func TestStream(t *testing.T) {
	f := testServer(t, WithStreamInterval(10*time.Millisecond))
	wid := createWorkspace(t, f.srv)
	dish := createDish(t, f.srv, wid, `{"name":"Soup","prep_minutes":8}`)

	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/v1/workspaces/"+wid+"/orders/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "event: ") {
				events <- strings.TrimPrefix(line, "event: ")
			}
		}
		close(events)
	}()

	if ev := <-events; ev != "init" {
		t.Fatalf("first event = %q, want init", ev)
	}
	placeOrder(t, f.srv, wid, `{"dish_id":"`+dish.ID+`"}`)

	select {
	case ev := <-events:
		if ev != "update" {
			t.Errorf("event = %q, want update", ev)
		}
	case <-ctx.Done():
		t.Fatal("no update event after placing an order")
	}
}

func TestListOrders(t *testing.T) {
	f := testServer(t)
	wid := createWorkspace(t, f.srv)
	soup := createDish(t, f.srv, wid, `{"name":"Soup","prep_minutes":10}`)
	orders := "/api/v1/workspaces/" + wid + "/orders/"

	var placed []string
	for table := 1; table <= 3; table++ {
		r := placeOrder(t, f.srv, wid, fmt.Sprintf(`{"dish_id":%q,"table_number":%d}`, soup.ID, table))
		placed = append(placed, r.Task.ID)
	}
	do(t, f.srv, "POST", orders+placed[0]+"/complete", "", http.StatusOK)

	// Orders in another workspace stay out of the listing.
	other := createWorkspace(t, f.srv)
	bread := createDish(t, f.srv, other, `{"name":"Bread","prep_minutes":5}`)
	placeOrder(t, f.srv, other, `{"dish_id":"`+bread.ID+`","table_number":1}`)

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantTotal int
	}{
		{"all newest first", "", []string{placed[2], placed[1], placed[0]}, 3},
		{"active", "?state=ACTIVE", []string{placed[2], placed[1]}, 2},
		{"completed lowercase", "?state=completed", []string{placed[0]}, 1},
		{"paged", "?limit=1&offset=1", []string{placed[1]}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := doGet(t, f.srv, orders+tt.query)
			got := decode[[]model.Task](t, env)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d orders, want %d", len(got), len(tt.wantIDs))
			}
			for i, task := range got {
				if task.ID != tt.wantIDs[i] {
					t.Errorf("order[%d] = %s, want %s", i, task.ID, tt.wantIDs[i])
				}
			}
			if env.Pagination == nil || env.Pagination.Total != tt.wantTotal {
				t.Errorf("pagination = %+v, want total %d", env.Pagination, tt.wantTotal)
			}
		})
	}

	env := do(t, f.srv, "GET", orders+"?state=cooking", "", http.StatusBadRequest)
	if env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
}

func TestGetOrder_FallsBackToStore(t *testing.T) {
	f := testServer(t)
	wid := createWorkspace(t, f.srv)
	other := createWorkspace(t, f.srv)
	ctx := context.Background()

	// Rows written before a restart are in the store but not in memory.
	archived := model.Task{
		ID:          "ord_archived",
		WorkspaceID: wid,
		DishID:      "dish_gone",
		DishName:    "Old Special",
		State:       model.TaskStateCompleted,
		PlacedAt:    placedAt.Add(-24 * time.Hour),
		PrepMinutes: 15,
		StartAt:     placedAt.Add(-24*time.Hour + 15*time.Minute),
		Seq:         7,
	}
	if err := f.store.CreateTask(ctx, &archived); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got := decode[model.Task](t, doGet(t, f.srv, "/api/v1/workspaces/"+wid+"/orders/ord_archived"))
	if got.ID != "ord_archived" || got.State != model.TaskStateCompleted || got.DishName != "Old Special" {
		t.Errorf("order = %+v", got)
	}

	do(t, f.srv, "GET", "/api/v1/workspaces/"+other+"/orders/ord_archived", "", http.StatusNotFound)
	do(t, f.srv, "GET", "/api/v1/workspaces/"+wid+"/orders/ord_missing", "", http.StatusNotFound)
}
