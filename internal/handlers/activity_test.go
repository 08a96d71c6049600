package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"learnloop-backend/internal/middleware"
	"learnloop-backend/internal/models"
	"learnloop-backend/internal/services"
	"learnloop-backend/internal/store"
	"learnloop-backend/internal/tracker"
)

func newTestRouter(t *testing.T, userID uuid.UUID) (http.Handler, *tracker.Manager, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	manager := tracker.NewManager(st)
	handler := NewActivityHandler(manager, services.NewActivityService(st, nil))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/activity/start", handler.Start)
	r.Post("/activity/stop", handler.Stop)
	r.Post("/activity/visibility", handler.Visibility)
	r.Get("/activity/week", handler.Week)
	r.Get("/activity/{date}", handler.Day)

	return r, manager, st
}

func doJSON(t *testing.T, router http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestStartActivity(t *testing.T) {
	userID := uuid.New()
	router, manager, _ := newTestRouter(t, userID)

	rr := doJSON(t, router, http.MethodPost, "/activity/start", map[string]interface{}{
		"page_type": "lesson",
		"course_id": "go-101",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if !manager.For(userID, "default").Active() {
		t.Error("Expected an active session after start")
	}
}

func TestStartActivity_InvalidPageType(t *testing.T) {
	userID := uuid.New()
	router, _, _ := newTestRouter(t, userID)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown page type", map[string]interface{}{"page_type": "video"}},
		{"missing page type", map[string]interface{}{"course_id": "go-101"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, router, http.MethodPost, "/activity/start", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestStopActivity_NothingActive(t *testing.T) {
	userID := uuid.New()
	router, _, _ := newTestRouter(t, userID)

	rr := doJSON(t, router, http.MethodPost, "/activity/stop", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["persisted_seconds"] != float64(0) {
		t.Errorf("Expected persisted_seconds 0, got %v", resp["persisted_seconds"])
	}
}

func TestVisibility_DrivesStartAndStop(t *testing.T) {
	userID := uuid.New()
	router, manager, _ := newTestRouter(t, userID)

	rr := doJSON(t, router, http.MethodPost, "/activity/visibility", map[string]interface{}{
		"visible":   true,
		"focused":   true,
		"page_type": "quiz",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	started := manager.For(userID, "default")
	if !started.Active() {
		t.Fatal("Expected tracking to start when visible and focused")
	}

	// Losing focus stops tracking even while still visible.
	rr = doJSON(t, router, http.MethodPost, "/activity/visibility", map[string]interface{}{
		"visible": true,
		"focused": false,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if started.Active() {
		t.Error("Expected tracking to stop when focus is lost")
	}

	// The stop path releases the tracker rather than leaving it registered.
	if manager.For(userID, "default") == started {
		t.Error("Expected the stopped tracker to be forgotten by the manager")
	}
}

func TestWeek_ReturnsSevenDays(t *testing.T) {
	userID := uuid.New()
	router, _, _ := newTestRouter(t, userID)

	rr := doJSON(t, router, http.MethodGet, "/activity/week", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Week []models.DayActivity `json:"week"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Week) != 7 {
		t.Fatalf("Expected 7 entries, got %d", len(resp.Week))
	}
	for _, day := range resp.Week {
		if day.Hours != 0 {
			t.Errorf("Expected 0 hours for untracked day %s, got %v", day.Date, day.Hours)
		}
	}
}

func TestDay(t *testing.T) {
	userID := uuid.New()
	router, _, st := newTestRouter(t, userID)

	rr := doJSON(t, router, http.MethodGet, "/activity/not-a-date", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed date, got %d", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, "/activity/2026-03-10", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for untracked date, got %d", rr.Code)
	}

	err := st.Merge(context.Background(), store.Key(userID, "2026-03-10"), store.Patch{
		"user_id":       userID,
		"date":          "2026-03-10",
		"sessions":      []models.ActivitySessionRecord{},
		"total_seconds": 300,
	})
	if err != nil {
		t.Fatalf("Failed to seed aggregate: %v", err)
	}

	rr = doJSON(t, router, http.MethodGet, "/activity/2026-03-10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var agg models.DailyActivityAggregate
	if err := json.NewDecoder(rr.Body).Decode(&agg); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if agg.TotalSeconds != 300 || agg.Date != "2026-03-10" {
		t.Errorf("Unexpected aggregate: %+v", agg)
	}
}
