package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"learnloop-backend/internal/middleware"
	"learnloop-backend/internal/models"
	"learnloop-backend/internal/services"
	"learnloop-backend/internal/tracker"
)

type ActivityHandler struct {
	manager  *tracker.Manager
	activity *services.ActivityService
}

func NewActivityHandler(manager *tracker.Manager, activity *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{manager: manager, activity: activity}
}

// clientID pins a request to one client context (one tab, one device).
// Falling back to a fixed value keeps single-client setups working.
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	return "default"
}

type pageRequest struct {
	PageType    string `json:"page_type"`
	CourseID    string `json:"course_id"`
	ModuleIndex *int   `json:"module_index"`
	LessonIndex *int   `json:"lesson_index"`
}

func (p pageRequest) toPageContext() (models.PageContext, bool) {
	pageType := models.PageType(p.PageType)
	if !pageType.Valid() {
		return models.PageContext{}, false
	}
	return models.PageContext{
		PageType:    pageType,
		CourseID:    p.CourseID,
		ModuleIndex: p.ModuleIndex,
		LessonIndex: p.LessonIndex,
	}, true
}

// Start opens a tracking session for the page the client is viewing. An
// existing session for the same client context is flushed and replaced.
func (h *ActivityHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	page, ok := req.toPageContext()
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "page_type must be course, lesson, or quiz", r))
		return
	}

	h.manager.For(userID, clientID(r)).StartTracking(r.Context(), userID, page)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tracking started"})
}

// Stop ends the client's session. Persistence failures are logged, never
// surfaced; stopping with nothing active is fine.
func (h *ActivityHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	result := h.manager.Release(r.Context(), userID, clientID(r))

	seconds := 0
	if result.Persisted {
		seconds = result.Duration
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "Tracking stopped",
		"persisted_seconds": seconds,
	})
}

// Visibility maps page visible/focused transitions to start and stop.
// Tracking runs only while the page is both visible and focused.
func (h *ActivityHandler) Visibility(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Visible bool `json:"visible"`
		Focused bool `json:"focused"`
		pageRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Visible && req.Focused {
		page, ok := req.toPageContext()
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "page_type must be course, lesson, or quiz", r))
			return
		}
		h.manager.For(userID, clientID(r)).StartTracking(r.Context(), userID, page)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Tracking started"})
		return
	}

	h.manager.Release(r.Context(), userID, clientID(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tracking stopped"})
}

// Day returns one UTC day's aggregate.
func (h *ActivityHandler) Day(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Date must be YYYY-MM-DD", r))
		return
	}

	agg, err := h.activity.GetUserActivity(r.Context(), userID, date)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load activity", r))
		return
	}
	if agg == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No activity recorded for this date", r))
		return
	}

	writeJSON(w, http.StatusOK, agg)
}

// Week returns the rolling 7-day view, oldest day first.
func (h *ActivityHandler) Week(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"week": h.activity.GetUserActivityThisWeek(r.Context(), userID),
	})
}
