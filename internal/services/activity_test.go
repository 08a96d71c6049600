package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"learnloop-backend/internal/store"
)

func seedDay(t *testing.T, st *store.MemoryStore, userID uuid.UUID, date string, totalSeconds int) {
	t.Helper()
	err := st.Merge(context.Background(), store.Key(userID, date), store.Patch{
		"user_id":       userID,
		"date":          date,
		"sessions":      []map[string]interface{}{},
		"total_seconds": totalSeconds,
	})
	if err != nil {
		t.Fatalf("Failed to seed %s: %v", date, err)
	}
}

func TestGetUserActivityThisWeek(t *testing.T) {
	st := store.NewMemoryStore()
	mClock := quartz.NewMock(t)
	now, _ := time.Parse(time.RFC3339, "2026-03-10T15:30:00Z")
	mClock.Set(now)

	userID := uuid.New()
	seedDay(t, st, userID, "2026-03-04", 7200) // oldest day of the window
	seedDay(t, st, userID, "2026-03-08", 1800)
	seedDay(t, st, userID, "2026-03-10", 5432) // today
	seedDay(t, st, userID, "2026-03-03", 9999) // outside the window

	svc := NewActivityService(st, mClock)
	week := svc.GetUserActivityThisWeek(context.Background(), userID)

	if len(week) != 7 {
		t.Fatalf("Expected 7 entries, got %d", len(week))
	}
	if week[0].Date != "2026-03-04" {
		t.Errorf("Expected oldest date first, got %s", week[0].Date)
	}
	if week[6].Date != "2026-03-10" {
		t.Errorf("Expected today last, got %s", week[6].Date)
	}

	expected := map[string]float64{
		"2026-03-04": 2,
		"2026-03-05": 0,
		"2026-03-06": 0,
		"2026-03-07": 0,
		"2026-03-08": 0.5,
		"2026-03-09": 0,
		"2026-03-10": 1.51,
	}
	for _, day := range week {
		if day.Hours < 0 {
			t.Errorf("Negative hours for %s: %v", day.Date, day.Hours)
		}
		if day.Hours != expected[day.Date] {
			t.Errorf("Expected %v hours on %s, got %v", expected[day.Date], day.Date, day.Hours)
		}
	}
}

func TestGetUserActivityThisWeek_FailsClosed(t *testing.T) {
	st := store.NewMemoryStore()
	mClock := quartz.NewMock(t)
	now, _ := time.Parse(time.RFC3339, "2026-03-10T15:30:00Z")
	mClock.Set(now)

	userID := uuid.New()
	seedDay(t, st, userID, "2026-03-10", 3600)
	st.GetErr = errors.New("store unavailable")

	svc := NewActivityService(st, mClock)
	week := svc.GetUserActivityThisWeek(context.Background(), userID)

	if len(week) != 0 {
		t.Errorf("Expected empty result when a day read fails, got %d entries", len(week))
	}
}

func TestGetUserActivity(t *testing.T) {
	st := store.NewMemoryStore()
	userID := uuid.New()
	seedDay(t, st, userID, "2026-03-10", 1234)

	svc := NewActivityService(st, nil)

	agg, err := svc.GetUserActivity(context.Background(), userID, "2026-03-10")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if agg == nil || agg.TotalSeconds != 1234 {
		t.Errorf("Unexpected aggregate: %+v", agg)
	}

	agg, err = svc.GetUserActivity(context.Background(), userID, "2026-03-09")
	if err != nil {
		t.Fatalf("Unexpected error for absent day: %v", err)
	}
	if agg != nil {
		t.Errorf("Expected nil aggregate for absent day, got %+v", agg)
	}
}

func TestFormatSecondsToHours(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int
		expected float64
	}{
		{"zero", 0, 0},
		{"one minute", 60, 0.02},
		{"half hour", 1800, 0.5},
		{"exact hour", 3600, 1},
		{"rounds to 2 decimals", 5432, 1.51},
		{"full day", 86400, 24},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := FormatSecondsToHours(tc.seconds)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}
