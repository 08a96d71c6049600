package services

import (
	"context"
	"errors"
	"log"
	"math"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"learnloop-backend/internal/models"
	"learnloop-backend/internal/store"
)

// ActivityService is the read side of the tracking engine: point reads of a
// day's aggregate and the 7-day rolling view the weekly dashboard renders.
type ActivityService struct {
	store store.AggregateStore
	clock quartz.Clock
}

func NewActivityService(st store.AggregateStore, clock quartz.Clock) *ActivityService {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &ActivityService{store: st, clock: clock}
}

// GetUserActivity returns the aggregate for one UTC date, or nil when the
// user has no recorded activity that day.
func (s *ActivityService) GetUserActivity(ctx context.Context, userID uuid.UUID, date string) (*models.DailyActivityAggregate, error) {
	agg, err := s.store.Get(ctx, store.Key(userID, date))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return agg, err
}

// GetUserActivityThisWeek reads the last 7 UTC days, today included, oldest
// first, and maps each day's total to hours. A day without an aggregate
// counts as 0. If any single read fails the whole view degrades to empty
// rather than presenting a partially populated week.
func (s *ActivityService) GetUserActivityThisWeek(ctx context.Context, userID uuid.UUID) []models.DayActivity {
	today := s.clock.Now().UTC()

	week := make([]models.DayActivity, 0, 7)
	for i := 6; i >= 0; i-- {
		date := store.DateOf(today.AddDate(0, 0, -i))

		agg, err := s.store.Get(ctx, store.Key(userID, date))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("weekly activity: read failed for user %s on %s: %v", userID, date, err)
			return []models.DayActivity{}
		}

		hours := 0.0
		if agg != nil {
			hours = FormatSecondsToHours(agg.TotalSeconds)
		}
		week = append(week, models.DayActivity{Date: date, Hours: hours})
	}
	return week
}

// FormatSecondsToHours converts seconds to hours rounded to 2 decimal places.
func FormatSecondsToHours(seconds int) float64 {
	return math.Round(float64(seconds)/3600*100) / 100
}
