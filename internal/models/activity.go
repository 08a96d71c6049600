package models

import (
	"time"

	"github.com/google/uuid"
)

// PageType identifies the kind of learning content a session was spent on.
type PageType string

const (
	PageCourse PageType = "course"
	PageLesson PageType = "lesson"
	PageQuiz   PageType = "quiz"
)

func (p PageType) Valid() bool {
	return p == PageCourse || p == PageLesson || p == PageQuiz
}

// PageContext pins a session to a location in the course catalog. The index
// fields are pointers so that index 0 survives the absence-by-omission rule.
type PageContext struct {
	PageType    PageType `json:"page_type"`
	CourseID    string   `json:"course_id,omitempty"`
	ModuleIndex *int     `json:"module_index,omitempty"`
	LessonIndex *int     `json:"lesson_index,omitempty"`
}

// ActivitySessionRecord is one flushed measurement window. Immutable once
// written; records shorter than the minimum-duration floor are never written.
type ActivitySessionRecord struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    int       `json:"duration"` // whole seconds, end - start
	PageType    PageType  `json:"page_type"`
	CourseID    string    `json:"course_id,omitempty"`
	ModuleIndex *int      `json:"module_index,omitempty"`
	LessonIndex *int      `json:"lesson_index,omitempty"`
}

// DailyActivityAggregate accumulates one user's session records for one UTC
// calendar day. Stored as a document keyed by "{user_id}-{date}". Sessions is
// append-only and TotalSeconds always equals the sum of its durations.
type DailyActivityAggregate struct {
	UserID       uuid.UUID               `json:"user_id"`
	Date         string                  `json:"date"` // YYYY-MM-DD, UTC
	Sessions     []ActivitySessionRecord `json:"sessions"`
	TotalSeconds int                     `json:"total_seconds"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// DayActivity is one entry of the 7-day rolling view, oldest date first.
type DayActivity struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}
