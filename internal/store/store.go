package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"learnloop-backend/internal/models"
)

// ErrNotFound is returned by Get when no document exists for the key.
var ErrNotFound = errors.New("store: document not found")

// Patch is a shallow top-level merge: listed fields overwrite wholesale,
// everything else already in the document is preserved. Absence is expressed
// by omitting the field entirely, never by a nil value.
type Patch map[string]interface{}

// AggregateStore is the document-store capability the tracking engine needs.
// Merge has upsert semantics and last-write-wins consistency: there is no
// transactional read-modify-write, so two clients flushing the same key may
// interleave and the later write keeps the key. The updated_at field is
// assigned by the store on every merge, not by the caller.
type AggregateStore interface {
	Get(ctx context.Context, key string) (*models.DailyActivityAggregate, error)
	Merge(ctx context.Context, key string, patch Patch) error
}

// Key builds the "{userID}-{YYYY-MM-DD}" document key.
func Key(userID uuid.UUID, date string) string {
	return fmt.Sprintf("%s-%s", userID, date)
}

// DateOf formats t's UTC calendar date the way aggregate keys expect it.
func DateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func validatePatch(patch Patch) error {
	for field, value := range patch {
		if value == nil {
			return fmt.Errorf("store: patch field %q is nil; omit absent fields instead", field)
		}
	}
	return nil
}
