package worker

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"learnloop-backend/internal/models"
	"learnloop-backend/internal/store"
)

func TestApply(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	userID := uuid.New()

	start, _ := time.Parse(time.RFC3339, "2026-03-10T12:00:00Z")
	job := FlushJob{
		UserID: userID,
		Date:   "2026-03-10",
		Record: models.ActivitySessionRecord{
			StartTime: start,
			EndTime:   start.Add(60 * time.Second),
			Duration:  60,
			PageType:  models.PageLesson,
		},
	}

	if err := Apply(ctx, st, job); err != nil {
		t.Fatalf("Apply on empty store failed: %v", err)
	}

	agg, err := st.Get(ctx, store.Key(userID, "2026-03-10"))
	if err != nil {
		t.Fatalf("Failed to read aggregate: %v", err)
	}
	if len(agg.Sessions) != 1 || agg.TotalSeconds != 60 {
		t.Errorf("Unexpected aggregate after first apply: %+v", agg)
	}

	// A second record appends and the total is recomputed over all sessions.
	job.Record.Duration = 30
	job.Record.EndTime = start.Add(90 * time.Second)
	if err := Apply(ctx, st, job); err != nil {
		t.Fatalf("Apply on existing aggregate failed: %v", err)
	}

	agg, err = st.Get(ctx, store.Key(userID, "2026-03-10"))
	if err != nil {
		t.Fatalf("Failed to read aggregate: %v", err)
	}
	if len(agg.Sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(agg.Sessions))
	}
	if agg.TotalSeconds != 90 {
		t.Errorf("Expected total_seconds 90, got %d", agg.TotalSeconds)
	}
}

func TestRequeue_LogsWhenQueueUnavailable(t *testing.T) {
	// Port 1 is never listening, so the write fails immediately.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	pool := NewRetryPool(client, store.NewMemoryStore(), 1)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	pool.requeue(context.Background(), 0, FlushJob{
		UserID:     uuid.New(),
		Date:       "2026-03-10",
		RetryCount: 1,
	})

	if !strings.Contains(buf.String(), "failed to re-enqueue") {
		t.Errorf("Expected the lost queue write to be logged, got %q", buf.String())
	}
}
