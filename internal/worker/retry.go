package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"learnloop-backend/internal/models"
	"learnloop-backend/internal/store"
)

const (
	retryQueueKey = "queue:activity-flush"
	maxRetries    = 3
)

// FlushJob is one orphaned session record waiting to be folded into its day
// aggregate after the inline flush failed.
type FlushJob struct {
	UserID     uuid.UUID                    `json:"user_id"`
	Date       string                       `json:"date"`
	Record     models.ActivitySessionRecord `json:"record"`
	RetryCount int                          `json:"retry_count"`
}

// RetryPool drains failed-flush records off a redis list and re-applies them.
// Wiring it into the tracker upgrades checkpoint persistence from best-effort
// to bounded retries; the tracking engine itself stays fire-and-forget either
// way.
type RetryPool struct {
	redis       *redis.Client
	store       store.AggregateStore
	workerCount int
	stopChan    chan struct{}
}

func NewRetryPool(redisClient *redis.Client, st store.AggregateStore, workerCount int) *RetryPool {
	return &RetryPool{
		redis:       redisClient,
		store:       st,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

// EnqueueRecord implements tracker.RetrySink.
func (p *RetryPool) EnqueueRecord(ctx context.Context, userID uuid.UUID, date string, rec models.ActivitySessionRecord) error {
	payload, err := json.Marshal(FlushJob{UserID: userID, Date: date, Record: rec})
	if err != nil {
		return err
	}
	return p.redis.RPush(ctx, retryQueueKey, payload).Err()
}

func (p *RetryPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d flush retry workers", p.workerCount)
}

func (p *RetryPool) Stop() {
	close(p.stopChan)
}

func (p *RetryPool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Flush retry worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, retryQueueKey).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job FlushJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Flush retry worker %d: failed to parse job: %v", id, err)
			continue
		}

		if err := Apply(ctx, p.store, job); err != nil {
			job.RetryCount++
			if job.RetryCount >= maxRetries {
				log.Printf("Flush retry worker %d: dropping record for user %s after %d attempts: %v",
					id, job.UserID, job.RetryCount, err)
				continue
			}
			p.requeue(ctx, id, job)
			time.Sleep(time.Duration(job.RetryCount) * time.Second)
		}
	}
}

// requeue puts a job back with its bumped retry count. A failed queue write is
// logged because the record has nowhere else to go.
func (p *RetryPool) requeue(ctx context.Context, workerID int, job FlushJob) {
	payload, _ := json.Marshal(job)
	if err := p.redis.RPush(ctx, retryQueueKey, payload).Err(); err != nil {
		log.Printf("Flush retry worker %d: failed to re-enqueue record for user %s: %v",
			workerID, job.UserID, err)
	}
}

// Apply folds one record into its day aggregate with the same
// append-and-recompute write the inline flush performs.
func Apply(ctx context.Context, st store.AggregateStore, job FlushJob) error {
	key := store.Key(job.UserID, job.Date)

	agg, err := st.Get(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	sessions := []models.ActivitySessionRecord{job.Record}
	if agg != nil {
		sessions = append(agg.Sessions, job.Record)
	}

	total := 0
	for _, s := range sessions {
		total += s.Duration
	}

	return st.Merge(ctx, key, store.Patch{
		"user_id":       job.UserID,
		"date":          job.Date,
		"sessions":      sessions,
		"total_seconds": total,
	})
}
