package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"learnloop-backend/internal/models"
	"learnloop-backend/internal/store"
)

const (
	DefaultCheckpointInterval = 60 * time.Second
	DefaultMinSessionSeconds  = 5
)

// session is the ephemeral in-progress interval. startedAt moves forward to
// the flush instant after every successful checkpoint, so each flush covers
// only the seconds since the previous one, not the whole session.
type session struct {
	userID    uuid.UUID
	page      models.PageContext
	startedAt time.Time
}

// FlushResult reports what a single checkpoint attempt did. Persistence
// failures land in Err instead of propagating to Start/Stop callers.
type FlushResult struct {
	Persisted bool
	Skipped   bool   // below the minimum-duration floor
	Duration  int    // whole seconds covered by this flush
	Date      string // UTC date the record was filed under
	Err       error
}

// EventSink is notified after every successful checkpoint.
type EventSink interface {
	Checkpoint(ctx context.Context, userID uuid.UUID, agg *models.DailyActivityAggregate)
}

// RetrySink receives records whose write failed, for out-of-band recovery.
// Leaving it nil keeps persistence best-effort: a window that cannot be
// written inline is folded into the next successful flush, and lost entirely
// only if the session dies first.
type RetrySink interface {
	EnqueueRecord(ctx context.Context, userID uuid.UUID, date string, rec models.ActivitySessionRecord) error
}

// Tracker owns at most one in-progress session for a single client context
// (one browser tab, one device). Across contexts the store is shared and
// unlocked, so concurrent flushes for the same (user, day) key are
// last-write-wins; that consistency gap is accepted, not patched.
type Tracker struct {
	store    store.AggregateStore
	clock    quartz.Clock
	interval time.Duration
	minSecs  int
	events   EventSink
	retries  RetrySink

	mu           sync.Mutex
	sess         *session
	cancelTicker context.CancelFunc
}

type Option func(*Tracker)

func WithClock(c quartz.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(t *Tracker) { t.interval = d }
}

func WithMinSessionSeconds(n int) Option {
	return func(t *Tracker) { t.minSecs = n }
}

func WithEventSink(s EventSink) Option {
	return func(t *Tracker) { t.events = s }
}

func WithRetrySink(s RetrySink) Option {
	return func(t *Tracker) { t.retries = s }
}

func New(st store.AggregateStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:    st,
		clock:    quartz.NewReal(),
		interval: DefaultCheckpointInterval,
		minSecs:  DefaultMinSessionSeconds,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartTracking opens a session for page. An already-active session is
// stopped and flushed first, so two sessions never overlap within one
// context; that stop-before-start rule is the sole de-duplication mechanism
// for rapid focus/blur transitions. The fresh session gets one immediate
// checkpoint so it is durably represented as early as possible.
func (t *Tracker) StartTracking(ctx context.Context, userID uuid.UUID, page models.PageContext) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked(ctx)

	t.sess = &session{userID: userID, page: page, startedAt: t.clock.Now().UTC()}

	tickCtx, cancel := context.WithCancel(context.Background())
	t.cancelTicker = cancel
	t.clock.TickerFunc(tickCtx, t.interval, func() error {
		t.Checkpoint(context.Background())
		// A failed flush must never stop the ticker.
		return nil
	}, "checkpoint")

	t.flushLocked(ctx, true)
}

// StopTracking cancels the checkpoint ticker, flushes the remaining window
// and clears the session. Calling it with nothing active is a no-op, so
// repeated stops are safe. The returned result resolves once the final flush
// attempt has, successfully or not.
func (t *Tracker) StopTracking(ctx context.Context) FlushResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked(ctx)
}

func (t *Tracker) stopLocked(ctx context.Context) FlushResult {
	if t.sess == nil {
		return FlushResult{}
	}
	if t.cancelTicker != nil {
		t.cancelTicker()
		t.cancelTicker = nil
	}
	res := t.flushLocked(ctx, false)
	t.sess = nil
	return res
}

// Checkpoint persists the elapsed window without ending the session. The
// scheduler calls this on every tick.
func (t *Tracker) Checkpoint(ctx context.Context) FlushResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return FlushResult{}
	}
	return t.flushLocked(ctx, true)
}

// Active reports whether a session is currently open.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess != nil
}

// flushLocked writes the window since sess.startedAt into the day aggregate.
// resetStart is true on the checkpoint path, where a successful write moves
// the session's measurement start to the flush instant; the stop path
// discards the session afterwards so it passes false.
func (t *Tracker) flushLocked(ctx context.Context, resetStart bool) FlushResult {
	sess := t.sess
	now := t.clock.Now().UTC()

	duration := int(now.Sub(sess.startedAt).Seconds())
	if duration < t.minSecs {
		// Anti-noise floor: accidental or near-zero windows are discarded,
		// silently.
		return FlushResult{Skipped: true, Duration: duration}
	}

	// A session spanning UTC midnight files under the flush-time date; it is
	// never split across the boundary.
	date := store.DateOf(now)
	key := store.Key(sess.userID, date)

	rec := models.ActivitySessionRecord{
		StartTime:   sess.startedAt,
		EndTime:     now,
		Duration:    duration,
		PageType:    sess.page.PageType,
		CourseID:    sess.page.CourseID,
		ModuleIndex: sess.page.ModuleIndex,
		LessonIndex: sess.page.LessonIndex,
	}

	agg, err := t.store.Get(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return t.flushFailed(ctx, sess, date, rec, resetStart, fmt.Errorf("read aggregate %s: %w", key, err))
	}

	sessions := []models.ActivitySessionRecord{rec}
	if agg != nil {
		sessions = append(agg.Sessions, rec)
	}

	// Recompute the total from scratch rather than adding incrementally, so
	// any drift in a previously written document heals on the next flush.
	total := 0
	for _, s := range sessions {
		total += s.Duration
	}

	patch := store.Patch{
		"user_id":       sess.userID,
		"date":          date,
		"sessions":      sessions,
		"total_seconds": total,
	}
	if err := t.store.Merge(ctx, key, patch); err != nil {
		return t.flushFailed(ctx, sess, date, rec, resetStart, fmt.Errorf("merge aggregate %s: %w", key, err))
	}

	if resetStart {
		sess.startedAt = now
	}

	if t.events != nil {
		t.events.Checkpoint(ctx, sess.userID, &models.DailyActivityAggregate{
			UserID:       sess.userID,
			Date:         date,
			Sessions:     sessions,
			TotalSeconds: total,
		})
	}

	return FlushResult{Persisted: true, Duration: duration, Date: date}
}

func (t *Tracker) flushFailed(ctx context.Context, sess *session, date string, rec models.ActivitySessionRecord, resetStart bool, err error) FlushResult {
	log.Printf("activity flush failed for user %s: %v", sess.userID, err)

	if t.retries != nil {
		if qerr := t.retries.EnqueueRecord(ctx, sess.userID, date, rec); qerr != nil {
			log.Printf("activity retry enqueue failed for user %s: %v", sess.userID, qerr)
		} else if resetStart {
			// The queue owns the record now; restart measuring so the same
			// window is not flushed twice.
			sess.startedAt = rec.EndTime
		}
	}

	return FlushResult{Duration: rec.Duration, Date: date, Err: err}
}
