package activity

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"libraryapi/internal/platform/async"
	"libraryapi/internal/platform/clock"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Repository interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Recorder writes the audit log off the request path.
type Recorder struct {
	repo  Repository
	now   clock.Clock
	queue *async.Queue[Entry]
}

func NewRecorder(repo Repository, now clock.Clock, queueSize int) *Recorder {
	if now == nil {
		now = clock.Now
	}
	r := &Recorder{repo: repo, now: now}
	r.queue = async.NewQueue("activity", queueSize, 1, 5*time.Second, r.repo.Insert)
	return r
}

// Record stamps e and queues it. Failures are logged only.
func (r *Recorder) Record(_ context.Context, e Entry) {
	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	if err := r.queue.Enqueue(e); err != nil {
		log.Printf("activity record failed action=%s entity_id=%s err=%v", e.Action, e.EntityID, err)
	}
}

// List returns one page and the cursor for the next, empty on the last page.
func (r *Recorder) List(ctx context.Context, f Filter) ([]Entry, string, error) {
	if f.Limit <= 0 || f.Limit > maxPageSize {
		f.Limit = defaultPageSize
	}
	want := f.Limit
	f.Limit++
	entries, err := r.repo.List(ctx, f)
	if err != nil {
		return nil, "", err
	}
	if len(entries) <= want {
		return entries, "", nil
	}
	entries = entries[:want]
	return entries, EncodeCursor(cursorOf(entries[want-1])), nil
}

func (r *Recorder) Close(ctx context.Context) error {
	return r.queue.Close(ctx)
}
