package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"libraryapi/internal/platform/async"
	"libraryapi/internal/platform/clock"
)

// Service renders messages into inboxes. Notify is fire-and-forget; Send
// reports failures to the caller.
type Service struct {
	repo  Repository
	now   clock.Clock
	queue *async.Queue[Message]
}

type Options struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

func NewService(repo Repository, now clock.Clock, opts Options) *Service {
	if now == nil {
		now = clock.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	s := &Service{repo: repo, now: now}
	s.queue = async.NewQueue("notifications", opts.QueueSize, opts.Workers, opts.Timeout, s.Send)
	return s
}

// Notify validates msg and queues it for delivery. Problems are logged,
// never returned.
func (s *Service) Notify(_ context.Context, msg Message) {
	if err := msg.Validate(); err != nil {
		log.Printf("notify dropped kind=%s err=%v", msg.Kind(), err)
		return
	}
	if err := s.queue.Enqueue(msg); err != nil {
		log.Printf("notify failed kind=%s user_id=%s err=%v", msg.Kind(), msg.Recipient(), err)
	}
}

// Send stores msg synchronously.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	title, body := msg.Render()
	n := &Notification{
		ID:        uuid.NewString(),
		UserID:    msg.Recipient(),
		Kind:      msg.Kind(),
		Title:     title,
		Body:      body,
		RefID:     msg.RefID(),
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("store %s for %s: %w", msg.Kind(), msg.Recipient(), err)
	}
	return nil
}

// Broadcast sends a system alert to every user and returns how many were delivered.
func (s *Service) Broadcast(ctx context.Context, title, body string) (int, error) {
	ids, err := s.repo.UserIDs(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, id := range ids {
		if err := s.Send(ctx, SystemAlert{UserID: id, Title: title, Body: body}); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// Close drains queued notifications.
func (s *Service) Close(ctx context.Context) error {
	return s.queue.Close(ctx)
}
