package worker

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iscss/css-jobs-sub000/internal/db"
	"github.com/iscss/css-jobs-sub000/internal/email"
	"github.com/iscss/css-jobs-sub000/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeQueue mirrors the Postgres claim semantics in memory.
type fakeQueue struct {
	mu       sync.Mutex
	emails   map[uuid.UUID]*models.QueuedEmail
	claimErr error
	sentErr  error
}

func newFakeQueue(emails ...models.QueuedEmail) *fakeQueue {
	q := &fakeQueue{emails: make(map[uuid.UUID]*models.QueuedEmail)}
	for i := range emails {
		e := emails[i]
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		q.emails[e.ID] = &e
	}
	return q
}

func (q *fakeQueue) get(id uuid.UUID) models.QueuedEmail {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.emails[id]
}

func (q *fakeQueue) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.QueuedEmail, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.claimErr != nil {
		return nil, q.claimErr
	}

	var due []*models.QueuedEmail
	for _, e := range q.emails {
		if !e.Due(now) {
			continue
		}
		if e.ClaimedUntil != nil && e.ClaimedUntil.After(now) {
			continue
		}
		due = append(due, e)
	}
	slices.SortStableFunc(due, func(a, b *models.QueuedEmail) int {
		return a.ScheduledFor.Compare(b.ScheduledFor)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	token := uuid.New()
	until := now.Add(lease)

	out := make([]models.QueuedEmail, 0, len(due))
	for _, e := range due {
		tok, u := token, until
		e.ClaimToken = &tok
		e.ClaimedUntil = &u
		out = append(out, *e)
	}
	return out, nil
}

func (q *fakeQueue) held(id, token uuid.UUID) (*models.QueuedEmail, error) {
	e, ok := q.emails[id]
	if !ok || e.ClaimToken == nil || *e.ClaimToken != token || e.State() != models.StatePending {
		return nil, db.ErrClaimLost
	}
	return e, nil
}

func (q *fakeQueue) MarkSent(ctx context.Context, id, token uuid.UUID, sentAt time.Time, providerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sentErr != nil {
		return q.sentErr
	}
	e, err := q.held(id, token)
	if err != nil {
		return err
	}
	at := sentAt
	e.SentAt = &at
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata[models.MetadataProviderMessageID] = providerID
	e.ClaimToken, e.ClaimedUntil = nil, nil
	return nil
}

func (q *fakeQueue) MarkFailed(ctx context.Context, id, token uuid.UUID, failedAt time.Time, retryCount int, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, err := q.held(id, token)
	if err != nil {
		return err
	}
	at, r := failedAt, reason
	e.FailedAt = &at
	e.RetryCount = retryCount
	e.FailureReason = &r
	e.ClaimToken, e.ClaimedUntil = nil, nil
	return nil
}

func (q *fakeQueue) Reschedule(ctx context.Context, id, token uuid.UUID, next time.Time, retryCount int, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, err := q.held(id, token)
	if err != nil {
		return err
	}
	r := reason
	e.ScheduledFor = next
	e.RetryCount = retryCount
	e.FailureReason = &r
	e.ClaimToken, e.ClaimedUntil = nil, nil
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
	id   string
}

func (s *fakeSender) Send(ctx context.Context, msg email.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, msg)
	if s.err != nil {
		return "", s.err
	}
	if s.id != "" {
		return s.id, nil
	}
	return "re_" + uuid.NewString(), nil
}

func (s *fakeSender) calls() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent)
}
