package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iscss/css-jobs-sub000/internal/db"
	"github.com/iscss/css-jobs-sub000/internal/email"
	"github.com/iscss/css-jobs-sub000/internal/metrics"
	"github.com/iscss/css-jobs-sub000/internal/models"
)

// MaxBatchSize bounds the rows claimed by one batch.
const MaxBatchSize = 50

const (
	StatusSent           = "sent"
	StatusRetryScheduled = "retry_scheduled"
	StatusFailed         = "failed"
)

// Queue is the persisted side of the email queue.
type Queue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.QueuedEmail, error)
	MarkSent(ctx context.Context, id, token uuid.UUID, sentAt time.Time, providerID string) error
	MarkFailed(ctx context.Context, id, token uuid.UUID, failedAt time.Time, retryCount int, reason string) error
	Reschedule(ctx context.Context, id, token uuid.UUID, next time.Time, retryCount int, reason string) error
}

type Result struct {
	ID            uuid.UUID  `json:"id"`
	Status        string     `json:"status"`
	ProviderID    string     `json:"providerId,omitempty"`
	Error         string     `json:"error,omitempty"`
	RetryCount    int        `json:"retryCount"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
}

type Summary struct {
	Message   string   `json:"message"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

type ProcessorConfig struct {
	From      string
	SiteURL   string
	BatchSize int
	Lease     time.Duration
	Retry     RetryPolicy

	// Pacer throttles provider calls; nil means unthrottled.
	Pacer *rate.Limiter
	// Now defaults to time.Now.
	Now func() time.Time
}

type Processor struct {
	queue  Queue
	sender email.Sender
	cfg    ProcessorConfig
	now    func() time.Time
	log    *zap.Logger
}

func NewProcessor(queue Queue, sender email.Sender, cfg ProcessorConfig, logger *zap.Logger) *Processor {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	if cfg.Retry.Base <= 0 {
		cfg.Retry.Base = 5 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		queue:  queue,
		sender: sender,
		cfg:    cfg,
		now:    now,
		log:    logger,
	}
}

// ProcessBatch claims up to BatchSize due messages and attempts each exactly
// once, sequentially. An error is returned only when the claim itself fails
// or the context ends; per-message problems are recorded in the Summary.
func (p *Processor) ProcessBatch(ctx context.Context) (Summary, error) {
	began := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(began).Seconds())
	}()

	emails, err := p.queue.ClaimDue(ctx, p.now(), p.cfg.BatchSize, p.cfg.Lease)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch pending emails: %w", err)
	}

	if len(emails) == 0 {
		return Summary{Message: "No pending emails to process", Results: []Result{}}, nil
	}

	p.log.Info("processing email batch", zap.Int("count", len(emails)))

	summary := Summary{Results: make([]Result, 0, len(emails))}

	for _, e := range emails {
		// Messages left unattempted keep their lease and are picked up
		// again once it expires.
		if p.cfg.Pacer != nil {
			if err := p.cfg.Pacer.Wait(ctx); err != nil {
				p.log.Warn("provider pacer stopped by context", zap.Error(err))
				break
			}
		}
		if err := ctx.Err(); err != nil {
			break
		}

		res := p.processOne(ctx, e)
		if res.Status == StatusSent {
			summary.Processed++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)
	}

	summary.Message = fmt.Sprintf("Processed %d emails", len(summary.Results))

	p.log.Info("email batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
	)

	return summary, ctx.Err()
}

func (p *Processor) processOne(ctx context.Context, e models.QueuedEmail) Result {
	providerID, err := p.sender.Send(ctx, p.buildMessage(e))
	if err != nil {
		metrics.EmailFailures.Inc()

		p.log.Error("email send failed",
			zap.String("email_id", e.ID.String()),
			zap.String("to", e.To),
			zap.Error(err),
		)

		res, herr := p.HandleFailure(ctx, e, err.Error())
		if herr != nil {
			p.logWriteError("failed to record send failure", e, herr)
		}
		return res
	}

	if err := p.queue.MarkSent(ctx, e.ID, claimToken(e), p.now(), providerID); err != nil {
		// The provider accepted the message; only the bookkeeping failed.
		p.logWriteError("failed to mark email sent", e, err)
	}

	p.log.Info("email sent successfully",
		zap.String("email_id", e.ID.String()),
		zap.String("provider_id", providerID),
	)
	metrics.EmailsSent.Inc()

	return Result{
		ID:         e.ID,
		Status:     StatusSent,
		ProviderID: providerID,
		RetryCount: e.RetryCount,
	}
}

// HandleFailure consumes one retry. When the budget is exhausted the message
// is failed permanently; otherwise it is rescheduled with exponential backoff.
func (p *Processor) HandleFailure(ctx context.Context, e models.QueuedEmail, errText string) (Result, error) {
	now := p.now()
	retryCount := e.RetryCount + 1

	res := Result{
		ID:         e.ID,
		Error:      errText,
		RetryCount: retryCount,
	}

	if retryCount >= e.MaxRetries {
		res.Status = StatusFailed
		metrics.EmailsPermanentlyFailed.Inc()
		p.log.Warn("email permanently failed",
			zap.String("email_id", e.ID.String()),
			zap.Int("retry_count", retryCount),
		)
		return res, p.queue.MarkFailed(ctx, e.ID, claimToken(e), now, retryCount, errText)
	}

	next := now.Add(p.cfg.Retry.Delay(retryCount))
	res.Status = StatusRetryScheduled
	res.NextAttemptAt = &next
	metrics.EmailsRescheduled.Inc()

	return res, p.queue.Reschedule(ctx, e.ID, claimToken(e), next, retryCount, errText)
}

func (p *Processor) buildMessage(e models.QueuedEmail) email.Message {
	msg := email.Message{
		From:    p.cfg.From,
		To:      e.To,
		Subject: e.Subject,
		HTML:    e.HTML,
	}

	if e.TemplateType == models.TemplateJobAlert && e.UserID != nil && e.AlertID != nil {
		msg.Headers = map[string]string{
			"List-Unsubscribe": "<" + email.UnsubscribeURL(p.cfg.SiteURL, *e.UserID, *e.AlertID) + ">",
		}
	}

	return msg
}

func (p *Processor) logWriteError(msg string, e models.QueuedEmail, err error) {
	if errors.Is(err, db.ErrClaimLost) {
		metrics.ClaimsLost.Inc()
		p.log.Warn(msg+": claim lost", zap.String("email_id", e.ID.String()))
		return
	}
	p.log.Error(msg, zap.String("email_id", e.ID.String()), zap.Error(err))
}

func claimToken(e models.QueuedEmail) uuid.UUID {
	if e.ClaimToken == nil {
		return uuid.Nil
	}
	return *e.ClaimToken
}
