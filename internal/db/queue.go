package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iscss/css-jobs-sub000/internal/models"
)

const queueColumns = `id, recipient_email, subject, html_content, template_type,
	scheduled_for, sent_at, failed_at, retry_count, max_retries, failure_reason,
	job_id, alert_id, user_id, metadata, claim_token, claimed_until, created_at`

func scanQueuedEmail(row pgx.Row) (models.QueuedEmail, error) {
	var e models.QueuedEmail
	err := row.Scan(
		&e.ID, &e.To, &e.Subject, &e.HTML, &e.TemplateType,
		&e.ScheduledFor, &e.SentAt, &e.FailedAt, &e.RetryCount, &e.MaxRetries, &e.FailureReason,
		&e.JobID, &e.AlertID, &e.UserID, &e.Metadata, &e.ClaimToken, &e.ClaimedUntil, &e.CreatedAt,
	)
	return e, err
}

// Enqueue inserts a pending message. Zero ScheduledFor means "now".
func (s *Store) Enqueue(ctx context.Context, e *models.QueuedEmail) error {
	if e.ScheduledFor.IsZero() {
		e.ScheduledFor = time.Now().UTC()
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}

	return s.Pool.QueryRow(ctx,
		`INSERT INTO email_queue
		 (recipient_email, subject, html_content, template_type, scheduled_for,
		  max_retries, job_id, alert_id, user_id, metadata)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING id, created_at`,
		e.To,
		e.Subject,
		e.HTML,
		e.TemplateType,
		e.ScheduledFor,
		e.MaxRetries,
		e.JobID,
		e.AlertID,
		e.UserID,
		e.Metadata,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *Store) GetEmail(ctx context.Context, id uuid.UUID) (models.QueuedEmail, error) {
	e, err := scanQueuedEmail(s.Pool.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM email_queue WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

// ClaimDue leases up to limit due messages to a fresh claim token, oldest
// scheduled_for first. The token is returned on each row's ClaimToken.
// Rows held by another live claim are skipped; rows whose lease expired
// become claimable again.
func (s *Store) ClaimDue(
	ctx context.Context,
	now time.Time,
	limit int,
	lease time.Duration,
) ([]models.QueuedEmail, error) {

	token := uuid.New()

	rows, err := s.Pool.Query(ctx,
		`UPDATE email_queue
		 SET claim_token = $1,
		     claimed_until = $2
		 WHERE id IN (
		     SELECT id FROM email_queue
		     WHERE sent_at IS NULL
		       AND failed_at IS NULL
		       AND scheduled_for <= $3
		       AND (claimed_until IS NULL OR claimed_until <= $3)
		     ORDER BY scheduled_for ASC
		     LIMIT $4
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+queueColumns,
		token,
		now.Add(lease),
		now,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due emails: %w", err)
	}
	defer rows.Close()

	emails := make([]models.QueuedEmail, 0, limit)
	for rows.Next() {
		e, err := scanQueuedEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim due emails: %w", err)
	}

	// RETURNING does not preserve the subquery order.
	slices.SortStableFunc(emails, func(a, b models.QueuedEmail) int {
		return a.ScheduledFor.Compare(b.ScheduledFor)
	})

	return emails, nil
}

func (s *Store) MarkSent(
	ctx context.Context,
	id, token uuid.UUID,
	sentAt time.Time,
	providerID string,
) error {

	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_queue
		 SET sent_at = $1,
		     metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('`+models.MetadataProviderMessageID+`', $2::text),
		     claim_token = NULL,
		     claimed_until = NULL
		 WHERE id = $3
		   AND claim_token = $4
		   AND sent_at IS NULL
		   AND failed_at IS NULL`,
		sentAt,
		providerID,
		id,
		token,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimLost
	}
	return nil
}

func (s *Store) MarkFailed(
	ctx context.Context,
	id, token uuid.UUID,
	failedAt time.Time,
	retryCount int,
	reason string,
) error {

	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_queue
		 SET failed_at = $1,
		     retry_count = $2,
		     failure_reason = $3,
		     claim_token = NULL,
		     claimed_until = NULL
		 WHERE id = $4
		   AND claim_token = $5
		   AND sent_at IS NULL
		   AND failed_at IS NULL`,
		failedAt,
		retryCount,
		reason,
		id,
		token,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimLost
	}
	return nil
}

func (s *Store) Reschedule(
	ctx context.Context,
	id, token uuid.UUID,
	next time.Time,
	retryCount int,
	reason string,
) error {

	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_queue
		 SET scheduled_for = $1,
		     retry_count = $2,
		     failure_reason = $3,
		     claim_token = NULL,
		     claimed_until = NULL
		 WHERE id = $4
		   AND claim_token = $5
		   AND sent_at IS NULL
		   AND failed_at IS NULL`,
		next,
		retryCount,
		reason,
		id,
		token,
	)
	if err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimLost
	}
	return nil
}
