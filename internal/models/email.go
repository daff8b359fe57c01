package models

import (
	"time"

	"github.com/google/uuid"
)

type EmailState string

const (
	StatePending EmailState = "pending"
	StateSent    EmailState = "sent"
	StateFailed  EmailState = "failed"
)

// TemplateJobAlert marks alert digests; those carry a List-Unsubscribe header.
const TemplateJobAlert = "job_alert"

const MetadataProviderMessageID = "provider_message_id"

// QueuedEmail is one row of the email_queue table.
type QueuedEmail struct {
	ID           uuid.UUID `json:"id"`
	To           string    `json:"recipient_email"`
	Subject      string    `json:"subject"`
	HTML         string    `json:"html_content"`
	TemplateType string    `json:"template_type"`

	ScheduledFor time.Time  `json:"scheduled_for"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`

	RetryCount    int     `json:"retry_count"`
	MaxRetries    int     `json:"max_retries"`
	FailureReason *string `json:"failure_reason,omitempty"`

	JobID   *uuid.UUID `json:"job_id,omitempty"`
	AlertID *uuid.UUID `json:"alert_id,omitempty"`
	UserID  *uuid.UUID `json:"user_id,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	ClaimToken   *uuid.UUID `json:"-"`
	ClaimedUntil *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// State derives the lifecycle state from the terminal timestamps.
func (e *QueuedEmail) State() EmailState {
	switch {
	case e.SentAt != nil:
		return StateSent
	case e.FailedAt != nil:
		return StateFailed
	default:
		return StatePending
	}
}

// Due reports whether a pending message may be attempted at now.
func (e *QueuedEmail) Due(now time.Time) bool {
	return e.State() == StatePending && !e.ScheduledFor.After(now)
}
