package api

import (
	"time"

	"github.com/google/uuid"
)

type EnqueueEmailRequest struct {
	To           string         `json:"to" validate:"required,email"`
	Subject      string         `json:"subject" validate:"required,max=998"`
	HTML         string         `json:"html" validate:"required"`
	TemplateType string         `json:"templateType" validate:"omitempty,max=64"`
	ScheduledFor *time.Time     `json:"scheduledFor"`
	MaxRetries   *int           `json:"maxRetries" validate:"omitempty,min=0,max=10"`
	JobID        *uuid.UUID     `json:"jobId"`
	AlertID      *uuid.UUID     `json:"alertId"`
	UserID       *uuid.UUID     `json:"userId"`
	Metadata     map[string]any `json:"metadata"`
}

type DeleteUserRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
}
