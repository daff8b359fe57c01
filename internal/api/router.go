// Package api exposes the queue trigger, the producer enqueue endpoint, the
// admin user deletion function and the auth-flow rate limit checks over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iscss/css-jobs-sub000/internal/auth"
	"github.com/iscss/css-jobs-sub000/internal/models"
	"github.com/iscss/css-jobs-sub000/internal/ratelimit"
	"github.com/iscss/css-jobs-sub000/internal/worker"
)

type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (worker.Summary, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, e *models.QueuedEmail) error
}

type UserDeleter interface {
	Delete(ctx context.Context, bearerToken string, targetID uuid.UUID) error
}

type AuthGate interface {
	SignIn(ctx context.Context, email string) ratelimit.Result
	SignInSucceeded(ctx context.Context, email string)
	SignUp(ctx context.Context, email string) auth.SignUpDecision
	PasswordReset(ctx context.Context, email string) ratelimit.Result
}

type Handler struct {
	Processor BatchProcessor
	Queue     Enqueuer
	Users     UserDeleter
	Gate      AuthGate
	Log       *zap.Logger

	// FunctionSecret, when set, must be presented as a bearer token on the
	// queue endpoints.
	FunctionSecret    string
	DefaultMaxRetries int
	// BatchTimeout bounds a triggered batch once it has been detached from
	// the request.
	BatchTimeout time.Duration

	validate *validator.Validate
}

func (h *Handler) Routes() http.Handler {
	if h.validate == nil {
		h.validate = newValidator()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/functions/v1", func(fr chi.Router) {
		fr.With(requireSecret(h.FunctionSecret)).Post("/process-email-queue", h.ProcessEmailQueue)
		fr.Post("/delete-user", h.DeleteUser)
	})

	r.With(requireSecret(h.FunctionSecret)).Post("/emails", h.EnqueueEmail)

	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/sign-in/check", h.SignInCheck)
		ar.Post("/sign-in/success", h.SignInSuccess)
		ar.Post("/sign-up/check", h.SignUpCheck)
		ar.Post("/password-reset/check", h.PasswordResetCheck)
	})

	return r
}
