package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iscss/css-jobs-sub000/internal/models"
	"github.com/iscss/css-jobs-sub000/internal/worker"
)

type batchError struct {
	Error string `json:"error"`
	worker.Summary
}

// ProcessEmailQueue runs one batch. The batch is detached from the request
// so a disconnecting caller cannot abandon rows mid-claim.
func (h *Handler) ProcessEmailQueue(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if h.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.BatchTimeout)
		defer cancel()
	}

	summary, err := h.Processor.ProcessBatch(ctx)
	if err != nil {
		h.Log.Error("process email queue failed",
			zap.Int("processed", summary.Processed),
			zap.Int("failed", summary.Failed),
			zap.Error(err),
		)
		// Outcomes already committed before the error are still reported.
		respondWithJSON(w, http.StatusInternalServerError, batchError{
			Error:   err.Error(),
			Summary: summary,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) EnqueueEmail(w http.ResponseWriter, r *http.Request) {
	var req EnqueueEmailRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	e := models.QueuedEmail{
		To:           req.To,
		Subject:      req.Subject,
		HTML:         req.HTML,
		TemplateType: req.TemplateType,
		MaxRetries:   h.DefaultMaxRetries,
		JobID:        req.JobID,
		AlertID:      req.AlertID,
		UserID:       req.UserID,
		Metadata:     req.Metadata,
	}
	if req.ScheduledFor != nil {
		e.ScheduledFor = req.ScheduledFor.UTC()
	} else {
		e.ScheduledFor = time.Now().UTC()
	}
	if req.MaxRetries != nil {
		e.MaxRetries = *req.MaxRetries
	}

	if err := h.Queue.Enqueue(r.Context(), &e); err != nil {
		h.Log.Error("enqueue email failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to enqueue email")
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"id": e.ID,
	})
}
