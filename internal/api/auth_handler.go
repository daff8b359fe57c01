package api

import (
	"net/http"
	"strconv"

	"github.com/iscss/css-jobs-sub000/internal/ratelimit"
)

func (h *Handler) SignInCheck(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithLimit(w, h.Gate.SignIn(r.Context(), req.Email), nil)
}

func (h *Handler) SignInSuccess(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Gate.SignInSucceeded(r.Context(), req.Email)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SignUpCheck(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	d := h.Gate.SignUp(r.Context(), req.Email)
	respondWithLimit(w, d.Result, d)
}

func (h *Handler) PasswordResetCheck(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithLimit(w, h.Gate.PasswordReset(r.Context(), req.Email), nil)
}

// respondWithLimit writes body (or res when body is nil) with 429 and
// Retry-After once the limiter blocks.
func respondWithLimit(w http.ResponseWriter, res ratelimit.Result, body interface{}) {
	if body == nil {
		body = res
	}
	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
		respondWithJSON(w, http.StatusTooManyRequests, body)
		return
	}
	respondWithJSON(w, http.StatusOK, body)
}
