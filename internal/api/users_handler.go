package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iscss/css-jobs-sub000/internal/users"
)

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondWithError(w, http.StatusUnauthorized, "Missing authorization header")
		return
	}

	var req DeleteUserRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	target := uuid.MustParse(req.UserID)

	err := h.Users.Delete(r.Context(), token, target)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "User deleted successfully",
		})
	case errors.Is(err, users.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, users.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Only admins can delete users")
	case errors.Is(err, users.ErrSelfDelete):
		respondWithError(w, http.StatusBadRequest, "You cannot delete your own account")
	case errors.Is(err, users.ErrTargetIsAdmin):
		respondWithError(w, http.StatusBadRequest, "Admins cannot delete other admins")
	case errors.Is(err, users.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	default:
		h.Log.Error("delete user failed",
			zap.String("user_id", target.String()),
			zap.Error(err),
		)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete user")
	}
}
