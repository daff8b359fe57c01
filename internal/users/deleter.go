// Package users implements the privileged admin-only account removal.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iscss/css-jobs-sub000/internal/db"
	"github.com/iscss/css-jobs-sub000/internal/models"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("only admins can delete users")
	ErrSelfDelete    = errors.New("cannot delete your own account")
	ErrNotFound      = errors.New("user not found")
	ErrTargetIsAdmin = errors.New("cannot delete another admin")
)

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error
}

type IdentityAdmin interface {
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type Verifier interface {
	Verify(token string) (uuid.UUID, error)
}

type Deleter struct {
	verifier   Verifier
	profiles   ProfileStore
	identities IdentityAdmin
	logger     *zap.Logger
}

func NewDeleter(verifier Verifier, profiles ProfileStore, identities IdentityAdmin, logger *zap.Logger) *Deleter {
	return &Deleter{
		verifier:   verifier,
		profiles:   profiles,
		identities: identities,
		logger:     logger,
	}
}

// Delete removes targetID on behalf of the admin identified by bearerToken.
// The profile row goes first, then the auth identity.
func (d *Deleter) Delete(ctx context.Context, bearerToken string, targetID uuid.UUID) error {
	token := strings.TrimSpace(bearerToken)
	if token == "" {
		return ErrUnauthorized
	}

	callerID, err := d.verifier.Verify(token)
	if err != nil {
		d.logger.Info("rejected delete-user token", zap.Error(err))
		return ErrUnauthorized
	}

	caller, err := d.profiles.GetProfile(ctx, callerID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("load caller profile: %w", err)
	}
	if !caller.IsAdmin() {
		return ErrForbidden
	}

	if targetID == callerID {
		return ErrSelfDelete
	}

	target, err := d.profiles.GetProfile(ctx, targetID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load target profile: %w", err)
	}
	if target.IsAdmin() {
		return ErrTargetIsAdmin
	}

	if err := d.profiles.DeleteProfile(ctx, targetID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete profile: %w", err)
	}

	if err := d.identities.DeleteUser(ctx, targetID); err != nil {
		return fmt.Errorf("delete auth identity: %w", err)
	}

	d.logger.Info("user deleted",
		zap.String("admin_id", callerID.String()),
		zap.String("user_id", targetID.String()),
	)
	return nil
}
