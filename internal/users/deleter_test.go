package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iscss/css-jobs-sub000/internal/db"
	"github.com/iscss/css-jobs-sub000/internal/models"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type fakeProfiles struct {
	profiles  map[uuid.UUID]*models.Profile
	getErr    error
	deleteErr error
	deleted   []uuid.UUID
}

func (f *fakeProfiles) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) DeleteProfile(_ context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.profiles[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.profiles, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeIdentities struct {
	err     error
	deleted []uuid.UUID
}

func (f *fakeIdentities) DeleteUser(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func signToken(t *testing.T, sub string, aud string, exp time.Time, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	if aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

type fixture struct {
	admin, otherAdmin, member uuid.UUID
	profiles                  *fakeProfiles
	identities                *fakeIdentities
	deleter                   *Deleter
}

func newFixture() *fixture {
	f := &fixture{
		admin:      uuid.New(),
		otherAdmin: uuid.New(),
		member:     uuid.New(),
		identities: &fakeIdentities{},
	}
	f.profiles = &fakeProfiles{profiles: map[uuid.UUID]*models.Profile{
		f.admin:      {ID: f.admin, Role: models.RoleAdmin},
		f.otherAdmin: {ID: f.otherAdmin, Role: models.RoleAdmin},
		f.member:     {ID: f.member, Role: "user"},
	}}
	f.deleter = NewDeleter(
		NewTokenVerifier(testSecret, "authenticated"),
		f.profiles, f.identities, zap.NewNop(),
	)
	return f
}

func (f *fixture) token(t *testing.T, sub uuid.UUID) string {
	return signToken(t, sub.String(), "authenticated", time.Now().Add(time.Hour), jwt.SigningMethodHS256, []byte(testSecret))
}

func TestDeleter_AdminDeletesMember(t *testing.T) {
	f := newFixture()

	err := f.deleter.Delete(context.Background(), f.token(t, f.admin), f.member)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{f.member}, f.profiles.deleted)
	assert.Equal(t, []uuid.UUID{f.member}, f.identities.deleted)
}

func TestDeleter_AuthorizationTaxonomy(t *testing.T) {
	f := newFixture()
	expired := signToken(t, f.admin.String(), "authenticated", time.Now().Add(-time.Minute), jwt.SigningMethodHS256, []byte(testSecret))
	wrongKey := signToken(t, f.admin.String(), "authenticated", time.Now().Add(time.Hour), jwt.SigningMethodHS256, []byte("another-secret"))
	wrongAud := signToken(t, f.admin.String(), "anon", time.Now().Add(time.Hour), jwt.SigningMethodHS256, []byte(testSecret))
	badSub := signToken(t, "not-a-uuid", "authenticated", time.Now().Add(time.Hour), jwt.SigningMethodHS256, []byte(testSecret))
	unsigned := signToken(t, f.admin.String(), "authenticated", time.Now().Add(time.Hour), jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		token  string
		target uuid.UUID
		want   error
	}{
		{"missing token", "", f.member, ErrUnauthorized},
		{"garbage token", "abc.def", f.member, ErrUnauthorized},
		{"expired", expired, f.member, ErrUnauthorized},
		{"wrong key", wrongKey, f.member, ErrUnauthorized},
		{"wrong audience", wrongAud, f.member, ErrUnauthorized},
		{"non-uuid subject", badSub, f.member, ErrUnauthorized},
		{"alg none", unsigned, f.member, ErrUnauthorized},
		{"caller not admin", f.token(t, f.member), f.otherAdmin, ErrForbidden},
		{"caller has no profile", f.token(t, uuid.New()), f.member, ErrForbidden},
		{"self delete", f.token(t, f.admin), f.admin, ErrSelfDelete},
		{"target missing", f.token(t, f.admin), uuid.New(), ErrNotFound},
		{"target is admin", f.token(t, f.admin), f.otherAdmin, ErrTargetIsAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.deleter.Delete(context.Background(), tt.token, tt.target)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.profiles.deleted)
			assert.Empty(t, f.identities.deleted)
		})
	}
}

func TestDeleter_StoreFailures(t *testing.T) {
	t.Run("profile lookup", func(t *testing.T) {
		f := newFixture()
		f.profiles.getErr = errors.New("connection reset")

		err := f.deleter.Delete(context.Background(), f.token(t, f.admin), f.member)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrForbidden)
	})

	t.Run("profile delete", func(t *testing.T) {
		f := newFixture()
		f.profiles.deleteErr = db.ErrProfileReferenced

		err := f.deleter.Delete(context.Background(), f.token(t, f.admin), f.member)
		assert.ErrorIs(t, err, db.ErrProfileReferenced)
		assert.Empty(t, f.identities.deleted, "identity must survive a failed profile delete")
	})

	t.Run("identity delete", func(t *testing.T) {
		f := newFixture()
		f.identities.err = errors.New("gotrue unavailable")

		err := f.deleter.Delete(context.Background(), f.token(t, f.admin), f.member)
		require.Error(t, err)
		assert.Equal(t, []uuid.UUID{f.member}, f.profiles.deleted)
	})
}

func TestTokenVerifier_NoAudience(t *testing.T) {
	id := uuid.New()
	tok := signToken(t, id.String(), "", time.Now().Add(time.Hour), jwt.SigningMethodHS256, []byte(testSecret))

	got, err := NewTokenVerifier(testSecret, "").Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTokenVerifier_MissingSecret(t *testing.T) {
	_, err := NewTokenVerifier("", "").Verify("x.y.z")
	assert.Error(t, err)
}
