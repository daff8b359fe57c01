// Package auth guards the sign-in, sign-up and password-reset flows with the
// per-email rate limiters and decides sign-up auto-approval from the
// institution domain table.
package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/iscss/css-jobs-sub000/internal/domains"
	"github.com/iscss/css-jobs-sub000/internal/metrics"
	"github.com/iscss/css-jobs-sub000/internal/ratelimit"
)

type SignUpDecision struct {
	ratelimit.Result
	AutoApprove bool                 `json:"autoApprove"`
	Institution *domains.Institution `json:"institution,omitempty"`
}

type Limiters struct {
	SignIn        *ratelimit.Limiter
	SignUp        *ratelimit.Limiter
	PasswordReset *ratelimit.Limiter
}

type Gate struct {
	limiters Limiters
	domains  func() (*domains.Table, error)
	logger   *zap.Logger
}

// NewGate wires the limiters with a domain table source, typically the
// result of domains.Lazy.
func NewGate(limiters Limiters, table func() (*domains.Table, error), logger *zap.Logger) *Gate {
	return &Gate{
		limiters: limiters,
		domains:  table,
		logger:   logger,
	}
}

func (g *Gate) SignIn(ctx context.Context, email string) ratelimit.Result {
	return g.check(ctx, g.limiters.SignIn, email)
}

// SignInSucceeded clears the sign-in counter for email.
func (g *Gate) SignInSucceeded(ctx context.Context, email string) {
	if err := g.limiters.SignIn.Reset(ctx, email); err != nil {
		g.logger.Warn("failed to reset sign-in limiter", zap.Error(err))
	}
}

func (g *Gate) SignUp(ctx context.Context, email string) SignUpDecision {
	res := g.check(ctx, g.limiters.SignUp, email)
	decision := SignUpDecision{Result: res}
	if !res.Allowed {
		return decision
	}

	table, err := g.domains()
	if err != nil {
		g.logger.Error("institution domains unavailable", zap.Error(err))
		return decision
	}

	if inst, ok := table.Institution(email); ok {
		decision.AutoApprove = true
		decision.Institution = &inst
	}
	return decision
}

// PasswordReset counts every request; a completed reset does not clear it.
func (g *Gate) PasswordReset(ctx context.Context, email string) ratelimit.Result {
	return g.check(ctx, g.limiters.PasswordReset, email)
}

func (g *Gate) check(ctx context.Context, l *ratelimit.Limiter, email string) ratelimit.Result {
	res, err := l.Check(ctx, email)
	if err != nil {
		g.logger.Error("rate limiter unavailable, allowing attempt",
			zap.String("limiter", l.Name()),
			zap.Error(err),
		)
		return ratelimit.Result{Allowed: true}
	}

	if !res.Allowed {
		metrics.RateLimitBlocked.WithLabelValues(l.Name()).Inc()
		g.logger.Info("attempt blocked",
			zap.String("limiter", l.Name()),
			zap.Int("retry_after", res.RetryAfter),
		)
	}
	return res
}
