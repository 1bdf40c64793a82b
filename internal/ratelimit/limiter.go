// Package ratelimit enforces per-identifier request quotas over fixed
// time windows.
//
// Counters are kept in a CounterStore; the in-process memory store is the
// default and a Redis store is available for multi-instance deployments.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Well-known policy names. The policy table itself comes from configuration.
const (
	PolicyAuth    = "auth"
	PolicyAPI     = "api"
	PolicyUpload  = "upload"
	PolicyMessage = "message"
	PolicyMatch   = "match"
)

// Policy defines one named quota: Points requests per Window.
// A non-zero Block turns quota exhaustion into a lockout that outlives
// window rollover (used for authentication).
type Policy struct {
	Name   string
	Points int
	Window time.Duration
	Block  time.Duration
}

// Decision is the outcome of one Consume call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when allowed
	ResetAt    time.Time
}

// Status is the read-only quota view for an identifier.
type Status struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// UserIdentifier returns the rate-limit key for an authenticated actor.
func UserIdentifier(userID string) string { return "user:" + userID }

// IPIdentifier returns the rate-limit key for an anonymous caller.
func IPIdentifier(ip string) string { return "ip:" + ip }

// Limiter applies the policy table against a CounterStore.
// Construct once and inject; the zero value is not usable.
type Limiter struct {
	store    CounterStore
	policies map[string]Policy
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Test helper.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a Limiter over the given store and policy table.
func NewLimiter(store CounterStore, policies []Policy, opts ...Option) *Limiter {
	table := make(map[string]Policy, len(policies))
	for _, p := range policies {
		table[p.Name] = p
	}
	l := &Limiter{
		store:    store,
		policies: table,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultPolicies returns the production policy table.
func DefaultPolicies() []Policy {
	return []Policy{
		{Name: PolicyAuth, Points: 5, Window: 15 * time.Minute, Block: 15 * time.Minute},
		{Name: PolicyAPI, Points: 100, Window: 15 * time.Minute},
		{Name: PolicyUpload, Points: 10, Window: time.Hour},
		{Name: PolicyMessage, Points: 50, Window: time.Hour},
		{Name: PolicyMatch, Points: 100, Window: time.Hour},
	}
}

// Consume spends one point for identifier under the named policy.
// Exhaustion is a normal outcome, reported via Decision, not an error;
// errors indicate the store itself failed.
func (l *Limiter) Consume(ctx context.Context, identifier, policyName string) (Decision, error) {
	p, ok := l.policies[policyName]
	if !ok {
		return Decision{}, fmt.Errorf("unknown rate limit policy %q", policyName)
	}

	now := l.now()

	blockedUntil, err := l.store.GetBlock(ctx, blockKey(identifier, p.Name))
	if err != nil {
		return Decision{}, fmt.Errorf("get block: %w", err)
	}
	if blockedUntil.After(now) {
		return Decision{
			Limit:      p.Points,
			Remaining:  0,
			RetryAfter: blockedUntil.Sub(now),
			ResetAt:    blockedUntil,
		}, nil
	}

	windowStart := now.Truncate(p.Window)
	windowEnd := windowStart.Add(p.Window)

	count, err := l.store.Increment(ctx, counterKey(identifier, p.Name, windowStart), p.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("increment counter: %w", err)
	}

	if count <= int64(p.Points) {
		return Decision{
			Allowed:   true,
			Limit:     p.Points,
			Remaining: p.Points - int(count),
			ResetAt:   windowEnd,
		}, nil
	}

	retryAfter := windowEnd.Sub(now)
	if p.Block > 0 {
		until := now.Add(p.Block)
		if err := l.store.SetBlock(ctx, blockKey(identifier, p.Name), until); err != nil {
			return Decision{}, fmt.Errorf("set block: %w", err)
		}
		// The block replaces the window counter: once it lapses the
		// identifier starts from a full quota, even if the original
		// window is still open.
		if err := l.store.Reset(ctx, counterKey(identifier, p.Name, windowStart)); err != nil {
			return Decision{}, fmt.Errorf("reset counter: %w", err)
		}
		if p.Block < retryAfter {
			retryAfter = p.Block
		}
	}

	return Decision{
		Limit:      p.Points,
		Remaining:  0,
		RetryAfter: retryAfter,
		ResetAt:    windowEnd,
	}, nil
}

// Status reports the current quota for identifier without consuming.
func (l *Limiter) Status(ctx context.Context, identifier, policyName string) (Status, error) {
	p, ok := l.policies[policyName]
	if !ok {
		return Status{}, fmt.Errorf("unknown rate limit policy %q", policyName)
	}

	now := l.now()

	blockedUntil, err := l.store.GetBlock(ctx, blockKey(identifier, p.Name))
	if err != nil {
		return Status{}, fmt.Errorf("get block: %w", err)
	}
	if blockedUntil.After(now) {
		return Status{Limit: p.Points, Remaining: 0, ResetAt: blockedUntil}, nil
	}

	windowStart := now.Truncate(p.Window)
	count, err := l.store.Get(ctx, counterKey(identifier, p.Name, windowStart))
	if err != nil {
		return Status{}, fmt.Errorf("get counter: %w", err)
	}

	remaining := p.Points - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Limit:     p.Points,
		Remaining: remaining,
		ResetAt:   windowStart.Add(p.Window),
	}, nil
}

func counterKey(identifier, policy string, windowStart time.Time) string {
	return fmt.Sprintf("rl:%s:%s:%d", policy, identifier, windowStart.Unix())
}

func blockKey(identifier, policy string) string {
	return fmt.Sprintf("rl:block:%s:%s", policy, identifier)
}
