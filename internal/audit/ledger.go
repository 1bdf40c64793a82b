package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"heartlink.io/trustengine/internal/pkg/logger"
	"heartlink.io/trustengine/internal/pkg/worker"
)

// Config tunes the ledger.
type Config struct {
	Retention        time.Duration // purge horizon for unprotected events
	DefaultPageSize  int
	MaxPageSize      int
	AnomalyLoginIPs  int // distinct login IPs per hour above which is anomalous
	AnomalyBurstSize int // events per 5 minutes above which is anomalous
}

// DefaultConfig returns the production ledger configuration.
func DefaultConfig() Config {
	return Config{
		Retention:        365 * 24 * time.Hour,
		DefaultPageSize:  100,
		MaxPageSize:      1000,
		AnomalyLoginIPs:  3,
		AnomalyBurstSize: 50,
	}
}

// Ledger is the audit service. Writes never fail the audited operation:
// Record hands the event to a worker pool and persistence errors are logged,
// not returned.
type Ledger struct {
	store Store
	pools *worker.Pools
	cfg   Config
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source. Test helper.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger. pools may be nil, in which case writes are
// synchronous (still swallowing store errors).
func NewLedger(store Store, pools *worker.Pools, cfg Config, opts ...Option) *Ledger {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 100
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 1000
	}
	l := &Ledger{
		store: store,
		pools: pools,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an event. It never returns an error and never blocks on
// persistence: the write is detached onto the audit pool when one is
// configured. Failures are logged only.
func (l *Ledger) Record(ctx context.Context, entry Entry) {
	ev := l.build(entry)

	if l.pools != nil {
		if err := l.pools.SubmitDetached(l.pools.Audit, func(ctx context.Context) {
			l.insert(ctx, ev)
		}); err != nil {
			// Pool saturated or shutting down; last resort is inline.
			l.insert(ctx, ev)
		}
		return
	}
	l.insert(ctx, ev)
}

// RecordSync appends an event before returning. Store errors are still
// swallowed; used where a follow-up query must observe the event.
func (l *Ledger) RecordSync(ctx context.Context, entry Entry) {
	l.insert(ctx, l.build(entry))
}

func (l *Ledger) build(entry Entry) Event {
	ev := Event{
		ID:        newEventID(),
		Action:    entry.Action,
		IPAddress: AnonymizeIP(entry.IPAddress),
		UserAgent: entry.UserAgent,
		Metadata:  entry.Metadata,
		CreatedAt: l.now(),
	}
	if entry.ActorID != "" {
		actor := entry.ActorID
		ev.ActorID = &actor
	}
	return ev
}

func (l *Ledger) insert(ctx context.Context, ev Event) {
	if err := l.store.Insert(ctx, ev); err != nil {
		logger.Error("failed to write audit event",
			zap.String("action", ev.Action),
			zap.Error(err),
		)
	}
}

// Query returns events matching the filter, newest first, with the page
// size clamped to the configured bounds.
func (l *Ledger) Query(ctx context.Context, f Filter) ([]Event, error) {
	if f.Limit <= 0 {
		f.Limit = l.cfg.DefaultPageSize
	}
	if f.Limit > l.cfg.MaxPageSize {
		f.Limit = l.cfg.MaxPageSize
	}
	return l.store.Query(ctx, f)
}

// DetectAnomalies runs the behavioral heuristics for one user over a short
// trailing window. An empty result means clean. A triggered heuristic also
// records a suspicious_activity_detected event.
func (l *Ledger) DetectAnomalies(ctx context.Context, userID string) ([]string, error) {
	now := l.now()
	var anomalies []string

	logins, err := l.store.Query(ctx, Filter{
		ActorID: userID,
		Action:  ActionLogin,
		From:    now.Add(-time.Hour),
		Limit:   l.cfg.MaxPageSize,
	})
	if err != nil {
		return nil, err
	}
	ips := make(map[string]struct{})
	for _, ev := range logins {
		if ev.IPAddress != "" {
			ips[ev.IPAddress] = struct{}{}
		}
	}
	if len(ips) > l.cfg.AnomalyLoginIPs {
		anomalies = append(anomalies, AnomalyMultipleLoginLocations)
	}

	recent, err := l.store.Query(ctx, Filter{
		ActorID: userID,
		From:    now.Add(-5 * time.Minute),
		Limit:   l.cfg.MaxPageSize,
	})
	if err != nil {
		return nil, err
	}
	if len(recent) > l.cfg.AnomalyBurstSize {
		anomalies = append(anomalies, AnomalyHighActivityRate)
	}

	if len(anomalies) > 0 {
		l.Record(ctx, Entry{
			ActorID: userID,
			Action:  ActionSuspiciousActivity,
			Metadata: map[string]interface{}{
				"anomalies": anomalies,
			},
		})
	}
	return anomalies, nil
}

// PurgeExpired removes events past the retention period, keeping protected
// actions indefinitely. Returns the number removed.
func (l *Ledger) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := l.now().Add(-l.cfg.Retention)
	removed, err := l.store.DeleteOlderThan(ctx, cutoff, protectedActions)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Info("audit retention purge completed",
			zap.Int("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}

// ScrubActor anonymizes all of a user's events in place. Called from the
// deletion purge; events are never hard-deleted here.
func (l *Ledger) ScrubActor(ctx context.Context, userID string) (int, error) {
	return l.store.ScrubActor(ctx, userID)
}
