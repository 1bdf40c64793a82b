// Package lifecycle implements GDPR data lifecycle management: data
// exports, account deletion with a grace period, and consent tracking.
//
// All user-facing operations serialize per user through a keyed mutex so a
// concurrent export request and deletion cancellation can never interleave
// their check-then-act sections.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"heartlink.io/trustengine/internal/audit"
	"heartlink.io/trustengine/internal/pkg/worker"
)

// Config contains lifecycle timing settings.
type Config struct {
	// ExportExpiry is how long a completed export download stays valid.
	ExportExpiry time.Duration

	// GracePeriod is the delay between a deletion request and the purge.
	GracePeriod time.Duration
}

// DefaultConfig returns production defaults: 7 day export links, 30 day
// deletion grace period.
func DefaultConfig() Config {
	return Config{
		ExportExpiry: 7 * 24 * time.Hour,
		GracePeriod:  30 * 24 * time.Hour,
	}
}

// Bundle is the serializable payload of a data export.
type Bundle map[string]interface{}

// Collector gathers everything a user is entitled to receive in an export.
// Implementations must strip server-side secrets (password hashes, 2FA
// seeds) before returning.
type Collector interface {
	Collect(ctx context.Context, userID string) (Bundle, error)
}

// Uploader stores a finished export bundle and returns its download
// location.
type Uploader interface {
	Upload(ctx context.Context, userID string, bundle Bundle) (string, error)
}

// UserDirectory is the account-state collaborator.
type UserDirectory interface {
	Deactivate(ctx context.Context, userID string) error
	Reactivate(ctx context.Context, userID string) error
	UpdateConsent(ctx context.Context, userID string, update ConsentUpdate) (Consent, error)
	Consent(ctx context.Context, userID string) (Consent, error)
}

// ContentCleaner drops a user's transient moderation state during a purge.
// Satisfied by the moderation review queue.
type ContentCleaner interface {
	DeleteOwner(ctx context.Context, ownerID string) int
}

// Manager coordinates the export and deletion state machines.
type Manager struct {
	cfg       Config
	exports   ExportStore
	deletions DeletionStore
	users     UserDirectory
	collector Collector
	uploader  Uploader
	purger    Purger
	cleaner   ContentCleaner
	ledger    *audit.Ledger
	pools     *worker.Pools

	locks userLocks
	now   func() time.Time
}

// Deps bundles the Manager's collaborators.
type Deps struct {
	Exports   ExportStore
	Deletions DeletionStore
	Users     UserDirectory
	Collector Collector
	Uploader  Uploader
	Purger    Purger
	Cleaner   ContentCleaner // optional
	Ledger    *audit.Ledger
	Pools     *worker.Pools // optional; export processing runs inline when nil
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a lifecycle Manager.
func NewManager(cfg Config, deps Deps, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		exports:   deps.Exports,
		deletions: deps.Deletions,
		users:     deps.Users,
		collector: deps.Collector,
		uploader:  deps.Uploader,
		purger:    deps.Purger,
		cleaner:   deps.Cleaner,
		ledger:    deps.Ledger,
		pools:     deps.Pools,
		now:       time.Now,
	}
	m.locks.locks = make(map[string]*sync.Mutex)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// userLocks hands out one mutex per user id. Entries are never reclaimed;
// the map is bounded by the number of users with lifecycle activity.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *userLocks) get(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

func newRequestID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return prefix + "-" + uuid.New().String()
	}
	return prefix + "-" + id.String()
}
