package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"heartlink.io/trustengine/internal/audit"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
	"heartlink.io/trustengine/internal/pkg/logger"
)

// Deletion request statuses. A claimed request is being purged by one
// sweep; completed requests are kept as the record of erasure.
const (
	DeletionPending   = "pending"
	DeletionClaimed   = "claimed"
	DeletionCompleted = "completed"
)

// DeletionRequest tracks one account deletion through its grace period.
// ScheduledFor is fixed at creation and never moves.
type DeletionRequest struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	RequestedAt  time.Time  `json:"requested_at"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Purger opens all-or-nothing purge transactions against the user data
// store.
type Purger interface {
	Begin(ctx context.Context) (PurgeTx, error)
}

// PurgeTx is one purge unit of work. Either every step commits or none
// does; a failed purge leaves the user's data untouched for the next sweep.
type PurgeTx interface {
	DeletePhotos(ctx context.Context, userID string) error
	DeleteMatches(ctx context.Context, userID string) error
	DeleteMessages(ctx context.Context, userID string) error
	DeleteReports(ctx context.Context, userID string) error
	DeleteBlocks(ctx context.Context, userID string) error
	DeleteModerationActions(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RequestDeletion schedules account deletion after the grace period and
// deactivates the account immediately. Returns CodeDeletionInProgress if a
// pending request already exists.
func (m *Manager) RequestDeletion(ctx context.Context, userID, reason string) (*DeletionRequest, error) {
	lock := m.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.deletions.PendingByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pending deletion: %w", err)
	}
	if existing != nil {
		return nil, apperrors.ErrDeletionInProgressf()
	}

	now := m.now()
	req := &DeletionRequest{
		ID:           newRequestID("del"),
		UserID:       userID,
		Status:       DeletionPending,
		Reason:       reason,
		RequestedAt:  now,
		ScheduledFor: now.Add(m.cfg.GracePeriod),
	}
	if err := m.deletions.Insert(ctx, req); err != nil {
		return nil, fmt.Errorf("insert deletion request: %w", err)
	}

	if err := m.users.Deactivate(ctx, userID); err != nil {
		// Undo the request so the account state and the schedule agree.
		if delErr := m.deletions.Delete(ctx, req.ID); delErr != nil {
			logger.Error("failed to undo deletion request after deactivation failure",
				zap.String("request_id", req.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("deactivate account: %w", err)
	}

	m.ledger.Record(ctx, audit.Entry{
		ActorID: userID,
		Action:  audit.ActionDeletionRequested,
		Metadata: map[string]interface{}{
			"request_id":    req.ID,
			"scheduled_for": req.ScheduledFor,
			"reason":        reason,
		},
	})

	return req, nil
}

// DeletionStatus returns the user's pending deletion request, if any.
func (m *Manager) DeletionStatus(ctx context.Context, userID string) (*DeletionRequest, error) {
	req, err := m.deletions.PendingByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pending deletion: %w", err)
	}
	if req == nil {
		return nil, apperrors.ErrNoActiveDeletionf()
	}
	return req, nil
}

// CancelDeletion withdraws a pending deletion request and reactivates the
// account. Only possible while the request is pending and the grace period
// has not elapsed.
func (m *Manager) CancelDeletion(ctx context.Context, userID string) error {
	lock := m.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	req, err := m.deletions.PendingByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load pending deletion: %w", err)
	}
	if req == nil || !m.now().Before(req.ScheduledFor) {
		return apperrors.ErrNoActiveDeletionf()
	}

	if err := m.deletions.Delete(ctx, req.ID); err != nil {
		return fmt.Errorf("delete deletion request: %w", err)
	}
	if err := m.users.Reactivate(ctx, userID); err != nil {
		return fmt.Errorf("reactivate account: %w", err)
	}

	m.ledger.Record(ctx, audit.Entry{
		ActorID: userID,
		Action:  audit.ActionDeletionCancelled,
		Metadata: map[string]interface{}{
			"request_id": req.ID,
		},
	})

	return nil
}

// ProcessScheduledDeletions purges every pending request whose grace period
// has elapsed. Each request is claimed first so overlapping sweeps never
// purge the same user twice; a failed purge releases the claim and is
// retried on the next sweep. Returns the number of accounts purged.
func (m *Manager) ProcessScheduledDeletions(ctx context.Context) (int, error) {
	due, err := m.deletions.Due(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("load due deletions: %w", err)
	}

	purged := 0
	for _, req := range due {
		claimed, err := m.deletions.Claim(ctx, req.ID)
		if err != nil {
			logger.Error("failed to claim deletion request",
				zap.String("request_id", req.ID),
				zap.Error(err),
			)
			continue
		}
		if !claimed {
			continue
		}

		if err := m.purgeUser(ctx, req); err != nil {
			logger.Error("account purge failed, will retry next sweep",
				zap.String("request_id", req.ID),
				zap.String("user_id", req.UserID),
				zap.Error(err),
			)
			if relErr := m.deletions.Release(ctx, req.ID); relErr != nil {
				logger.Error("failed to release deletion claim",
					zap.String("request_id", req.ID),
					zap.Error(relErr),
				)
			}
			continue
		}
		purged++
	}

	return purged, nil
}

// purgeUser erases one account: all user data inside a single transaction,
// audit actor scrub, then the user row, committed wholesale. Post-commit it
// drops transient moderation state and old export requests, and marks the
// deletion request completed.
func (m *Manager) purgeUser(ctx context.Context, req *DeletionRequest) error {
	lock := m.locks.get(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := m.purger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin purge: %w", err)
	}

	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"photos", tx.DeletePhotos},
		{"matches", tx.DeleteMatches},
		{"messages", tx.DeleteMessages},
		{"reports", tx.DeleteReports},
		{"blocks", tx.DeleteBlocks},
		{"moderation_actions", tx.DeleteModerationActions},
	}
	for _, step := range steps {
		if err := step.fn(ctx, req.UserID); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Error("purge rollback failed", zap.Error(rbErr))
			}
			return fmt.Errorf("delete %s: %w", step.name, err)
		}
	}

	// Audit events survive the purge for compliance but lose the actor link.
	if _, err := m.ledger.ScrubActor(ctx, req.UserID); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.Error("purge rollback failed", zap.Error(rbErr))
		}
		return fmt.Errorf("scrub audit actor: %w", err)
	}

	if err := tx.DeleteUser(ctx, req.UserID); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.Error("purge rollback failed", zap.Error(rbErr))
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit purge: %w", err)
	}

	if m.cleaner != nil {
		m.cleaner.DeleteOwner(ctx, req.UserID)
	}
	if _, err := m.exports.DeleteByUser(ctx, req.UserID); err != nil {
		logger.Warn("failed to delete export requests for purged user",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	}

	now := m.now()
	req.Status = DeletionCompleted
	req.CompletedAt = &now
	if err := m.deletions.Update(ctx, req); err != nil {
		logger.Error("failed to mark deletion completed",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
	}

	m.ledger.Record(ctx, audit.Entry{
		Action: audit.ActionDeletionCompleted,
		Metadata: map[string]interface{}{
			"request_id": req.ID,
		},
	})

	logger.Info("account purged",
		zap.String("request_id", req.ID),
	)
	return nil
}
