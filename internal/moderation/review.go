package moderation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"heartlink.io/trustengine/internal/audit"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
)

// Decision statuses.
const (
	StatusApproved      = "approved"
	StatusFlagged       = "flagged"
	StatusBlocked       = "blocked"
	StatusPendingReview = "pending_review"
)

// Decision is the persisted outcome of classifying one content item.
// Automated decisions land directly in approved/flagged/blocked; items
// needing a human land in pending_review and transition exactly once.
type Decision struct {
	ContentID   string    `json:"content_id"`
	ContentType string    `json:"content_type"` // text, image, profile
	OwnerID     string    `json:"owner_id"`
	Flags       []string  `json:"flags,omitempty"`
	Score       float64   `json:"score"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	ReviewerID  string    `json:"reviewer_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	ReviewedAt  time.Time `json:"reviewed_at,omitempty"`
}

// ActionStore records moderation actions against content owners.
// Implemented by the user-data collaborator so actions are purged with the
// rest of a user's data on deletion.
type ActionStore interface {
	RecordAction(ctx context.Context, ownerID, action, reason, performedBy string) error
}

// ReviewQueue holds items awaiting human review.
// In-memory by design: pending review items are transient operational state.
type ReviewQueue struct {
	mu      sync.Mutex
	items   map[string]*Decision
	actions ActionStore
	ledger  *audit.Ledger
	now     func() time.Time
}

// NewReviewQueue creates a ReviewQueue. actions and ledger may be nil in
// tests that only exercise queue ordering.
func NewReviewQueue(actions ActionStore, ledger *audit.Ledger) *ReviewQueue {
	return &ReviewQueue{
		items:   make(map[string]*Decision),
		actions: actions,
		ledger:  ledger,
		now:     time.Now,
	}
}

// Enqueue stores a decision in pending_review. Re-enqueueing an already
// pending content id is a no-op so duplicate submissions keep their place
// in line.
func (q *ReviewQueue) Enqueue(d Decision) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.items[d.ContentID]; exists {
		return
	}
	d.Status = StatusPendingReview
	if d.SubmittedAt.IsZero() {
		d.SubmittedAt = q.now()
	}
	q.items[d.ContentID] = &d
}

// Pending returns up to limit items awaiting review, oldest first.
func (q *ReviewQueue) Pending(limit int) []Decision {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]Decision, 0, len(q.items))
	for _, d := range q.items {
		if d.Status == StatusPendingReview {
			pending = append(pending, *d)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// Get returns the decision for a content id.
func (q *ReviewQueue) Get(contentID string) (Decision, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.items[contentID]
	if !ok {
		return Decision{}, false
	}
	return *d, true
}

// Review applies a human decision: pending_review transitions exactly once
// to approved (approve=true) or blocked. Rejection records a moderation
// action against the content owner and emits an audit event.
func (q *ReviewQueue) Review(ctx context.Context, contentID string, approve bool, reviewerID, reason string) (Decision, error) {
	q.mu.Lock()
	d, ok := q.items[contentID]
	if !ok {
		q.mu.Unlock()
		return Decision{}, apperrors.NotFound(apperrors.CodeReviewNotFound, "content not found in review queue")
	}
	if d.Status != StatusPendingReview {
		q.mu.Unlock()
		return Decision{}, apperrors.Conflict(apperrors.CodeReviewNotPending, "content has already been reviewed")
	}

	if approve {
		d.Status = StatusApproved
	} else {
		d.Status = StatusBlocked
		if reason == "" {
			reason = "inappropriate content"
		}
		d.Reason = reason
	}
	d.ReviewerID = reviewerID
	d.ReviewedAt = q.now()
	result := *d
	q.mu.Unlock()

	if !approve && q.actions != nil && result.OwnerID != "" {
		if err := q.actions.RecordAction(ctx, result.OwnerID, "content_removal", reason, reviewerID); err != nil {
			return result, fmt.Errorf("record moderation action: %w", err)
		}
	}

	if q.ledger != nil {
		action := audit.ActionModerationApproved
		if !approve {
			action = audit.ActionModerationRejected
		}
		q.ledger.Record(ctx, audit.Entry{
			ActorID: reviewerID,
			Action:  action,
			Metadata: map[string]interface{}{
				"content_id":   result.ContentID,
				"content_type": result.ContentType,
				"reason":       result.Reason,
			},
		})
	}

	return result, nil
}

// DeleteOwner drops all of a user's queued items. Called from the deletion
// purge.
func (q *ReviewQueue) DeleteOwner(_ context.Context, ownerID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, d := range q.items {
		if d.OwnerID == ownerID {
			delete(q.items, id)
			removed++
		}
	}
	return removed
}
