package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink.io/trustengine/internal/audit"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
)

type recordedAction struct {
	ownerID, action, reason, performedBy string
}

type memoryActions struct {
	actions []recordedAction
}

func (m *memoryActions) RecordAction(_ context.Context, ownerID, action, reason, performedBy string) error {
	m.actions = append(m.actions, recordedAction{ownerID, action, reason, performedBy})
	return nil
}

func TestReviewQueue_PendingOldestFirst(t *testing.T) {
	q := NewReviewQueue(nil, nil)
	base := time.Now()

	q.Enqueue(Decision{ContentID: "c2", ContentType: ContentImage, SubmittedAt: base.Add(time.Minute)})
	q.Enqueue(Decision{ContentID: "c1", ContentType: ContentImage, SubmittedAt: base})
	q.Enqueue(Decision{ContentID: "c3", ContentType: ContentText, SubmittedAt: base.Add(2 * time.Minute)})

	pending := q.Pending(0)
	require.Len(t, pending, 3)
	assert.Equal(t, "c1", pending[0].ContentID)
	assert.Equal(t, "c2", pending[1].ContentID)
	assert.Equal(t, "c3", pending[2].ContentID)

	limited := q.Pending(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "c1", limited[0].ContentID)
}

func TestReviewQueue_EnqueueIdempotent(t *testing.T) {
	q := NewReviewQueue(nil, nil)
	base := time.Now()

	q.Enqueue(Decision{ContentID: "c1", SubmittedAt: base})
	q.Enqueue(Decision{ContentID: "c1", SubmittedAt: base.Add(time.Hour)})

	pending := q.Pending(0)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].SubmittedAt.Equal(base), "duplicate enqueue must keep original position")
}

func TestReview_ApproveTransitionsOnce(t *testing.T) {
	q := NewReviewQueue(nil, nil)
	q.Enqueue(Decision{ContentID: "c1", ContentType: ContentImage, OwnerID: "u1"})

	d, err := q.Review(context.Background(), "c1", true, "mod-1", "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, d.Status)
	assert.Equal(t, "mod-1", d.ReviewerID)
	assert.False(t, d.ReviewedAt.IsZero())

	// Second review of the same item must fail.
	_, err = q.Review(context.Background(), "c1", false, "mod-2", "changed my mind")
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeReviewNotPending, appErr.Code)
}

func TestReview_RejectRecordsActionAndAudit(t *testing.T) {
	actions := &memoryActions{}
	store := audit.NewMemoryStore()
	ledger := audit.NewLedger(store, nil, audit.DefaultConfig())
	q := NewReviewQueue(actions, ledger)

	q.Enqueue(Decision{ContentID: "c1", ContentType: ContentImage, OwnerID: "u1"})

	d, err := q.Review(context.Background(), "c1", false, "mod-1", "nudity")
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, d.Status)
	assert.Equal(t, "nudity", d.Reason)

	require.Len(t, actions.actions, 1)
	assert.Equal(t, "u1", actions.actions[0].ownerID)
	assert.Equal(t, "content_removal", actions.actions[0].action)
	assert.Equal(t, "mod-1", actions.actions[0].performedBy)

	events, err := store.Query(context.Background(), audit.Filter{Action: audit.ActionModerationRejected})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "c1", events[0].Metadata["content_id"])
}

func TestReview_UnknownContent(t *testing.T) {
	q := NewReviewQueue(nil, nil)
	_, err := q.Review(context.Background(), "ghost", true, "mod-1", "")
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeReviewNotFound, appErr.Code)
}

func TestDeleteOwner(t *testing.T) {
	q := NewReviewQueue(nil, nil)
	q.Enqueue(Decision{ContentID: "c1", OwnerID: "u1"})
	q.Enqueue(Decision{ContentID: "c2", OwnerID: "u1"})
	q.Enqueue(Decision{ContentID: "c3", OwnerID: "u2"})

	removed := q.DeleteOwner(context.Background(), "u1")
	assert.Equal(t, 2, removed)
	assert.Len(t, q.Pending(0), 1)
}
