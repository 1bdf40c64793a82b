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

// Export request statuses.
const (
	ExportPending    = "pending"
	ExportProcessing = "processing"
	ExportCompleted  = "completed"
	ExportFailed     = "failed"
)

// ExportRequest tracks one data export through its state machine:
// pending -> processing -> completed | failed.
type ExportRequest struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	Location    string     `json:"location,omitempty"` // download location when completed
	Error       string     `json:"error,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

// InProgress reports whether the request is in a non-terminal state.
func (r *ExportRequest) InProgress() bool {
	return r.Status == ExportPending || r.Status == ExportProcessing
}

// RequestExport starts a data export for the user. Returns
// CodeExportInProgress if a pending or processing request already exists.
// Processing runs on the lifecycle worker pool; the returned request is
// pending.
func (m *Manager) RequestExport(ctx context.Context, userID string) (*ExportRequest, error) {
	lock := m.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := m.exports.Latest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load latest export: %w", err)
	}
	if latest != nil && latest.InProgress() {
		return nil, apperrors.ErrExportInProgressf()
	}

	now := m.now()
	req := &ExportRequest{
		ID:          newRequestID("exp"),
		UserID:      userID,
		Status:      ExportPending,
		RequestedAt: now,
		ExpiresAt:   now.Add(m.cfg.ExportExpiry),
	}
	if err := m.exports.Insert(ctx, req); err != nil {
		return nil, fmt.Errorf("insert export request: %w", err)
	}

	m.ledger.Record(ctx, audit.Entry{
		ActorID: userID,
		Action:  audit.ActionExportRequested,
		Metadata: map[string]interface{}{
			"request_id": req.ID,
		},
	})

	result := *req
	if m.pools != nil {
		reqID := req.ID
		err := m.pools.SubmitDetached(m.pools.Lifecycle, func(taskCtx context.Context) {
			m.processExport(taskCtx, reqID, userID)
		})
		if err != nil {
			logger.Warn("lifecycle pool rejected export task, processing inline",
				zap.String("request_id", req.ID),
				zap.Error(err),
			)
			m.processExport(ctx, req.ID, userID)
		}
	} else {
		m.processExport(ctx, req.ID, userID)
	}

	return &result, nil
}

// ExportStatus returns the user's most recent export request.
func (m *Manager) ExportStatus(ctx context.Context, userID string) (*ExportRequest, error) {
	latest, err := m.exports.Latest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load latest export: %w", err)
	}
	if latest == nil {
		return nil, apperrors.NotFound(apperrors.CodeExportNotFound, "no export request found")
	}
	return latest, nil
}

func (m *Manager) processExport(ctx context.Context, requestID, userID string) {
	req, err := m.exports.Get(ctx, requestID)
	if err != nil || req == nil {
		logger.Error("export request vanished before processing",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return
	}

	req.Status = ExportProcessing
	if err := m.exports.Update(ctx, req); err != nil {
		logger.Error("failed to mark export processing",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return
	}

	bundle, err := m.collector.Collect(ctx, userID)
	if err != nil {
		m.failExport(ctx, req, fmt.Errorf("collect user data: %w", err))
		return
	}

	// The user's audit trail is part of the export.
	events, err := m.ledger.Query(ctx, audit.Filter{ActorID: userID})
	if err != nil {
		m.failExport(ctx, req, fmt.Errorf("collect audit history: %w", err))
		return
	}
	bundle["audit_log"] = events
	bundle["exported_at"] = m.now()

	location, err := m.uploader.Upload(ctx, userID, bundle)
	if err != nil {
		m.failExport(ctx, req, fmt.Errorf("upload export bundle: %w", err))
		return
	}

	now := m.now()
	req.Status = ExportCompleted
	req.Location = location
	req.CompletedAt = &now
	if err := m.exports.Update(ctx, req); err != nil {
		logger.Error("failed to mark export completed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return
	}

	m.ledger.Record(ctx, audit.Entry{
		ActorID: userID,
		Action:  audit.ActionExportCompleted,
		Metadata: map[string]interface{}{
			"request_id": req.ID,
			"location":   location,
		},
	})
}

func (m *Manager) failExport(ctx context.Context, req *ExportRequest, cause error) {
	logger.Error("data export failed",
		zap.String("request_id", req.ID),
		zap.String("user_id", req.UserID),
		zap.Error(cause),
	)

	now := m.now()
	req.Status = ExportFailed
	req.Error = cause.Error()
	req.CompletedAt = &now
	if err := m.exports.Update(ctx, req); err != nil {
		logger.Error("failed to mark export failed",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
	}

	m.ledger.Record(ctx, audit.Entry{
		ActorID: req.UserID,
		Action:  audit.ActionExportFailed,
		Metadata: map[string]interface{}{
			"request_id": req.ID,
			"error":      cause.Error(),
		},
	})
}
