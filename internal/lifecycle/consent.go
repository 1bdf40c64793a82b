package lifecycle

import (
	"context"
	"fmt"
	"time"

	"heartlink.io/trustengine/internal/audit"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
)

// Consent is a user's current consent state.
type Consent struct {
	DataProcessing bool      `json:"data_processing"`
	Marketing      bool      `json:"marketing"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConsentUpdate is a partial consent change. Nil fields are left as-is.
type ConsentUpdate struct {
	DataProcessing *bool `json:"data_processing"`
	Marketing      *bool `json:"marketing"`
}

// Empty reports whether the update changes nothing.
func (u ConsentUpdate) Empty() bool {
	return u.DataProcessing == nil && u.Marketing == nil
}

// UpdateConsent applies a partial consent change and records it in the
// audit ledger.
func (m *Manager) UpdateConsent(ctx context.Context, userID string, update ConsentUpdate) (Consent, error) {
	if update.Empty() {
		return Consent{}, apperrors.BadRequest(apperrors.CodeInvalidRequest, "no consent fields to update")
	}

	lock := m.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	consent, err := m.users.UpdateConsent(ctx, userID, update)
	if err != nil {
		return Consent{}, fmt.Errorf("update consent: %w", err)
	}

	metadata := map[string]interface{}{}
	if update.DataProcessing != nil {
		metadata["data_processing"] = *update.DataProcessing
	}
	if update.Marketing != nil {
		metadata["marketing"] = *update.Marketing
	}
	m.ledger.Record(ctx, audit.Entry{
		ActorID:  userID,
		Action:   audit.ActionConsentUpdated,
		Metadata: metadata,
	})

	return consent, nil
}

// ConsentStatus returns the user's current consent state.
func (m *Manager) ConsentStatus(ctx context.Context, userID string) (Consent, error) {
	consent, err := m.users.Consent(ctx, userID)
	if err != nil {
		return Consent{}, fmt.Errorf("load consent: %w", err)
	}
	return consent, nil
}
