// Package audit implements the append-only security event ledger.
//
// Audit events are compliance records: they are anonymized before
// persistence, never mutated after creation, and never hard-deleted for a
// protected set of actions. Account deletion scrubs the actor reference
// instead of removing rows.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action kinds recorded by the engine. Collaborators may record additional
// free-form actions; these are the ones the engine itself reasons about.
const (
	ActionLogin                = "login"
	ActionLoginFailed          = "login_failed"
	ActionAccountLocked        = "account_locked"
	ActionAccountBanned        = "account_banned"
	ActionUserRegistered       = "user_registered"
	ActionReportSubmitted      = "report_submitted"
	ActionSuspiciousActivity   = "suspicious_activity_detected"
	ActionConsentUpdated       = "consent_updated"
	ActionTermsAccepted        = "terms_accepted"
	ActionAgeVerified          = "age_verification_completed"
	ActionExportRequested      = "data_export_requested"
	ActionExportCompleted      = "data_export_completed"
	ActionExportFailed         = "data_export_failed"
	ActionDeletionRequested    = "data_deletion_requested"
	ActionDeletionCancelled    = "data_deletion_cancelled"
	ActionDeletionCompleted    = "data_deletion_completed"
	ActionModerationApproved   = "content_moderation_approve"
	ActionModerationRejected   = "content_moderation_reject"
	ActionContentRemoval       = "content_removal"
)

// Anomaly labels returned by DetectAnomalies.
const (
	AnomalyMultipleLoginLocations = "multiple_login_locations"
	AnomalyHighActivityRate       = "high_activity_rate"
)

// protectedActions are retained past the retention period for legal
// defensibility.
var protectedActions = []string{
	ActionDeletionRequested,
	ActionAccountBanned,
	ActionTermsAccepted,
	ActionAgeVerified,
	ActionConsentUpdated,
}

// Event is one immutable ledger entry.
type Event struct {
	ID        string                 `json:"id"`
	ActorID   *string                `json:"actor_id,omitempty"`
	Action    string                 `json:"action"`
	IPAddress string                 `json:"ip_address,omitempty"` // anonymized before persistence
	UserAgent string                 `json:"user_agent,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Entry is the write-side payload accepted from any component.
type Entry struct {
	ActorID   string // empty for unauthenticated actions
	Action    string
	IPAddress string // raw; anonymized on record
	UserAgent string
	Metadata  map[string]interface{}
}

// Filter selects events on the read side. Zero fields are ignored.
type Filter struct {
	ActorID   string
	Action    string
	IPAddress string // matched against the anonymized form
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "evt-" + uuid.New().String()
	}
	return "evt-" + id.String()
}

// AnonymizeIP strips the host-identifying part of an address before it is
// persisted: IPv4 loses its last octet, IPv6 keeps only the first 64 bits.
func AnonymizeIP(ip string) string {
	if ip == "" {
		return ""
	}
	if parts := strings.Split(ip, "."); len(parts) == 4 {
		return fmt.Sprintf("%s.%s.%s.0", parts[0], parts[1], parts[2])
	}
	v6parts := strings.Split(ip, ":")
	if len(v6parts) > 4 {
		v6parts = v6parts[:4]
	}
	return strings.Join(v6parts, ":") + "::"
}
