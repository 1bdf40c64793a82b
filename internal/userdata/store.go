// Package userdata provides the in-process user data store backing
// moderation lookups and GDPR lifecycle operations. It implements
// lifecycle.UserDirectory, lifecycle.Collector and lifecycle.Purger, and
// the moderation collaborator interfaces (ActionStore, ReportCounter,
// ProfileReader).
//
// A production deployment would back this with the product database; the
// trust engine only needs the narrow surface defined by those interfaces.
package userdata

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"heartlink.io/trustengine/internal/lifecycle"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
)

// User is one account.
type User struct {
	ID              string            `json:"id"`
	Email           string            `json:"email"`
	Name            string            `json:"name"`
	Bio             string            `json:"bio"`
	PasswordHash    string            `json:"-"`
	TwoFactorSecret string            `json:"-"`
	Active          bool              `json:"active"`
	Consent         lifecycle.Consent `json:"consent"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Photo is one uploaded photo.
type Photo struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Match links two users.
type Match struct {
	ID        string    `json:"id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one chat message.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sent_at"`
}

// Report is one user report. Status is "pending" or "resolved".
type Report struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporter_id"`
	ReportedID string    `json:"reported_id"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Block is one user block relationship.
type Block struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ModerationAction is one action taken against a user's content.
type ModerationAction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Action      string    `json:"action"`
	Reason      string    `json:"reason"`
	PerformedBy string    `json:"performed_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the in-process user data store.
type Store struct {
	mu       sync.Mutex
	users    map[string]*User
	photos   []Photo
	matches  []Match
	messages []Message
	reports  []Report
	blocks   []Block
	actions  []ModerationAction
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]*User),
		now:   time.Now,
	}
}

// AddUser inserts an account. Newly added accounts are active.
func (s *Store) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	u.Active = true
	s.users[u.ID] = &u
}

// GetUser returns an account by id.
func (s *Store) GetUser(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// AddPhoto inserts a photo.
func (s *Store) AddPhoto(p Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = append(s.photos, p)
}

// AddMatch inserts a match.
func (s *Store) AddMatch(m Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, m)
}

// AddMessage inserts a message.
func (s *Store) AddMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

// AddReport inserts a report.
func (s *Store) AddReport(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

// AddBlock inserts a block.
func (s *Store) AddBlock(b Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, b)
}

// Deactivate implements lifecycle.UserDirectory.
func (s *Store) Deactivate(_ context.Context, userID string) error {
	return s.setActive(userID, false)
}

// Reactivate implements lifecycle.UserDirectory.
func (s *Store) Reactivate(_ context.Context, userID string) error {
	return s.setActive(userID, true)
}

func (s *Store) setActive(userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
	}
	u.Active = active
	return nil
}

// UpdateConsent implements lifecycle.UserDirectory.
func (s *Store) UpdateConsent(_ context.Context, userID string, update lifecycle.ConsentUpdate) (lifecycle.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return lifecycle.Consent{}, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
	}
	if update.DataProcessing != nil {
		u.Consent.DataProcessing = *update.DataProcessing
	}
	if update.Marketing != nil {
		u.Consent.Marketing = *update.Marketing
	}
	u.Consent.UpdatedAt = s.now()
	return u.Consent, nil
}

// Consent implements lifecycle.UserDirectory.
func (s *Store) Consent(_ context.Context, userID string) (lifecycle.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return lifecycle.Consent{}, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
	}
	return u.Consent, nil
}

// Profile implements the moderation profile reader.
func (s *Store) Profile(_ context.Context, userID string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", "", apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
	}
	return u.Name, u.Bio, nil
}

// ResolvedReportCount implements the moderation report counter.
func (s *Store) ResolvedReportCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.reports {
		if r.ReportedID == userID && r.Status == "resolved" {
			count++
		}
	}
	return count, nil
}

// RecordAction implements the moderation action store.
func (s *Store) RecordAction(_ context.Context, ownerID, action, reason, performedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, ModerationAction{
		ID:          "act-" + uuid.New().String(),
		UserID:      ownerID,
		Action:      action,
		Reason:      reason,
		PerformedBy: performedBy,
		CreatedAt:   s.now(),
	})
	return nil
}

// ActionsFor returns the moderation actions recorded against a user.
func (s *Store) ActionsFor(userID string) []ModerationAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ModerationAction
	for _, a := range s.actions {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

// Collect implements lifecycle.Collector. Server-side secrets never leave
// the store: User marshals with PasswordHash and TwoFactorSecret omitted.
func (s *Store) Collect(_ context.Context, userID string) (lifecycle.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
	}

	bundle := lifecycle.Bundle{
		"profile": *u,
	}

	var photos []Photo
	for _, p := range s.photos {
		if p.UserID == userID {
			photos = append(photos, p)
		}
	}
	bundle["photos"] = photos

	var matches []Match
	for _, m := range s.matches {
		if m.UserA == userID || m.UserB == userID {
			matches = append(matches, m)
		}
	}
	bundle["matches"] = matches

	var messages []Message
	for _, m := range s.messages {
		if m.SenderID == userID || m.RecipientID == userID {
			messages = append(messages, m)
		}
	}
	bundle["messages"] = messages

	var reports []Report
	for _, r := range s.reports {
		if r.ReporterID == userID || r.ReportedID == userID {
			reports = append(reports, r)
		}
	}
	bundle["reports"] = reports

	return bundle, nil
}
