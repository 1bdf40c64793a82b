package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the persistence backend for the ledger.
type Store interface {
	// Insert appends one event. Events are immutable once inserted.
	Insert(ctx context.Context, ev Event) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, f Filter) ([]Event, error)

	// CountByAction counts events with the exact action in [from, to].
	CountByAction(ctx context.Context, action string, from, to time.Time) (int, error)

	// DeleteOlderThan removes events created before cutoff whose action is
	// not in keep. Returns the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, keep []string) (int, error)

	// ScrubActor nulls the actor reference on all events for actorID and
	// marks their metadata as belonging to a deleted user. Rows stay.
	ScrubActor(ctx context.Context, actorID string) (int, error)
}

// MemoryStore is the in-process Store used for single-instance deployments
// and tests. PgStore is the durable alternative.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Event, 0)
	for _, ev := range s.events {
		if !matches(ev, f) {
			continue
		}
		matched = append(matched, ev)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []Event{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// CountByAction implements Store.
func (s *MemoryStore) CountByAction(_ context.Context, action string, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ev := range s.events {
		if ev.Action != action {
			continue
		}
		if ev.CreatedAt.Before(from) || ev.CreatedAt.After(to) {
			continue
		}
		count++
	}
	return count, nil
}

// DeleteOlderThan implements Store.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time, keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepSet := make(map[string]struct{}, len(keep))
	for _, a := range keep {
		keepSet[a] = struct{}{}
	}

	kept := s.events[:0]
	removed := 0
	for _, ev := range s.events {
		if _, protected := keepSet[ev.Action]; !protected && ev.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return removed, nil
}

// ScrubActor implements Store.
func (s *MemoryStore) ScrubActor(_ context.Context, actorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scrubbed := 0
	for i := range s.events {
		if s.events[i].ActorID == nil || *s.events[i].ActorID != actorID {
			continue
		}
		s.events[i].ActorID = nil
		if s.events[i].Metadata == nil {
			s.events[i].Metadata = map[string]interface{}{}
		}
		s.events[i].Metadata["deleted_user"] = true
		scrubbed++
	}
	return scrubbed, nil
}

func matches(ev Event, f Filter) bool {
	if f.ActorID != "" && (ev.ActorID == nil || *ev.ActorID != f.ActorID) {
		return false
	}
	if f.Action != "" && ev.Action != f.Action {
		return false
	}
	if f.IPAddress != "" && ev.IPAddress != AnonymizeIP(f.IPAddress) {
		return false
	}
	if !f.From.IsZero() && ev.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ev.CreatedAt.After(f.To) {
		return false
	}
	return true
}
