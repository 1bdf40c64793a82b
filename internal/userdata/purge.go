package userdata

import (
	"context"
	"fmt"

	"heartlink.io/trustengine/internal/lifecycle"
)

// Begin implements lifecycle.Purger. The returned transaction stages
// deletions and applies them atomically under the store lock on Commit, so
// a sweep that fails midway leaves the store untouched.
func (s *Store) Begin(_ context.Context) (lifecycle.PurgeTx, error) {
	return &purgeTx{store: s}, nil
}

type purgeTx struct {
	store *Store
	ops   []func(*Store)
	done  bool
}

func (tx *purgeTx) stage(op func(*Store)) error {
	if tx.done {
		return fmt.Errorf("purge transaction already finished")
	}
	tx.ops = append(tx.ops, op)
	return nil
}

func (tx *purgeTx) DeletePhotos(_ context.Context, userID string) error {
	return tx.stage(func(s *Store) {
		kept := s.photos[:0]
		for _, p := range s.photos {
			if p.UserID != userID {
				kept = append(kept, p)
			}
		}
		s.photos = kept
	})
}

func (tx *purgeTx) DeleteMatches(_ context.Context, userID string) error {
	return tx.stage(func(s *Store) {
		kept := s.matches[:0]
		for _, m := range s.matches {
			if m.UserA != userID && m.UserB != userID {
				kept = append(kept, m)
			}
		}
		s.matches = kept
	})
}

func (tx *purgeTx) DeleteMessages(_ context.Context, userID string) error {
	return tx.stage(func(s *Store) {
		kept := s.messages[:0]
		for _, m := range s.messages {
			if m.SenderID != userID && m.RecipientID != userID {
				kept = append(kept, m)
			}
		}
		s.messages = kept
	})
}

func (tx *purgeTx) DeleteReports(_ context.Context, userID string) error {
	return tx.stage(func(s *Store) {
		kept := s.reports[:0]
		for _, r := range s.reports {
			if r.ReporterID != userID && r.ReportedID != userID {
				kept = append(kept, r)
			}
		}
		s.reports = kept
	})
}

func (tx *purgeTx) DeleteBlocks(_ context.Context, userID string) error {
	return tx.stage(func(s *Store) {
		kept := s.blocks[:0]
		for _, b := range s.blocks {
			if b.BlockerID != userID && b.BlockedID != userID {
				kept = append(kept, b)
			}
		}
		s.blocks = kept
	})
}

func (tx *purgeTx) DeleteModerationActions(_ context.Context, userID string) error {
	return tx.stage(func(s *Store) {
		kept := s.actions[:0]
		for _, a := range s.actions {
			if a.UserID != userID {
				kept = append(kept, a)
			}
		}
		s.actions = kept
	})
}

func (tx *purgeTx) DeleteUser(_ context.Context, userID string) error {
	return tx.stage(func(s *Store) {
		delete(s.users, userID)
	})
}

func (tx *purgeTx) Commit(_ context.Context) error {
	if tx.done {
		return fmt.Errorf("purge transaction already finished")
	}
	tx.done = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, op := range tx.ops {
		op(tx.store)
	}
	return nil
}

func (tx *purgeTx) Rollback(_ context.Context) error {
	tx.done = true
	tx.ops = nil
	return nil
}
