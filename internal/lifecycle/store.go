package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ExportStore persists export requests.
type ExportStore interface {
	Insert(ctx context.Context, req *ExportRequest) error
	Update(ctx context.Context, req *ExportRequest) error
	Get(ctx context.Context, id string) (*ExportRequest, error)
	// Latest returns the user's most recent request, or nil.
	Latest(ctx context.Context, userID string) (*ExportRequest, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// DeletionStore persists deletion requests.
type DeletionStore interface {
	Insert(ctx context.Context, req *DeletionRequest) error
	Update(ctx context.Context, req *DeletionRequest) error
	Delete(ctx context.Context, id string) error
	// PendingByUser returns the user's pending request, or nil.
	PendingByUser(ctx context.Context, userID string) (*DeletionRequest, error)
	// Due returns pending requests whose grace period elapsed at now.
	Due(ctx context.Context, now time.Time) ([]*DeletionRequest, error)
	// Claim moves a pending request to claimed. Returns false if the
	// request is not pending, so concurrent sweeps skip it.
	Claim(ctx context.Context, id string) (bool, error)
	// Release moves a claimed request back to pending after a failed purge.
	Release(ctx context.Context, id string) error
}

// MemoryExportStore is an in-process ExportStore.
type MemoryExportStore struct {
	mu   sync.RWMutex
	reqs map[string]*ExportRequest
}

// NewMemoryExportStore creates an empty MemoryExportStore.
func NewMemoryExportStore() *MemoryExportStore {
	return &MemoryExportStore{reqs: make(map[string]*ExportRequest)}
}

// Insert implements ExportStore.
func (s *MemoryExportStore) Insert(_ context.Context, req *ExportRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.reqs[req.ID] = &cp
	return nil
}

// Update implements ExportStore.
func (s *MemoryExportStore) Update(_ context.Context, req *ExportRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reqs[req.ID]; !ok {
		return fmt.Errorf("export request %s not found", req.ID)
	}
	cp := *req
	s.reqs[req.ID] = &cp
	return nil
}

// Get implements ExportStore.
func (s *MemoryExportStore) Get(_ context.Context, id string) (*ExportRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.reqs[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

// Latest implements ExportStore.
func (s *MemoryExportStore) Latest(_ context.Context, userID string) (*ExportRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*ExportRequest
	for _, req := range s.reqs {
		if req.UserID == userID {
			candidates = append(candidates, req)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].RequestedAt.After(candidates[j].RequestedAt)
	})
	cp := *candidates[0]
	return &cp, nil
}

// DeleteByUser implements ExportStore.
func (s *MemoryExportStore) DeleteByUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, req := range s.reqs {
		if req.UserID == userID {
			delete(s.reqs, id)
			removed++
		}
	}
	return removed, nil
}

// MemoryDeletionStore is an in-process DeletionStore.
type MemoryDeletionStore struct {
	mu   sync.Mutex
	reqs map[string]*DeletionRequest
}

// NewMemoryDeletionStore creates an empty MemoryDeletionStore.
func NewMemoryDeletionStore() *MemoryDeletionStore {
	return &MemoryDeletionStore{reqs: make(map[string]*DeletionRequest)}
}

// Insert implements DeletionStore.
func (s *MemoryDeletionStore) Insert(_ context.Context, req *DeletionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.reqs[req.ID] = &cp
	return nil
}

// Update implements DeletionStore.
func (s *MemoryDeletionStore) Update(_ context.Context, req *DeletionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reqs[req.ID]; !ok {
		return fmt.Errorf("deletion request %s not found", req.ID)
	}
	cp := *req
	s.reqs[req.ID] = &cp
	return nil
}

// Delete implements DeletionStore.
func (s *MemoryDeletionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reqs, id)
	return nil
}

// PendingByUser implements DeletionStore.
func (s *MemoryDeletionStore) PendingByUser(_ context.Context, userID string) (*DeletionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.reqs {
		if req.UserID == userID && req.Status == DeletionPending {
			cp := *req
			return &cp, nil
		}
	}
	return nil, nil
}

// Due implements DeletionStore.
func (s *MemoryDeletionStore) Due(_ context.Context, now time.Time) ([]*DeletionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*DeletionRequest
	for _, req := range s.reqs {
		if req.Status == DeletionPending && !req.ScheduledFor.After(now) {
			cp := *req
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	return due, nil
}

// Claim implements DeletionStore.
func (s *MemoryDeletionStore) Claim(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok || req.Status != DeletionPending {
		return false, nil
	}
	req.Status = DeletionClaimed
	return true, nil
}

// Release implements DeletionStore.
func (s *MemoryDeletionStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return fmt.Errorf("deletion request %s not found", id)
	}
	if req.Status == DeletionClaimed {
		req.Status = DeletionPending
	}
	return nil
}

// MemoryUploader keeps export bundles in memory as JSON. Used in tests and
// single-node deployments without object storage.
type MemoryUploader struct {
	mu      sync.Mutex
	bundles map[string][]byte
}

// NewMemoryUploader creates an empty MemoryUploader.
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{bundles: make(map[string][]byte)}
}

// Upload implements Uploader. Marshalling up front catches bundles that
// would not survive serialization to real object storage.
func (u *MemoryUploader) Upload(_ context.Context, userID string, bundle Bundle) (string, error) {
	data, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("marshal export bundle: %w", err)
	}

	location := fmt.Sprintf("mem://exports/%s/%s.json", userID, newRequestID("bundle"))
	u.mu.Lock()
	u.bundles[location] = data
	u.mu.Unlock()
	return location, nil
}

// Bundle returns a previously uploaded bundle by location.
func (u *MemoryUploader) Bundle(location string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.bundles[location]
	return data, ok
}
