package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"registro/internal/retry/models"
	"registro/pkg/platform/sentinel"
)

// Memory is the in-memory failed-registration store for tests and
// single-node dev.
type Memory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.FailedRegistration
	byItem  map[uuid.UUID]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[uuid.UUID]*models.FailedRegistration),
		byItem:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *Memory) Create(ctx context.Context, f *models.FailedRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[f.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := m.byItem[f.OrderItemID]; exists {
		return sentinel.ErrConflict
	}
	cp := *f
	m.records[f.ID] = &cp
	m.byItem[f.OrderItemID] = f.ID
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *Memory) GetByOrderItem(ctx context.Context, itemID uuid.UUID) (*models.FailedRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byItem[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m.records[id]
	return &cp, nil
}

func (m *Memory) Update(ctx context.Context, f *models.FailedRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[f.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *f
	m.records[f.ID] = &cp
	return nil
}

func (m *Memory) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.FailedRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.FailedRegistration
	for _, f := range m.records {
		if f.Status == status {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListDue returns non-terminal records whose next attempt is at or before
// now, oldest first.
func (m *Memory) ListDue(ctx context.Context, now time.Time, limit int) ([]models.FailedRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.FailedRegistration
	for _, f := range m.records {
		if !f.Status.IsTerminal() && !f.NextAttemptAt.After(now) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
