package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"registro/internal/contact/models"
	"registro/pkg/platform/sentinel"
)

// Memory is the in-memory contact store used in tests and single-node dev.
type Memory struct {
	mu       sync.RWMutex
	contacts map[uuid.UUID]*models.Contact
}

func NewMemory() *Memory {
	return &Memory{contacts: make(map[uuid.UUID]*models.Contact)}
}

func (m *Memory) Create(ctx context.Context, contact *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.contacts[contact.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *contact
	m.contacts[contact.ID] = &cp
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	contact, ok := m.contacts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *contact
	return &cp, nil
}

func (m *Memory) FindByEmailAndProvider(ctx context.Context, email, provider string) (*models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, contact := range m.contacts {
		if strings.EqualFold(contact.Email, email) && contact.Provider == provider {
			cp := *contact
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
