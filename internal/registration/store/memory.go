package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"registro/internal/registration/models"
	"registro/pkg/platform/sentinel"
)

// Memory is the in-memory domain store for tests and single-node dev.
type Memory struct {
	mu      sync.RWMutex
	domains map[string]*models.Domain
}

func NewMemory() *Memory {
	return &Memory{domains: make(map[string]*models.Domain)}
}

func (m *Memory) Create(ctx context.Context, d *models.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(d.Name)
	if _, exists := m.domains[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *d
	cp.Nameservers = append([]string(nil), d.Nameservers...)
	m.domains[key] = &cp
	return nil
}

func (m *Memory) GetByName(ctx context.Context, name string) (*models.Domain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.domains[strings.ToLower(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *d
	cp.Nameservers = append([]string(nil), d.Nameservers...)
	return &cp, nil
}

func (m *Memory) UpdateExpiry(ctx context.Context, name, expiry string, now time.Time) error {
	return m.mutate(name, func(d *models.Domain) {
		d.ExpiryDate = expiry
		d.UpdatedAt = now
	})
}

func (m *Memory) SetLock(ctx context.Context, name string, locked bool, now time.Time) error {
	return m.mutate(name, func(d *models.Domain) {
		d.Locked = locked
		d.UpdatedAt = now
	})
}

func (m *Memory) UpdateNameservers(ctx context.Context, name string, nameservers []string, now time.Time) error {
	return m.mutate(name, func(d *models.Domain) {
		d.Nameservers = append([]string(nil), nameservers...)
		d.UpdatedAt = now
	})
}

func (m *Memory) UpdateContacts(ctx context.Context, name string, registrant, admin, tech, billing string, now time.Time) error {
	return m.mutate(name, func(d *models.Domain) {
		d.RegistrantID = registrant
		d.AdminID = admin
		d.TechID = tech
		d.BillingID = billing
		d.UpdatedAt = now
	})
}

func (m *Memory) mutate(name string, fn func(*models.Domain)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.domains[strings.ToLower(name)]
	if !ok {
		return sentinel.ErrNotFound
	}
	fn(d)
	return nil
}
