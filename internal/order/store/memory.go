package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"registro/internal/order/models"
	"registro/pkg/platform/sentinel"
)

// Memory keeps orders and their items in maps for tests and single-node dev.
type Memory struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*models.Order
	items  map[uuid.UUID]*models.Item
}

func NewMemory() *Memory {
	return &Memory{
		orders: make(map[uuid.UUID]*models.Order),
		items:  make(map[uuid.UUID]*models.Item),
	}
}

func (m *Memory) CreateOrder(ctx context.Context, order *models.Order, items []models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *order
	m.orders[order.ID] = &cp
	for i := range items {
		item := items[i]
		m.items[item.ID] = &item
	}
	return nil
}

func (m *Memory) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *Memory) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Item
	for _, item := range m.items {
		if item.OrderID == orderID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *Memory) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

// UpdateItemStatus writes the item's status only; contact ids and domain
// stay as created.
func (m *Memory) UpdateItemStatus(ctx context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[item.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	existing.Status = item.Status
	existing.UpdatedAt = item.UpdatedAt
	return nil
}

// UpdateOrderStatus writes the aggregate status only. PaymentStatus and
// TotalAmount are deliberately not touched.
func (m *Memory) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	order.Status = status
	return nil
}
