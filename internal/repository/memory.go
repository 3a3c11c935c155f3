package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

// MemoryRepository — in-memory хранилище для локального запуска и тестов.
// Все операции выполняются под одной блокировкой, поэтому условное обновление
// статуса атомарно относительно остальных изменений.
type MemoryRepository struct {
	mu sync.RWMutex

	nextIdentityID int64
	nextOrderID    int64

	identities      map[int64]model.Identity
	identityByEmail map[string]int64
	orders          map[int64]model.Order

	now func() time.Time
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextIdentityID:  1,
		nextOrderID:     1,
		identities:      make(map[int64]model.Identity),
		identityByEmail: make(map[string]int64),
		orders:          make(map[int64]model.Order),
		now:             time.Now,
	}
}

// Ping всегда успешен.
func (m *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close ничего не освобождает.
func (m *MemoryRepository) Close() error {
	return nil
}

// CreateIdentity сохраняет учётную запись и присваивает ей идентификатор.
func (m *MemoryRepository) CreateIdentity(ctx context.Context, ident *model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.identityByEmail[ident.Email]; exists {
		return ErrIdentityExists
	}

	ident.ID = m.nextIdentityID
	m.nextIdentityID++
	ident.CreatedAt = m.now().UTC()

	stored := *ident
	stored.PasswordHash = slices.Clone(ident.PasswordHash)
	m.identities[stored.ID] = stored
	m.identityByEmail[stored.Email] = stored.ID
	return nil
}

// GetIdentityByEmail возвращает учётную запись по email.
func (m *MemoryRepository) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.identityByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return m.identityCopy(id), nil
}

// GetIdentityByID возвращает учётную запись по идентификатору.
func (m *MemoryRepository) GetIdentityByID(ctx context.Context, id int64) (*model.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.identities[id]; !ok {
		return nil, ErrNotFound
	}
	return m.identityCopy(id), nil
}

func (m *MemoryRepository) identityCopy(id int64) *model.Identity {
	cp := m.identities[id]
	cp.PasswordHash = slices.Clone(cp.PasswordHash)
	return &cp
}

// UpdatePasswordHash заменяет хеш пароля учётной записи.
func (m *MemoryRepository) UpdatePasswordHash(ctx context.Context, id int64, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ident, ok := m.identities[id]
	if !ok {
		return ErrNotFound
	}
	ident.PasswordHash = slices.Clone(hash)
	m.identities[id] = ident
	return nil
}

// CreateOrder сохраняет заказ вместе с позициями и снимком адреса.
func (m *MemoryRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o.ID = m.nextOrderID
	m.nextOrderID++
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.now().UTC()
	}

	stored := *o
	stored.Items = slices.Clone(o.Items)
	m.orders[stored.ID] = stored
	return nil
}

// GetOrder возвращает копию заказа.
func (m *MemoryRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.orders[id]; !ok {
		return nil, ErrNotFound
	}
	return m.orderCopy(id), nil
}

// ListOrdersByOwner возвращает заказы владельца, новые первыми.
func (m *MemoryRepository) ListOrdersByOwner(ctx context.Context, ownerID int64) ([]model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Order, 0)
	for id, o := range m.orders {
		if o.OwnerID != ownerID {
			continue
		}
		out = append(out, *m.orderCopy(id))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

// CompareAndSetStatus меняет статус на next, только если текущий равен expected.
func (m *MemoryRepository) CompareAndSetStatus(ctx context.Context, id int64, expected, next model.OrderStatus) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != expected {
		return nil, ErrStatusMismatch
	}

	o.Status = next
	m.orders[id] = o
	return m.orderCopy(id), nil
}

// SetStatus безусловно перезаписывает статус и возвращает предыдущий.
func (m *MemoryRepository) SetStatus(ctx context.Context, id int64, next model.OrderStatus) (*model.Order, model.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, "", ErrNotFound
	}

	previous := o.Status
	o.Status = next
	m.orders[id] = o
	return m.orderCopy(id), previous, nil
}

func (m *MemoryRepository) orderCopy(id int64) *model.Order {
	cp := m.orders[id]
	cp.Items = slices.Clone(cp.Items)
	return &cp
}
