// internal/service/order/infrastructure/memory.go
package infrastructure

import (
	"context"
	"sync"

	"orderflow/internal/service/order/domain"
)

// MemoryOrderRepository 是 domain.OrderRepository 的内存实现，
// 供本地运行和测试使用。存取都走 Clone，杜绝共享可变状态。
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderNo] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderNo]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *MemoryOrderRepository) Delete(ctx context.Context, orderNo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[orderNo]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.orders, orderNo)
	return nil
}

// MemoryLocker 是 port.OrderLocker 的进程内实现：每个订单号一把互斥锁。
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MemoryLocker) LockOrder(ctx context.Context, orderNo string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[orderNo]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[orderNo] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}

// MemoryTrackingStore 是 port.TrackingStore 的内存实现。
type MemoryTrackingStore struct {
	mu       sync.Mutex
	started  map[string]bool
	statuses map[string]string
}

func NewMemoryTrackingStore() *MemoryTrackingStore {
	return &MemoryTrackingStore{
		started:  make(map[string]bool),
		statuses: make(map[string]string),
	}
}

func (s *MemoryTrackingStore) MarkTrackingStarted(ctx context.Context, orderNo string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	already := s.started[orderNo]
	s.started[orderNo] = true
	return already, nil
}

func (s *MemoryTrackingStore) SaveTrackingStatus(ctx context.Context, orderNo, trackingStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[orderNo] = trackingStatus
	return nil
}

func (s *MemoryTrackingStore) LastTrackingStatus(ctx context.Context, orderNo string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[orderNo], nil
}
