package saga

import (
	"context"
	"sync"
	"time"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/events"
)

// Snapshot is the order data cached between OrderPlaced and the terminal
// event. Its removal acts as the single-consume token that guarantees one
// terminal event per saga.
type Snapshot struct {
	OrderID       string                 `json:"orderId"`
	UserID        string                 `json:"userId"`
	OrderNumber   string                 `json:"orderNumber"`
	CustomerName  string                 `json:"customerName"`
	CustomerEmail string                 `json:"customerEmail"`
	PhoneNumber   string                 `json:"phoneNumber"`
	TotalAmount   float64                `json:"totalAmount"`
	Items         []events.OrderLineItem `json:"items"`
	CorrelationID string                 `json:"correlationId"`
}

// SnapshotStore persists saga snapshots with a bounded TTL.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot, ttl time.Duration) error
	Get(ctx context.Context, orderID string) (Snapshot, bool, error)
	Delete(ctx context.Context, orderID string) error
}

type memoryEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// MemoryStore is the process-local snapshot store. Suitable for a single
// orchestrator instance; use the Redis store when running more than one.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[snap.OrderID] = memoryEntry{snap: snap, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, orderID string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[orderID]
	if !ok {
		return Snapshot{}, false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, orderID)
		return Snapshot{}, false, nil
	}
	return entry.snap, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, orderID)
	return nil
}
