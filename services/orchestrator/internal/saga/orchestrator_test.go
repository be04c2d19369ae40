package saga

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/events"
)

type publishedEvent struct {
	routingKey    string
	payload       any
	correlationID string
}

type fakePublisher struct {
	published []publishedEvent
	failOn    string
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, payload any, correlationID string) error {
	if f.failOn == routingKey {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, publishedEvent{routingKey, payload, correlationID})
	return nil
}

func newOrchestratorForTest(pub *fakePublisher) (*Orchestrator, *MemoryStore) {
	store := NewMemoryStore()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(store, pub, DefaultSnapshotTTL, l), store
}

func placedEvent() events.OrderPlacedEvent {
	return events.OrderPlacedEvent{
		EventBase:     events.NewEventBase("corr-happy"),
		OrderID:       "ord-100",
		UserID:        "usr-1",
		OrderNumber:   "ORD-2026-0100",
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		PhoneNumber:   "+441234567890",
		TotalAmount:   59.97,
		Items: []events.OrderLineItem{
			{ProductID: "prod-1", Quantity: 3, UnitPrice: 19.99},
		},
	}
}

func TestHappyPath_PlacedThenReserved(t *testing.T) {
	pub := &fakePublisher{}
	o, store := newOrchestratorForTest(pub)
	ctx := context.Background()

	require.NoError(t, o.HandleOrderPlaced(ctx, placedEvent()))

	require.Len(t, pub.published, 1)
	assert.Equal(t, events.RkStockReservationRequested, pub.published[0].routingKey)
	req := pub.published[0].payload.(events.StockReservationRequestedEvent)
	assert.Equal(t, "ord-100", req.OrderID)
	assert.Equal(t, "corr-happy", req.CorrelationID)
	assert.Equal(t, placedEvent().Items, req.Items)

	require.NoError(t, o.HandleStockReserved(ctx, events.StockReservedCompletedEvent{
		EventBase: events.NewEventBase("corr-happy"),
		OrderID:   "ord-100",
	}))

	require.Len(t, pub.published, 2)
	assert.Equal(t, events.RkOrderConfirmed, pub.published[1].routingKey)
	confirmed := pub.published[1].payload.(events.OrderConfirmedEvent)
	assert.Equal(t, "Ada Lovelace", confirmed.CustomerName)
	assert.Equal(t, 59.97, confirmed.TotalAmount)
	assert.Equal(t, "corr-happy", confirmed.CorrelationID)

	_, ok, err := store.Get(ctx, "ord-100")
	require.NoError(t, err)
	assert.False(t, ok, "snapshot must be consumed by the terminal event")
}

func TestFailurePath_PlacedThenFailed(t *testing.T) {
	pub := &fakePublisher{}
	o, _ := newOrchestratorForTest(pub)
	ctx := context.Background()

	require.NoError(t, o.HandleOrderPlaced(ctx, placedEvent()))

	failed := events.StockReservationFailedEvent{
		EventBase: events.NewEventBase("corr-happy"),
		OrderID:   "ord-100",
		Reason:    "insufficient stock",
		FailedItems: []events.FailedLineItem{
			{ProductID: "prod-1", Requested: 3, Available: 1, Reason: "insufficient stock"},
		},
	}
	require.NoError(t, o.HandleStockFailed(ctx, failed))

	require.Len(t, pub.published, 2)
	assert.Equal(t, events.RkOrderCancelled, pub.published[1].routingKey)
	cancelled := pub.published[1].payload.(events.OrderCancelledEvent)
	assert.Equal(t, "insufficient stock", cancelled.Reason)
	require.Len(t, cancelled.Items, 1)
	assert.Equal(t, 1, cancelled.Items[0].Available)
	assert.Equal(t, "ada@example.com", cancelled.CustomerEmail)
}

func TestReplayedTerminalEventIsDropped(t *testing.T) {
	pub := &fakePublisher{}
	o, _ := newOrchestratorForTest(pub)
	ctx := context.Background()

	require.NoError(t, o.HandleOrderPlaced(ctx, placedEvent()))
	reserved := events.StockReservedCompletedEvent{EventBase: events.NewEventBase("corr-happy"), OrderID: "ord-100"}

	require.NoError(t, o.HandleStockReserved(ctx, reserved))
	require.NoError(t, o.HandleStockReserved(ctx, reserved))

	// One StockReservationRequested plus exactly one terminal event.
	assert.Len(t, pub.published, 2)
}

func TestConflictingTerminalEventIsDropped(t *testing.T) {
	pub := &fakePublisher{}
	o, _ := newOrchestratorForTest(pub)
	ctx := context.Background()

	require.NoError(t, o.HandleOrderPlaced(ctx, placedEvent()))
	require.NoError(t, o.HandleStockReserved(ctx, events.StockReservedCompletedEvent{
		EventBase: events.NewEventBase("corr-happy"), OrderID: "ord-100",
	}))

	// A late failure for the same saga must not produce a second terminal.
	require.NoError(t, o.HandleStockFailed(ctx, events.StockReservationFailedEvent{
		EventBase: events.NewEventBase("corr-happy"), OrderID: "ord-100", Reason: "late",
	}))

	assert.Len(t, pub.published, 2)
}

func TestTerminalEventForUnknownOrderIsDropped(t *testing.T) {
	pub := &fakePublisher{}
	o, _ := newOrchestratorForTest(pub)

	require.NoError(t, o.HandleStockReserved(context.Background(), events.StockReservedCompletedEvent{
		EventBase: events.NewEventBase(""), OrderID: "never-seen",
	}))
	assert.Empty(t, pub.published)
}

func TestPublisherFailurePropagates(t *testing.T) {
	pub := &fakePublisher{failOn: events.RkStockReservationRequested}
	o, store := newOrchestratorForTest(pub)
	ctx := context.Background()

	err := o.HandleOrderPlaced(ctx, placedEvent())
	require.Error(t, err)

	// Snapshot stays so the redelivered OrderPlaced can retry.
	_, ok, getErr := store.Get(ctx, "ord-100")
	require.NoError(t, getErr)
	assert.True(t, ok)
}

func TestConfirmPublishFailureKeepsSnapshot(t *testing.T) {
	pub := &fakePublisher{failOn: events.RkOrderConfirmed}
	o, store := newOrchestratorForTest(pub)
	ctx := context.Background()

	require.NoError(t, o.HandleOrderPlaced(ctx, placedEvent()))
	err := o.HandleStockReserved(ctx, events.StockReservedCompletedEvent{
		EventBase: events.NewEventBase("corr-happy"), OrderID: "ord-100",
	})
	require.Error(t, err)

	_, ok, getErr := store.Get(ctx, "ord-100")
	require.NoError(t, getErr)
	assert.True(t, ok, "snapshot must survive a failed publish for redelivery")
}

func TestCorrelationIDStaysConstantAcrossSaga(t *testing.T) {
	pub := &fakePublisher{}
	o, _ := newOrchestratorForTest(pub)
	ctx := context.Background()

	require.NoError(t, o.HandleOrderPlaced(ctx, placedEvent()))
	require.NoError(t, o.HandleStockFailed(ctx, events.StockReservationFailedEvent{
		EventBase: events.NewEventBase("corr-happy"), OrderID: "ord-100", Reason: "oos",
	}))

	for _, p := range pub.published {
		assert.Equal(t, "corr-happy", p.correlationID)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{OrderID: "ord-ttl"}, time.Minute))

	_, ok, err := store.Get(ctx, "ord-ttl")
	require.NoError(t, err)
	assert.True(t, ok)

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok, err = store.Get(ctx, "ord-ttl")
	require.NoError(t, err)
	assert.False(t, ok)
}
