package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/events"
)

// Publisher is the slice of messaging.Publisher the orchestrator needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any, correlationID string) error
}

// DefaultSnapshotTTL bounds how long a saga may stay pending. It must cover
// broker plus consumer latency for the stock reservation round trip.
const DefaultSnapshotTTL = 30 * time.Minute

// Orchestrator drives the order saga. One logical instance exists per
// orderId, keyed by the cached snapshot: the snapshot is created on
// OrderPlaced and deleted when the terminal event is published, so a
// missing snapshot means the saga is unknown or already closed.
type Orchestrator struct {
	store  SnapshotStore
	pub    Publisher
	ttl    time.Duration
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator with the given snapshot store and
// publisher. A non-positive ttl falls back to DefaultSnapshotTTL.
func NewOrchestrator(store SnapshotStore, pub Publisher, ttl time.Duration, logger *slog.Logger) *Orchestrator {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Orchestrator{store: store, pub: pub, ttl: ttl, logger: logger}
}

// HandleOrderPlaced starts a saga: cache the full order snapshot, then ask
// the product service to reserve stock. Errors propagate so the delivery is
// nacked and redelivered.
func (o *Orchestrator) HandleOrderPlaced(ctx context.Context, ev events.OrderPlacedEvent) error {
	snap := Snapshot{
		OrderID:       ev.OrderID,
		UserID:        ev.UserID,
		OrderNumber:   ev.OrderNumber,
		CustomerName:  ev.CustomerName,
		CustomerEmail: ev.CustomerEmail,
		PhoneNumber:   ev.PhoneNumber,
		TotalAmount:   ev.TotalAmount,
		Items:         ev.Items,
		CorrelationID: ev.CorrelationID,
	}

	if err := o.store.Save(ctx, snap, o.ttl); err != nil {
		return fmt.Errorf("start saga %s: %w", ev.OrderID, err)
	}

	request := events.StockReservationRequestedEvent{
		EventBase: events.NewEventBase(ev.CorrelationID),
		OrderID:   ev.OrderID,
		UserID:    ev.UserID,
		Items:     ev.Items,
	}

	if err := o.pub.Publish(ctx, events.RkStockReservationRequested, request, ev.CorrelationID); err != nil {
		return fmt.Errorf("request stock reservation for %s: %w", ev.OrderID, err)
	}

	o.logger.InfoContext(ctx, "saga started",
		slog.String("order_id", ev.OrderID),
		slog.Int("items", len(ev.Items)),
	)
	return nil
}

// HandleStockReserved closes a saga successfully. A missing snapshot means
// a late duplicate, which is dropped without error.
func (o *Orchestrator) HandleStockReserved(ctx context.Context, ev events.StockReservedCompletedEvent) error {
	snap, ok, err := o.store.Get(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("load saga %s: %w", ev.OrderID, err)
	}
	if !ok {
		o.logger.WarnContext(ctx, "stock reserved for unknown saga, dropping",
			slog.String("order_id", ev.OrderID),
		)
		return nil
	}

	confirmed := events.OrderConfirmedEvent{
		EventBase:     events.NewEventBase(snap.CorrelationID),
		OrderID:       snap.OrderID,
		UserID:        snap.UserID,
		OrderNumber:   snap.OrderNumber,
		CustomerName:  snap.CustomerName,
		CustomerEmail: snap.CustomerEmail,
		PhoneNumber:   snap.PhoneNumber,
		TotalAmount:   snap.TotalAmount,
		Items:         snap.Items,
	}

	if err := o.pub.Publish(ctx, events.RkOrderConfirmed, confirmed, snap.CorrelationID); err != nil {
		return fmt.Errorf("confirm order %s: %w", ev.OrderID, err)
	}

	// Deleting after the publish means a crash in between republishes on
	// redelivery; downstream consumers are idempotent on orderId.
	if err := o.store.Delete(ctx, ev.OrderID); err != nil {
		return fmt.Errorf("close saga %s: %w", ev.OrderID, err)
	}

	o.logger.InfoContext(ctx, "saga confirmed", slog.String("order_id", ev.OrderID))
	return nil
}

// HandleStockFailed closes a saga with a cancellation carrying the failure
// reason and per-line detail from the inbound event. Unknown sagas are
// dropped.
func (o *Orchestrator) HandleStockFailed(ctx context.Context, ev events.StockReservationFailedEvent) error {
	snap, ok, err := o.store.Get(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("load saga %s: %w", ev.OrderID, err)
	}
	if !ok {
		o.logger.WarnContext(ctx, "stock failure for unknown saga, dropping",
			slog.String("order_id", ev.OrderID),
		)
		return nil
	}

	cancelled := events.OrderCancelledEvent{
		EventBase:     events.NewEventBase(snap.CorrelationID),
		OrderID:       snap.OrderID,
		UserID:        snap.UserID,
		OrderNumber:   snap.OrderNumber,
		CustomerName:  snap.CustomerName,
		CustomerEmail: snap.CustomerEmail,
		PhoneNumber:   snap.PhoneNumber,
		TotalAmount:   snap.TotalAmount,
		Reason:        ev.Reason,
		Items:         ev.FailedItems,
	}

	if err := o.pub.Publish(ctx, events.RkOrderCancelled, cancelled, snap.CorrelationID); err != nil {
		return fmt.Errorf("cancel order %s: %w", ev.OrderID, err)
	}

	if err := o.store.Delete(ctx, ev.OrderID); err != nil {
		return fmt.Errorf("close saga %s: %w", ev.OrderID, err)
	}

	o.logger.InfoContext(ctx, "saga cancelled",
		slog.String("order_id", ev.OrderID),
		slog.String("reason", ev.Reason),
	)
	return nil
}
