// Package events defines the wire contracts for the order saga.
// Field names are PascalCase on the wire so every consumer group
// shares one canonical JSON shape.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for the saga topic exchange.
const (
	RkOrderPlaced               = "order.placed"
	RkStockReservationRequested = "stock.reservation.requested"
	RkStockReserved             = "stock.reserved"
	RkStockReservationFailed    = "stock.reservation_failed"
	RkOrderConfirmed            = "order.confirmed"
	RkOrderCancelled            = "order.cancelled"
)

// EventBase carries the envelope fields shared by every saga event.
type EventBase struct {
	EventID       string    `json:"EventId"`
	Timestamp     time.Time `json:"Timestamp"`
	CorrelationID string    `json:"CorrelationId,omitempty"`
}

// NewEventBase mints an envelope with a fresh event ID and UTC timestamp.
func NewEventBase(correlationID string) EventBase {
	return EventBase{
		EventID:       uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// OrderLineItem is one line of an order.
type OrderLineItem struct {
	ProductID string  `json:"ProductId"`
	Quantity  int     `json:"Quantity"`
	UnitPrice float64 `json:"UnitPrice"`
}

// FailedLineItem describes a line that could not be reserved.
type FailedLineItem struct {
	ProductID string `json:"ProductId"`
	Requested int    `json:"Requested"`
	Available int    `json:"Available"`
	Reason    string `json:"Reason"`
}

// OrderPlacedEvent starts a saga. Published by the order service.
type OrderPlacedEvent struct {
	EventBase
	OrderID       string          `json:"OrderId" validate:"required"`
	UserID        string          `json:"UserId"`
	OrderNumber   string          `json:"OrderNumber"`
	CustomerName  string          `json:"CustomerName"`
	CustomerEmail string          `json:"CustomerEmail"`
	PhoneNumber   string          `json:"PhoneNumber"`
	TotalAmount   float64         `json:"TotalAmount"`
	Items         []OrderLineItem `json:"Items" validate:"min=1"`
}

// StockReservationRequestedEvent asks the product service to reserve stock.
type StockReservationRequestedEvent struct {
	EventBase
	OrderID string          `json:"OrderId" validate:"required"`
	UserID  string          `json:"UserId"`
	Items   []OrderLineItem `json:"Items"`
}

// StockReservedCompletedEvent signals every line was reserved.
type StockReservedCompletedEvent struct {
	EventBase
	OrderID string          `json:"OrderId" validate:"required"`
	UserID  string          `json:"UserId"`
	Items   []OrderLineItem `json:"Items"`
}

// StockReservationFailedEvent signals at least one line could not be reserved.
type StockReservationFailedEvent struct {
	EventBase
	OrderID     string           `json:"OrderId" validate:"required"`
	UserID      string           `json:"UserId"`
	Reason      string           `json:"Reason"`
	FailedItems []FailedLineItem `json:"FailedItems"`
}

// OrderConfirmedEvent closes a successful saga.
type OrderConfirmedEvent struct {
	EventBase
	OrderID       string          `json:"OrderId" validate:"required"`
	UserID        string          `json:"UserId"`
	OrderNumber   string          `json:"OrderNumber"`
	CustomerName  string          `json:"CustomerName"`
	CustomerEmail string          `json:"CustomerEmail"`
	PhoneNumber   string          `json:"PhoneNumber"`
	TotalAmount   float64         `json:"TotalAmount"`
	Items         []OrderLineItem `json:"Items"`
}

// OrderCancelledEvent closes a failed saga. It fans out to both the
// notification and the order compensation consumer groups.
type OrderCancelledEvent struct {
	EventBase
	OrderID       string           `json:"OrderId" validate:"required"`
	UserID        string           `json:"UserId"`
	OrderNumber   string           `json:"OrderNumber"`
	CustomerName  string           `json:"CustomerName"`
	CustomerEmail string           `json:"CustomerEmail"`
	PhoneNumber   string           `json:"PhoneNumber"`
	TotalAmount   float64          `json:"TotalAmount"`
	Reason        string           `json:"Reason"`
	Items         []FailedLineItem `json:"Items"`
}
