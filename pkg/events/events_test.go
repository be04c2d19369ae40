package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventBase_FreshIDAndUTCTimestamp(t *testing.T) {
	a := NewEventBase("corr-1")
	b := NewEventBase("corr-1")

	assert.NotEqual(t, a.EventID, b.EventID)
	assert.Equal(t, "corr-1", a.CorrelationID)
	assert.Equal(t, time.UTC, a.Timestamp.Location())
}

func TestOrderPlacedEvent_WireFormatIsPascalCase(t *testing.T) {
	ev := OrderPlacedEvent{
		EventBase:   NewEventBase("saga-7"),
		OrderID:     "ord-1",
		UserID:      "usr-1",
		OrderNumber: "ORD-2026-0001",
		TotalAmount: 59.97,
		Items: []OrderLineItem{
			{ProductID: "prod-1", Quantity: 3, UnitPrice: 19.99},
		},
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))

	for _, key := range []string{"EventId", "Timestamp", "CorrelationId", "OrderId", "UserId", "TotalAmount", "Items"} {
		assert.Contains(t, wire, key)
	}

	items := wire["Items"].([]any)
	item := items[0].(map[string]any)
	assert.Equal(t, "prod-1", item["ProductId"])
	assert.Equal(t, float64(3), item["Quantity"])
	assert.Equal(t, 19.99, item["UnitPrice"])
}

func TestStockReservationFailedEvent_CarriesFailedItems(t *testing.T) {
	ev := StockReservationFailedEvent{
		EventBase: NewEventBase(""),
		OrderID:   "ord-2",
		UserID:    "usr-2",
		Reason:    "insufficient stock",
		FailedItems: []FailedLineItem{
			{ProductID: "prod-9", Requested: 5, Available: 2, Reason: "insufficient stock"},
		},
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded StockReservationFailedEvent
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Len(t, decoded.FailedItems, 1)
	assert.Equal(t, 5, decoded.FailedItems[0].Requested)
	assert.Equal(t, 2, decoded.FailedItems[0].Available)

	// Empty correlation is omitted entirely rather than sent as "".
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.NotContains(t, wire, "CorrelationId")
}
