package aggregate

import "time"

// Order is the slice of the order service response the aggregator needs.
type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	UserID      string      `json:"userId"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
	CreatedAt   time.Time   `json:"createdAt"`
	Items       []OrderItem `json:"items"`
}

// OrderItem is a single line on an order. UnitPrice is the price recorded
// at purchase time, which is authoritative over the current catalog price.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// User is the customer profile attached to an order.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Product is the catalog view of a product used to enrich line items.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

// Payment describes the payment recorded for an order.
type Payment struct {
	PaymentID            string     `json:"paymentId"`
	Status               string     `json:"status"`
	Method               string     `json:"method"`
	PaidOn               *time.Time `json:"paidOn,omitempty"`
	TransactionReference string     `json:"transactionReference,omitempty"`
}

// SummaryItem is one enriched line in the aggregated summary.
type SummaryItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	LineTotal   float64 `json:"lineTotal"`
}

// OrderSummary is the aggregated view assembled from all branches. A branch
// failure leaves its section empty, sets IsPartial and appends a warning.
type OrderSummary struct {
	OrderID     string        `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	Status      string        `json:"status"`
	TotalAmount float64       `json:"totalAmount"`
	PlacedOn    time.Time     `json:"placedOn"`
	Customer    *User         `json:"customer,omitempty"`
	Payment     *Payment      `json:"payment,omitempty"`
	Items       []SummaryItem `json:"items"`
	IsPartial   bool          `json:"isPartial"`
	Warnings    []string      `json:"warnings,omitempty"`
}
