package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Devendra181/ECommerceSystem-sub000/pkg/errors"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/httputil"
)

// Fetcher covers every downstream branch the aggregator fans out to.
type Fetcher interface {
	Order(ctx context.Context, orderID string) (*Order, error)
	User(ctx context.Context, userID string) (*User, error)
	Products(ctx context.Context, productIDs []string, authorization string) ([]Product, error)
	Payment(ctx context.Context, orderID string) (*Payment, error)
}

// Aggregator assembles the order summary from the downstream services.
type Aggregator struct {
	fetcher Fetcher
	logger  *slog.Logger
}

func NewAggregator(fetcher Fetcher, l *slog.Logger) *Aggregator {
	return &Aggregator{fetcher: fetcher, logger: l}
}

// Summarize builds the aggregated view for one order. The order branch is
// the anchor: if it cannot be fetched there is nothing to aggregate and a
// not-found error is returned. The remaining branches run concurrently and
// fail independently, each missing branch adds a warning and marks the
// summary partial.
func (a *Aggregator) Summarize(ctx context.Context, orderID, authorization string) (*OrderSummary, error) {
	order, err := a.fetcher.Order(ctx, orderID)
	if err != nil || order == nil {
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			a.logger.WarnContext(ctx, "order fetch failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperrors.NotFound("order", orderID)
	}

	summary := &OrderSummary{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		PlacedOn:    order.CreatedAt,
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		user     *User
		products []Product
		payment  *Payment
	)

	warn := func(branch string, err error) {
		a.logger.WarnContext(ctx, "aggregation branch failed",
			slog.String("branch", branch),
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		mu.Lock()
		summary.IsPartial = true
		summary.Warnings = append(summary.Warnings, "could not load "+branch+" details")
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		u, err := a.fetcher.User(ctx, order.UserID)
		if err != nil {
			warn("customer", err)
			return
		}
		user = u
	}()
	go func() {
		defer wg.Done()
		ids := distinctProductIDs(order.Items)
		if len(ids) == 0 {
			return
		}
		ps, err := a.fetcher.Products(ctx, ids, authorization)
		if err != nil {
			warn("product", err)
			return
		}
		products = ps
	}()
	go func() {
		defer wg.Done()
		p, err := a.fetcher.Payment(ctx, orderID)
		if err != nil {
			warn("payment", err)
			return
		}
		payment = p
	}()
	wg.Wait()

	summary.Customer = user
	summary.Payment = payment
	summary.Items = buildItems(order.Items, products)
	return summary, nil
}

func distinctProductIDs(items []OrderItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// buildItems enriches order lines with catalog names where available. The
// unit price always comes from the order itself.
func buildItems(items []OrderItem, products []Product) []SummaryItem {
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	out := make([]SummaryItem, 0, len(items))
	for _, item := range items {
		out = append(out, SummaryItem{
			ProductID:   item.ProductID,
			ProductName: names[item.ProductID],
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.UnitPrice * float64(item.Quantity),
		})
	}
	return out
}

// Handler serves GET /orders/{orderID}/summary.
func (a *Aggregator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			httputil.WriteError(w, r, apperrors.InvalidInput("order id is required"), a.logger)
			return
		}

		summary, err := a.Summarize(r.Context(), orderID, r.Header.Get("Authorization"))
		if err != nil {
			httputil.WriteError(w, r, err, a.logger)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
	}
}
