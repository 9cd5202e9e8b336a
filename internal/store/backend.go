package store

import (
	"context"
	"sort"
	"time"

	"github.com/rmoraes/braseiro/app/models"
)

// Backend is the uniform persistence contract both stores implement.
// The manager selects one backend at initialization and dispatches every
// operation to it; nothing above the manager ever learns which backend
// is active.
type Backend interface {
	Name() string

	// WaitReady blocks until the backend is usable or the bounded wait
	// expires, in which case it reports ErrInitialization.
	WaitReady(ctx context.Context) error

	SaveCart(ctx context.Context, items []models.CartEntry) error
	LoadCart(ctx context.Context) ([]models.CartEntry, error)
	ClearCart(ctx context.Context) error

	SaveOrder(ctx context.Context, o *models.Order) error
	QueryOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	ClearOrders(ctx context.Context) error

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	ListSettings(ctx context.Context) (map[string]string, error)

	SaveProduct(ctx context.Context, p *models.Product) error
	LoadProducts(ctx context.Context) ([]models.Product, error)
	ClearProducts(ctx context.Context) error

	Close() error
}

// OrderFilter narrows a QueryOrders call. Zero value means "everything".
// Date wins over From/To and Period; From/To win over Period.
// Results are always ordered by timestamp descending.
type OrderFilter struct {
	Date          *time.Time // exact calendar day
	From          *time.Time // inclusive lower bound
	To            *time.Time // inclusive upper bound
	Period        string     // "", "today", "week", "month"
	PaymentMethod string
	DeliveryType  string
}

// timeRange resolves From/To and Period into concrete bounds.
func (f OrderFilter) timeRange(now time.Time) (from, to *time.Time) {
	if f.From != nil || f.To != nil {
		return f.From, f.To
	}
	switch f.Period {
	case "today":
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &start, nil
	case "week":
		start := now.AddDate(0, 0, -7)
		return &start, nil
	case "month":
		start := now.AddDate(0, -1, 0)
		return &start, nil
	}
	return nil, nil
}

// matches applies the filter to a single order in memory. The flat
// backend has no indexes, so all of its filtering goes through here.
func (f OrderFilter) matches(o models.Order, now time.Time) bool {
	if f.Date != nil {
		if o.Day() != f.Date.Format(models.DayKeyLayout) {
			return false
		}
	} else {
		from, to := f.timeRange(now)
		if from != nil && o.Timestamp.Before(*from) {
			return false
		}
		if to != nil && o.Timestamp.After(*to) {
			return false
		}
	}
	if f.PaymentMethod != "" && o.Payment.Method != f.PaymentMethod {
		return false
	}
	if f.DeliveryType != "" && o.Delivery.Type != f.DeliveryType {
		return false
	}
	return true
}

// sortOrdersDesc orders newest-first, the only ordering QueryOrders returns.
func sortOrdersDesc(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Timestamp.After(orders[j].Timestamp)
	})
}
