package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a line of a placed order.
type Item struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Summary is a placed order as listed for tracking.
type Summary struct {
	ID          string
	Code        string
	Status      string
	StoreID     string
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	Items       []Item
}

// DisplayCode returns the order code, falling back to the first six
// characters of the id.
func (s Summary) DisplayCode() string {
	if s.Code != "" {
		return s.Code
	}
	if len(s.ID) > 6 {
		return s.ID[:6]
	}
	return s.ID
}

// Lister lists the customer's orders.
type Lister interface {
	Orders(ctx context.Context) ([]Summary, error)
}
