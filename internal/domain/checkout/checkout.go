package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nearandnow/cart-service/internal/domain/cart"
)

// Checkout errors. Guards are evaluated in the order listed and before any
// network call is made.
var (
	ErrMissingDeliveryLocation = errors.New("delivery location required")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrPartitionLimitExceeded  = errors.New("order spans more stores than allowed")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrSubmissionInFlight      = errors.New("checkout already in progress")
	ErrSubmissionFailed        = errors.New("order submission failed")
)

// PaymentMethod is how the customer settles the order.
type PaymentMethod string

const (
	PaymentUPI PaymentMethod = "upi"
	PaymentCOD PaymentMethod = "cod"
)

// ParsePaymentMethod normalizes s into a supported payment method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentUPI, PaymentCOD:
		return m, nil
	default:
		return "", errors.Wrapf(ErrInvalidPaymentMethod, "%q", s)
	}
}

// Location is a resolved delivery location.
type Location struct {
	Label     string
	Latitude  float64
	Longitude float64
}

// Resolved reports whether the location carries a label and coordinates.
func (l *Location) Resolved() bool {
	if l == nil || strings.TrimSpace(l.Label) == "" {
		return false
	}
	return l.Latitude != 0 || l.Longitude != 0
}

// Request is the customer's checkout input.
type Request struct {
	Payment  PaymentMethod
	Location *Location
	Notes    string
}

// Submission is what gets sent to the order backend: one order per store
// group plus the delivery details.
type Submission struct {
	AttemptID  uuid.UUID
	Payment    PaymentMethod
	Location   Location
	Notes      string
	Groups     []cart.StoreGroup
	Quote      cart.Quote
	CouponCode string
}

// Receipt is returned for a successful checkout.
type Receipt struct {
	AttemptID uuid.UUID
	Orders    int
	Payable   decimal.Decimal
}

// Submitter sends a submission to the order backend.
type Submitter interface {
	SubmitOrders(ctx context.Context, s *Submission) error
}

// Status is the outcome of a checkout attempt.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Attempt is a journal record of one checkout that reached the backend.
type Attempt struct {
	ID         uuid.UUID
	SessionKey string
	Status     Status
	Payment    PaymentMethod
	Stores     int
	Projected  decimal.Decimal
	Discount   decimal.Decimal
	Payable    decimal.Decimal
	CouponCode string
	Error      string
	CreatedAt  time.Time
}

// Journal records checkout attempts.
type Journal interface {
	Record(ctx context.Context, a *Attempt) error
}

// History lists recorded attempts of a session, newest first.
type History interface {
	Attempts(ctx context.Context, sessionKey string, limit int) ([]Attempt, error)
}

// NopJournal discards all attempts.
type NopJournal struct{}

// Record implements Journal.
func (NopJournal) Record(context.Context, *Attempt) error { return nil }

// Attempts implements History.
func (NopJournal) Attempts(context.Context, string, int) ([]Attempt, error) { return nil, nil }

// SubmissionError wraps the reason a submission did not succeed. It matches
// ErrSubmissionFailed with errors.Is.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "order submission failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSubmissionFailed.
func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}
