package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/nearandnow/cart-service/internal/domain/cart"
)

const instrumentationName = "github.com/nearandnow/cart-service/internal/domain/checkout"

// CartAccess runs fn with exclusive access to a cart engine.
type CartAccess interface {
	Update(fn func(e *cart.Engine) error) error
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for checkout metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithClock overrides the time source used for journal records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service validates a cart for checkout, submits it and records the outcome.
type Service struct {
	submitter Submitter
	journal   Journal
	now       func() time.Time

	tracer   trace.Tracer
	meter    metric.Meter
	attempts metric.Int64Counter
}

// NewService creates a checkout Service. A nil journal discards records.
func NewService(submitter Submitter, journal Journal, opts ...Option) (*Service, error) {
	if journal == nil {
		journal = NopJournal{}
	}
	s := &Service{
		submitter: submitter,
		journal:   journal,
		now:       time.Now,
		tracer:    tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:     metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	attempts, err := s.meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout.attempts counter")
	}
	s.attempts = attempts

	return s, nil
}

// Place checks out the cart behind access. Only one checkout per flow may be
// outstanding. The guards run against a snapshot of the cart taken under
// access; the cart is not held during the backend call. On success the cart
// and its coupon are cleared. On failure the cart is left as it was and an
// error matching ErrSubmissionFailed is returned.
func (s *Service) Place(ctx context.Context, sessionKey string, access CartAccess, flow *Flow, req Request) (*Receipt, error) {
	method, err := ParsePaymentMethod(string(req.Payment))
	if err != nil {
		s.count(ctx, "rejected")
		return nil, err
	}
	req.Payment = method

	if err := flow.Begin(); err != nil {
		s.count(ctx, "in_flight")
		return nil, err
	}
	defer flow.End()

	var sub *Submission
	if err := access.Update(func(e *cart.Engine) error {
		var err error
		sub, err = s.prepare(e, req)
		return err
	}); err != nil {
		s.count(ctx, "rejected")
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "checkout.Place",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("checkout.attempt_id", sub.AttemptID.String()),
			attribute.Int("checkout.stores", len(sub.Groups)),
			attribute.String("checkout.payment", string(sub.Payment)),
		),
	)
	defer span.End()

	lg := zctx.From(ctx).With(zap.Stringer("attempt_id", sub.AttemptID))

	if err := s.submitter.SubmitOrders(ctx, sub); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		s.count(ctx, "failed")
		s.record(ctx, lg, sessionKey, sub, StatusFailed, err)

		if !errors.Is(err, ErrSubmissionFailed) {
			err = &SubmissionError{Err: err}
		}
		return nil, err
	}

	if err := access.Update(func(e *cart.Engine) error {
		e.Clear()
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}

	s.count(ctx, "submitted")
	s.record(ctx, lg, sessionKey, sub, StatusSubmitted, nil)
	lg.Info("Checkout submitted",
		zap.Int("orders", len(sub.Groups)),
		zap.Stringer("payable", sub.Quote.Payable),
	)

	return &Receipt{
		AttemptID: sub.AttemptID,
		Orders:    len(sub.Groups),
		Payable:   sub.Quote.Payable,
	}, nil
}

// prepare runs the checkout guards and snapshots everything the submission
// needs from the engine.
func (s *Service) prepare(e *cart.Engine, req Request) (*Submission, error) {
	if !req.Location.Resolved() {
		return nil, ErrMissingDeliveryLocation
	}
	if e.Len() == 0 {
		return nil, ErrEmptyCart
	}
	groups := e.Partition()
	if len(groups) > cart.MaxStores {
		return nil, ErrPartitionLimitExceeded
	}

	sub := &Submission{
		AttemptID: uuid.New(),
		Payment:   req.Payment,
		Location:  *req.Location,
		Notes:     req.Notes,
		Groups:    groups,
		Quote:     e.Quote(),
	}
	if c := e.Coupon(); c != nil {
		sub.CouponCode = c.Code
	}
	return sub, nil
}

func (s *Service) record(ctx context.Context, lg *zap.Logger, sessionKey string, sub *Submission, status Status, cause error) {
	a := &Attempt{
		ID:         sub.AttemptID,
		SessionKey: sessionKey,
		Status:     status,
		Payment:    sub.Payment,
		Stores:     len(sub.Groups),
		Projected:  sub.Quote.Projected,
		Discount:   sub.Quote.Discount,
		Payable:    sub.Quote.Payable,
		CouponCode: sub.CouponCode,
		CreatedAt:  s.now().UTC(),
	}
	if cause != nil {
		a.Error = cause.Error()
	}
	if err := s.journal.Record(ctx, a); err != nil {
		lg.Warn("Failed to record checkout attempt", zap.Error(err))
	}
}

func (s *Service) count(ctx context.Context, result string) {
	s.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
