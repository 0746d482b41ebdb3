package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nearandnow/cart-service/internal/backend"
	"github.com/nearandnow/cart-service/internal/domain/cart"
	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/domain/coupon"
	"github.com/nearandnow/cart-service/internal/domain/location"
	"github.com/nearandnow/cart-service/pkg/httpmiddleware"
)

var errUnauthorized = errors.New("bearer token required")

// badRequestError marks a request that could not be parsed.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error, msg string) error {
	return &badRequestError{err: errors.Wrap(err, msg)}
}

// apiError is the HTTP rendering of an error.
type apiError struct {
	status int
	code   string
	msg    string
}

// sentinels maps domain errors to their HTTP rendering. Order matters only
// for errors wrapping several sentinels.
var sentinels = []struct {
	err    error
	status int
	code   string
}{
	{errUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{backend.ErrNoToken, http.StatusUnauthorized, "unauthorized"},
	{cart.ErrStoreLimitExceeded, http.StatusConflict, "store_limit_exceeded"},
	{checkout.ErrSubmissionInFlight, http.StatusConflict, "checkout_in_progress"},
	{checkout.ErrMissingDeliveryLocation, http.StatusUnprocessableEntity, "missing_delivery_location"},
	{checkout.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{checkout.ErrPartitionLimitExceeded, http.StatusUnprocessableEntity, "partition_limit_exceeded"},
	{checkout.ErrInvalidPaymentMethod, http.StatusUnprocessableEntity, "invalid_payment_method"},
	{cart.ErrInvalidItem, http.StatusUnprocessableEntity, "invalid_item"},
	{coupon.ErrInvalidCoupon, http.StatusUnprocessableEntity, "invalid_coupon"},
	{location.ErrInvalidLocation, http.StatusUnprocessableEntity, "invalid_location"},
	{checkout.ErrSubmissionFailed, http.StatusBadGateway, "submission_failed"},
}

func classify(err error) apiError {
	for _, s := range sentinels {
		if !errors.Is(err, s.err) {
			continue
		}
		msg := err.Error()
		if s.status >= http.StatusInternalServerError {
			msg = s.err.Error()
		}
		return apiError{status: s.status, code: s.code, msg: msg}
	}

	var (
		bad      *badRequestError
		status   *backend.StatusError
		rejected *backend.RejectedError
	)
	switch {
	case errors.As(err, &bad):
		return apiError{status: http.StatusBadRequest, code: "bad_request", msg: err.Error()}
	case errors.As(err, &status):
		switch status.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apiError{status: http.StatusUnauthorized, code: "unauthorized", msg: "backend refused the token"}
		case http.StatusNotFound:
			return apiError{status: http.StatusNotFound, code: "not_found", msg: "not found"}
		}
		return apiError{status: http.StatusBadGateway, code: "backend_error", msg: "backend unavailable"}
	case errors.As(err, &rejected):
		return apiError{status: http.StatusBadGateway, code: "backend_rejected", msg: rejected.Error()}
	}
	return apiError{status: http.StatusInternalServerError, code: "internal", msg: "internal error"}
}

// fail writes err as a JSON error response. Server side failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Warn("Request failed",
			zap.String("code", e.code),
			zap.Error(err),
		)
	}
	httpmiddleware.WriteError(w, e.status, e.code, e.msg)
}
