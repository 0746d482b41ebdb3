package main

import (
	"bufio"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"

	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/wire"
)

const progressEvery = 10_000

// writeAttempts drains in, writing each attempt as one JSON line into a
// gzip stream on w. It returns the number of attempts written. The input
// is always drained so the producer never blocks on an early failure.
func writeAttempts(w io.Writer, in <-chan checkout.Attempt, progress func(n int)) (int, error) {
	gz := pgzip.NewWriter(w)
	buf := bufio.NewWriter(gz)
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	var (
		n   int
		err error
	)
	for a := range in {
		if err != nil {
			continue
		}
		e.Reset()
		encodeAttempt(e, a)
		if _, err = buf.Write(e.Bytes()); err != nil {
			err = errors.Wrap(err, "write attempt")
			continue
		}
		if err = buf.WriteByte('\n'); err != nil {
			err = errors.Wrap(err, "write attempt")
			continue
		}
		n++
		if progress != nil && n%progressEvery == 0 {
			progress(n)
		}
	}
	if err != nil {
		return n, err
	}
	if err := buf.Flush(); err != nil {
		return n, errors.Wrap(err, "flush")
	}
	if err := gz.Close(); err != nil {
		return n, errors.Wrap(err, "close gzip stream")
	}
	return n, nil
}

func encodeAttempt(e *jx.Encoder, a checkout.Attempt) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(a.ID.String()) })
		e.Field("session_key", func(e *jx.Encoder) { e.Str(a.SessionKey) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(a.Status)) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(a.Payment)) })
		e.Field("stores", func(e *jx.Encoder) { e.Int(a.Stores) })
		e.Field("projected", func(e *jx.Encoder) { wire.EncodeMoney(e, a.Projected) })
		e.Field("discount", func(e *jx.Encoder) { wire.EncodeMoney(e, a.Discount) })
		e.Field("payable", func(e *jx.Encoder) { wire.EncodeMoney(e, a.Payable) })
		e.Field("coupon_code", func(e *jx.Encoder) { wire.EncodeOptStr(e, a.CouponCode) })
		e.Field("error", func(e *jx.Encoder) { wire.EncodeOptStr(e, a.Error) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(a.CreatedAt.UTC().Format(time.RFC3339Nano)) })
	})
}
