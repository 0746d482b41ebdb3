package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nearandnow/cart-service/internal/domain/checkout"
)

const (
	insertAttemptSQL = `INSERT INTO checkout_attempts
	(id, session_key, status, payment, stores, projected, discount, payable, coupon_code, error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	listAttemptsSQL = `SELECT id, session_key, status, payment, stores, projected, discount, payable,
	coupon_code, error, created_at
	FROM checkout_attempts
	WHERE session_key = $1
	ORDER BY created_at DESC
	LIMIT $2`

	exportAttemptsSQL = `SELECT id, session_key, status, payment, stores, projected, discount, payable,
	coupon_code, error, created_at
	FROM checkout_attempts
	WHERE created_at >= $1
	ORDER BY created_at, id`
)

var (
	_ checkout.Journal = (*Journal)(nil)
	_ checkout.History = (*Journal)(nil)
)

// Journal implements checkout.Journal backed by PostgreSQL.
type Journal struct {
	pool *pgxpool.Pool
}

// NewJournal returns a Journal that uses the given pool.
func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Record inserts one checkout attempt.
func (j *Journal) Record(ctx context.Context, a *checkout.Attempt) error {
	_, err := j.pool.Exec(ctx, insertAttemptSQL,
		a.ID, a.SessionKey, string(a.Status), string(a.Payment), a.Stores,
		a.Projected, a.Discount, a.Payable, a.CouponCode, a.Error, a.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert checkout attempt %s", a.ID)
	}
	return nil
}

// Attempts returns the most recent attempts of a session, newest first.
func (j *Journal) Attempts(ctx context.Context, sessionKey string, limit int) ([]checkout.Attempt, error) {
	rows, err := j.pool.Query(ctx, listAttemptsSQL, sessionKey, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query checkout attempts")
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (checkout.Attempt, error) {
		return scanAttempt(row)
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan checkout attempts")
	}
	return attempts, nil
}

// Export calls fn for every attempt created at or after since, oldest first.
// Iteration stops at the first error returned by fn.
func (j *Journal) Export(ctx context.Context, since time.Time, fn func(a checkout.Attempt) error) error {
	rows, err := j.pool.Query(ctx, exportAttemptsSQL, since)
	if err != nil {
		return errors.Wrap(err, "query checkout attempts")
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return errors.Wrap(err, "scan checkout attempt")
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "read checkout attempts")
	}
	return nil
}

func scanAttempt(row pgx.Row) (checkout.Attempt, error) {
	var (
		a       checkout.Attempt
		status  string
		payment string
	)
	err := row.Scan(
		&a.ID, &a.SessionKey, &status, &payment, &a.Stores,
		&a.Projected, &a.Discount, &a.Payable, &a.CouponCode, &a.Error, &a.CreatedAt,
	)
	a.Status = checkout.Status(status)
	a.Payment = checkout.PaymentMethod(payment)
	return a, err
}

// Ping checks the database connection.
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}
