package persistence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vcard-ledger/internal/logger"
	"github.com/vcard-ledger/internal/platform/metrics"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// ErrSerializationConflict is returned once a unit of work exhausted its retries
var ErrSerializationConflict = errors.New("serialization conflict: retries exhausted")

// RetryPolicy controls how serialization failures are retried. Delay before
// retry n (0-based) is BaseBackoff << n.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy retries three times after 100ms, 200ms and 400ms
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseBackoff: 100 * time.Millisecond}

// IsSerializationFailure reports whether err is a retryable concurrency failure
func IsSerializationFailure(err error) bool {
	if errors.Is(err, ErrSerializationConflict) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return errors.Is(err, errRetryable)
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

// errRetryable lets non-Postgres stores signal a conflict that should be retried
var errRetryable = errors.New("retryable conflict")

// MarkRetryable wraps err so IsSerializationFailure reports true for it
func MarkRetryable(err error) error {
	return errors.Join(errRetryable, err)
}

// newBackOff doubles BaseBackoff on every retry without jitter and stops after
// MaxRetries or when ctx ends.
func newBackOff(ctx context.Context, policy RetryPolicy) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.BaseBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = policy.BaseBackoff << policy.MaxRetries
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.MaxRetries)), ctx)
}

// RetrySerializable runs attempt once and then up to policy.MaxRetries more times
// while it fails with a serialization failure.
func RetrySerializable(ctx context.Context, policy RetryPolicy, base *slog.Logger, attempt func(ctx context.Context) error) error {
	log := logger.FromContext(ctx, base)
	retries := 0
	operation := func() error {
		err := attempt(ctx)
		if err != nil && !IsSerializationFailure(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		retries++
		metrics.SerializationRetries.Inc()
		log.Warn("Serialization conflict, retrying unit of work",
			"attempt", retries,
			"max_retries", policy.MaxRetries,
			"backoff", delay,
			"error", err)
	}

	err := backoff.RetryNotify(operation, newBackOff(ctx, policy), notify)
	if err == nil || !IsSerializationFailure(err) {
		return err
	}

	log.Error("Serialization conflict persisted after retries",
		"max_retries", policy.MaxRetries,
		"error", err)
	return errors.Join(ErrSerializationConflict, err)
}
