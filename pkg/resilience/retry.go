package resilience

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// RetryConfig controls the retry policy for transient transport failures.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries uint64
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponentially growing wait.
	MaxDelay time.Duration
	// Jitter is the randomization factor (0-1) applied to each wait.
	Jitter float64
}

// DefaultRetryConfig mirrors the transport defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
		Jitter:     0.5,
	}
}

// Notify is invoked before each retry sleep with the attempt's error and the
// upcoming wait duration. The transport uses it to rotate fingerprints.
type Notify func(err error, wait time.Duration)

// Retry runs op with exponential backoff. retryable decides whether an error
// is worth another attempt; anything else aborts immediately and is returned
// unchanged. After MaxRetries additional attempts the last error is returned
// unchanged as well.
func Retry(ctx context.Context, cfg RetryConfig, retryable func(error) bool, notify Notify, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BaseDelay
	exp.MaxInterval = cfg.MaxDelay
	exp.RandomizationFactor = cfg.Jitter
	exp.MaxElapsedTime = 0

	policy := backoff.WithMaxRetries(backoff.WithContext(exp, ctx), cfg.MaxRetries)

	wrapped := func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(err, wait)
		}
	}

	return backoff.RetryNotify(wrapped, policy, onRetry)
}
