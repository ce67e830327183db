// Package retry provides the bounded backoff policy applied to every remote
// call site.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/taskmill/taskmill/internal/types"
)

// Policy bounds how a failing operation is retried. The zero value is not
// usable; start from Default().
type Policy struct {
	MaxAttempts uint64 // total tries including the first
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxElapsed  time.Duration // overall cap across all attempts
}

// Default returns the policy used for page fetches and attachment downloads:
// three attempts with exponential, jittered delays.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		MaxElapsed:  30 * time.Second,
	}
}

func (p Policy) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	bo.MaxElapsedTime = p.MaxElapsed
	return backoff.WithMaxRetries(bo, p.MaxAttempts-1)
}

// Do runs op, retrying transient failures until the policy is exhausted or
// ctx is canceled. Non-transient errors stop immediately. When a transient
// error carries a server cooldown hint (rate limiting), the next delay is at
// least that hint.
func (p Policy) Do(ctx context.Context, op func() error) error {
	var hint time.Duration
	bo := &hintedBackOff{inner: p.newBackOff(), hint: &hint}
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		hint = 0
		var te *types.TransientError
		if errors.As(err, &te) {
			hint = te.RetryAfter
		}
		if retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// hintedBackOff raises the inner delay to the server-requested cooldown when
// one was provided with the last error.
type hintedBackOff struct {
	inner backoff.BackOff
	hint  *time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	d := h.inner.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if *h.hint > d {
		return *h.hint
	}
	return d
}

func (h *hintedBackOff) Reset() { h.inner.Reset() }

// retryable reports whether the error is worth another attempt: anything the
// source marked transient, plus bare network blips that escaped wrapping.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if types.IsTransient(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"i/o timeout",
		"temporary failure",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
