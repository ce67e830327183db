package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotInitialized is returned when the cache directory has not been set up.
var ErrNotInitialized = errors.New("cache not initialized (run 'tm init' or 'tm sync' first)")

// TransientError wraps a network or rate-limit failure that was (or may be)
// retried. RetryAfter carries the server-requested cooldown when known.
type TransientError struct {
	Op         string
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %v (retry after %s)", e.Op, e.Err, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IntegrityError reports a data problem in the remote record set: a cycle in
// the parent chain or a duplicate id with conflicting content. The offending
// record is excluded from analysis; the run continues.
type IntegrityError struct {
	TaskID string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("data integrity: task %s: %s", e.TaskID, e.Reason)
}

// ConfigError reports a missing or invalid configuration value. Fatal before
// any fetch.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

// RenderError reports a failure writing a report artifact. It never rolls
// back computed analysis or invalidates the cache.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
