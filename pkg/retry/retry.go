package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Policy bounds how often a collaborator call is attempted
type Policy struct {
	Attempts int           `json:"attempts"`
	Backoff  time.Duration `json:"backoff"`
}

// DefaultPolicy returns the policy used by the external clients
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Backoff:  time.Second,
	}
}

// StatusError is returned when a collaborator answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether err is transient: network failures, 429 and 5xx.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var permanent *permanentError
	return !errors.As(err, &permanent)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do stops retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy is exhausted.
// The wait before attempt n+1 is n*Backoff.
func Do(ctx context.Context, logger *zap.Logger, op string, policy Policy, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !Retryable(err) || attempt == attempts-1 {
			break
		}

		logger.Warn("Request failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Backoff * time.Duration(attempt+1)):
		}
	}

	return fmt.Errorf("%s failed: %w", op, lastErr)
}

// DoRequest builds and sends a request under the policy and returns the response body.
// build is called once per attempt so request bodies can be replayed.
func DoRequest(ctx context.Context, client *http.Client, logger *zap.Logger, op string, policy Policy, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var body []byte
	err := Do(ctx, logger, op, policy, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
