package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// ErrCircuitOpen is wrapped in the FetchError returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BackoffConfig controls capped exponential backoff between attempts.
// MaxRetries 0 makes a single attempt.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// BreakerConfig controls when the breaker opens and for how long.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// ResilientSource wraps a Source with retries and a circuit breaker.
// Client errors (4xx, including a missing object) are returned as-is: they
// are neither retried nor counted against the breaker.
type ResilientSource struct {
	inner   Source
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewResilientSource wraps inner.
func NewResilientSource(inner Source, backoff BackoffConfig, breaker BreakerConfig, logger *slog.Logger) *ResilientSource {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "datasource",
		Timeout: breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breaker.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &ResilientSource{inner: inner, backoff: backoff, circuit: cb, logger: logger}
}

// attempt carries a client error through the breaker without counting it as a failure.
type attempt struct {
	data []byte
	err  error
}

// Fetch implements Source.
func (s *ResilientSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	var attempts int
	for {
		if err := ctx.Err(); err != nil {
			return nil, &domain.FetchError{Object: name, Err: err}
		}

		result, err := s.circuit.Execute(func() (interface{}, error) {
			data, err := s.inner.Fetch(ctx, name)
			if err != nil {
				if isClientError(err) {
					return attempt{err: err}, nil
				}
				return nil, err
			}
			return attempt{data: data}, nil
		})

		if err == nil {
			a, ok := result.(attempt)
			if !ok {
				return nil, &domain.FetchError{Object: name, Err: fmt.Errorf("unexpected result type from circuit breaker")}
			}
			return a.data, a.err
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.FetchError{Object: name, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
		}

		if attempts >= s.backoff.MaxRetries {
			return nil, err
		}

		delay := s.delay(attempts)
		s.logger.Warn("fetch failed, retrying", "object", name, "attempt", attempts+1, "delay", delay, "error", err)
		if !retry.SleepWithContext(ctx, delay) {
			return nil, &domain.FetchError{Object: name, Err: ctx.Err()}
		}
		attempts++
	}
}

// delay returns the wait before retry n (0-based): the initial interval,
// doubled per retry and capped at MaxInterval.
func (s *ResilientSource) delay(n int) time.Duration {
	d := s.backoff.InitialInterval
	for i := 0; i < n && d < s.backoff.MaxInterval; i++ {
		d = retry.NextBackoff(d, s.backoff.MaxInterval)
	}
	return d
}

func isClientError(err error) bool {
	var fe *domain.FetchError
	return errors.As(err, &fe) && fe.Status >= 400 && fe.Status < 500
}
