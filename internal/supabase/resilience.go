package supabase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"
)

// =============================================================================
// Retry Policy
// =============================================================================

// RetryConfig controls how PostgREST reads are retried.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter spreads each backoff by up to this fraction in either direction.
	Jitter float64
	// RetryableStatusCodes are retried; after the last attempt the response
	// is handed back so its error payload can be decoded.
	RetryableStatusCodes []int
}

// DefaultRetryConfig returns the retry policy used for catalog reads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if limit := float64(c.MaxBackoff); limit > 0 && d > limit {
		d = limit
	}
	if c.Jitter > 0 {
		d += d * c.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

func (c RetryConfig) retryableStatus(code int) bool {
	return slices.Contains(c.RetryableStatusCodes, code)
}

// retryableError reports whether a transport error is worth another
// attempt. Cancellation never is.
func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// =============================================================================
// Circuit Breaker
// =============================================================================

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold half-open successes close it again.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a trial request.
	Timeout time.Duration
	// OnStateChange runs under the breaker lock and must not call back
	// into the breaker.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the default breaker settings.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// ErrCircuitOpen is returned while the database is considered unavailable.
var ErrCircuitOpen = errors.New("supabase: circuit breaker is open")

// CircuitBreaker stops calls to the database after repeated failures.
type CircuitBreaker struct {
	mu        sync.Mutex
	cfg       CircuitBreakerConfig
	state     CircuitState
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow returns ErrCircuitOpen while the circuit is open. Once the timeout
// has passed the breaker moves to half-open and lets requests through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.openedAt) < cb.cfg.Timeout {
			return ErrCircuitOpen
		}
		cb.setState(CircuitHalfOpen)
	}
	return nil
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.setState(CircuitClosed)
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.setState(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.setState(CircuitOpen)
	}
}

func (cb *CircuitBreaker) setState(next CircuitState) {
	prev := cb.state
	cb.state = next
	cb.failures = 0
	cb.successes = 0
	if next == CircuitOpen {
		cb.openedAt = cb.now()
	}
	if cb.cfg.OnStateChange != nil && prev != next {
		cb.cfg.OnStateChange(prev, next)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// =============================================================================
// Transport
// =============================================================================

// Transport is an http.RoundTripper that retries transient PostgREST
// failures and trips a circuit breaker on server errors.
type Transport struct {
	base    http.RoundTripper
	retry   RetryConfig
	breaker *CircuitBreaker
}

// NewTransport wraps base, or a pooled default transport when base is nil.
func NewTransport(base http.RoundTripper, retry RetryConfig, breaker CircuitBreakerConfig) *Transport {
	if base == nil {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		}
	}
	return &Transport{base: base, retry: retry, breaker: NewCircuitBreaker(breaker)}
}

// RoundTrip sends req, retrying per the retry policy. Requests with a body
// are replayed through GetBody.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.breaker.Allow(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= t.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(t.retry.backoff(attempt)):
			}

			next := req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				next.Body = body
			}
			req = next
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			lastErr = err
			if retryableError(err) && attempt < t.retry.MaxRetries {
				continue
			}
			break
		}

		if t.retry.retryableStatus(resp.StatusCode) && attempt < t.retry.MaxRetries {
			resp.Body.Close()
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError || t.retry.retryableStatus(resp.StatusCode) {
			t.breaker.RecordFailure()
		} else {
			t.breaker.RecordSuccess()
		}
		return resp, nil
	}

	t.breaker.RecordFailure()
	return nil, lastErr
}
