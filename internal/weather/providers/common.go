package providers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

const defaultTimeout = 5 * time.Second

// NewHTTPClient returns the shared outbound client. Requests are attempted
// exactly once; resilience comes from the per-provider circuit breaker.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequest sends one request through the circuit breaker and rejects
// non-2xx responses.
func doRequest(client *resty.Client, cb *gobreaker.CircuitBreaker, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, err := send(client.R())
		if err != nil {
			return nil, err
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusTooManyRequests:
			return nil, errRateLimited
		case code >= 500:
			return nil, fmt.Errorf("%w: %d", errServerError, code)
		case code < 200 || code >= 300:
			return nil, fmt.Errorf("%w: %d", errUnexpected, code)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*resty.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
