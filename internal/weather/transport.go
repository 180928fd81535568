package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")

	// ErrCircuitOpen is returned without contacting the provider while its
	// breaker is open.
	ErrCircuitOpen = errors.New("weather: circuit breaker open")
)

// Option customises a provider.
type Option func(*provider)

// WithBaseURL points the provider at a different endpoint.
func WithBaseURL(u string) Option {
	return func(p *provider) { p.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *provider) { p.client = c }
}

// provider holds what every concrete source shares: an HTTP client, an
// endpoint and a circuit breaker named after the provider.
type provider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func newProvider(name, baseURL string, opts []Option) provider {
	p := provider{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(&p)
	}
	p.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return p
}

// getJSON performs one GET through the breaker and decodes the body into dst.
// There is no retry: a failed forecast fails the request that needed it.
func (p *provider) getJSON(ctx context.Context, url string, dst any) error {
	body, err := p.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: %w", p.name, ErrCircuitOpen)
		}
		return fmt.Errorf("%s: %w", p.name, err)
	}

	raw, ok := body.([]byte)
	if !ok {
		return fmt.Errorf("%s: unexpected result type from circuit breaker", p.name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", p.name, err)
	}
	return nil
}

// Name returns the provider's name.
func (p *provider) Name() string {
	return p.name
}
