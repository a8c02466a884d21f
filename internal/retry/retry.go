// Package retry provides status-code-driven retry for outbound HTTP
// requests, applied as an http.RoundTripper so the policy rides inside a
// standard http.Client.
package retry

import (
	"io"
	"net/http"
	"time"
)

// Policy controls when and how a request is retried. The zero value is not
// usable; start from DefaultPolicy.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// InitialBackoff is the wait before the first retry; each subsequent
	// wait is multiplied by Multiplier.
	InitialBackoff time.Duration
	Multiplier     float64
	// RetryStatuses are the response codes that trigger a retry.
	RetryStatuses []int
}

// DefaultPolicy retries three times on transient statuses with exponential
// backoff starting at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		Multiplier:     2.0,
		RetryStatuses:  []int{429, 500, 502, 503, 504},
	}
}

// Retryable reports whether a status code triggers a retry under p.
func (p Policy) Retryable(status int) bool {
	for _, s := range p.RetryStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Transport retries requests whose responses carry a retryable status.
// Connection-level errors are returned to the caller without retrying.
type Transport struct {
	Base   http.RoundTripper
	Policy Policy

	// OnRetry, if set, is invoked before each retry with the attempt number
	// (1-based) and the status that triggered it.
	OnRetry func(attempt, status int)
}

// NewTransport wraps base with p. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, p Policy) *Transport {
	return &Transport{Base: base, Policy: p}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	backoff := t.Policy.InitialBackoff

	for attempt := 0; ; attempt++ {
		resp, err := t.base().RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if !t.Policy.Retryable(resp.StatusCode) || attempt >= t.Policy.MaxRetries {
			return resp, nil
		}

		// A request with a one-shot body cannot be replayed.
		if req.Body != nil && req.GetBody == nil {
			return resp, nil
		}

		status := resp.StatusCode
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if t.OnRetry != nil {
			t.OnRetry(attempt+1, status)
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * t.Policy.Multiplier)

		if req.Body != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}
	}
}
