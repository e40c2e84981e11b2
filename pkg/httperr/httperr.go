// Package httperr carries non-2xx provider responses as typed errors so
// callers can branch on the status code and Retry-After header.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

const maxBody = 512

// Error is an unexpected HTTP status from an upstream API.
type Error struct {
	Service    string
	StatusCode int
	RetryAfter string
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Throttled reports whether the upstream answered 429.
func (e *Error) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// FromResponse builds an Error from a response and its already-read body.
func FromResponse(service string, resp *http.Response, body []byte) *Error {
	b := string(body)
	if len(b) > maxBody {
		b = b[:maxBody]
	}
	return &Error{
		Service:    service,
		StatusCode: resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
		Body:       b,
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
