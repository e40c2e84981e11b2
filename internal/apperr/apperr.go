// Package apperr defines the error taxonomy shared by the pipeline, the
// scheduler and the HTTP layer. Call sites wrap these sentinels with eris so
// errors.Is keeps working through the chain.
package apperr

import (
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
)

var (
	// ErrConfiguration marks a missing or invalid setting, e.g. an absent provider credential.
	ErrConfiguration = eris.New("configuration error")
	// ErrQuotaExceeded marks a client-level or provider-level quota ceiling.
	ErrQuotaExceeded = eris.New("quota exceeded")
	// ErrRateLimited marks a provider that kept throttling after bounded retries.
	ErrRateLimited = eris.New("rate limited")
	// ErrValidation marks malformed input.
	ErrValidation = eris.New("validation error")
	// ErrProvider marks a network or HTTP failure from an external provider.
	ErrProvider = eris.New("provider error")
	// ErrPersistence marks a store or transaction failure.
	ErrPersistence = eris.New("persistence error")
	// ErrNotFound marks a missing entity.
	ErrNotFound = eris.New("not found")
	// ErrInvalidState marks a lifecycle transition that is not allowed.
	ErrInvalidState = eris.New("invalid state transition")
)

// Kind returns the short taxonomy name of err, or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}

// HTTPStatus maps err to the status code the API returns for it.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "invalid_state":
		return http.StatusConflict
	case "quota_exceeded", "rate_limited":
		return http.StatusTooManyRequests
	case "provider":
		return http.StatusBadGateway
	case "configuration":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
