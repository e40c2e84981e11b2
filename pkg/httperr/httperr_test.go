package httperr

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "12")

	err := FromResponse("apollo", resp, []byte(strings.Repeat("x", 2000)))
	assert.True(t, err.Throttled())
	assert.Equal(t, "12", err.RetryAfter)
	assert.Len(t, err.Body, maxBody)
	assert.Contains(t, err.Error(), "apollo: unexpected status 429")
}

func TestAs(t *testing.T) {
	inner := &Error{Service: "hunter", StatusCode: http.StatusBadGateway}
	wrapped := eris.Wrap(inner, "hunter: verify")

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, got.StatusCode)
	assert.False(t, got.Throttled())

	_, ok = As(eris.New("plain"))
	assert.False(t, ok)
}
