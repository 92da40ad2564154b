package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hovel-sh/hovel/internal/model"
)

// probeServer returns an httptest server answering the list-models
// probe with the given status, and records the key it received.
func probeServer(t *testing.T, status int, gotKey *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		if gotKey != nil {
			*gotKey = r.URL.Query().Get("key")
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestValidateOK accepts a key the provider answers 200 for.
func TestValidateOK(t *testing.T) {
	var gotKey string
	srv := probeServer(t, http.StatusOK, &gotKey)

	v := NewValidator(srv.URL, zerolog.Nop())
	err := v.Validate(context.Background(), "real-key")
	require.NoError(t, err)
	assert.Equal(t, "real-key", gotKey, "key travels as a query parameter")
}

// TestValidateInvalid maps 401 and 403 to the credential-invalid kind.
func TestValidateInvalid(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := probeServer(t, status, nil)
		v := NewValidator(srv.URL, zerolog.Nop())

		err := v.Validate(context.Background(), "bad-key")
		require.Error(t, err)
		assert.Equal(t, model.KindCredentialInvalid, model.KindOf(err), "status %d", status)
	}
}

// TestValidateTransient maps 5xx responses to the transient kind.
func TestValidateTransient(t *testing.T) {
	srv := probeServer(t, http.StatusInternalServerError, nil)
	v := NewValidator(srv.URL, zerolog.Nop())

	err := v.Validate(context.Background(), "any-key")
	require.Error(t, err)
	assert.Equal(t, model.KindCredentialTransient, model.KindOf(err))
}

// TestValidateUnreachable maps connection failure to the transient kind.
func TestValidateUnreachable(t *testing.T) {
	srv := probeServer(t, http.StatusOK, nil)
	srv.Close() // nothing listening anymore

	v := NewValidator(srv.URL, zerolog.Nop())
	err := v.Validate(context.Background(), "any-key")
	require.Error(t, err)
	assert.Equal(t, model.KindCredentialTransient, model.KindOf(err))
}

// TestValidateTestKey short-circuits the development key without any
// network traffic.
func TestValidateTestKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	v := NewValidator(srv.URL, zerolog.Nop())
	require.NoError(t, v.Validate(context.Background(), TestKey))
	assert.False(t, called, "test key must not hit the provider")
}

// TestValidateEmptyKey rejects an empty key as an invalid request, not
// a credential failure.
func TestValidateEmptyKey(t *testing.T) {
	v := NewValidator("http://unused", zerolog.Nop())
	err := v.Validate(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidRequest, model.KindOf(err))
}
