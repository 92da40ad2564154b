// Package gemini verifies AI-provider API keys with a lightweight
// remote probe against the provider's model-listing endpoint.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/hovel-sh/hovel/internal/model"
)

// TestKey is the well-known development key. It short-circuits
// validation so local setups and the test suite never hit the network.
const TestKey = "test-api-key-for-development"

// probeTimeout bounds the validation round-trip. The probe is on the
// create request path, so it must fail fast when the provider is slow.
const probeTimeout = 10 * time.Second

// Validator checks API keys against the provider's list-models endpoint.
type Validator struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewValidator creates a Validator probing the given provider base URL.
func NewValidator(baseURL string, log zerolog.Logger) *Validator {
	return &Validator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: probeTimeout},
		log:     log,
	}
}

// Validate verifies the key. It returns nil when the provider accepts
// it, a credential-invalid error when the provider rejects it (401/403),
// and a credential-transient error on connection failures and 5xx
// responses. The caller decides retry policy; the validator never
// retries on its own.
func (v *Validator) Validate(ctx context.Context, key string) error {
	if key == "" {
		return model.E(model.KindInvalidRequest, "gemini_api_key is required")
	}
	if key == TestKey {
		v.log.Debug().Msg("development test key accepted without probe")
		return nil
	}

	probeURL := fmt.Sprintf("%s/v1beta/models?key=%s", v.baseURL, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return model.WrapE(model.KindCredentialTransient, "failed to build credential probe request", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return model.WrapE(model.KindCredentialTransient, "credential provider unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.E(model.KindCredentialInvalid, "gemini api key rejected by provider")
	case resp.StatusCode >= 500:
		return model.Ef(model.KindCredentialTransient, "credential provider returned %d", resp.StatusCode)
	default:
		// 4xx other than auth failures means the probe itself is
		// malformed from the provider's point of view; surface it as
		// transient so the operator investigates rather than the key
		// being branded invalid.
		return model.Ef(model.KindCredentialTransient, "unexpected credential probe response %d", resp.StatusCode)
	}
}
