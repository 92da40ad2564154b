package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateName exercises the branch-name rules: alphanumeric start,
// alphanumerics/underscores/hyphens thereafter, 63 characters max.
func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "alpha", false},
		{"single char", "a", false},
		{"digits", "feature-123", false},
		{"underscore", "my_branch", false},
		{"mixed case", "Feature-Auth", false},
		{"max length", "a12345678901234567890123456789012345678901234567890123456789012", false},
		{"empty", "", true},
		{"leading hyphen", "-alpha", true},
		{"leading underscore", "_alpha", true},
		{"slash", "feature/auth", true},
		{"dot", "v1.2", true},
		{"space", "my branch", true},
		{"too long", "a1234567890123456789012345678901234567890123456789012345678901234", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindInvalidRequest, KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestParseStatus verifies round-tripping and rejection of unknown states.
func TestParseStatus(t *testing.T) {
	for _, valid := range []Status{StatusCreated, StatusBuilding, StatusRunning, StatusStopped, StatusFailed, StatusDeleting} {
		parsed, err := ParseStatus(string(valid))
		require.NoError(t, err)
		assert.Equal(t, valid, parsed)
	}

	_, err := ParseStatus("paused")
	assert.Error(t, err)
}

// TestBranchServiceHelpers covers HasService and the primary-service rule.
func TestBranchServiceHelpers(t *testing.T) {
	b := &Branch{Services: []string{"app", "db"}}

	assert.True(t, b.HasService("app"))
	assert.True(t, b.HasService("db"))
	assert.False(t, b.HasService("cache"))
	assert.Equal(t, "app", b.PrimaryService(), "primary service is the first of the set")

	empty := &Branch{}
	assert.Equal(t, DefaultService, empty.PrimaryService())
}

// TestAnyRunning verifies the aggregate liveness helper.
func TestAnyRunning(t *testing.T) {
	assert.False(t, AnyRunning(nil))
	assert.False(t, AnyRunning([]ServiceStatus{{Service: "app", State: "exited"}}))
	assert.True(t, AnyRunning([]ServiceStatus{
		{Service: "app", State: "exited"},
		{Service: "db", State: "running"},
	}))
}

// TestErrorKinds verifies kind extraction through wrapping.
func TestErrorKinds(t *testing.T) {
	base := E(KindNotFound, "branch \"x\" not found")
	assert.Equal(t, KindNotFound, KindOf(base))
	assert.Equal(t, 404, KindNotFound.HTTPStatus())

	wrapped := WrapE(KindVCSFailed, "create failed", base)
	assert.Equal(t, KindVCSFailed, KindOf(wrapped), "outermost kind wins")
	assert.True(t, errors.Is(wrapped, base) || errors.As(wrapped, new(*Error)))

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

// TestKindHTTPStatus pins the kind-to-status mapping the API relies on.
func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidRequest, 400},
		{KindConflict, 409},
		{KindCredentialInvalid, 401},
		{KindCredentialTransient, 503},
		{KindPortExhausted, 503},
		{KindNotFound, 404},
		{KindVCSFailed, 500},
		{KindBuildFailed, 500},
		{KindTimeout, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.HTTPStatus(), "kind %s", tt.kind)
	}
}
