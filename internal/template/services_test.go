package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hovel-sh/hovel/internal/model"
)

const renderedSpec = `services:
  app-alpha:
    build: .
    ports:
      - "8001:8000"
  db-alpha:
    image: postgres:16
  cache-alpha:
    image: redis:7
networks:
  backend: {}
volumes:
  pgdata: {}
`

// parseServices unmarshals a filtered spec and returns its service keys.
func parseServices(t *testing.T, spec []byte) map[string]any {
	t.Helper()
	var doc struct {
		Services map[string]any `yaml:"services"`
	}
	require.NoError(t, yaml.Unmarshal(spec, &doc))
	return doc.Services
}

// TestFilterServicesSubset keeps exactly the requested services.
func TestFilterServicesSubset(t *testing.T) {
	out, err := FilterServices([]byte(renderedSpec), "alpha", []string{"app", "db"})
	require.NoError(t, err)

	services := parseServices(t, out)
	assert.Len(t, services, 2)
	assert.Contains(t, services, "app-alpha")
	assert.Contains(t, services, "db-alpha")
	assert.NotContains(t, services, "cache-alpha")
}

// TestFilterServicesPreservesOtherStanzas verifies networks and volumes
// survive filtering untouched.
func TestFilterServicesPreservesOtherStanzas(t *testing.T) {
	out, err := FilterServices([]byte(renderedSpec), "alpha", []string{"app"})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Contains(t, doc, "networks")
	assert.Contains(t, doc, "volumes")
}

// TestFilterServicesUnknown rejects services the spec does not declare.
func TestFilterServicesUnknown(t *testing.T) {
	_, err := FilterServices([]byte(renderedSpec), "alpha", []string{"app", "nope"})
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidRequest, model.KindOf(err))
	assert.Contains(t, err.Error(), "unknown service: nope")
}

// TestFilterServicesEmptySelection rejects an empty requested set.
func TestFilterServicesEmptySelection(t *testing.T) {
	_, err := FilterServices([]byte(renderedSpec), "alpha", nil)
	require.Error(t, err)
	assert.Equal(t, model.KindTemplateError, model.KindOf(err))
}

// TestFilterServicesCaseInsensitive matches requested names and the
// branch suffix case-insensitively.
func TestFilterServicesCaseInsensitive(t *testing.T) {
	out, err := FilterServices([]byte(renderedSpec), "ALPHA", []string{"APP"})
	require.NoError(t, err)

	services := parseServices(t, out)
	assert.Len(t, services, 1)
	assert.Contains(t, services, "app-alpha")
}

// TestFilterServicesUnsuffixedKeys handles templates whose service keys
// carry no branch suffix at all.
func TestFilterServicesUnsuffixedKeys(t *testing.T) {
	spec := "services:\n  app:\n    build: .\n  worker:\n    image: busybox\n"
	out, err := FilterServices([]byte(spec), "alpha", []string{"worker"})
	require.NoError(t, err)

	services := parseServices(t, out)
	assert.Len(t, services, 1)
	assert.Contains(t, services, "worker")
}

// TestFilterServicesNoServicesStanza rejects a spec without services.
func TestFilterServicesNoServicesStanza(t *testing.T) {
	_, err := FilterServices([]byte("networks:\n  backend: {}\n"), "alpha", []string{"app"})
	require.Error(t, err)
	assert.Equal(t, model.KindTemplateError, model.KindOf(err))
}

// TestTemplateServices returns sorted base names with the placeholder
// suffix stripped.
func TestTemplateServices(t *testing.T) {
	names, err := TemplateServices([]byte(composeTemplate))
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "db"}, names)
}

// TestServiceRefs maps base names back to the rendered spec's keys.
func TestServiceRefs(t *testing.T) {
	refs, err := ServiceRefs([]byte(renderedSpec), "alpha", []string{"db", "app"})
	require.NoError(t, err)
	assert.Equal(t, []string{"db-alpha", "app-alpha"}, refs)

	_, err = ServiceRefs([]byte(renderedSpec), "alpha", []string{"ghost"})
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidRequest, model.KindOf(err))
}

// TestStripBranchSuffix pins the suffix-stripping rules.
func TestStripBranchSuffix(t *testing.T) {
	tests := []struct {
		key    string
		branch string
		want   string
	}{
		{"app-alpha", "alpha", "app"},
		{"app-ALPHA", "alpha", "app"},
		{"app-{{BRANCH_NAME}}", "alpha", "app"},
		{"app-{{BRANCH_NAME}}", "", "app"},
		{"app", "alpha", "app"},
		{"alpha", "alpha", "alpha"},       // suffix must not consume the whole name
		{"db-beta", "alpha", "db-beta"},   // foreign suffix untouched
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripBranchSuffix(tt.key, tt.branch), "%s / %s", tt.key, tt.branch)
	}
}

// TestRequiredSubstitutions derives the terminal port from the branch
// port with the fixed offset.
func TestRequiredSubstitutions(t *testing.T) {
	subs := RequiredSubstitutions("alpha", 8001, "key")
	assert.Equal(t, "alpha", subs[KeyBranchName])
	assert.Equal(t, "8001", subs[KeyPort])
	assert.Equal(t, "9001", subs[KeyPortTTYD])
	assert.Equal(t, "key", subs[KeyGeminiKey])
}
