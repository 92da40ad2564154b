package template

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hovel-sh/hovel/internal/model"
)

// composeTemplate is a two-service container-group spec in the shape
// the real app template uses: per-branch service-name suffixes,
// substituted ports, and a networks stanza that must survive filtering.
const composeTemplate = `services:
  app-{{BRANCH_NAME}}:
    build: .
    ports:
      - "{{PORT}}:8000"
    environment:
      - GEMINI_API_KEY={{GEMINI_API_KEY}}
    networks:
      - backend
  db-{{BRANCH_NAME}}:
    image: postgres:16
    networks:
      - backend
networks:
  backend: {}
`

// writeTestTemplate lays out a minimal but representative template tree.
func writeTestTemplate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write(".env", "PORT={{PORT}}\nTTYD_PORT={{PORT_TTYD}}\nBRANCH={{BRANCH_NAME}}\nEXTRA={{OPTIONAL_KEY}}\n")
	write("Dockerfile", "FROM alpine\nEXPOSE {{PORT}}\n")
	write(ComposeTemplateName, composeTemplate)
	write(".gemini/settings.template.json", "{\n  // provider credentials\n  \"apiKey\": \"{{GEMINI_API_KEY}}\"\n}\n")
	write("src/main.py", "PORT = {{PORT}}\n")
	write("docs/README.txt", "untouched {{PORT}} placeholder\n")

	// A binary asset that must be copied bytewise.
	require.NoError(t, os.WriteFile(filepath.Join(root, "logo.bin"), []byte{0x00, 0x7b, 0x7b, 0x50, 0x4f, 0x52, 0x54, 0x7d, 0x7d, 0xff}, 0o644))

	return root
}

func renderTestWorkspace(t *testing.T, services []string) (string, error) {
	t.Helper()
	root := writeTestTemplate(t)
	target := filepath.Join(t.TempDir(), "alpha")

	r := NewRenderer(zerolog.Nop())
	subs := RequiredSubstitutions("alpha", 8001, "secret-key")
	return target, r.Render(root, target, subs, services)
}

// TestRenderSubstitutesRequiredKeys verifies that no required
// placeholder survives in any rendered text artifact.
func TestRenderSubstitutesRequiredKeys(t *testing.T) {
	target, err := renderTestWorkspace(t, []string{"app"})
	require.NoError(t, err)

	for _, rel := range []string{".env", "Dockerfile", "src/main.py", ComposeOutputName} {
		data, err := os.ReadFile(filepath.Join(target, rel))
		require.NoError(t, err, rel)
		for _, key := range []string{KeyBranchName, KeyPort, KeyPortTTYD, KeyGeminiKey} {
			assert.NotContains(t, string(data), "{{"+key+"}}", "%s still contains %s", rel, key)
		}
	}

	env, err := os.ReadFile(filepath.Join(target, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "PORT=8001\n")
	assert.Contains(t, string(env), "TTYD_PORT=9001\n")
	assert.Contains(t, string(env), "BRANCH=alpha\n")
}

// TestRenderLeavesUnknownPlaceholders verifies partial templates are
// tolerated: an unknown key stays intact rather than failing the render.
func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	target, err := renderTestWorkspace(t, []string{"app"})
	require.NoError(t, err)

	env, err := os.ReadFile(filepath.Join(target, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "EXTRA={{OPTIONAL_KEY}}")
}

// TestRenderGeminiTemplate verifies the .gemini template convention:
// the *.template.json file renders to its sibling name, comments are
// stripped, and the original template name is not copied.
func TestRenderGeminiTemplate(t *testing.T) {
	target, err := renderTestWorkspace(t, []string{"app"})
	require.NoError(t, err)

	rendered := filepath.Join(target, ".gemini", "settings.json")
	data, err := os.ReadFile(rendered)
	require.NoError(t, err)

	var settings map[string]string
	require.NoError(t, json.Unmarshal(data, &settings), "rendered settings must be strict JSON")
	assert.Equal(t, "secret-key", settings["apiKey"])

	_, err = os.Stat(filepath.Join(target, ".gemini", "settings.template.json"))
	assert.True(t, os.IsNotExist(err), "template original must not be copied")
}

// TestRenderServiceFilter verifies the compose spec is filtered to the
// requested set and the template spec file itself is not copied.
func TestRenderServiceFilter(t *testing.T) {
	target, err := renderTestWorkspace(t, []string{"app"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, ComposeOutputName))
	require.NoError(t, err)
	spec := string(data)

	assert.Contains(t, spec, "app-alpha:")
	assert.NotContains(t, spec, "db-alpha")
	assert.Contains(t, spec, "\"8001:8000\"")
	assert.Contains(t, spec, "backend", "networks stanza preserved")

	_, err = os.Stat(filepath.Join(target, ComposeTemplateName))
	assert.True(t, os.IsNotExist(err), "spec template must not be copied verbatim")
}

// TestRenderMultiService keeps both services when both are requested.
func TestRenderMultiService(t *testing.T) {
	target, err := renderTestWorkspace(t, []string{"app", "db"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, ComposeOutputName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "app-alpha:")
	assert.Contains(t, string(data), "db-alpha:")
}

// TestRenderUnknownService surfaces the invalid-request kind for a
// service the template does not declare.
func TestRenderUnknownService(t *testing.T) {
	_, err := renderTestWorkspace(t, []string{"app", "nope"})
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidRequest, model.KindOf(err))
	assert.Contains(t, err.Error(), "unknown service: nope")
}

// TestRenderCopiesBinaryBytewise verifies non-text assets are not
// altered even when they happen to contain placeholder-like bytes.
func TestRenderCopiesBinaryBytewise(t *testing.T) {
	target, err := renderTestWorkspace(t, []string{"app"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, "logo.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x7b, 0x7b, 0x50, 0x4f, 0x52, 0x54, 0x7d, 0x7d, 0xff}, data)
}

// TestRenderNonArtifactTextUntouched verifies substitution applies only
// to the declared artifact set.
func TestRenderNonArtifactTextUntouched(t *testing.T) {
	target, err := renderTestWorkspace(t, []string{"app"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, "docs", "README.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "{{PORT}}", ".txt files are not substitution targets")
}

// TestRenderMissingTemplateRoot reports a template error for a bad root.
func TestRenderMissingTemplateRoot(t *testing.T) {
	r := NewRenderer(zerolog.Nop())
	err := r.Render(filepath.Join(t.TempDir(), "missing"), t.TempDir(), map[string]string{}, []string{"app"})
	require.Error(t, err)
	assert.Equal(t, model.KindTemplateError, model.KindOf(err))
}

// TestRenderFollowsSymlinks verifies a symlinked file is materialized
// as a regular file in the workspace.
func TestRenderFollowsSymlinks(t *testing.T) {
	root := writeTestTemplate(t)
	realFile := filepath.Join(t.TempDir(), "shared.txt")
	require.NoError(t, os.WriteFile(realFile, []byte("shared content"), 0o644))
	require.NoError(t, os.Symlink(realFile, filepath.Join(root, "linked.txt")))

	target := filepath.Join(t.TempDir(), "alpha")
	r := NewRenderer(zerolog.Nop())
	require.NoError(t, r.Render(root, target, RequiredSubstitutions("alpha", 8001, "k"), []string{"app"}))

	data, err := os.ReadFile(filepath.Join(target, "linked.txt"))
	require.NoError(t, err)
	assert.Equal(t, "shared content", string(data))

	info, err := os.Lstat(filepath.Join(target, "linked.txt"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular(), "symlink target copied as a regular file")
}

// TestIsTextArtifact pins the artifact classification table.
func TestIsTextArtifact(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{".env", true},
		{"Dockerfile", true},
		{"docker-compose.yaml", true},
		{"config/settings.json", true},
		{"web/app.js", true},
		{"src/main.py", true},
		{"nested/dir/values.yml", true},
		{"README.md", false},
		{"logo.png", false},
		{"bin/tool", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isTextArtifact(tt.rel), tt.rel)
	}
}

// TestSubstituteIgnoresUnknownShapes verifies only keys present in the
// map are replaced and everything else passes through.
func TestSubstituteIgnoresUnknownShapes(t *testing.T) {
	r := NewRenderer(zerolog.Nop())
	in := []byte("a {{KNOWN}} b {{unknown}} c {single}")
	out := r.substitute(in, "x.yaml", map[string]string{"KNOWN": "v"})
	assert.Equal(t, "a v b {{unknown}} c {single}", string(out))

	if !strings.Contains(string(out), "{{unknown}}") {
		t.Fatal("unknown placeholder must remain")
	}
}
