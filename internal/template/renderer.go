package template

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"

	"github.com/hovel-sh/hovel/internal/model"
)

const (
	// ComposeTemplateName is the multi-service container-group spec in
	// the template root. It is not copied verbatim: the service filter
	// renders it to ComposeOutputName in the workspace.
	ComposeTemplateName = "docker-compose.branch.template.yaml"

	// ComposeOutputName is the rendered container-group spec.
	ComposeOutputName = "docker-compose.yaml"

	// geminiDir holds per-branch AI tool configuration. Files under it
	// whose name contains ".template." are rendered to the sibling name
	// with the marker removed.
	geminiDir = ".gemini"

	templateMarker = ".template"
)

// Substitution keys every branch render provides.
const (
	KeyBranchName = "BRANCH_NAME"
	KeyPort       = "PORT"
	KeyPortTTYD   = "PORT_TTYD"
	KeyGeminiKey  = "GEMINI_API_KEY"
)

// placeholderRe matches {{KEY}} placeholders. Keys are made of letters,
// digits, and underscores; anything else (for example Go template syntax
// inside the copied app sources) is left alone.
var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Renderer copies the template tree into per-branch workspaces.
type Renderer struct {
	log zerolog.Logger
}

// NewRenderer creates a Renderer.
func NewRenderer(log zerolog.Logger) *Renderer {
	return &Renderer{log: log}
}

// Render materializes a workspace at targetDir from templateRoot.
//
// Files are copied bytewise except for the declared text artifacts,
// which go through placeholder substitution, and the .gemini template
// files, which are rendered to their non-template sibling names. The
// container-group spec is filtered to the requested services and
// written as docker-compose.yaml. Directory permissions are preserved
// and symlinks are followed.
//
// On any error the partially written targetDir is left in place; the
// caller owns cleanup (the engine removes it as a compensation).
func (r *Renderer) Render(templateRoot, targetDir string, subs map[string]string, services []string) error {
	info, err := os.Stat(templateRoot)
	if err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("template root %s is not readable", templateRoot), err)
	}
	if !info.IsDir() {
		return model.Ef(model.KindTemplateError, "template root %s is not a directory", templateRoot)
	}

	if err := r.copyDir(templateRoot, targetDir, "", subs); err != nil {
		return err
	}

	return r.renderComposeSpec(templateRoot, targetDir, subs, services)
}

// copyDir recursively copies src into dst, applying the per-file
// rendering rules. rel tracks the path relative to the template root
// for artifact classification and logging.
func (r *Renderer) copyDir(src, dst, rel string, subs map[string]string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to stat template directory %s", src), err)
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to create %s", dst), err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to read template directory %s", src), err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		entryRel := filepath.Join(rel, entry.Name())

		// The compose spec is rendered separately by the service filter.
		if entryRel == ComposeTemplateName {
			continue
		}

		// Symlinks are followed: stat resolves the target, and the
		// target's content is copied under the link's name.
		info, err := os.Stat(srcPath)
		if err != nil {
			return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to stat %s", srcPath), err)
		}

		if info.IsDir() {
			if err := r.copyDir(srcPath, dstPath, entryRel, subs); err != nil {
				return err
			}
			continue
		}

		if err := r.renderFile(srcPath, dstPath, entryRel, info.Mode().Perm(), subs); err != nil {
			return err
		}
	}
	return nil
}

// renderFile writes a single template file into the workspace, applying
// substitution and the .gemini template-name convention where they apply.
func (r *Renderer) renderFile(srcPath, dstPath, rel string, perm os.FileMode, subs map[string]string) error {
	if isGeminiTemplate(rel) {
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to read %s", srcPath), err)
		}
		rendered := r.substitute(data, rel, subs)
		// Template JSON may carry comments for the template author;
		// the rendered sibling must be strict JSON.
		if strings.EqualFold(filepath.Ext(rel), ".json") {
			rendered = jsonc.ToJSONInPlace(rendered)
		}
		outName := strings.Replace(filepath.Base(dstPath), templateMarker, "", 1)
		return writeFile(filepath.Join(filepath.Dir(dstPath), outName), rendered, perm)
	}

	if isTextArtifact(rel) {
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to read %s", srcPath), err)
		}
		return writeFile(dstPath, r.substitute(data, rel, subs), perm)
	}

	return copyRaw(srcPath, dstPath, perm)
}

// substitute replaces every {{KEY}} occurrence whose KEY is present in
// subs. Unknown keys are left intact with a warning — templates may be
// deliberately partial, carrying placeholders for downstream tooling.
func (r *Renderer) substitute(data []byte, rel string, subs map[string]string) []byte {
	warned := make(map[string]struct{})
	return placeholderRe.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(placeholderRe.FindSubmatch(match)[1])
		if value, ok := subs[key]; ok {
			return []byte(value)
		}
		if _, seen := warned[key]; !seen {
			warned[key] = struct{}{}
			r.log.Warn().Str("file", rel).Str("key", key).Msg("placeholder left unsubstituted")
		}
		return match
	})
}

// renderComposeSpec substitutes placeholders in the container-group
// template, filters it to the requested services, and writes the result
// into the workspace.
func (r *Renderer) renderComposeSpec(templateRoot, targetDir string, subs map[string]string, services []string) error {
	specPath := filepath.Join(templateRoot, ComposeTemplateName)
	data, err := os.ReadFile(specPath)
	if err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("template has no container-group spec at %s", specPath), err)
	}

	rendered := r.substitute(data, ComposeTemplateName, subs)

	filtered, err := FilterServices(rendered, subs[KeyBranchName], services)
	if err != nil {
		return err
	}

	return writeFile(filepath.Join(targetDir, ComposeOutputName), filtered, 0o644)
}

// isGeminiTemplate reports whether the relative path is a *.template.*
// file under the .gemini directory.
func isGeminiTemplate(rel string) bool {
	if !strings.HasPrefix(rel, geminiDir+string(filepath.Separator)) {
		return false
	}
	return strings.Contains(filepath.Base(rel), templateMarker+".")
}

// isTextArtifact reports whether the relative path names a file that
// goes through placeholder substitution. Everything else is copied
// bytewise, which keeps binary template assets intact.
func isTextArtifact(rel string) bool {
	base := filepath.Base(rel)
	if base == ".env" || base == "Dockerfile" {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml", ".json", ".js", ".py":
		return true
	}
	return false
}

// writeFile writes data to path, creating parent directories as needed.
func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to create directory for %s", path), err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

// copyRaw streams a file bytewise from src to dst, preserving the mode.
func copyRaw(src, dst string, perm os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to open %s", src), err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to create %s", dst), err)
	}
	defer func() { _ = dstFile.Close() }()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return model.WrapE(model.KindTemplateError, fmt.Sprintf("failed to copy %s", src), err)
	}
	return nil
}
