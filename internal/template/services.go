package template

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hovel-sh/hovel/internal/model"
)

// branchPlaceholderSuffix is the service-name suffix as it appears in
// the unrendered template (service keys like "app-{{BRANCH_NAME}}").
const branchPlaceholderSuffix = "-{{" + KeyBranchName + "}}"

// composeDocument models the container-group spec just deeply enough to
// filter its services. The services stanza is decoded to raw yaml nodes
// so each kept service definition round-trips untouched, and every
// other top-level stanza (networks, volumes, configs, ...) is captured
// by the inline map and preserved verbatim.
type composeDocument struct {
	Services map[string]yaml.Node `yaml:"services"`
	Rest     map[string]yaml.Node `yaml:",inline"`
}

// FilterServices parses the container-group spec and produces a new
// spec whose services stanza contains only the requested services.
//
// Template service keys carry a branch suffix ("app-alpha" after
// substitution, "app-{{BRANCH_NAME}}" before); the suffix is stripped
// before matching, and the match against the requested set is
// case-insensitive. A requested service the template does not declare
// is an error, as is an empty result.
func FilterServices(spec []byte, branchName string, requested []string) ([]byte, error) {
	var doc composeDocument
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, model.WrapE(model.KindTemplateError, "container-group spec is not valid YAML", err)
	}
	if len(doc.Services) == 0 {
		return nil, model.E(model.KindTemplateError, "container-group spec declares no services")
	}
	if len(requested) == 0 {
		return nil, model.E(model.KindTemplateError, "no services selected for container-group spec")
	}

	// Index the template's services by their base name (branch suffix
	// stripped) so requested names resolve regardless of the suffix.
	byBase := make(map[string]string, len(doc.Services))
	for key := range doc.Services {
		byBase[strings.ToLower(stripBranchSuffix(key, branchName))] = key
	}

	kept := make(map[string]yaml.Node, len(requested))
	for _, want := range requested {
		key, ok := byBase[strings.ToLower(want)]
		if !ok {
			return nil, model.Ef(model.KindInvalidRequest, "unknown service: %s", want)
		}
		kept[key] = doc.Services[key]
	}

	out := composeDocument{Services: kept, Rest: doc.Rest}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, model.WrapE(model.KindTemplateError, "failed to serialize filtered container-group spec", err)
	}
	return data, nil
}

// TemplateServices returns the sorted base service names the template's
// container-group spec declares. The engine validates requested service
// sets against this list before touching any other resource.
func TemplateServices(spec []byte) ([]string, error) {
	var doc composeDocument
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, model.WrapE(model.KindTemplateError, "container-group spec is not valid YAML", err)
	}
	if len(doc.Services) == 0 {
		return nil, model.E(model.KindTemplateError, "container-group spec declares no services")
	}

	names := make([]string, 0, len(doc.Services))
	for key := range doc.Services {
		names = append(names, stripBranchSuffix(key, ""))
	}
	sort.Strings(names)
	return names, nil
}

// ServiceRefs resolves base service names to the keys the rendered
// container-group spec actually uses (typically "app-<branch>"). Engine
// verbs that address individual services need the real keys.
func ServiceRefs(spec []byte, branchName string, bases []string) ([]string, error) {
	var doc composeDocument
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, model.WrapE(model.KindTemplateError, "container-group spec is not valid YAML", err)
	}

	byBase := make(map[string]string, len(doc.Services))
	for key := range doc.Services {
		byBase[strings.ToLower(stripBranchSuffix(key, branchName))] = key
	}

	refs := make([]string, 0, len(bases))
	for _, base := range bases {
		key, ok := byBase[strings.ToLower(base)]
		if !ok {
			return nil, model.Ef(model.KindInvalidRequest, "unknown service: %s", base)
		}
		refs = append(refs, key)
	}
	return refs, nil
}

// stripBranchSuffix removes the per-branch suffix from a template
// service key. Both the substituted form ("-<branch>", matched
// case-insensitively) and the raw placeholder form are handled; a key
// with neither suffix is returned unchanged.
func stripBranchSuffix(key, branchName string) string {
	if strings.HasSuffix(key, branchPlaceholderSuffix) {
		return strings.TrimSuffix(key, branchPlaceholderSuffix)
	}
	if branchName != "" {
		suffix := "-" + branchName
		if len(key) > len(suffix) && strings.EqualFold(key[len(key)-len(suffix):], suffix) {
			return key[:len(key)-len(suffix)]
		}
	}
	return key
}

// RequiredSubstitutions builds the substitution map every branch render
// uses. The terminal port is derived here so renders and session
// management cannot disagree about the offset.
func RequiredSubstitutions(branchName string, port int, apiKey string) map[string]string {
	return map[string]string{
		KeyBranchName: branchName,
		KeyPort:       fmt.Sprintf("%d", port),
		KeyPortTTYD:   fmt.Sprintf("%d", port+model.TTYDPortOffset),
		KeyGeminiKey:  apiKey,
	}
}
