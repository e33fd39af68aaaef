// Package template expands the {{ }} property references embedded in a
// service's activation arguments against the properties of the services it
// depends on. A plain reference like {{ name }} or {{ name.port }} is
// resolved by straight dotted-path lookup; anything with pipes,
// conditionals or sprig functions is handed to Go's text/template engine
// instead, so property values can express more than bare substitution when
// a deployment actually needs it.
package template

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

var (
	refPattern        = regexp.MustCompile(`\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_.-]*)\s*\}\}`)
	actionPattern     = regexp.MustCompile(`\{\{(.*?)\}\}`)
	bareRefIdentifier = regexp.MustCompile(`^\.?[a-zA-Z_][a-zA-Z0-9_.-]*$`)
)

// Engine resolves property references in activation arguments against a
// dependency context built from a service's declared dependencies.
type Engine struct{}

// New returns a property-reference resolver.
func New() *Engine {
	return &Engine{}
}

// Replace expands every {{ }} reference inside value against context. Maps
// and slices are not a shape activation properties take (they're always
// scalars), so only strings carry references; anything else passes
// through unchanged.
func (e *Engine) Replace(value interface{}, context map[string]interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	if hasGoTemplateAction(s) {
		return e.RenderGoTemplate(s, context)
	}
	return e.replaceRefs(s, context)
}

// hasGoTemplateAction reports whether s contains a {{ }} action more
// elaborate than a bare dotted-path reference: a pipe, a control keyword,
// or anything else refPattern alone can't resolve.
func hasGoTemplateAction(s string) bool {
	for _, m := range actionPattern.FindAllStringSubmatch(s, -1) {
		if !bareRefIdentifier.MatchString(strings.TrimSpace(m[1])) {
			return true
		}
	}
	return false
}

// replaceRefs resolves every bare {{ name }} / {{ name.prop }} reference in
// s, erroring if any reference can't be resolved against context.
func (e *Engine) replaceRefs(s string, context map[string]interface{}) (string, error) {
	matches := refPattern.FindAllStringSubmatch(s, -1)

	var missing []string
	result := s
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		path := match[1]

		resolved, err := resolvePath(path, context)
		if err != nil {
			missing = append(missing, path)
			continue
		}

		replacement := scalarString(resolved)
		for _, placeholder := range []string{
			fmt.Sprintf("{{ %s }}", path),
			fmt.Sprintf("{{ .%s }}", path),
			fmt.Sprintf("{{%s}}", path),
			fmt.Sprintf("{{.%s}}", path),
		} {
			result = strings.ReplaceAll(result, placeholder, replacement)
		}
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing property references: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

func scalarString(v interface{}) string {
	switch r := v.(type) {
	case string:
		return r
	case int, int32, int64:
		return fmt.Sprintf("%d", r)
	case float32, float64:
		return fmt.Sprintf("%f", r)
	case bool:
		return fmt.Sprintf("%t", r)
	default:
		return fmt.Sprintf("%v", r)
	}
}

// resolvePath walks a dotted path like "postgres.host" against context: the
// first segment names a dependency (or the service's own properties, see
// MergeContexts), the rest walk into its property map.
func resolvePath(path string, context map[string]interface{}) (interface{}, error) {
	parts := strings.Split(path, ".")

	root, ok := context[parts[0]]
	if !ok {
		return nil, fmt.Errorf("%q not found in dependency context", parts[0])
	}

	current := root
	for i, part := range parts[1:] {
		props, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%q has no properties at position %d of %q", part, i+1, path)
		}
		current, ok = props[part]
		if !ok {
			return nil, fmt.Errorf("property %q not found at position %d of %q", part, i+1, path)
		}
	}
	return current, nil
}

// RenderGoTemplate renders templateStr as a full Go text/template with the
// Sprig function map, for activation arguments that need conditionals or
// functions beyond bare property substitution (e.g. {{ eq .tier "prod" }}).
func (e *Engine) RenderGoTemplate(templateStr string, context map[string]interface{}) (interface{}, error) {
	tmpl, err := template.New("arg").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid activation template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return nil, fmt.Errorf("activation template execution failed: %w", err)
	}

	switch buf.String() {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return buf.String(), nil
	}
}
