// Package shell centralizes everything the pipeline needs to talk to the
// endpoint site: named-placeholder command templates and the single
// subprocess wrapper that executes them. Concentrating error mapping here
// keeps Porter/Wiper free of exit-code translation, per spec.md §9.
package shell

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`{(\w+)}`)

// Template is a command line with {name}-form placeholders, validated once
// at construction against the set of parameters available to fill them.
type Template struct {
	raw          string
	placeholders []string
}

// NewTemplate parses raw and rejects it if it references any placeholder
// not present in allowed. This implements spec.md §6/§9's "reject at
// startup, not at first use" requirement for endpoint command templates.
func NewTemplate(raw string, allowed map[string]bool) (*Template, error) {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(raw, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	var undefined []string
	for _, name := range names {
		if !allowed[name] {
			undefined = append(undefined, name)
		}
	}
	if len(undefined) > 0 {
		sort.Strings(undefined)
		return nil, fmt.Errorf("shell: parameters %s used but not defined in %q",
			strings.Join(undefined, ", "), raw)
	}

	return &Template{raw: raw, placeholders: names}, nil
}

// Has reports whether the template references the named placeholder.
func (t *Template) Has(name string) bool {
	for _, n := range t.placeholders {
		if n == name {
			return true
		}
	}
	return false
}

// Render substitutes every {name} placeholder with params[name]. Params
// missing from the map render as an empty string — callers are expected to
// have validated required placeholders with NewTemplate already.
func (t *Template) Render(params map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(t.raw, func(match string) string {
		name := match[1 : len(match)-1]
		return params[name]
	})
}

// String returns the template's raw source text.
func (t *Template) String() string {
	return t.raw
}
