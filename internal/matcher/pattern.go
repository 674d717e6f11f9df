// Package matcher selects records by type with literal, wildcard and regex
// patterns.
package matcher

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// regexTemplateRe matches {{ .regex "<pattern>" }}.
var regexTemplateRe = regexp.MustCompile(`^\{\{\s*\.regex\s+"(.+?)"\s*\}\}$`)

// Pattern matches a record type.
//
// Forms:
//   - Literal string: exact equality
//   - Wildcards (*, ?, [...]): shell-style match, e.g. "blockType_*"
//   - re:<expr> or {{ .regex "<expr>" }}: regular expression, unanchored
//   - {{ .any }}: any type
type Pattern struct {
	raw  string
	glob bool
	any  bool
	re   *regexp.Regexp
}

// Compile parses a pattern.
func Compile(p string) (Pattern, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return Pattern{}, fmt.Errorf("empty pattern")
	}
	if trimmed == "{{ .any }}" || trimmed == "{{.any}}" {
		return Pattern{raw: p, any: true}, nil
	}

	expr := ""
	if m := regexTemplateRe.FindStringSubmatch(trimmed); m != nil {
		expr = m[1]
	} else if rest, ok := strings.CutPrefix(trimmed, "re:"); ok {
		expr = rest
	}
	if expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return Pattern{}, fmt.Errorf("invalid regex %q: %w", expr, err)
		}
		return Pattern{raw: p, re: re}, nil
	}

	if strings.ContainsAny(trimmed, "*?[") {
		if _, err := path.Match(trimmed, ""); err != nil {
			return Pattern{}, fmt.Errorf("invalid wildcard %q: %w", trimmed, err)
		}
		return Pattern{raw: trimmed, glob: true}, nil
	}
	return Pattern{raw: trimmed}, nil
}

// String returns the pattern as written.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether typ satisfies the pattern.
func (p Pattern) Match(typ string) bool {
	switch {
	case p.any:
		return true
	case p.re != nil:
		return p.re.MatchString(typ)
	case p.glob:
		ok, _ := path.Match(p.raw, typ)
		return ok
	default:
		return p.raw == typ
	}
}

// Set is a union of patterns. An empty set matches every type.
type Set []Pattern

// CompileAll compiles every pattern, failing on the first invalid one.
func CompileAll(patterns []string) (Set, error) {
	set := make(Set, 0, len(patterns))
	for _, p := range patterns {
		compiled, err := Compile(p)
		if err != nil {
			return nil, err
		}
		set = append(set, compiled)
	}
	return set, nil
}

// Match reports whether any pattern matches typ.
func (s Set) Match(typ string) bool {
	if len(s) == 0 {
		return true
	}
	for _, p := range s {
		if p.Match(typ) {
			return true
		}
	}
	return false
}
