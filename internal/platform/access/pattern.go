// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"fmt"
	"strings"
)

// # Path Patterns

// Pattern is a compiled route pattern.
//
// # Syntax
//
//	/api/v1/users           literal segments match themselves
//	/api/v1/users/{id}      {name} matches exactly one non-empty segment
//	/api/v1/**              a trailing ** matches zero or more segments
type Pattern struct {
	raw      string
	segments []segment
	wildcard bool
	literals int
	params   int
}

type segment struct {
	literal string
	param   bool
}

// CompilePattern parses raw into a [Pattern].
func CompilePattern(raw string) (Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return Pattern{}, fmt.Errorf("access: pattern %q must start with '/'", raw)
	}

	pattern := Pattern{raw: raw}
	parts := splitPath(raw)

	for index, part := range parts {
		switch {
		case part == "**":
			if index != len(parts)-1 {
				return Pattern{}, fmt.Errorf("access: '**' must be the last segment in %q", raw)
			}
			pattern.wildcard = true
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) > 2:
			pattern.segments = append(pattern.segments, segment{param: true})
			pattern.params++
		case strings.ContainsAny(part, "{}*"):
			return Pattern{}, fmt.Errorf("access: invalid segment %q in %q", part, raw)
		default:
			pattern.segments = append(pattern.segments, segment{literal: part})
			pattern.literals++
		}
	}

	return pattern, nil
}

// MustCompilePattern is like [CompilePattern] but panics on error.
// It is intended for package-level tables.
func MustCompilePattern(raw string) Pattern {
	pattern, err := CompilePattern(raw)
	if err != nil {
		panic(err)
	}
	return pattern
}

// Match reports whether path satisfies the pattern.
func (p Pattern) Match(path string) bool {
	parts := splitPath(path)

	if p.wildcard {
		if len(parts) < len(p.segments) {
			return false
		}
	} else if len(parts) != len(p.segments) {
		return false
	}

	for index, seg := range p.segments {
		if !seg.param && seg.literal != parts[index] {
			return false
		}
	}
	return true
}

// String returns the source form of the pattern.
func (p Pattern) String() string {
	return p.raw
}

// splitPath breaks a URL path into its non-empty segments.
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// # Path Sets

// PathSet is an unordered set of patterns, used for the filter bypass list.
type PathSet []Pattern

// NewPathSet compiles every raw pattern into a [PathSet].
func NewPathSet(raw ...string) (PathSet, error) {
	set := make(PathSet, 0, len(raw))
	for _, r := range raw {
		pattern, err := CompilePattern(r)
		if err != nil {
			return nil, err
		}
		set = append(set, pattern)
	}
	return set, nil
}

// Contains reports whether any pattern in the set matches path.
func (s PathSet) Contains(path string) bool {
	for _, pattern := range s {
		if pattern.Match(path) {
			return true
		}
	}
	return false
}
