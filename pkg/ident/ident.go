// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ident canonicalizes account identifiers before they are stored or compared.
//
// # Usage
//
// Usernames and emails are unique keys. Two strings that render identically
// (full-width letters, composed vs decomposed accents, stray whitespace) must
// map to the same key, otherwise uniqueness checks can be bypassed.
package ident

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/gatekeeper/pkg/pointer"
)

// Username returns the canonical form of a username.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFKC (compatibility composition: "ａｌｉｃｅ" → "alice").
// 2. Trims surrounding whitespace.
//
// Case is preserved: usernames are displayed as typed.
func Username(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(raw))
}

// Email returns the canonical form of an email address.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFKC.
// 2. Trims surrounding whitespace.
// 3. Applies Unicode case folding, so lookups are case-insensitive.
func Email(raw string) string {
	return cases.Fold().String(strings.TrimSpace(norm.NFKC.String(raw)))
}

// Name trims an optional display name, returning nil for nil input.
func Name(raw *string) *string {
	if raw == nil {
		return nil
	}
	return pointer.To(strings.TrimSpace(norm.NFC.String(*raw)))
}
