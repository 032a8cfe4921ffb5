// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"unicode"
	"unicode/utf8"
)

// reservedWords holds every name that must never be chosen for a binding:
// ECMAScript keywords, strict-mode and future reserved words, literal
// keywords, and the global value properties that cannot be shadowed safely.
var reservedWords = map[string]struct{}{
	// Keywords
	"await": {}, "break": {}, "case": {}, "catch": {}, "class": {}, "const": {},
	"continue": {}, "debugger": {}, "default": {}, "delete": {}, "do": {},
	"else": {}, "enum": {}, "export": {}, "extends": {}, "finally": {},
	"for": {}, "function": {}, "if": {}, "import": {}, "in": {},
	"instanceof": {}, "new": {}, "return": {}, "super": {}, "switch": {},
	"this": {}, "throw": {}, "try": {}, "typeof": {}, "var": {}, "void": {},
	"while": {}, "with": {}, "yield": {},

	// Literals
	"null": {}, "true": {}, "false": {},

	// Strict mode reserved words
	"implements": {}, "interface": {}, "let": {}, "package": {},
	"private": {}, "protected": {}, "public": {}, "static": {},

	// Restricted in strict mode and unsafe to shadow
	"arguments": {}, "eval": {},
	"undefined": {}, "NaN": {}, "Infinity": {},
}

// IsReserved reports whether name is a reserved word of the target language.
func IsReserved(name string) bool {
	_, ok := reservedWords[name]
	return ok
}

// ReservedWords returns a copy of the reserved-word set.
func ReservedWords() []string {
	out := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		out = append(out, w)
	}
	return out
}

// IsValidIdentifier reports whether name is lexically an IdentifierName.
//
// Reserved words pass this check; combine with IsReserved to decide whether
// a name may be used for a binding.
func IsValidIdentifier(name string) bool {
	if name == "" || !utf8.ValidString(name) {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !isIdentifierStart(r) {
				return false
			}
			continue
		}
		if !isIdentifierPart(r) {
			return false
		}
	}
	return true
}

// IsBindableName reports whether name may be declared as a binding.
func IsBindableName(name string) bool {
	return IsValidIdentifier(name) && !IsReserved(name)
}

func isIdentifierStart(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r) || unicode.Is(unicode.Nl, r)
}

func isIdentifierPart(r rune) bool {
	if isIdentifierStart(r) || unicode.IsDigit(r) {
		return true
	}
	// ZWNJ and ZWJ are permitted after the first character.
	if r == '\u200c' || r == '\u200d' {
		return true
	}
	return unicode.In(r, unicode.Mn, unicode.Mc, unicode.Nd, unicode.Pc)
}
