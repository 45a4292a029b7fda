// Package imei provides normalization, validation, and candidate extraction
// for numeric device identifiers (IMEIs).
package imei

import (
	"fmt"
	"strings"
)

// MaxDigits is the hard cap applied by Normalize.
const MaxDigits = 20

// MinDigits is the minimum accepted identifier length.
const MinDigits = 10

// MatchKind classifies the result of extracting a candidate from raw text.
type MatchKind int

const (
	// MatchNone means no identifier-shaped run was found.
	MatchNone MatchKind = iota
	// MatchExact means a contiguous run of exactly 15-16 digits was found.
	// Exact matches are accepted automatically by callers.
	MatchExact
	// MatchFallback means a run of at least 10 digits was found, but not an
	// exact-length one. Fallback matches populate the input for review and
	// never auto-submit.
	MatchFallback
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Candidate is a derived, never-persisted extraction result. Each new input
// or decode event replaces the previous candidate wholesale.
type Candidate struct {
	Raw    string    // Original decoded text
	Digits string    // Extracted digit run (truncated to 16 for fallback)
	Kind   MatchKind // How confident the extraction is
}

// ValidationErrorKind classifies a failed validation.
type ValidationErrorKind int

const (
	// TooShort means the candidate has fewer than 10 digits.
	TooShort ValidationErrorKind = iota
	// TooLong means the candidate has more than 20 digits.
	TooLong
)

// ValidationError reports why a candidate failed validation.
type ValidationError struct {
	Kind   ValidationErrorKind
	Length int
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case TooShort:
		return fmt.Sprintf("identifier too short: %d digits, need at least %d", e.Length, MinDigits)
	case TooLong:
		return fmt.Sprintf("identifier too long: %d digits, max %d", e.Length, MaxDigits)
	default:
		return "invalid identifier"
	}
}

// Normalize strips every non-digit rune from raw and caps the result at
// MaxDigits. It runs on every edit, so validation never sees non-digit input.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == MaxDigits {
			break
		}
	}
	return b.String()
}

// Validate checks a normalized candidate. Returns nil for digit-only strings
// of length 10-20, otherwise a *ValidationError. Non-digit content is
// unreachable through the normal input path because Normalize runs first.
func Validate(candidate string) error {
	n := len(candidate)
	if n < MinDigits {
		return &ValidationError{Kind: TooShort, Length: n}
	}
	if n > MaxDigits {
		return &ValidationError{Kind: TooLong, Length: n}
	}
	return nil
}

// Extract finds an identifier-shaped substring inside arbitrary decoded text.
//
//  1. A contiguous run of exactly 15-16 digits wins as MatchExact.
//  2. Otherwise any run of >=10 digits yields MatchFallback, truncated to 16.
//  3. Otherwise MatchNone.
func Extract(raw string) Candidate {
	runs := digitRuns(raw)
	for _, run := range runs {
		if n := len(run); n == 15 || n == 16 {
			return Candidate{Raw: raw, Digits: run, Kind: MatchExact}
		}
	}

	for _, run := range runs {
		if len(run) < MinDigits {
			continue
		}
		if len(run) > 16 {
			run = run[:16]
		}
		return Candidate{Raw: raw, Digits: run, Kind: MatchFallback}
	}

	return Candidate{Raw: raw, Kind: MatchNone}
}

// digitRuns returns every maximal contiguous digit run in s, in order.
func digitRuns(s string) []string {
	var runs []string
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, s[start:])
	}
	return runs
}
