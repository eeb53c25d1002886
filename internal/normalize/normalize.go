// Package normalize turns raw log messages into stable matching signatures.
//
// Variable tokens (GUIDs, IP addresses, file paths, long numeric IDs) are
// replaced with fixed placeholders so that semantically identical errors
// collapse to the same normalized string. The normalized string doubles as
// the deduplication key of the knowledge base and as the embedding input.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultMinNumericLen is the minimum digit-run length replaced by <NUM>.
	// Shorter numbers (error codes, channel numbers) tend to be part of the
	// error identity and are kept.
	DefaultMinNumericLen = 4

	guidPlaceholder = "<GUID>"
	ipPlaceholder   = "<IP>"
	pathPlaceholder = "<PATH>"
	numPlaceholder  = "<NUM>"
)

var (
	// 8-4-4-4-12 hex groups.
	guidPattern = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

	// Dotted quads. Intentionally loose on octet range: log text never
	// contains dotted quads that are not addresses.
	ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	// Drive-letter or /-rooted path with at least one separator-joined segment.
	pathPattern = regexp.MustCompile(`(?:[A-Za-z]:[\\/]|/)[\w.\-]+(?:[\\/][\w.\-]+)*`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalizer applies the placeholder substitutions. Safe for concurrent use.
type Normalizer struct {
	minNumericLen int
	numPattern    *regexp.Regexp
}

// New creates a Normalizer. minNumericLen <= 0 selects DefaultMinNumericLen.
func New(minNumericLen int) *Normalizer {
	if minNumericLen <= 0 {
		minNumericLen = DefaultMinNumericLen
	}
	return &Normalizer{
		minNumericLen: minNumericLen,
		numPattern:    regexp.MustCompile(fmt.Sprintf(`\b\d{%d,}\b`, minNumericLen)),
	}
}

// Normalize returns the stable signature form of s.
//
// Substitution order matters: GUIDs first (their hex groups would otherwise
// be eaten by the numeric rule), then addresses, then paths, then bare
// numbers, then whitespace collapse. The function is deterministic and
// idempotent: none of the placeholders can match any pattern.
func (n *Normalizer) Normalize(s string) string {
	s = guidPattern.ReplaceAllString(s, guidPlaceholder)
	s = ipPattern.ReplaceAllString(s, ipPlaceholder)
	s = pathPattern.ReplaceAllString(s, pathPlaceholder)
	s = n.numPattern.ReplaceAllString(s, numPlaceholder)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// signatureNamespace is the fixed UUID namespace for signature point IDs.
// Changing it would orphan every previously ingested knowledge record.
var signatureNamespace = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

// SignatureID derives the deterministic point ID for a normalized signature.
// The same signature always maps to the same UUID, which makes a duplicate
// insert an idempotent upsert of the same point in the vector store.
func SignatureID(signature string) string {
	return uuid.NewSHA1(signatureNamespace, []byte(signature)).String()
}
