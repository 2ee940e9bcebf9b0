package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

const (
	MinQuestionLen = 10
	MaxQuestionLen = 500
)

// NormalizeQuestion lowercases the question, trims surrounding space and
// collapses internal whitespace runs so trivially different phrasings share a
// cache entry.
func NormalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Fingerprint is the deterministic cache key of a normalized question.
func Fingerprint(question string) string {
	sum := sha256.Sum256([]byte(NormalizeQuestion(question)))
	return hex.EncodeToString(sum[:])
}

// ValidQuestionLength checks the 10..500 character contract on the trimmed
// text. Characters, not bytes, so multi-byte scripts get the same budget.
func ValidQuestionLength(q string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(q))
	return n >= MinQuestionLen && n <= MaxQuestionLen
}
