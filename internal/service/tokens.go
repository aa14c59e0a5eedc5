// Package service implements the chat pipeline business logic.
package service

import (
	"math"
	"strings"
	"unicode/utf8"
)

// ellipsis marks a truncation that did not land on a sentence boundary.
const ellipsis = "..."

// Estimator approximates token counts from rune counts. It deliberately
// avoids a real tokenizer: the estimate must be cheap and dependency-free,
// and overestimation is always safer than underestimation because the
// downstream request must never exceed the model's real context window.
type Estimator struct {
	charsPerToken float64
}

// NewEstimator creates an Estimator with the given chars→token ratio.
// The default 0.25 (≈4 characters per token) is calibrated conservatively
// for the Norwegian text the store holds.
func NewEstimator(charsPerToken float64) Estimator {
	if charsPerToken <= 0 || charsPerToken > 1 {
		charsPerToken = 0.25
	}
	return Estimator{charsPerToken: charsPerToken}
}

// Estimate returns the approximate token count for text, rounding up.
func (e Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) * e.charsPerToken))
}

// maxChars returns the largest rune count whose estimate stays within
// maxTokens, rounding down.
func (e Estimator) maxChars(maxTokens int) int {
	return int(math.Floor(float64(maxTokens) / e.charsPerToken))
}

// Truncate cuts text so that its estimated token count fits maxTokens.
// It prefers a sentence boundary in the last 30% of the allowed prefix,
// then a word boundary in the last 20%, then a hard cut. Word and hard
// cuts end with an ellipsis, and the ellipsis is budgeted inside the
// limit so Estimate(Truncate(t, b)) <= b always holds.
func (e Estimator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if e.Estimate(text) <= maxTokens {
		return text
	}

	limit := e.maxChars(maxTokens)
	runes := []rune(text)
	if limit >= len(runes) {
		return text
	}
	prefix := runes[:limit]

	// A sentence ending late enough in the prefix keeps a complete thought
	// and avoids losing most of the budget to one dangling clause.
	sentenceFloor := limit * 7 / 10
	for i := limit - 1; i >= sentenceFloor && i >= 0; i-- {
		switch prefix[i] {
		case '.', '!', '?':
			return string(prefix[:i+1])
		}
	}

	markerLen := utf8.RuneCountInString(ellipsis)
	cut := limit - markerLen
	if cut <= 0 {
		// Budget too small to fit a marker at all.
		return string(prefix)
	}

	wordFloor := limit * 8 / 10
	for i := cut; i >= wordFloor && i > 0; i-- {
		if prefix[i] == ' ' {
			return strings.TrimRight(string(prefix[:i]), " ") + ellipsis
		}
	}

	return string(prefix[:cut]) + ellipsis
}
