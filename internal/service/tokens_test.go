package service

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEstimate_RoundsUp(t *testing.T) {
	est := NewEstimator(0.25)

	if got := est.Estimate(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
	if got := est.Estimate("abcd"); got != 1 {
		t.Errorf("expected 1 token for 4 chars, got %d", got)
	}
	if got := est.Estimate("abcde"); got != 2 {
		t.Errorf("expected 2 tokens for 5 chars (round up), got %d", got)
	}
}

func TestEstimate_CountsRunesNotBytes(t *testing.T) {
	est := NewEstimator(0.25)

	// 3 runes, 6 bytes — byte counting would inflate the estimate
	if got := est.Estimate("æøå"); got != 1 {
		t.Errorf("expected 1 token for 3 runes, got %d", got)
	}
}

func TestTruncate_NoOpWhenFits(t *testing.T) {
	est := NewEstimator(0.25)
	text := "hello world"

	if got := est.Truncate(text, 100); got != text {
		t.Errorf("expected text unchanged, got %q", got)
	}
	if got := est.Truncate(text, est.Estimate(text)); got != text {
		t.Errorf("expected no-op at exact budget, got %q", got)
	}
}

func TestTruncate_ZeroBudget(t *testing.T) {
	est := NewEstimator(0.25)

	if got := est.Truncate("anything at all", 0); got != "" {
		t.Errorf("expected empty string for zero budget, got %q", got)
	}
}

func TestTruncate_NeverExceedsBudget(t *testing.T) {
	est := NewEstimator(0.25)

	texts := []string{
		"Kort tekst.",
		strings.Repeat("Dette er en setning om fjellturer i nærområdet. ", 20),
		strings.Repeat("ord og atter ord uten tegnsetting her ", 15),
		strings.Repeat("x", 500),
		"Blåbærsyltetøy på ærverdige fjelltopper! Går det an? Ja da.",
	}
	budgets := []int{0, 1, 2, 5, 10, 25, 50, 100, 1000}

	for _, text := range texts {
		for _, b := range budgets {
			out := est.Truncate(text, b)
			if got := est.Estimate(out); got > b {
				t.Errorf("budget %d: truncated text estimates to %d tokens", b, got)
			}
			if utf8.RuneCountInString(out) > utf8.RuneCountInString(text) {
				t.Errorf("budget %d: truncation grew the text", b)
			}
		}
	}
}

func TestTruncate_Idempotent(t *testing.T) {
	est := NewEstimator(0.25)
	text := strings.Repeat("Dette er en setning om fjellturer i nærområdet. ", 20)

	for _, b := range []int{1, 5, 10, 50, 100} {
		once := est.Truncate(text, b)
		twice := est.Truncate(once, b)
		if once != twice {
			t.Errorf("budget %d: truncation not idempotent: %q vs %q", b, once, twice)
		}
	}
}

func TestTruncate_PrefersSentenceBoundary(t *testing.T) {
	est := NewEstimator(0.25)
	text := strings.Repeat("Dette er en setning. ", 10)

	out := est.Truncate(text, 12)
	if !strings.HasSuffix(out, ".") {
		t.Errorf("expected sentence-boundary cut ending in period, got %q", out)
	}
	if strings.HasSuffix(out, ellipsis+".") || strings.Contains(out, ellipsis) {
		t.Errorf("sentence cut must not carry an ellipsis, got %q", out)
	}
}

func TestTruncate_WordBoundaryEllipsis(t *testing.T) {
	est := NewEstimator(0.25)
	text := strings.Repeat("ord og mange fler ", 5) // no sentence punctuation

	out := est.Truncate(text, 10)
	if !strings.HasSuffix(out, ellipsis) {
		t.Errorf("expected word-boundary cut ending in ellipsis, got %q", out)
	}
	if est.Estimate(out) > 10 {
		t.Errorf("word cut exceeded budget: %d tokens", est.Estimate(out))
	}
}

func TestTruncate_HardCutEllipsis(t *testing.T) {
	est := NewEstimator(0.25)
	text := strings.Repeat("x", 100) // no boundaries anywhere

	out := est.Truncate(text, 10)
	if !strings.HasSuffix(out, ellipsis) {
		t.Errorf("expected hard cut ending in ellipsis, got %q", out)
	}
	if got := utf8.RuneCountInString(out); got != 40 {
		t.Errorf("expected 40 runes (ellipsis inside limit), got %d", got)
	}
}
