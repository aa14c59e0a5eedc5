package service

import (
	"testing"

	"github.com/nordveil/sitechat/internal/model"
)

func TestSelectSource_Empty(t *testing.T) {
	if got := SelectSource(nil, nil); got != nil {
		t.Errorf("expected nil for no matches, got %+v", got)
	}
}

func TestSelectSource_SingleURLLongestChunk(t *testing.T) {
	matches := []model.RetrievalMatch{
		{SourceURL: "https://example.no/turer", Title: "Turer", Content: "kort", Similarity: 0.6},
		{SourceURL: "https://example.no/turer", Title: "Turer", Content: "dette er det lengste tekstutdraget", Similarity: 0.5},
		{SourceURL: "https://example.no/turer", Title: "Turer", Content: "middels langt", Similarity: 0.7},
	}

	got := SelectSource(matches, nil)
	if got == nil {
		t.Fatal("expected a source")
	}
	if got.URL != "https://example.no/turer" {
		t.Errorf("unexpected URL %q", got.URL)
	}
	if got.Content != "dette er det lengste tekstutdraget" {
		t.Errorf("expected longest chunk as representative content, got %q", got.Content)
	}
}

func TestSelectSource_SpecificBeatsHomepage(t *testing.T) {
	matches := []model.RetrievalMatch{
		{SourceURL: "https://example.no/", Title: "Forside", Content: "velkommen", Similarity: 0.9},
		{SourceURL: "https://example.no/priser", Title: "Priser", Content: "prisliste", Similarity: 0.4},
	}

	got := SelectSource(matches, []string{"https://example.no/"})
	if got == nil {
		t.Fatal("expected a source")
	}
	// Partition precedence overrides score: 0.4 specific beats 0.9 homepage.
	if got.URL != "https://example.no/priser" {
		t.Errorf("expected specific page preferred, got %q", got.URL)
	}
}

func TestSelectSource_HomepageWhenNothingElse(t *testing.T) {
	matches := []model.RetrievalMatch{
		{SourceURL: "https://example.no/", Title: "Forside", Content: "velkommen", Similarity: 0.8},
	}

	got := SelectSource(matches, []string{"https://example.no/"})
	if got == nil || got.URL != "https://example.no/" {
		t.Errorf("expected homepage fallback, got %+v", got)
	}
}

func TestSelectSource_MaxScoreNotAverage(t *testing.T) {
	// One highly relevant chunk outweighs several mediocre ones.
	matches := []model.RetrievalMatch{
		{SourceURL: "https://example.no/a", Content: "aaa", Similarity: 0.95},
		{SourceURL: "https://example.no/b", Content: "bbb", Similarity: 0.7},
		{SourceURL: "https://example.no/b", Content: "bbbb", Similarity: 0.7},
		{SourceURL: "https://example.no/b", Content: "bbbbb", Similarity: 0.7},
	}

	got := SelectSource(matches, nil)
	if got == nil || got.URL != "https://example.no/a" {
		t.Errorf("expected max-score URL, got %+v", got)
	}
}

func TestSelectSource_NegativeSimilarities(t *testing.T) {
	// Cosine similarity can go below zero; the per-URL aggregate must
	// reflect the actual chunk scores, not an implicit zero floor.
	matches := []model.RetrievalMatch{
		{SourceURL: "https://example.no/a", Content: "aaa", Similarity: -0.1},
		{SourceURL: "https://example.no/b", Content: "bbb", Similarity: -0.3},
		{SourceURL: "https://example.no/b", Content: "bbbb", Similarity: -0.4},
	}

	got := SelectSource(matches, nil)
	// -0.1 vs -0.3 is outside the tie window, so chunk count must not win.
	if got == nil || got.URL != "https://example.no/a" {
		t.Errorf("expected higher-scored URL despite fewer chunks, got %+v", got)
	}
}

func TestSelectSource_TieBrokenByChunkCount(t *testing.T) {
	matches := []model.RetrievalMatch{
		{SourceURL: "https://example.no/a", Content: "aaa", Similarity: 0.80},
		{SourceURL: "https://example.no/b", Content: "bbb", Similarity: 0.78},
		{SourceURL: "https://example.no/b", Content: "bbbb", Similarity: 0.70},
	}

	got := SelectSource(matches, nil)
	// Scores within 0.05 of each other: more corroborating chunks wins.
	if got == nil || got.URL != "https://example.no/b" {
		t.Errorf("expected tie broken by chunk count, got %+v", got)
	}
}
