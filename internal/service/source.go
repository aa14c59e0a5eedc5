package service

import (
	"log/slog"
	"sort"

	"github.com/nordveil/sitechat/internal/model"
)

// scoreTieWindow: aggregate scores this close count as a tie, broken by
// chunk count (more corroborating chunks wins).
const scoreTieWindow = 0.05

// sourceAggregate accumulates per-URL evidence across used matches.
type sourceAggregate struct {
	url      string
	title    string
	content  string
	maxScore float64
	chunks   int
}

// SelectSource picks the single best attributable source URL from the
// matches that actually made it into the context. Per URL it keeps the
// max similarity across chunks (one highly relevant chunk outweighs
// several mediocre ones), a contributing-chunk count, and the longest
// chunk's content and title as representative text.
//
// URLs listed in priorityURLs are the generic/homepage partition and lose
// to any specific page regardless of score: a page about the actual topic
// beats the landing page, whose content is shallow by nature. Within a
// partition, higher aggregate score wins, with near-ties going to the URL
// with more contributing chunks. Returns nil when usedMatches is empty.
func SelectSource(usedMatches []model.RetrievalMatch, priorityURLs []string) *model.AttributedSource {
	if len(usedMatches) == 0 {
		return nil
	}

	byURL := make(map[string]*sourceAggregate)
	var order []string // first-seen order keeps ranking deterministic

	for _, m := range usedMatches {
		agg, ok := byURL[m.SourceURL]
		if !ok {
			// Seeded from the first chunk, not zero: cosine similarity may
			// be negative and a zero seed would overstate such pages.
			agg = &sourceAggregate{url: m.SourceURL, maxScore: m.Similarity}
			byURL[m.SourceURL] = agg
			order = append(order, m.SourceURL)
		}
		agg.chunks++
		if m.Similarity > agg.maxScore {
			agg.maxScore = m.Similarity
		}
		if len(m.Content) > len(agg.content) {
			agg.content = m.Content
			agg.title = m.Title
		}
	}

	generic := make(map[string]bool, len(priorityURLs))
	for _, u := range priorityURLs {
		generic[u] = true
	}

	var specific, homepage []*sourceAggregate
	for _, url := range order {
		if generic[url] {
			homepage = append(homepage, byURL[url])
		} else {
			specific = append(specific, byURL[url])
		}
	}

	candidates := specific
	if len(candidates) == 0 {
		candidates = homepage
	}

	// Rank by score alone (a windowed comparator is not a valid sort
	// ordering), then resolve near-ties against the leader by chunk count.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].maxScore > candidates[j].maxScore
	})

	best := candidates[0]
	for _, c := range candidates[1:] {
		if best.maxScore-c.maxScore > scoreTieWindow {
			break
		}
		if c.chunks > best.chunks {
			best = c
		}
	}
	slog.Debug("source selected",
		"url", best.url,
		"score", best.maxScore,
		"chunks", best.chunks,
		"specific_candidates", len(specific),
		"homepage_candidates", len(homepage),
	)

	return &model.AttributedSource{
		URL:     best.url,
		Title:   best.title,
		Content: best.content,
	}
}
