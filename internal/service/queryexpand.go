package service

import (
	"strings"
	"unicode/utf8"

	"github.com/nordveil/sitechat/internal/model"
)

// BuildContextualQuery expands a short follow-up query with conversation
// text before it is embedded for retrieval. A follow-up like "today" or
// "a hike" carries no retrievable signal on its own; the embedding needs
// the surrounding conversation to land near the right chunks.
//
// Queries longer than maxWords are trusted as self-contained and returned
// unchanged, as is any query when history is empty. Otherwise the whole
// history is scanned in chronological order and every turn at or under
// turnMaxChars runes is appended after the original query — long turns
// are skipped as too generic to sharpen the embedding. The original query
// always comes first so the retrieval signal is not diluted.
//
// The result is used only for embedding and never shown to the user, so
// no token ceiling applies here.
func BuildContextualQuery(query string, history []model.ChatTurn, maxWords, turnMaxChars int) string {
	if len(strings.Fields(query)) > maxWords || len(history) == 0 {
		return query
	}

	parts := []string{query}
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		if utf8.RuneCountInString(content) > turnMaxChars {
			continue
		}
		parts = append(parts, content)
	}

	return strings.Join(parts, " ")
}
