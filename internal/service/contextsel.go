package service

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/nordveil/sitechat/internal/model"
)

// Assembler builds the bounded context block from ranked retrieval
// matches. The ceiling covers the whole generation request; the caller
// reports what the system prompt, query and history already reserve.
type Assembler struct {
	est            Estimator
	ceiling        int
	safetyMargin   float64
	minChunkTokens int
	prefixTokens   int
}

// NewAssembler creates an Assembler. safetyMargin (e.g. 0.05) is shaved
// off the available budget to absorb the char→token estimate's
// imprecision; minChunkTokens is the smallest truncated fragment still
// assumed to carry usable information.
func NewAssembler(est Estimator, ceiling int, safetyMargin float64, minChunkTokens int) Assembler {
	return Assembler{
		est:            est,
		ceiling:        ceiling,
		safetyMargin:   safetyMargin,
		minChunkTokens: minChunkTokens,
		prefixTokens:   ContextPrefixTokens(est),
	}
}

// Assemble selects an in-order prefix of matches that fits the remaining
// token budget and concatenates their content, each entry carrying a
// 1-based ordinal marker. Matches arrive ranked by the retrieval engine
// and are never re-sorted here — re-sorting would silently discard that
// relevance ordering. A match that does not fit whole is included
// truncated when at least minChunkTokens of budget remain; everything
// ranked below it is discarded.
//
// When reserved tokens alone exhaust the ceiling the result is an empty
// context with no matches. That is a degraded state, not an error: the
// caller proceeds to generation ungrounded or substitutes a fallback.
func (a Assembler) Assemble(matches []model.RetrievalMatch, systemPromptTokens, queryTokens, historyTokens int) model.SelectedContext {
	reserved := systemPromptTokens + queryTokens + historyTokens + a.prefixTokens
	available := a.ceiling - reserved
	safeAvailable := int(math.Floor(float64(available) * (1 - a.safetyMargin)))

	if safeAvailable <= 0 {
		slog.Warn("context budget exhausted by reservations",
			"ceiling", a.ceiling,
			"reserved", reserved,
		)
		return model.SelectedContext{}
	}

	var sb strings.Builder
	var used []model.RetrievalMatch
	total := 0

	for _, m := range matches {
		tokens := a.est.Estimate(m.Content)
		remaining := safeAvailable - total

		if tokens <= remaining {
			appendEntry(&sb, len(used)+1, m.Content)
			used = append(used, m)
			total += tokens
			continue
		}

		if remaining >= a.minChunkTokens {
			m.Content = a.est.Truncate(m.Content, remaining)
			appendEntry(&sb, len(used)+1, m.Content)
			used = append(used, m)
			total += a.est.Estimate(m.Content)
		}
		break
	}

	return model.SelectedContext{
		Text:        sb.String(),
		UsedMatches: used,
		TotalTokens: total,
	}
}

// appendEntry writes one ordinal-marked context entry, blank-line
// separated from the previous one.
func appendEntry(sb *strings.Builder, ordinal int, content string) {
	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(sb, "[%d] %s", ordinal, content)
}
