package service

import (
	"github.com/nordveil/sitechat/internal/model"
)

// partialFraction: partial inclusion of the next unit is only attempted
// while the running total is below this share of the budget. Past it, the
// little room left would only strand fragments.
const partialFractionPct = 90

// TrimHistory selects a contiguous trailing suffix of history that fits
// maxTokens, walking from the newest turn backward. An assistant turn
// directly followed by a user turn is treated as one atomic unit: that is
// the clarifying-question/short-answer shape ("today or this weekend?" /
// "today"), and splitting it strands an unintelligible fragment.
//
// When the oldest candidate unit does not fit whole and the running total
// is still under 90% of the budget, a truncated version is included: for a
// pair the assistant content is truncated first (keeping both turns), and
// only if even that fails is the user turn kept alone, truncated. After a
// partial inclusion, or once a unit does not fit at all, accumulation
// stops — the kept history is always a suffix, never a sparse subset.
//
// The returned slice is ordered oldest-to-newest and shares no memory with
// the input.
func TrimHistory(est Estimator, history []model.ChatTurn, maxTokens int) []model.ChatTurn {
	if maxTokens <= 0 || len(history) == 0 {
		return nil
	}

	var kept []model.ChatTurn
	total := 0
	partialCutoff := maxTokens * partialFractionPct / 100

	i := len(history) - 1
	for i >= 0 {
		// Unit boundaries: (assistant, user) adjacent pairs are atomic.
		pair := history[i].Role == model.RoleUser && i > 0 && history[i-1].Role == model.RoleAssistant

		var unit []model.ChatTurn
		if pair {
			unit = []model.ChatTurn{history[i-1], history[i]}
			i -= 2
		} else {
			unit = []model.ChatTurn{history[i]}
			i--
		}

		unitTokens := 0
		for _, t := range unit {
			unitTokens += est.Estimate(t.Content)
		}

		if total+unitTokens <= maxTokens {
			kept = append(unit, kept...)
			total += unitTokens
			continue
		}

		if total >= partialCutoff {
			break
		}

		remaining := maxTokens - total
		kept = append(truncateUnit(est, unit, remaining), kept...)
		break
	}

	return kept
}

// truncateUnit fits as much of a non-fitting unit as remaining allows.
func truncateUnit(est Estimator, unit []model.ChatTurn, remaining int) []model.ChatTurn {
	if len(unit) == 2 {
		assistant, user := unit[0], unit[1]
		userTokens := est.Estimate(user.Content)
		if userTokens < remaining {
			assistant.Content = est.Truncate(assistant.Content, remaining-userTokens)
			if assistant.Content != "" {
				return []model.ChatTurn{assistant, user}
			}
			return []model.ChatTurn{user}
		}
		user.Content = est.Truncate(user.Content, remaining)
		if user.Content != "" {
			return []model.ChatTurn{user}
		}
		return nil
	}

	turn := unit[0]
	turn.Content = est.Truncate(turn.Content, remaining)
	if turn.Content != "" {
		return []model.ChatTurn{turn}
	}
	return nil
}
