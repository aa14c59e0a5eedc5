package service

import (
	"fmt"

	"github.com/nordveil/sitechat/internal/model"
)

// SystemPrompt is the grounding prompt for answer generation. Hardcoded as
// a named constant — prompt iteration is high-frequency and a constant is
// easy to find; template files add indirection without benefit here.
const SystemPrompt = `You are a friendly assistant answering visitors' questions about this website using ONLY the provided context.
Rules:
1) If the answer is not clearly supported by the context, say you don't know and suggest browsing the site.
2) Do NOT use outside knowledge. Do NOT guess.
3) Answer in the same language the visitor writes in.
4) Keep answers short and concrete; this is a chat widget, not an essay.`

// userMessageFormat wraps the context block and the question. Its token
// cost with empty content is the fixed prefix the assembler reserves.
const userMessageFormat = "Context:\n%s\n\nQuestion: %s"

// BuildUserMessage builds the final user message with context + question.
func BuildUserMessage(contextBlock, question string) string {
	return fmt.Sprintf(userMessageFormat, contextBlock, question)
}

// ContextPrefixTokens returns the token cost of the wrapper text around
// the context block, excluding the block and question themselves.
func ContextPrefixTokens(est Estimator) int {
	return est.Estimate(fmt.Sprintf(userMessageFormat, "", ""))
}

// PromptAssembly is the complete, budget-checked input to a generation
// call: system prompt, trimmed history, and the final user message with
// the context block already folded in. Modelling this as a value type
// (rather than splicing arrays at the call site) keeps the budget
// invariant visible in one place.
type PromptAssembly struct {
	System      string
	Turns       []model.ChatTurn
	UserMessage string
}

// Messages returns the flat, oldest-first message list for the LLM:
// the trimmed history followed by the final user message.
func (p PromptAssembly) Messages() []model.ChatTurn {
	msgs := make([]model.ChatTurn, 0, len(p.Turns)+1)
	msgs = append(msgs, p.Turns...)
	msgs = append(msgs, model.ChatTurn{Role: model.RoleUser, Content: p.UserMessage})
	return msgs
}
