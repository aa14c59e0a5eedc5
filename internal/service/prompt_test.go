package service

import (
	"strings"
	"testing"

	"github.com/nordveil/sitechat/internal/model"
)

func TestBuildUserMessage(t *testing.T) {
	msg := BuildUserMessage("[1] noe kontekst", "hva koster det?")

	if !strings.Contains(msg, "Context:\n[1] noe kontekst") {
		t.Errorf("expected context block in message, got %q", msg)
	}
	if !strings.Contains(msg, "Question: hva koster det?") {
		t.Errorf("expected question in message, got %q", msg)
	}
}

func TestContextPrefixTokens(t *testing.T) {
	est := NewEstimator(0.25)

	got := ContextPrefixTokens(est)
	if got <= 0 {
		t.Errorf("expected positive prefix cost, got %d", got)
	}
	if got != est.Estimate(BuildUserMessage("", "")) {
		t.Errorf("prefix cost must match the empty wrapper, got %d", got)
	}
}

func TestPromptAssembly_Messages(t *testing.T) {
	p := PromptAssembly{
		System: SystemPrompt,
		Turns: []model.ChatTurn{
			{Role: model.RoleUser, Content: "hei"},
			{Role: model.RoleAssistant, Content: "hei!"},
		},
		UserMessage: "Context:\n...\n\nQuestion: hva nå?",
	}

	msgs := p.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hei" || msgs[1].Content != "hei!" {
		t.Error("history turns must come first, in order")
	}
	last := msgs[2]
	if last.Role != model.RoleUser || last.Content != p.UserMessage {
		t.Errorf("final message must be the wrapped user message, got %+v", last)
	}
}
