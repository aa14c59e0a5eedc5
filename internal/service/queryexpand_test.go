package service

import (
	"strings"
	"testing"

	"github.com/nordveil/sitechat/internal/model"
)

func TestBuildContextualQuery_ShortFollowUp(t *testing.T) {
	history := []model.ChatTurn{
		{Role: model.RoleAssistant, Content: "today or the weekend?"},
	}

	got := BuildContextualQuery("today", history, 3, 200)
	want := "today today or the weekend?"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuildContextualQuery_LongQueryUnchanged(t *testing.T) {
	history := []model.ChatTurn{
		{Role: model.RoleAssistant, Content: "something earlier"},
	}

	query := "hvor lang er turen til toppen egentlig"
	if got := BuildContextualQuery(query, history, 3, 200); got != query {
		t.Errorf("expected long query unchanged, got %q", got)
	}
}

func TestBuildContextualQuery_EmptyHistoryUnchanged(t *testing.T) {
	if got := BuildContextualQuery("why", nil, 3, 200); got != "why" {
		t.Errorf("expected query unchanged with empty history, got %q", got)
	}
}

func TestBuildContextualQuery_SkipsLongTurns(t *testing.T) {
	history := []model.ChatTurn{
		{Role: model.RoleAssistant, Content: strings.Repeat("lang og generisk tekst ", 20)},
		{Role: model.RoleUser, Content: "fjelltur"},
	}

	got := BuildContextualQuery("ja", history, 3, 200)
	want := "ja fjelltur"
	if got != want {
		t.Errorf("expected long turn excluded: want %q, got %q", want, got)
	}
}

func TestBuildContextualQuery_OriginalQueryFirst(t *testing.T) {
	history := []model.ChatTurn{
		{Role: model.RoleUser, Content: "finnes det turer?"},
		{Role: model.RoleAssistant, Content: "ja, mange"},
	}

	got := BuildContextualQuery("hvor", history, 3, 200)
	if !strings.HasPrefix(got, "hvor ") {
		t.Errorf("original query must come first, got %q", got)
	}
	if got != "hvor finnes det turer? ja, mange" {
		t.Errorf("expected chronological context after query, got %q", got)
	}
}
