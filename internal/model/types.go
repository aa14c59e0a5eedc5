// Package model defines the domain types for the chat API.
package model

import "time"

// Turn roles as supplied by the chat widget and sent to the LLM.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is a single message in the conversation history, oldest first.
// The pipeline never mutates the caller's history; trimming and truncation
// always derive copies.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the POST /v1/chat request body.
type ChatRequest struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history"`
	Stream  bool       `json:"stream"`
}

// ChatResponse is the non-streaming POST /v1/chat response body.
type ChatResponse struct {
	ID      string             `json:"id"`
	Answer  string             `json:"answer"`
	Sources []AttributedSource `json:"sources"`
	Meta    *ChatMeta          `json:"meta,omitempty"`
}

// ChatMeta carries per-request latency and budgeting diagnostics.
// Embed, search and time-to-first-token dominate perceived latency and
// must be independently observable for tuning.
type ChatMeta struct {
	EmbedMS       int64 `json:"embed_ms"`
	SearchMS      int64 `json:"search_ms"`
	FirstTokenMS  int64 `json:"first_token_ms,omitempty"`
	TotalMS       int64 `json:"total_ms"`
	ContextChunks int   `json:"context_chunks"`
	ContextTokens int   `json:"context_tokens_est"`
	Fallback      bool  `json:"fallback,omitempty"`
}

// StreamEvent is one server-sent event in the streaming response.
// Type is "token", "sources", "meta", "done" or "error".
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// RetrievalMatch is one ranked result from the vector store. The list a
// search returns is ordered descending by similarity and that order is
// authoritative: context assembly never re-sorts it.
type RetrievalMatch struct {
	Content    string  `json:"content"`
	SourceURL  string  `json:"source_url"`
	Title      string  `json:"title"`
	Section    string  `json:"section"`
	Similarity float64 `json:"similarity"`
}

// SelectedContext is the assembled, budget-bounded context block.
// Recomputed per request, never persisted.
type SelectedContext struct {
	Text        string
	UsedMatches []RetrievalMatch
	TotalTokens int
}

// AttributedSource is the single source chosen for display alongside the
// answer.
type AttributedSource struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LoginRequest is the POST /v1/admin/login request body.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is the POST /v1/admin/login response body.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in_hours"`
}

// StatsSnapshot is the GET /v1/admin/stats response body: cumulative
// pipeline counters since process start.
type StatsSnapshot struct {
	StartedAt       time.Time `json:"started_at"`
	Requests        int64     `json:"requests"`
	Streamed        int64     `json:"streamed"`
	Fallbacks       int64     `json:"fallbacks"`
	Errors          int64     `json:"errors"`
	EmbedMSTotal    int64     `json:"embed_ms_total"`
	SearchMSTotal   int64     `json:"search_ms_total"`
	GenerateMSTotal int64     `json:"generate_ms_total"`
	TotalMSTotal    int64     `json:"total_ms_total"`
}

// ChatLog holds all fields for the structured per-request log line.
type ChatLog struct {
	Timestamp        time.Time `json:"ts"`
	RequestID        string    `json:"request_id"`
	AnswerID         string    `json:"answer_id"`
	MessageHash      string    `json:"message_hash"`
	HistoryTurns     int       `json:"history_turns"`
	HistoryKept      int       `json:"history_kept"`
	QueryExpanded    bool      `json:"query_expanded"`
	NumMatches       int       `json:"num_matches"`
	ContextChunks    int       `json:"context_chunks"`
	ContextTokensEst int       `json:"context_tokens_est"`
	SourceURL        string    `json:"source_url"`
	Fallback         bool      `json:"fallback"`
	Streamed         bool      `json:"streamed"`
	LatencyMSEmbed   int64     `json:"latency_ms_embed"`
	LatencyMSSearch  int64     `json:"latency_ms_search"`
	LatencyMSFirst   int64     `json:"latency_ms_first_token"`
	LatencyMSTotal   int64     `json:"latency_ms_total"`
	HTTPStatus       int       `json:"http_status"`
}
