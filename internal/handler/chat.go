// Package handler implements HTTP handlers for the chat API.
package handler

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nordveil/sitechat/internal/config"
	"github.com/nordveil/sitechat/internal/model"
	"github.com/nordveil/sitechat/internal/service"
)

// Embedder turns text into a retrieval vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns ranked matches for a query embedding, descending by
// similarity.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, count int, threshold float64) ([]model.RetrievalMatch, error)
}

// Generator produces the grounded answer, buffered or streamed.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, messages []model.ChatTurn) (*service.LLMResponse, error)
	GenerateStream(ctx context.Context, systemPrompt string, messages []model.ChatTurn) (<-chan service.StreamToken, error)
}

// ChatHandler handles POST /v1/chat requests.
type ChatHandler struct {
	cfg       *config.Config
	est       service.Estimator
	assembler service.Assembler
	embed     Embedder
	search    Searcher
	llm       Generator
	stats     *service.Stats
}

// NewChatHandler creates a ChatHandler with all required collaborators.
func NewChatHandler(cfg *config.Config, embed Embedder, search Searcher, llm Generator, stats *service.Stats) *ChatHandler {
	est := service.NewEstimator(cfg.CharsPerToken)
	return &ChatHandler{
		cfg:       cfg,
		est:       est,
		assembler: service.NewAssembler(est, cfg.ContextTokenCeiling, cfg.SafetyMargin, cfg.MinChunkTokens),
		embed:     embed,
		search:    search,
		llm:       llm,
		stats:     stats,
	}
}

// Handle processes a POST /v1/chat request through the full pipeline:
// build contextual query → embed → search → trim history → assemble
// context → select source → generate → stream/emit answer.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	totalStart := time.Now()

	requestID := chimw.GetReqID(ctx)

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}
	for _, t := range req.History {
		if t.Role != model.RoleUser && t.Role != model.RoleAssistant {
			writeError(w, http.StatusBadRequest, "bad_request", "history roles must be user or assistant")
			return
		}
	}

	streaming := req.Stream || r.Header.Get("Accept") == "text/event-stream"

	clog := &model.ChatLog{
		Timestamp:    time.Now().UTC(),
		RequestID:    requestID,
		AnswerID:     uuid.NewString(),
		MessageHash:  hashMessage(req.Message),
		HistoryTurns: len(req.History),
		Streamed:     streaming,
	}

	// ── Stage 1: Contextual query ────────────────────────
	contextualQuery := service.BuildContextualQuery(
		req.Message, req.History,
		h.cfg.QueryExpandMaxWords, h.cfg.QueryExpandTurnMaxChars,
	)
	clog.QueryExpanded = contextualQuery != req.Message

	// ── Stage 2: Embed ───────────────────────────────────
	embedStart := time.Now()
	embedding, err := h.embed.Embed(ctx, contextualQuery)
	clog.LatencyMSEmbed = time.Since(embedStart).Milliseconds()
	if err != nil {
		slog.Error("failed to embed query", "error", err, "request_id", requestID)
		h.stats.RecordError()
		h.fail(w, streaming, "embed_unavailable", "failed to embed query")
		h.emitChatLog(clog, http.StatusBadGateway, totalStart)
		return
	}

	// ── Stage 3: Retrieve ────────────────────────────────
	searchStart := time.Now()
	matches, err := h.search.Search(ctx, embedding, h.cfg.SearchCount, h.cfg.SearchThreshold)
	clog.LatencyMSSearch = time.Since(searchStart).Milliseconds()
	if err != nil {
		slog.Error("search failed", "error", err, "request_id", requestID)
		h.stats.RecordError()
		h.fail(w, streaming, "search_unavailable", "retrieval failed")
		h.emitChatLog(clog, http.StatusBadGateway, totalStart)
		return
	}
	clog.NumMatches = len(matches)

	// ── Stage 4: Empty retrieval → fallback, no LLM call ─
	if len(matches) == 0 {
		slog.Info("no matches, returning fallback", "request_id", requestID)
		clog.Fallback = true
		h.respondFallback(w, streaming, clog, totalStart)
		return
	}

	// ── Stage 5: Trim history ────────────────────────────
	trimmed := service.TrimHistory(h.est, req.History, h.cfg.HistoryTokenCeiling)
	clog.HistoryKept = len(trimmed)

	historyTokens := 0
	for _, t := range trimmed {
		historyTokens += h.est.Estimate(t.Content)
	}

	// ── Stage 6: Assemble context ────────────────────────
	selected := h.assembler.Assemble(
		matches,
		h.est.Estimate(service.SystemPrompt),
		h.est.Estimate(req.Message),
		historyTokens,
	)
	clog.ContextChunks = len(selected.UsedMatches)
	clog.ContextTokensEst = selected.TotalTokens
	if len(selected.UsedMatches) == 0 {
		// Degraded: generation proceeds ungrounded.
		slog.Warn("empty context after budgeting", "request_id", requestID)
	}

	// ── Stage 7: Select source ───────────────────────────
	source := service.SelectSource(selected.UsedMatches, h.cfg.PriorityURLs)
	if source != nil {
		clog.SourceURL = source.URL
	}

	// ── Stage 8: Build prompt ────────────────────────────
	prompt := service.PromptAssembly{
		System:      service.SystemPrompt,
		Turns:       trimmed,
		UserMessage: service.BuildUserMessage(selected.Text, req.Message),
	}

	// ── Stage 9: Generate ────────────────────────────────
	if streaming {
		h.streamAnswer(ctx, w, prompt, source, clog, totalStart)
		return
	}
	h.bufferedAnswer(ctx, w, prompt, source, clog, totalStart)
}

// bufferedAnswer runs the non-streaming fallback mode.
func (h *ChatHandler) bufferedAnswer(ctx context.Context, w http.ResponseWriter, prompt service.PromptAssembly, source *model.AttributedSource, clog *model.ChatLog, totalStart time.Time) {
	llmStart := time.Now()
	llmResp, err := h.llm.Generate(ctx, prompt.System, prompt.Messages())
	generateMS := time.Since(llmStart).Milliseconds()

	if err != nil {
		slog.Error("LLM call failed", "error", err, "request_id", clog.RequestID)
		h.stats.RecordError()
		writeError(w, http.StatusBadGateway, "llm_unavailable", "LLM service unavailable")
		h.emitChatLog(clog, http.StatusBadGateway, totalStart)
		return
	}

	resp := &model.ChatResponse{
		ID:      clog.AnswerID,
		Answer:  llmResp.Text,
		Sources: sourceList(source),
		Meta: &model.ChatMeta{
			EmbedMS:       clog.LatencyMSEmbed,
			SearchMS:      clog.LatencyMSSearch,
			TotalMS:       time.Since(totalStart).Milliseconds(),
			ContextChunks: clog.ContextChunks,
			ContextTokens: clog.ContextTokensEst,
		},
	}

	writeJSON(w, http.StatusOK, resp)
	h.stats.RecordRequest(false, false, clog.LatencyMSEmbed, clog.LatencyMSSearch, generateMS, resp.Meta.TotalMS)
	h.emitChatLog(clog, http.StatusOK, totalStart)
}

// streamAnswer forwards generated tokens to the client as they arrive.
// Time-to-first-token is the primary product metric, so nothing is
// buffered: each token event is flushed immediately. If the client goes
// away the upstream stream is abandoned via ctx.
func (h *ChatHandler) streamAnswer(ctx context.Context, w http.ResponseWriter, prompt service.PromptAssembly, source *model.AttributedSource, clog *model.ChatLog, totalStart time.Time) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}

	llmStart := time.Now()
	tokens, err := h.llm.GenerateStream(ctx, prompt.System, prompt.Messages())
	if err != nil {
		slog.Error("LLM stream failed to start", "error", err, "request_id", clog.RequestID)
		h.stats.RecordError()
		writeError(w, http.StatusBadGateway, "llm_unavailable", "LLM service unavailable")
		h.emitChatLog(clog, http.StatusBadGateway, totalStart)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// The source is known before the first token; emit it early so the
	// widget can render attribution while the answer types out.
	if source != nil {
		writeSSE(w, flusher, model.StreamEvent{Type: "sources", Data: sourceList(source)})
	}

	firstToken := true
	for tok := range tokens {
		select {
		case <-ctx.Done():
			// Client disconnected; abandon without aggregation.
			slog.Info("client disconnected mid-stream", "request_id", clog.RequestID)
			h.emitChatLog(clog, http.StatusOK, totalStart)
			return
		default:
		}

		if tok.Err != nil {
			// Tokens already emitted stay valid; the error is explicit.
			slog.Error("LLM stream error", "error", tok.Err, "request_id", clog.RequestID)
			writeSSE(w, flusher, model.StreamEvent{Type: "error", Data: "generation failed"})
			h.stats.RecordError()
			h.emitChatLog(clog, http.StatusOK, totalStart)
			return
		}
		if tok.Done {
			break
		}

		if firstToken {
			clog.LatencyMSFirst = time.Since(llmStart).Milliseconds()
			firstToken = false
		}
		writeSSE(w, flusher, model.StreamEvent{Type: "token", Data: tok.Text})
	}

	totalMS := time.Since(totalStart).Milliseconds()
	writeSSE(w, flusher, model.StreamEvent{Type: "meta", Data: &model.ChatMeta{
		EmbedMS:       clog.LatencyMSEmbed,
		SearchMS:      clog.LatencyMSSearch,
		FirstTokenMS:  clog.LatencyMSFirst,
		TotalMS:       totalMS,
		ContextChunks: clog.ContextChunks,
		ContextTokens: clog.ContextTokensEst,
	}})
	writeSSE(w, flusher, model.StreamEvent{Type: "done"})

	h.stats.RecordRequest(true, false, clog.LatencyMSEmbed, clog.LatencyMSSearch, time.Since(llmStart).Milliseconds(), totalMS)
	h.emitChatLog(clog, http.StatusOK, totalStart)
}

// respondFallback answers with the fixed no-information message. No
// generation call is made.
func (h *ChatHandler) respondFallback(w http.ResponseWriter, streaming bool, clog *model.ChatLog, totalStart time.Time) {
	totalMS := time.Since(totalStart).Milliseconds()
	meta := &model.ChatMeta{
		EmbedMS:  clog.LatencyMSEmbed,
		SearchMS: clog.LatencyMSSearch,
		TotalMS:  totalMS,
		Fallback: true,
	}

	if streaming {
		if flusher, ok := w.(http.Flusher); ok {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			writeSSE(w, flusher, model.StreamEvent{Type: "token", Data: h.cfg.FallbackAnswer})
			writeSSE(w, flusher, model.StreamEvent{Type: "meta", Data: meta})
			writeSSE(w, flusher, model.StreamEvent{Type: "done"})
		}
	} else {
		writeJSON(w, http.StatusOK, &model.ChatResponse{
			ID:      clog.AnswerID,
			Answer:  h.cfg.FallbackAnswer,
			Sources: []model.AttributedSource{},
			Meta:    meta,
		})
	}

	h.stats.RecordRequest(streaming, true, clog.LatencyMSEmbed, clog.LatencyMSSearch, 0, totalMS)
	h.emitChatLog(clog, http.StatusOK, totalStart)
}

// fail writes a request-fatal error in the right shape for the mode.
func (h *ChatHandler) fail(w http.ResponseWriter, streaming bool, code, message string) {
	if streaming {
		if flusher, ok := w.(http.Flusher); ok {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			writeSSE(w, flusher, model.StreamEvent{Type: "error", Data: message})
			return
		}
	}
	writeError(w, http.StatusBadGateway, code, message)
}

// emitChatLog writes the structured per-request log line.
func (h *ChatHandler) emitChatLog(clog *model.ChatLog, httpStatus int, totalStart time.Time) {
	clog.HTTPStatus = httpStatus
	clog.LatencyMSTotal = time.Since(totalStart).Milliseconds()

	slog.Info("chat",
		"ts", clog.Timestamp.Format(time.RFC3339),
		"request_id", clog.RequestID,
		"answer_id", clog.AnswerID,
		"message_hash", clog.MessageHash,
		"history_turns", clog.HistoryTurns,
		"history_kept", clog.HistoryKept,
		"query_expanded", clog.QueryExpanded,
		"num_matches", clog.NumMatches,
		"context_chunks", clog.ContextChunks,
		"context_tokens_est", clog.ContextTokensEst,
		"source_url", clog.SourceURL,
		"fallback", clog.Fallback,
		"streamed", clog.Streamed,
		"latency_ms_embed", clog.LatencyMSEmbed,
		"latency_ms_search", clog.LatencyMSSearch,
		"latency_ms_first_token", clog.LatencyMSFirst,
		"latency_ms_total", clog.LatencyMSTotal,
		"http_status", clog.HTTPStatus,
	)
}

// hashMessage returns SHA-256 hex of the message, so logs never carry
// visitor text verbatim.
func hashMessage(message string) string {
	h := sha256.Sum256([]byte(message))
	return fmt.Sprintf("%x", h)
}

func sourceList(source *model.AttributedSource) []model.AttributedSource {
	if source == nil {
		return []model.AttributedSource{}
	}
	return []model.AttributedSource{*source}
}

// writeSSE writes one event as an SSE data line and flushes it.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev model.StreamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal stream event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError writes a standard error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, model.ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}
