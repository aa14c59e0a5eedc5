package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nordveil/sitechat/internal/model"
)

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
const anthropicAPIVersion = "2023-06-01"

// streamChanBuffer decouples upstream reads from downstream writes so a
// slow SSE consumer does not stall the HTTP body read immediately.
const streamChanBuffer = 100

// LLMResponse holds a buffered generation result.
type LLMResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// StreamToken is one element of a streaming generation. Exactly one
// element with Done or Err set terminates the stream.
type StreamToken struct {
	Text string
	Done bool
	Err  error
}

// LLMService handles communication with the Anthropic Messages API.
type LLMService struct {
	model     string
	apiKey    string
	maxTokens int
	endpoint  string
	client    *http.Client
}

// NewLLMService creates a new LLMService.
func NewLLMService(llmModel, apiKey string, maxTokens int) *LLMService {
	return &LLMService{
		model:     llmModel,
		apiKey:    apiKey,
		maxTokens: maxTokens,
		endpoint:  anthropicMessagesURL,
		client: &http.Client{
			Timeout: 300 * time.Second, // streams are long-lived
		},
	}
}

// Model returns the configured model name.
func (s *LLMService) Model() string {
	return s.model
}

// Generate sends the prompt and returns the complete response (the
// non-streaming fallback mode).
func (s *LLMService) Generate(ctx context.Context, systemPrompt string, messages []model.ChatTurn) (*LLMResponse, error) {
	start := time.Now()

	respBody, status, err := s.post(ctx, s.buildRequest(systemPrompt, messages, false))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("Anthropic API returned %d: %s", status, string(respBody))
	}

	var anthropicResp anthropicResponse
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var text string
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &LLMResponse{
		Text:             text,
		PromptTokens:     anthropicResp.Usage.InputTokens,
		CompletionTokens: anthropicResp.Usage.OutputTokens,
		Latency:          time.Since(start),
	}, nil
}

// GenerateStream sends the prompt with streaming enabled and returns a
// channel of tokens. The channel is single-pass and closed after the
// terminal element. Cancelling ctx abandons the upstream stream; no
// buffered aggregation is completed on behalf of a gone consumer.
// Malformed stream events are dropped with a warning — one bad fragment
// must never abort the whole stream.
func (s *LLMService) GenerateStream(ctx context.Context, systemPrompt string, messages []model.ChatTurn) (<-chan StreamToken, error) {
	bodyBytes, err := json.Marshal(s.buildRequest(systemPrompt, messages, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("Anthropic API returned %d: %s", resp.StatusCode, string(respBody))
	}

	ch := make(chan StreamToken, streamChanBuffer)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		// A gone consumer stops reading the channel; every send must stay
		// abortable through ctx or this goroutine parks forever once the
		// buffer fills and the response body is never released.
		send := func(tok StreamToken) bool {
			select {
			case ch <- tok:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				send(StreamToken{Done: true, Err: ctx.Err()})
				return
			default:
			}

			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")

			var ev anthropicStreamEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				slog.Warn("malformed stream event dropped", "error", err)
				continue
			}

			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Text != "" {
					if !send(StreamToken{Text: ev.Delta.Text}) {
						return
					}
				}
			case "message_stop":
				send(StreamToken{Done: true})
				return
			case "error":
				send(StreamToken{Done: true, Err: fmt.Errorf("stream error: %s", ev.Error.Message)})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(StreamToken{Done: true, Err: fmt.Errorf("read stream: %w", err)})
			return
		}
		// Upstream closed without an explicit stop; treat as done.
		send(StreamToken{Done: true})
	}()

	return ch, nil
}

func (s *LLMService) buildRequest(systemPrompt string, messages []model.ChatTurn, stream bool) anthropicRequest {
	msgs := make([]anthropicMessage, len(messages))
	for i, m := range messages {
		msgs[i] = anthropicMessage{Role: m.Role, Content: m.Content}
	}
	return anthropicRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    systemPrompt,
		Messages:  msgs,
		Stream:    stream,
	}
}

func (s *LLMService) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
}

func (s *LLMService) post(ctx context.Context, body anthropicRequest) ([]byte, int, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// Anthropic API types

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string                  `json:"id"`
	Type    string                  `json:"type"`
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
