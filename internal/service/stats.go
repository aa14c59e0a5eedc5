package service

import (
	"sync"
	"time"

	"github.com/nordveil/sitechat/internal/model"
)

// Stats aggregates pipeline counters across requests for the admin
// diagnostics endpoint. Per-request detail lives in the structured query
// log; this is the since-start rollup.
type Stats struct {
	mu        sync.Mutex
	startedAt time.Time

	requests  int64
	streamed  int64
	fallbacks int64
	errors    int64

	embedMS    int64
	searchMS   int64
	generateMS int64
	totalMS    int64
}

// NewStats creates a Stats aggregator.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now().UTC()}
}

// RecordRequest accumulates one completed chat request.
func (s *Stats) RecordRequest(streamed, fallback bool, embedMS, searchMS, generateMS, totalMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	if streamed {
		s.streamed++
	}
	if fallback {
		s.fallbacks++
	}
	s.embedMS += embedMS
	s.searchMS += searchMS
	s.generateMS += generateMS
	s.totalMS += totalMS
}

// RecordError accumulates one failed chat request.
func (s *Stats) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.errors++
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() model.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.StatsSnapshot{
		StartedAt:       s.startedAt,
		Requests:        s.requests,
		Streamed:        s.streamed,
		Fallbacks:       s.fallbacks,
		Errors:          s.errors,
		EmbedMSTotal:    s.embedMS,
		SearchMSTotal:   s.searchMS,
		GenerateMSTotal: s.generateMS,
		TotalMSTotal:    s.totalMS,
	}
}
