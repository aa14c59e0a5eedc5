package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nordveil/sitechat/internal/model"
)

// RetrievalService runs cosine-similarity search against the pgvector
// chunk store the crawler maintains.
type RetrievalService struct {
	pool *pgxpool.Pool
}

// NewRetrievalService creates a new RetrievalService.
func NewRetrievalService(pool *pgxpool.Pool) *RetrievalService {
	return &RetrievalService{pool: pool}
}

// Search returns up to count chunks whose cosine similarity to the query
// embedding is at least threshold, ordered descending by similarity. The
// order is what context assembly and everything downstream trusts.
func (s *RetrievalService) Search(ctx context.Context, embedding []float32, count int, threshold float64) ([]model.RetrievalMatch, error) {
	query := `
		SELECT
			c.content,
			p.url,
			p.title,
			c.section,
			1 - (c.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN pages p ON p.page_id = c.page_id
		WHERE 1 - (c.embedding <=> $1) >= $2
		ORDER BY c.embedding <=> $1
		LIMIT $3
	`

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, query, vec, threshold, count)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	var results []model.RetrievalMatch
	for rows.Next() {
		var m model.RetrievalMatch
		err := rows.Scan(
			&m.Content,
			&m.SourceURL,
			&m.Title,
			&m.Section,
			&m.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		results = append(results, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector rows iteration: %w", err)
	}

	return results, nil
}
