package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pgvector/pgvector-go"
)

// CreateNode persists an extracted node together with its embedding and
// returns the generated node ID. The in-memory ID the extractor assigned is
// not reused because it is only unique within a single run.
func (s *PGStore) CreateNode(ctx context.Context, node common.ExtractedNode, embedding []float32) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate node id: %w", err)
	}

	attrs, err := json.Marshal(node.Attributes)
	if err != nil {
		return "", fmt.Errorf("failed to encode node attributes: %w", err)
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO graph_nodes (id, category, name, attributes, embedding)
		VALUES ($1, $2, $3, $4, $5)
	`,
		id,
		string(node.Category),
		util.SanitizePostgresText(node.Name),
		attrs,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create node: %w", err)
	}
	return id, nil
}

// CreateEdge persists one typed directed edge between two stored nodes.
func (s *PGStore) CreateEdge(ctx context.Context, sourceID string, relation schema.RelationType, targetID string) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO graph_edges (source_id, relation, target_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, sourceID, string(relation), targetID)
	if err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	return nil
}

// QueryNearestByEmbedding returns up to k stored nodes of the given category
// ranked by inner product similarity to the query vector. Scores are the
// negated distance so that higher means more similar.
func (s *PGStore) QueryNearestByEmbedding(ctx context.Context, category schema.Category, vector []float32, k int) ([]NodeMatch, error) {
	embed := pgvector.NewVector(vector)

	rows, err := s.conn.Query(ctx, `
		SELECT id, name, embedding <#> $1 AS distance
		FROM graph_nodes
		WHERE category = $2
		ORDER BY distance
		LIMIT $3
	`, embed, string(category), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest nodes: %w", err)
	}
	defer rows.Close()

	matches := make([]NodeMatch, 0, k)
	for rows.Next() {
		var m NodeMatch
		var distance float32
		if err := rows.Scan(&m.ID, &m.Name, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan node match: %w", err)
		}
		m.Score = -distance
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read node matches: %w", err)
	}
	return matches, nil
}

// NodesByLabel returns all stored nodes of the given category.
func (s *PGStore) NodesByLabel(ctx context.Context, category schema.Category) ([]common.ExtractedNode, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, category, name, attributes
		FROM graph_nodes
		WHERE category = $1
		ORDER BY name
	`, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes by label: %w", err)
	}
	defer rows.Close()

	nodes := make([]common.ExtractedNode, 0)
	for rows.Next() {
		var node common.ExtractedNode
		var cat string
		var attrs []byte
		if err := rows.Scan(&node.ID, &cat, &node.Name, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node.Category = schema.Category(cat)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &node.Attributes); err != nil {
				return nil, fmt.Errorf("failed to decode node attributes: %w", err)
			}
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	return nodes, nil
}
