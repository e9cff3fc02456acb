// Package store persists the pipeline's durable state: the header
// classification cache, the property graph, and the correction-round
// conversation log. The Postgres implementation lives in the same package;
// consumers depend on the interfaces only.
package store

import (
	"context"

	"github.com/MaxDreger92/matgraph-backend/pkg/ai"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
)

// HeaderCacheEntry is one memoized header classification. Header is the
// normalized header text and is unique. A validated entry has been confirmed
// by a human and is never overwritten, only filled where fields are empty.
type HeaderCacheEntry struct {
	Header          string          `json:"header"`
	Category        schema.Category `json:"category"`
	HeaderAttribute string          `json:"header_attribute"`
	ColumnAttribute string          `json:"column_attribute"`
	Sample          string          `json:"sample"`
	Validated       bool            `json:"validated"`
}

// HeaderCache is the persistent label/attribute cache keyed by normalized
// header text.
type HeaderCache interface {
	// Get returns the entry for the normalized header, or nil if absent.
	Get(ctx context.Context, header string) (*HeaderCacheEntry, error)
	// Upsert inserts or updates the entry. A validated entry's populated
	// fields are never overwritten; empty fields are filled.
	Upsert(ctx context.Context, entry HeaderCacheEntry) error
	// Validate atomically flips the entry's validated flag from false to
	// true. It returns false when the entry was already validated or does
	// not exist.
	Validate(ctx context.Context, header string) (bool, error)
}

// NodeMatch is one result of a nearest-neighbor query over stored nodes.
type NodeMatch struct {
	ID    string
	Name  string
	Score float32
}

// GraphStore persists extracted nodes and relationship triples.
type GraphStore interface {
	CreateNode(ctx context.Context, node common.ExtractedNode, embedding []float32) (string, error)
	CreateEdge(ctx context.Context, sourceID string, relation schema.RelationType, targetID string) error
	QueryNearestByEmbedding(ctx context.Context, category schema.Category, vector []float32, k int) ([]NodeMatch, error)
	NodesByLabel(ctx context.Context, category schema.Category) ([]common.ExtractedNode, error)
}

// ConversationLog retains every correction-round exchange for audit, keyed by
// the pipeline run that produced it.
type ConversationLog interface {
	SaveTurns(ctx context.Context, runID string, turns []ai.ChatMessage) error
	Turns(ctx context.Context, runID string) ([]ai.ChatMessage, error)
}
