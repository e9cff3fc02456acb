// Package classify maps column headers and attributes onto the fixed node
// vocabulary using nearest-neighbor search over label embeddings.
package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MaxDreger92/matgraph-backend/internal/util"

	"golang.org/x/sync/errgroup"
)

// ErrIndexBuild is returned when an embedding index cannot be constructed:
// the corpus is empty or the embedding provider failed for every entry.
var ErrIndexBuild = errors.New("embedding index build failed")

// Embedder is the single embedding operation the index depends on. The
// pipeline's ai.Client satisfies it; tests substitute fakes.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

// Match is one ranked classification result.
type Match struct {
	Label string
	Score float32
}

// Index is a flat in-memory nearest-neighbor index over label embeddings,
// scoped to one category. It is built once from a labeled corpus and never
// mutated afterwards; rebuilding requires a fresh corpus pull.
type Index struct {
	scope   string
	labels  []string
	vectors [][]float32
}

// BuildIndex embeds every representative text of the corpus and inserts the
// vectors into a new index. Embedding requests run concurrently with bounded
// retry; a corpus entry that still fails after retries fails the build.
func BuildIndex(
	ctx context.Context,
	scope string,
	corpus map[string]string,
	embedder Embedder,
) (*Index, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%w: empty corpus for scope %q", ErrIndexBuild, scope)
	}

	maxRetries := int(util.GetEnvNumeric("EMBED_MAX_RETRIES", 3))

	labels := make([]string, 0, len(corpus))
	for label := range corpus {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	vectors := make([][]float32, len(labels))
	var mu sync.Mutex

	eg, gCtx := errgroup.WithContext(ctx)
	for i, label := range labels {
		idx := i
		text := corpus[label]
		eg.Go(func() error {
			vec, err := util.RetryWithContext(gCtx, maxRetries, func(ctx context.Context) ([]float32, error) {
				return embedder.GenerateEmbedding(ctx, []byte(text))
			})
			if err != nil {
				return fmt.Errorf("%w: embedding %q: %v", ErrIndexBuild, labels[idx], err)
			}
			mu.Lock()
			vectors[idx] = vec
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Index{
		scope:   scope,
		labels:  labels,
		vectors: vectors,
	}, nil
}

// Scope returns the category scope the index was built for.
func (idx *Index) Scope() string {
	return idx.scope
}

// Len returns the number of labels in the index.
func (idx *Index) Len() int {
	return len(idx.labels)
}

// Classify embeds the query and returns the topK labels ranked by descending
// inner product. Vectors are ranked as the provider delivers them; the index
// never re-normalizes, so the ranking semantics belong to the embedding
// model. An empty query returns no matches.
func (idx *Index) Classify(ctx context.Context, embedder Embedder, query string, topK int) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 1
	}

	maxRetries := int(util.GetEnvNumeric("EMBED_MAX_RETRIES", 3))
	queryVec, err := util.RetryWithContext(ctx, maxRetries, func(ctx context.Context) ([]float32, error) {
		return embedder.GenerateEmbedding(ctx, []byte(query))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches := make([]Match, 0, len(idx.labels))
	for i, label := range idx.labels {
		matches = append(matches, Match{
			Label: label,
			Score: innerProduct(queryVec, idx.vectors[i]),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func innerProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
