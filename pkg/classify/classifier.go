package classify

import (
	"context"
	"fmt"

	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"
)

// Classifier assigns categories and attribute roles to table columns. It
// owns one category index and one attribute index per extractable category,
// all built once at construction, and memoizes every classification in the
// persistent header cache.
type Classifier struct {
	embedder Embedder
	cache    store.HeaderCache

	categoryIndex    *Index
	attributeIndexes map[schema.Category]*Index

	topK     int
	minScore float32
}

// ClassifierParams configures NewClassifier.
type ClassifierParams struct {
	Embedder Embedder
	Cache    store.HeaderCache
}

// NewClassifier builds the embedding indexes for the category vocabulary and
// for each category's attribute vocabulary. Index construction fails closed:
// a corpus whose embeddings cannot be produced surfaces ErrIndexBuild.
func NewClassifier(ctx context.Context, params ClassifierParams) (*Classifier, error) {
	categoryIndex, err := BuildIndex(ctx, "category", schema.CategoryCorpus(), params.Embedder)
	if err != nil {
		return nil, err
	}

	attributeIndexes := make(map[schema.Category]*Index, len(schema.Categories()))
	for _, category := range schema.Categories() {
		corpus := schema.AttributeCorpus(category)
		index, err := BuildIndex(ctx, string(category), corpus, params.Embedder)
		if err != nil {
			return nil, err
		}
		attributeIndexes[category] = index
	}

	return &Classifier{
		embedder:         params.Embedder,
		cache:            params.Cache,
		categoryIndex:    categoryIndex,
		attributeIndexes: attributeIndexes,
		topK:             int(util.GetEnvNumeric("CLASSIFY_TOP_K", 1)),
		minScore:         float32(util.GetEnvNumeric("CLASSIFY_MIN_SCORE", 0)),
	}, nil
}

// ClassifyHeaders assigns a category to every column and returns the columns
// together with the header to category dictionary. A column whose best match
// does not clear the confidence floor degrades to NoLabel; classification
// never fails a run over one weak match.
func (c *Classifier) ClassifyHeaders(ctx context.Context, columns []common.ColumnDescriptor) ([]common.ColumnDescriptor, map[string]string, error) {
	labelDict := make(map[string]string, len(columns))

	for i := range columns {
		col := &columns[i]
		key := util.NormalizeHeader(col.Header)

		if key == "" && col.FirstSample() == "" {
			col.Category = schema.NoLabel
			continue
		}

		cached, err := c.cachedEntry(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		if cached != nil && cached.Validated && cached.Category != "" {
			col.Category = cached.Category
			labelDict[key] = string(col.Category)
			continue
		}

		category, err := c.classifyCategory(ctx, col)
		if err != nil {
			return nil, nil, err
		}
		col.Category = category
		labelDict[key] = string(category)

		if err := c.memoize(ctx, key, *col, ""); err != nil {
			logger.Warn("failed to cache header classification", "header", key, "error", err)
		}
	}

	return columns, labelDict, nil
}

// ClassifyAttributes assigns an attribute role to every column that carries
// an extractable category, and returns the columns together with the header
// to attribute dictionary.
func (c *Classifier) ClassifyAttributes(ctx context.Context, columns []common.ColumnDescriptor) ([]common.ColumnDescriptor, map[string]string, error) {
	attributeDict := make(map[string]string, len(columns))

	for i := range columns {
		col := &columns[i]
		if !col.Category.Extractable() {
			continue
		}
		key := util.NormalizeHeader(col.Header)

		cached, err := c.cachedEntry(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		if cached != nil && cached.Validated && (cached.ColumnAttribute != "" || cached.HeaderAttribute != "") {
			col.Attribute = cached.ColumnAttribute
			if col.Attribute == "" {
				col.Attribute = cached.HeaderAttribute
			}
			attributeDict[key] = col.Attribute
			continue
		}

		headerAttr, columnAttr, err := c.classifyAttribute(ctx, col)
		if err != nil {
			return nil, nil, err
		}
		col.Attribute = columnAttr
		if col.Attribute == "" {
			col.Attribute = headerAttr
		}
		attributeDict[key] = col.Attribute

		if err := c.memoize(ctx, key, *col, headerAttr); err != nil {
			logger.Warn("failed to cache attribute classification", "header", key, "error", err)
		}
	}

	return columns, attributeDict, nil
}

func (c *Classifier) cachedEntry(ctx context.Context, key string) (*store.HeaderCacheEntry, error) {
	if key == "" || c.cache == nil {
		return nil, nil
	}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to consult header cache: %w", err)
	}
	return entry, nil
}

func (c *Classifier) classifyCategory(ctx context.Context, col *common.ColumnDescriptor) (schema.Category, error) {
	query := classificationQuery(col.Header, col.FirstSample())

	matches, err := c.categoryIndex.Classify(ctx, c.embedder, query, c.topK)
	if err != nil {
		return "", fmt.Errorf("failed to classify header %q: %w", col.Header, err)
	}
	if len(matches) == 0 || matches[0].Score <= c.minScore {
		return schema.NoLabel, nil
	}

	category, ok := schema.ParseCategory(matches[0].Label)
	if !ok {
		return schema.NoLabel, nil
	}
	return category, nil
}

// classifyAttribute assigns the column's attribute role twice: once from the
// header text alone and once from header plus sample value. The header-level
// result is what identical headers in later tables inherit from the cache;
// the column-level result decides this column.
func (c *Classifier) classifyAttribute(ctx context.Context, col *common.ColumnDescriptor) (string, string, error) {
	index, ok := c.attributeIndexes[col.Category]
	if !ok {
		return "", "", nil
	}

	headerQuery := classificationQuery(col.Header, "")
	headerAttr, err := c.attributeFor(ctx, index, col.Category, headerQuery)
	if err != nil {
		return "", "", fmt.Errorf("failed to classify attribute of %q: %w", col.Header, err)
	}

	columnQuery := classificationQuery(col.Header, col.FirstSample())
	if columnQuery == headerQuery {
		return headerAttr, headerAttr, nil
	}
	columnAttr, err := c.attributeFor(ctx, index, col.Category, columnQuery)
	if err != nil {
		return "", "", fmt.Errorf("failed to classify attribute of %q: %w", col.Header, err)
	}
	return headerAttr, columnAttr, nil
}

func (c *Classifier) attributeFor(ctx context.Context, index *Index, category schema.Category, query string) (string, error) {
	matches, err := index.Classify(ctx, c.embedder, query, c.topK)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 || matches[0].Score <= c.minScore {
		return "", nil
	}
	if !category.HasAttribute(matches[0].Label) {
		return "", nil
	}
	return matches[0].Label, nil
}

// memoize records the column's current classification under its normalized
// header. The cache's own conflict handling protects validated entries, so
// memoization after every stage is safe.
func (c *Classifier) memoize(ctx context.Context, key string, col common.ColumnDescriptor, headerAttr string) error {
	if key == "" || c.cache == nil {
		return nil
	}
	return c.cache.Upsert(ctx, store.HeaderCacheEntry{
		Header:          key,
		Category:        col.Category,
		HeaderAttribute: headerAttr,
		ColumnAttribute: col.Attribute,
		Sample:          col.FirstSample(),
	})
}

func classificationQuery(header, sample string) string {
	header = util.StripPositionalSuffix(header)
	if sample == "" {
		return header
	}
	if header == "" {
		return sample
	}
	return header + ": " + sample
}
