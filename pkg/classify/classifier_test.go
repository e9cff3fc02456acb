package classify

import (
	"context"
	"testing"

	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"
)

// memoryCache is an in-memory HeaderCache for tests.
type memoryCache struct {
	entries map[string]store.HeaderCacheEntry
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]store.HeaderCacheEntry)}
}

func (c *memoryCache) Get(ctx context.Context, header string) (*store.HeaderCacheEntry, error) {
	if entry, ok := c.entries[header]; ok {
		copied := entry
		return &copied, nil
	}
	return nil, nil
}

func (c *memoryCache) Upsert(ctx context.Context, entry store.HeaderCacheEntry) error {
	if existing, ok := c.entries[entry.Header]; ok && existing.Validated {
		return nil
	}
	c.entries[entry.Header] = entry
	return nil
}

func (c *memoryCache) Validate(ctx context.Context, header string) (bool, error) {
	entry, ok := c.entries[header]
	if !ok || entry.Validated {
		return false, nil
	}
	entry.Validated = true
	c.entries[header] = entry
	return true, nil
}

// corpusEmbedder assigns every corpus text a basis dimension and maps query
// texts onto those dimensions via a test-provided table.
type corpusEmbedder struct {
	dims    map[string]int
	queries map[string]string
	size    int
	calls   int
}

func newCorpusEmbedder(queries map[string]string) *corpusEmbedder {
	e := &corpusEmbedder{
		dims:    make(map[string]int),
		queries: queries,
	}

	register := func(text string) {
		if _, ok := e.dims[text]; !ok {
			e.dims[text] = e.size
			e.size++
		}
	}
	for _, text := range schema.CategoryCorpus() {
		register(text)
	}
	for _, category := range schema.Categories() {
		for _, text := range schema.AttributeCorpus(category) {
			register(text)
		}
	}
	return e
}

func (e *corpusEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	e.calls++
	vec := make([]float32, e.size)
	text := string(input)

	if dim, ok := e.dims[text]; ok {
		vec[dim] = 1
		return vec, nil
	}
	if target, ok := e.queries[text]; ok {
		if dim, ok := e.dims[target]; ok {
			vec[dim] = 1
		}
	}
	return vec, nil
}

func newTestClassifier(t *testing.T, cache store.HeaderCache, queries map[string]string) (*Classifier, *corpusEmbedder) {
	t.Helper()
	embedder := newCorpusEmbedder(queries)
	classifier, err := NewClassifier(context.Background(), ClassifierParams{
		Embedder: embedder,
		Cache:    cache,
	})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return classifier, embedder
}

func TestClassifyHeadersAssignsCategories(t *testing.T) {
	categoryCorpus := schema.CategoryCorpus()
	queries := map[string]string{
		"material1: Pt":   categoryCorpus[string(schema.Matter)],
		"temperature: 80": categoryCorpus[string(schema.Parameter)],
	}
	classifier, _ := newTestClassifier(t, newMemoryCache(), queries)

	columns := []common.ColumnDescriptor{
		{Index: 0, Header: "material1", Samples: []string{"Pt"}},
		{Index: 1, Header: "temperature", Samples: []string{"80"}},
	}

	columns, labelDict, err := classifier.ClassifyHeaders(context.Background(), columns)
	if err != nil {
		t.Fatalf("ClassifyHeaders: %v", err)
	}

	if columns[0].Category != schema.Matter {
		t.Errorf("material1 classified as %s, want Matter", columns[0].Category)
	}
	if columns[1].Category != schema.Parameter {
		t.Errorf("temperature classified as %s, want Parameter", columns[1].Category)
	}
	if labelDict["material1"] != string(schema.Matter) {
		t.Errorf("labelDict[material1] = %q, want Matter", labelDict["material1"])
	}
}

func TestClassifyHeadersUnknownDegradesToNoLabel(t *testing.T) {
	classifier, _ := newTestClassifier(t, newMemoryCache(), nil)

	columns := []common.ColumnDescriptor{
		{Index: 0, Header: "mystery", Samples: []string{"???"}},
	}

	columns, _, err := classifier.ClassifyHeaders(context.Background(), columns)
	if err != nil {
		t.Fatalf("ClassifyHeaders: %v", err)
	}
	if columns[0].Category != schema.NoLabel {
		t.Errorf("unknown header classified as %s, want NoLabel", columns[0].Category)
	}
}

func TestValidatedCacheHitShortCircuitsEmbedding(t *testing.T) {
	cache := newMemoryCache()
	cache.entries["material1"] = store.HeaderCacheEntry{
		Header:          "material1",
		Category:        schema.Matter,
		HeaderAttribute: "name",
		Validated:       true,
	}

	classifier, embedder := newTestClassifier(t, cache, nil)
	buildCalls := embedder.calls

	columns := []common.ColumnDescriptor{
		{Index: 0, Header: "material1", Samples: []string{"Pt"}},
	}

	columns, _, err := classifier.ClassifyHeaders(context.Background(), columns)
	if err != nil {
		t.Fatalf("ClassifyHeaders: %v", err)
	}
	columns, _, err = classifier.ClassifyAttributes(context.Background(), columns)
	if err != nil {
		t.Fatalf("ClassifyAttributes: %v", err)
	}

	if columns[0].Category != schema.Matter {
		t.Errorf("got category %s, want cached Matter", columns[0].Category)
	}
	if columns[0].Attribute != "name" {
		t.Errorf("got attribute %q, want cached name", columns[0].Attribute)
	}
	if embedder.calls != buildCalls {
		t.Errorf("validated cache hit issued %d embedding calls, want 0", embedder.calls-buildCalls)
	}
}

func TestUnvalidatedCacheEntryIsReclassified(t *testing.T) {
	cache := newMemoryCache()
	cache.entries["material1"] = store.HeaderCacheEntry{
		Header:   "material1",
		Category: schema.Metadata,
	}

	categoryCorpus := schema.CategoryCorpus()
	queries := map[string]string{
		"material1: Pt": categoryCorpus[string(schema.Matter)],
	}
	classifier, embedder := newTestClassifier(t, cache, queries)
	buildCalls := embedder.calls

	columns := []common.ColumnDescriptor{
		{Index: 0, Header: "material1", Samples: []string{"Pt"}},
	}
	columns, _, err := classifier.ClassifyHeaders(context.Background(), columns)
	if err != nil {
		t.Fatalf("ClassifyHeaders: %v", err)
	}

	if columns[0].Category != schema.Matter {
		t.Errorf("got category %s, want fresh Matter classification", columns[0].Category)
	}
	if embedder.calls == buildCalls {
		t.Error("unvalidated cache entry must not short-circuit the embedding call")
	}
}

func TestClassifyAttributesSeparatesHeaderAndColumnRole(t *testing.T) {
	cache := newMemoryCache()
	attrCorpus := schema.AttributeCorpus(schema.Matter)
	// The header alone reads as a name column; the numeric sample value
	// reveals the column actually holds a mixing ratio.
	queries := map[string]string{
		"material":     attrCorpus["name"],
		"material: 50": attrCorpus["ratio"],
	}
	classifier, _ := newTestClassifier(t, cache, queries)

	columns := []common.ColumnDescriptor{
		{Index: 0, Header: "material", Samples: []string{"50"}, Category: schema.Matter},
	}
	columns, attributeDict, err := classifier.ClassifyAttributes(context.Background(), columns)
	if err != nil {
		t.Fatalf("ClassifyAttributes: %v", err)
	}

	if columns[0].Attribute != "ratio" {
		t.Errorf("column attribute = %q, want sample-informed ratio", columns[0].Attribute)
	}
	if attributeDict["material"] != "ratio" {
		t.Errorf("attributeDict[material] = %q, want ratio", attributeDict["material"])
	}

	entry := cache.entries["material"]
	if entry.HeaderAttribute != "name" {
		t.Errorf("cached header attribute = %q, want name", entry.HeaderAttribute)
	}
	if entry.ColumnAttribute != "ratio" {
		t.Errorf("cached column attribute = %q, want ratio", entry.ColumnAttribute)
	}
}

func TestClassifyHeadersNormalizesPositionalSuffix(t *testing.T) {
	cache := newMemoryCache()
	categoryCorpus := schema.CategoryCorpus()
	queries := map[string]string{
		"ratio: 50": categoryCorpus[string(schema.Matter)],
	}
	classifier, _ := newTestClassifier(t, cache, queries)

	columns := []common.ColumnDescriptor{
		{Index: 0, Header: "ratio.1", Samples: []string{"50"}},
	}
	_, labelDict, err := classifier.ClassifyHeaders(context.Background(), columns)
	if err != nil {
		t.Fatalf("ClassifyHeaders: %v", err)
	}

	if _, ok := labelDict["ratio"]; !ok {
		t.Errorf("labelDict keys = %v, want normalized key %q", labelDict, "ratio")
	}
	if _, ok := cache.entries["ratio"]; !ok {
		t.Error("classification must be cached under the normalized header")
	}
}
