package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/MaxDreger92/matgraph-backend/pkg/ai"
	"github.com/MaxDreger92/matgraph-backend/pkg/classify"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/loader"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"
)

const embeddingDim = 64

// fakeModel stands in for the full model client. Embeddings use a basis
// vector scheme: every corpus text owns one dimension, and each query maps
// to the corpus texts it should land next to, which makes nearest-neighbor
// outcomes exact. Structured calls replay canned JSON by request name.
type fakeModel struct {
	mu   sync.Mutex
	dims map[string]int

	// queryTargets maps an embedding query to the corpus texts it matches.
	queryTargets map[string][]string

	// nodeResponses maps a category name to the extract_nodes payload.
	nodeResponses map[string]string
	tripleJSON    string

	extractionCalls int
	chatCalls       int
}

func (m *fakeModel) dim(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.dims[text]; ok {
		return d
	}
	d := len(m.dims)
	m.dims[text] = d
	return d
}

func (m *fakeModel) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	vec := make([]float32, embeddingDim)
	text := string(input)
	if targets, ok := m.queryTargets[text]; ok {
		for _, target := range targets {
			vec[m.dim(target)] = 1
		}
		return vec, nil
	}
	vec[m.dim(text)] = 1
	return vec, nil
}

func (m *fakeModel) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (m *fakeModel) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	m.extractionCalls++
	for category, response := range m.nodeResponses {
		if strings.Contains(description, category) {
			return json.Unmarshal([]byte(response), out)
		}
	}
	return fmt.Errorf("unexpected extraction request %q", description)
}

func (m *fakeModel) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (m *fakeModel) GenerateChatWithFormat(ctx context.Context, name, description string, messages []ai.ChatMessage, out any, opts ...ai.GenerateOption) error {
	m.chatCalls++
	return json.Unmarshal([]byte(m.tripleJSON), out)
}

func (m *fakeModel) ResetMetrics()               {}
func (m *fakeModel) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

// memoryGraph records persisted nodes and edges.
type memoryGraph struct {
	nodes map[string]common.ExtractedNode
	edges [][3]string
}

func newMemoryGraph() *memoryGraph {
	return &memoryGraph{nodes: make(map[string]common.ExtractedNode)}
}

func (g *memoryGraph) CreateNode(ctx context.Context, node common.ExtractedNode, embedding []float32) (string, error) {
	id := "db_" + node.ID
	g.nodes[id] = node
	return id, nil
}

func (g *memoryGraph) CreateEdge(ctx context.Context, sourceID string, relation schema.RelationType, targetID string) error {
	g.edges = append(g.edges, [3]string{sourceID, string(relation), targetID})
	return nil
}

func (g *memoryGraph) QueryNearestByEmbedding(ctx context.Context, category schema.Category, vector []float32, k int) ([]store.NodeMatch, error) {
	return nil, nil
}

func (g *memoryGraph) NodesByLabel(ctx context.Context, category schema.Category) ([]common.ExtractedNode, error) {
	return nil, nil
}

func (g *memoryGraph) findByName(name string) (string, common.ExtractedNode, bool) {
	for id, node := range g.nodes {
		if node.Name == name {
			return id, node, true
		}
	}
	return "", common.ExtractedNode{}, false
}

type memoryFiles struct {
	content []byte
}

func (f *memoryFiles) GetFileBytes(ctx context.Context, file loader.TableFile) ([]byte, error) {
	return f.content, nil
}

const catalystCSV = "id,material.1,material.2,ratio.1,ratio.2,fabrication step\n" +
	"CT-1001,Pt,Pd,50,50,Milling\n"

func catalystModel() *fakeModel {
	matterText := schema.CategoryCorpus()[string(schema.Matter)]
	manufacturingText := schema.CategoryCorpus()[string(schema.Manufacturing)]
	matterAttrs := schema.AttributeCorpus(schema.Matter)
	manufacturingAttrs := schema.AttributeCorpus(schema.Manufacturing)

	return &fakeModel{
		dims: make(map[string]int),
		queryTargets: map[string][]string{
			"id: CT-1001":               {matterText, matterAttrs["identifier"]},
			"material: Pt":              {matterText, matterAttrs["name"]},
			"material: Pd":              {matterText, matterAttrs["name"]},
			"ratio: 50":                 {matterText, matterAttrs["ratio"]},
			"fabrication step: Milling": {manufacturingText, manufacturingAttrs["name"]},
		},
		nodeResponses: map[string]string{
			"Matter": `{"nodes": [
				{"attributes": [
					{"name": "name", "values": [{"value": "Pt", "index": "1"}]},
					{"name": "ratio", "values": [{"value": "50", "index": "3"}]}
				]},
				{"attributes": [
					{"name": "name", "values": [{"value": "Pd", "index": "2"}]},
					{"name": "ratio", "values": [{"value": "50", "index": "4"}]}
				]},
				{"attributes": [
					{"name": "name", "values": [{"value": "Catalyst", "index": "inferred"}]},
					{"name": "identifier", "values": [{"value": "CT-1001", "index": "0"}]}
				]}
			]}`,
			"Manufacturing": `{"nodes": [
				{"attributes": [
					{"name": "name", "values": [{"value": "Milling", "index": "5"}]}
				]}
			]}`,
		},
		tripleJSON: `{"triples": [
			{"source": "matter_0", "relation": "is_input", "target": "manufacturing_0"},
			{"source": "matter_1", "relation": "is_input", "target": "manufacturing_0"},
			{"source": "manufacturing_0", "relation": "has_output", "target": "matter_2"}
		]}`,
	}
}

func newTestPipeline(t *testing.T, model *fakeModel, graph *memoryGraph) *Pipeline {
	t.Helper()

	classifier, err := classify.NewClassifier(context.Background(), classify.ClassifierParams{
		Embedder: model,
	})
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	return New(Params{
		Client:     model,
		Classifier: classifier,
		Loader:     loader.NewTableLoader(&memoryFiles{content: []byte(catalystCSV)}),
		Graph:      graph,
	})
}

func TestRunBuildsCatalystGraph(t *testing.T) {
	model := catalystModel()
	graph := newMemoryGraph()
	pipeline := newTestPipeline(t, model, graph)

	err := pipeline.Run(context.Background(), Request{
		UploadID: "upload-1",
		FileID:   "file-1",
		FilePath: "uploads/catalyst.csv",
		Context:  "Catalyst Fabrication",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(graph.nodes) != 4 {
		t.Fatalf("persisted %d nodes, want 4", len(graph.nodes))
	}

	catalystID, catalyst, ok := graph.findByName("Catalyst")
	if !ok {
		t.Fatal("inferred Catalyst node was not persisted")
	}
	if got := catalyst.Attribute("identifier"); len(got) != 1 || got[0].Value != "CT-1001" {
		t.Errorf("catalyst identifier = %v, want CT-1001", got)
	}
	if got := catalyst.Attribute("ratio"); got != nil {
		t.Errorf("inferred product carries composition: %v", got)
	}

	ptID, _, _ := graph.findByName("Pt")
	pdID, _, _ := graph.findByName("Pd")
	millingID, _, ok := graph.findByName("Milling")
	if !ok {
		t.Fatal("Milling node was not persisted")
	}

	wantEdges := map[[3]string]bool{
		{ptID, "is_input", millingID}:         true,
		{pdID, "is_input", millingID}:         true,
		{millingID, "has_output", catalystID}: true,
	}
	if len(graph.edges) != len(wantEdges) {
		t.Fatalf("persisted %d edges, want %d: %v", len(graph.edges), len(wantEdges), graph.edges)
	}
	for _, edge := range graph.edges {
		if !wantEdges[edge] {
			t.Errorf("unexpected edge %v", edge)
		}
	}

	// The triples satisfy every graph invariant, so no correction round
	// runs: one relationship call and two node extraction calls.
	if model.chatCalls != 1 {
		t.Errorf("relationship calls = %d, want 1", model.chatCalls)
	}
	if model.extractionCalls != 2 {
		t.Errorf("extraction calls = %d, want 2", model.extractionCalls)
	}
}

func TestRunStopsAfterRequestedStage(t *testing.T) {
	model := catalystModel()
	graph := newMemoryGraph()
	pipeline := newTestPipeline(t, model, graph)

	err := pipeline.Run(context.Background(), Request{
		UploadID: "upload-2",
		FileID:   "file-1",
		FilePath: "uploads/catalyst.csv",
		Context:  "Catalyst Fabrication",
		Stage:    StageLabels,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if model.extractionCalls != 0 {
		t.Errorf("extraction calls after label stage = %d, want 0", model.extractionCalls)
	}
	if len(graph.nodes) != 0 {
		t.Errorf("label stage persisted %d nodes", len(graph.nodes))
	}
}

func TestRunStopsBeforePersistingOnRelationshipsStage(t *testing.T) {
	model := catalystModel()
	graph := newMemoryGraph()
	pipeline := newTestPipeline(t, model, graph)

	err := pipeline.Run(context.Background(), Request{
		UploadID: "upload-3",
		FileID:   "file-1",
		FilePath: "uploads/catalyst.csv",
		Context:  "Catalyst Fabrication",
		Stage:    StageRelationships,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if model.chatCalls != 1 {
		t.Errorf("relationship calls = %d, want 1", model.chatCalls)
	}
	if len(graph.nodes) != 0 || len(graph.edges) != 0 {
		t.Errorf("relationships stage persisted %d nodes, %d edges", len(graph.nodes), len(graph.edges))
	}
}

func TestRunFailsOnEmptyTable(t *testing.T) {
	model := catalystModel()
	classifier, err := classify.NewClassifier(context.Background(), classify.ClassifierParams{
		Embedder: model,
	})
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	pipeline := New(Params{
		Client:     model,
		Classifier: classifier,
		Loader:     loader.NewTableLoader(&memoryFiles{content: nil}),
		Graph:      newMemoryGraph(),
	})

	err = pipeline.Run(context.Background(), Request{
		UploadID: "upload-4",
		FileID:   "file-2",
		FilePath: "uploads/empty.csv",
	})
	if err == nil {
		t.Error("Run() returned no error for an empty file")
	}
}
