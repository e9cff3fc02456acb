// Package pipeline orchestrates one table import: classify headers, classify
// attributes, extract nodes, extract and repair relationships, persist the
// graph. Stages run strictly in order because each stage's output feeds the
// next stage's prompt.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MaxDreger92/matgraph-backend/internal/tracker"
	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/ai"
	"github.com/MaxDreger92/matgraph-backend/pkg/classify"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/extract"
	"github.com/MaxDreger92/matgraph-backend/pkg/loader"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/relation"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"
)

// Stage names, in execution order.
const (
	StageLabels        = "labels"
	StageAttributes    = "attributes"
	StageNodes         = "nodes"
	StageRelationships = "relationships"
	StageGraph         = "graph"
)

// Request identifies one table import. Stage optionally names the last
// stage to execute; empty means the full pipeline.
type Request struct {
	UploadID string `json:"uploadId"`
	FileID   string `json:"fileId"`
	FilePath string `json:"filePath"`
	Context  string `json:"context"`
	Stage    string `json:"stage,omitempty"`
}

// Params configures New.
type Params struct {
	Client     ai.Client
	Classifier *classify.Classifier
	Loader     *loader.TableLoader
	Graph      store.GraphStore
	Log        store.ConversationLog
	Tracker    *tracker.Client
}

// Pipeline runs table imports. One Pipeline serves many concurrent runs; all
// per-run state lives on the stack of Run.
type Pipeline struct {
	client     ai.Client
	classifier *classify.Classifier
	loader     *loader.TableLoader
	graph      store.GraphStore
	tracker    *tracker.Client

	nodes     *extract.Extractor
	relations *relation.Extractor
	corrector *relation.Corrector

	maxSamples int
}

// New creates a Pipeline.
func New(params Params) *Pipeline {
	return &Pipeline{
		client:     params.Client,
		classifier: params.Classifier,
		loader:     params.Loader,
		graph:      params.Graph,
		tracker:    params.Tracker,
		nodes:      extract.NewExtractor(params.Client),
		relations:  relation.NewExtractor(params.Client),
		corrector: relation.NewCorrector(relation.CorrectorParams{
			Client: params.Client,
			Log:    params.Log,
		}),
		maxSamples: int(util.GetEnvNumeric("TABLE_MAX_SAMPLES", 3)),
	}
}

// Run executes the full pipeline for one import. A stage failure marks the
// tracked upload as not processing and returns the error; an exhausted
// correction budget is degraded, not failed, and still persists the graph.
func (p *Pipeline) Run(ctx context.Context, req Request) (err error) {
	p.report(ctx, req.UploadID, tracker.Update{Processing: boolPtr(true), Context: req.Context})
	defer func() {
		if err != nil {
			p.report(ctx, req.UploadID, tracker.Update{Processing: boolPtr(false), Error: err.Error()})
		}
	}()

	table, err := p.loader.GetTable(ctx, loader.TableFile{ID: req.FileID, FilePath: req.FilePath})
	if err != nil {
		return fmt.Errorf("failed to load table: %w", err)
	}
	columns := loader.Columns(table, p.maxSamples)

	columns, labelDict, err := p.classifier.ClassifyHeaders(ctx, columns)
	if err != nil {
		return fmt.Errorf("stage %s: %w", StageLabels, err)
	}
	p.reportBlob(ctx, req.UploadID, StageLabels, labelDict)
	if req.Stage == StageLabels {
		return p.finish(ctx, req.UploadID)
	}

	columns, attributeDict, err := p.classifier.ClassifyAttributes(ctx, columns)
	if err != nil {
		return fmt.Errorf("stage %s: %w", StageAttributes, err)
	}
	p.reportBlob(ctx, req.UploadID, StageAttributes, attributeDict)
	if req.Stage == StageAttributes {
		return p.finish(ctx, req.UploadID)
	}

	nodesByCategory, err := p.extractNodes(ctx, columns, req.Context)
	if err != nil {
		return fmt.Errorf("stage %s: %w", StageNodes, err)
	}
	p.reportBlob(ctx, req.UploadID, StageNodes, nodesByCategory)
	if req.Stage == StageNodes {
		return p.finish(ctx, req.UploadID)
	}

	graph, violations, err := p.extractRelationships(ctx, req, nodesByCategory)
	if err != nil {
		return fmt.Errorf("stage %s: %w", StageRelationships, err)
	}
	if len(violations) > 0 {
		logger.Warn("graph accepted with unresolved violations",
			"upload", req.UploadID, "violations", len(violations))
	}
	if req.Stage == StageRelationships {
		workflowJSON, _ := json.Marshal(graph)
		p.report(ctx, req.UploadID, tracker.Update{
			Processing: boolPtr(false),
			Workflow:   string(workflowJSON),
		})
		return nil
	}

	if err := p.persist(ctx, graph); err != nil {
		return fmt.Errorf("stage %s: %w", StageGraph, err)
	}

	graphJSON, _ := json.Marshal(graph)
	p.report(ctx, req.UploadID, tracker.Update{
		Processing: boolPtr(false),
		GraphJSON:  string(graphJSON),
	})
	return nil
}

// extractNodes runs node extraction once per extractable category that owns
// at least one column.
func (p *Pipeline) extractNodes(
	ctx context.Context,
	columns []common.ColumnDescriptor,
	contextText string,
) (map[schema.Category][]common.ExtractedNode, error) {
	grouped := make(map[schema.Category][]common.ColumnDescriptor)
	for _, col := range columns {
		if col.Category.Extractable() {
			grouped[col.Category] = append(grouped[col.Category], col)
		}
	}

	nodesByCategory := make(map[schema.Category][]common.ExtractedNode, len(grouped))
	for _, category := range schema.Categories() {
		cols, ok := grouped[category]
		if !ok {
			continue
		}
		nodes, err := p.nodes.ExtractNodes(ctx, category, cols, contextText)
		if err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			nodesByCategory[category] = nodes
		}
	}

	if len(nodesByCategory) == 0 {
		return nil, fmt.Errorf("no extractable columns in table")
	}
	return nodesByCategory, nil
}

// extractRelationships connects every category pairing that carries an
// allowed relation vocabulary, repairing each pairing's triples before
// moving on. Exhausted repairs contribute their triples anyway; the
// unresolved violations are returned for reporting.
func (p *Pipeline) extractRelationships(
	ctx context.Context,
	req Request,
	nodesByCategory map[schema.Category][]common.ExtractedNode,
) (common.Graph, []relation.Violation, error) {
	var graph common.Graph
	for _, nodes := range nodesByCategory {
		graph.Nodes = append(graph.Nodes, nodes...)
	}

	if len(nodesByCategory) < 2 {
		return graph, nil, nil
	}

	unresolved := make([]relation.Violation, 0)
	categories := schema.Categories()

	for i := 0; i < len(categories); i++ {
		for j := i + 1; j < len(categories); j++ {
			first, ok := nodesByCategory[categories[i]]
			if !ok {
				continue
			}
			second, ok := nodesByCategory[categories[j]]
			if !ok {
				continue
			}
			if len(schema.AllowedRelations(categories[i], categories[j])) == 0 {
				continue
			}

			triples, violations, err := p.connectPair(ctx, req, first, second)
			if err != nil {
				return graph, nil, err
			}
			graph.Triples = append(graph.Triples, triples...)
			unresolved = append(unresolved, violations...)
		}
	}

	return graph, unresolved, nil
}

func (p *Pipeline) connectPair(
	ctx context.Context,
	req Request,
	first []common.ExtractedNode,
	second []common.ExtractedNode,
) ([]common.Triple, []relation.Violation, error) {
	triples, conversation, err := p.relations.ExtractRelationships(ctx, first, second, req.Context)
	if err != nil {
		return nil, nil, err
	}

	nodeIDs := make([]string, 0, len(first)+len(second))
	for _, n := range first {
		nodeIDs = append(nodeIDs, n.ID)
	}
	for _, n := range second {
		nodeIDs = append(nodeIDs, n.ID)
	}
	allowed := schema.AllowedRelations(first[0].Category, second[0].Category)

	result, err := p.corrector.Repair(ctx, req.UploadID, conversation, nodeIDs, allowed, triples)
	if err != nil {
		return nil, nil, err
	}
	return result.Triples, result.Violations, nil
}

// persist writes the accepted graph to the store. Node embeddings are built
// from name and category so later imports can match against them.
func (p *Pipeline) persist(ctx context.Context, graph common.Graph) error {
	storedIDs := make(map[string]string, len(graph.Nodes))

	for _, node := range graph.Nodes {
		embedding, err := p.client.GenerateEmbedding(ctx, []byte(fmt.Sprintf("%s %s", node.Category, node.Name)))
		if err != nil {
			return fmt.Errorf("failed to embed node %q: %w", node.Name, err)
		}
		id, err := p.graph.CreateNode(ctx, node, embedding)
		if err != nil {
			return err
		}
		storedIDs[node.ID] = id
	}

	for _, t := range graph.Triples {
		sourceID, ok := storedIDs[t.Source]
		if !ok {
			continue
		}
		targetID, ok := storedIDs[t.Target]
		if !ok {
			continue
		}
		if err := p.graph.CreateEdge(ctx, sourceID, t.Relation, targetID); err != nil {
			return err
		}
	}
	return nil
}

// report sends a tracker update. Tracking failures never fail a run.
func (p *Pipeline) report(ctx context.Context, uploadID string, update tracker.Update) {
	if p.tracker == nil || uploadID == "" {
		return
	}
	if err := p.tracker.Patch(ctx, uploadID, update); err != nil {
		logger.Warn("failed to report pipeline progress", "upload", uploadID, "error", err)
	}
}

// reportBlob renders a stage result to its JSON string blob and attaches it
// to the tracked upload.
func (p *Pipeline) reportBlob(ctx context.Context, uploadID string, stage string, blob any) {
	encoded, err := json.Marshal(blob)
	if err != nil {
		logger.Warn("failed to encode stage result", "stage", stage, "error", err)
		return
	}

	update := tracker.Update{Progress: stage}
	switch stage {
	case StageLabels:
		update.LabelDict = string(encoded)
	case StageAttributes:
		update.AttributeDict = string(encoded)
	case StageNodes:
		update.Workflow = string(encoded)
	}
	p.report(ctx, uploadID, update)
}

// finish marks the tracked upload as done after a partial run.
func (p *Pipeline) finish(ctx context.Context, uploadID string) error {
	p.report(ctx, uploadID, tracker.Update{Processing: boolPtr(false)})
	return nil
}

func boolPtr(v bool) *bool {
	return &v
}
