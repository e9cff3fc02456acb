// Package extract turns classified table columns into typed graph nodes via
// schema-constrained model calls. Every attribute value carries provenance,
// and domain policy violations the model tends to make are repaired after
// parsing instead of being prompted away.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/ai"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
)

// ErrExtraction is returned when the model output stays malformed after the
// repair re-prompt.
var ErrExtraction = errors.New("node extraction failed")

type extractValue struct {
	Value string `json:"value" jsonschema_description:"The attribute value, exactly as read from the table cell or as inferred from context"`
	Index string `json:"index" jsonschema_description:"Provenance of the value: the originating column index as a string, or the literal string \"inferred\""`
}

type extractAttribute struct {
	Name   string         `json:"name" jsonschema_description:"One of the allowed attribute names for this node category"`
	Values []extractValue `json:"values" jsonschema_description:"All values of this attribute, each with provenance"`
}

type extractNode struct {
	Attributes []extractAttribute `json:"attributes" jsonschema_description:"The node's attributes; every node carries a name attribute"`
}

type extractResponse struct {
	Nodes []extractNode `json:"nodes" jsonschema_description:"The extracted nodes in table order"`
}

// Extractor runs schema-constrained node extraction for one category at a
// time.
type Extractor struct {
	client     ai.Client
	maxRetries int
}

// NewExtractor creates an Extractor over the given model client.
func NewExtractor(client ai.Client) *Extractor {
	return &Extractor{
		client:     client,
		maxRetries: int(util.GetEnvNumeric("EXTRACT_MAX_RETRIES", 2)),
	}
}

// ExtractNodes extracts the nodes of one category from the given columns.
// Columns of other categories must be filtered out by the caller. Malformed
// model output is re-prompted once with the concrete validation failure;
// output that stays malformed surfaces ErrExtraction.
func (e *Extractor) ExtractNodes(
	ctx context.Context,
	category schema.Category,
	columns []common.ColumnDescriptor,
	contextText string,
) ([]common.ExtractedNode, error) {
	if !category.Extractable() {
		return nil, fmt.Errorf("%w: category %q is not extractable", ErrExtraction, category)
	}
	if len(columns) == 0 {
		return nil, nil
	}

	systemPrompt := fmt.Sprintf(
		NodeExtractPrompt,
		category,
		strings.Join(category.Attributes(), ", "),
		exampleFor(category),
		category,
		contextText,
	)
	prompt := renderColumns(columns)

	validIndexes := make(map[string]bool, len(columns))
	for _, col := range columns {
		validIndexes[strconv.Itoa(col.Index)] = true
	}

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			prompt = renderColumns(columns) + fmt.Sprintf(RepairPrompt, lastErr)
		}

		var res extractResponse
		err := e.client.GenerateCompletionWithFormat(
			ctx,
			"extract_nodes",
			fmt.Sprintf("Extract %s nodes with attribute provenance from table columns.", category),
			prompt,
			&res,
			ai.WithSystemPrompts(systemPrompt),
		)
		if err != nil {
			lastErr = err
			continue
		}

		nodes, err := convertNodes(category, res, validIndexes)
		if err != nil {
			lastErr = err
			continue
		}
		return applyDomainPolicy(nodes), nil
	}

	return nil, fmt.Errorf("%w: %v", ErrExtraction, lastErr)
}

// renderColumns formats the column descriptors the way the few-shot examples
// show them, one line per column.
func renderColumns(columns []common.ColumnDescriptor) string {
	var b strings.Builder
	b.WriteString("Columns:\n")
	for _, col := range columns {
		fmt.Fprintf(&b, "  %d | %s | %s | %s\n", col.Index, col.Header, col.Attribute, col.FirstSample())
	}
	return b.String()
}

// convertNodes validates the raw model output and maps it onto the in-memory
// node type. IDs are assigned positionally so that relationship extraction
// presents the same identifiers across correction turns.
func convertNodes(category schema.Category, res extractResponse, validIndexes map[string]bool) ([]common.ExtractedNode, error) {
	if len(res.Nodes) == 0 {
		return nil, fmt.Errorf("no nodes in response")
	}

	nodes := make([]common.ExtractedNode, 0, len(res.Nodes))
	for i, raw := range res.Nodes {
		node := common.ExtractedNode{
			ID:       fmt.Sprintf("%s_%d", strings.ToLower(string(category)), i),
			Category: category,
		}

		for _, attr := range raw.Attributes {
			if !category.HasAttribute(attr.Name) {
				return nil, fmt.Errorf("attribute %q is not allowed on %s nodes", attr.Name, category)
			}
			if len(attr.Values) == 0 {
				continue
			}

			values := make([]common.AttributeValue, 0, len(attr.Values))
			for _, v := range attr.Values {
				if v.Index != common.ProvenanceInferred && !validIndexes[v.Index] {
					return nil, fmt.Errorf("value %q of attribute %q carries invalid provenance %q", v.Value, attr.Name, v.Index)
				}
				values = append(values, common.AttributeValue{Value: v.Value, Index: v.Index})
			}
			node.Attributes = append(node.Attributes, common.NodeAttribute{Name: attr.Name, Values: values})
		}

		names := node.Attribute("name")
		if len(names) == 0 || names[0].Value == "" {
			return nil, fmt.Errorf("node %d has no name attribute", i)
		}
		node.Name = names[0].Value
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// applyDomainPolicy fixes the policy violations the model still makes after
// prompting: composition attributes on inferred product nodes are dropped,
// and exact duplicate nodes are collapsed.
func applyDomainPolicy(nodes []common.ExtractedNode) []common.ExtractedNode {
	out := make([]common.ExtractedNode, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))

	for _, node := range nodes {
		if isInferredProduct(node) {
			node = dropAttributes(node, "ratio", "concentration")
		}

		key := fingerprint(node)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, node)
	}

	reindex(out)
	return out
}

// isInferredProduct reports whether the node's name was deduced from context
// rather than read from a cell, which marks it as a fabricated product.
func isInferredProduct(node common.ExtractedNode) bool {
	names := node.Attribute("name")
	return len(names) > 0 && names[0].Index == common.ProvenanceInferred
}

func dropAttributes(node common.ExtractedNode, names ...string) common.ExtractedNode {
	kept := make([]common.NodeAttribute, 0, len(node.Attributes))
	for _, attr := range node.Attributes {
		drop := false
		for _, name := range names {
			if attr.Name == name {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, attr)
		}
	}
	node.Attributes = kept
	return node
}

// fingerprint renders a node's full attribute content, provenance included,
// so that genuinely repeated instances with distinct sources survive
// deduplication.
func fingerprint(node common.ExtractedNode) string {
	var b strings.Builder
	b.WriteString(string(node.Category))
	for _, attr := range node.Attributes {
		b.WriteString("|" + attr.Name)
		for _, v := range attr.Values {
			b.WriteString("=" + v.Value + "@" + v.Index)
		}
	}
	return b.String()
}

func reindex(nodes []common.ExtractedNode) {
	for i := range nodes {
		nodes[i].ID = fmt.Sprintf("%s_%d", strings.ToLower(string(nodes[i].Category)), i)
	}
}

func exampleFor(category schema.Category) string {
	switch category {
	case schema.Matter:
		return matterExample
	case schema.Property, schema.Parameter:
		return propertyExample
	default:
		return processExample
	}
}
