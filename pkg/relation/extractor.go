// Package relation infers typed relationship triples between extracted node
// lists and repairs them against the graph invariants through an iterative
// correction conversation.
package relation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/MaxDreger92/matgraph-backend/pkg/ai"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
)

type tripleItem struct {
	Source   string `json:"source" jsonschema_description:"Id of the source node"`
	Relation string `json:"relation" jsonschema_description:"One of the allowed relation types"`
	Target   string `json:"target" jsonschema_description:"Id of the target node"`
}

type tripleResponse struct {
	Triples []tripleItem `json:"triples" jsonschema_description:"The relationship triples connecting the given nodes"`
}

// Extractor produces the initial relationship triples for one category
// pairing and seeds the conversation the corrector continues.
type Extractor struct {
	client ai.Client
}

// NewExtractor creates an Extractor over the given model client.
func NewExtractor(client ai.Client) *Extractor {
	return &Extractor{client: client}
}

// ExtractRelationships connects two node lists with triples drawn from the
// pairing's allowed relation vocabulary. The returned conversation holds the
// initial exchange so that correction rounds replay the identical context.
func (e *Extractor) ExtractRelationships(
	ctx context.Context,
	first []common.ExtractedNode,
	second []common.ExtractedNode,
	contextText string,
) ([]common.Triple, *ConversationState, error) {
	if len(first) == 0 || len(second) == 0 {
		return nil, nil, fmt.Errorf("relationship extraction needs two non-empty node lists")
	}

	categoryA := first[0].Category
	categoryB := second[0].Category
	allowed := schema.AllowedRelations(categoryA, categoryB)
	if len(allowed) == 0 {
		return nil, nil, fmt.Errorf("no relations are allowed between %s and %s", categoryA, categoryB)
	}

	first = orderNodes(first)
	second = orderNodes(second)

	systemPrompt := fmt.Sprintf(
		ExtractPrompt,
		categoryA,
		categoryB,
		renderRelations(allowed),
		contextText,
	)

	var b strings.Builder
	fmt.Fprintf(&b, "%s nodes:\n%s\n", categoryA, renderNodes(first))
	fmt.Fprintf(&b, "%s nodes:\n%s", categoryB, renderNodes(second))
	request := b.String()

	conversation := NewConversation(systemPrompt)
	conversation.Append(ai.ChatMessage{Role: "user", Message: request})

	var res tripleResponse
	err := e.client.GenerateChatWithFormat(
		ctx,
		"extract_relationships",
		"Connect two node lists with typed relationship triples.",
		conversation.Turns(),
		&res,
		ai.WithSystemPrompts(conversation.SystemPrompt()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract relationships: %w", err)
	}

	knownIDs := make(map[string]bool, len(first)+len(second))
	for _, n := range first {
		knownIDs[n.ID] = true
	}
	for _, n := range second {
		knownIDs[n.ID] = true
	}

	triples := convertTriples(res, allowed, knownIDs)
	conversation.Append(ai.ChatMessage{Role: "assistant", Message: renderTriples(triples)})

	return triples, conversation, nil
}

// convertTriples keeps only triples that use known node ids and an allowed
// relation type. Everything else is dropped; the validator flags the holes
// the dropped triples leave behind.
func convertTriples(res tripleResponse, allowed []schema.RelationType, knownIDs map[string]bool) []common.Triple {
	triples := make([]common.Triple, 0, len(res.Triples))
	for _, t := range res.Triples {
		relation, ok := schema.ParseRelation(t.Relation)
		if !ok || !relationAllowed(relation, allowed) {
			continue
		}
		if !knownIDs[t.Source] || !knownIDs[t.Target] {
			continue
		}
		triples = append(triples, common.Triple{
			Source:   t.Source,
			Relation: relation,
			Target:   t.Target,
		})
	}
	return triples
}

func relationAllowed(r schema.RelationType, allowed []schema.RelationType) bool {
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}

// orderNodes sorts nodes by the leftmost table column they were read from,
// which for manufacturing steps is their chronological order. Inferred-only
// nodes sort last. The ordering is stable so repeated prompting of the same
// node list renders identically.
func orderNodes(nodes []common.ExtractedNode) []common.ExtractedNode {
	ordered := append([]common.ExtractedNode{}, nodes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return firstColumn(ordered[i]) < firstColumn(ordered[j])
	})
	return ordered
}

func firstColumn(node common.ExtractedNode) int {
	first := math.MaxInt
	for _, attr := range node.Attributes {
		for _, v := range attr.Values {
			if !v.FromColumn() {
				continue
			}
			if idx, err := strconv.Atoi(v.Index); err == nil && idx < first {
				first = idx
			}
		}
	}
	return first
}

// renderNodes formats a node list for prompting. Provenance indexes are
// bookkeeping and are stripped; the model sees only ids, names, and values.
func renderNodes(nodes []common.ExtractedNode) string {
	var b strings.Builder
	for _, node := range nodes {
		fmt.Fprintf(&b, "- %s: %q", node.ID, node.Name)
		for _, attr := range node.Attributes {
			if attr.Name == "name" {
				continue
			}
			values := make([]string, 0, len(attr.Values))
			for _, v := range attr.Values {
				values = append(values, v.Value)
			}
			fmt.Fprintf(&b, ", %s %s", attr.Name, strings.Join(values, "/"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderRelations(relations []schema.RelationType) string {
	names := make([]string, len(relations))
	for i, r := range relations {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func renderTriples(triples []common.Triple) string {
	var b strings.Builder
	for _, t := range triples {
		fmt.Fprintf(&b, "(%s, %s, %s)\n", t.Source, t.Relation, t.Target)
	}
	return b.String()
}
