package common

import "github.com/MaxDreger92/matgraph-backend/pkg/schema"

// ColumnDescriptor describes one column of an uploaded table: its header, a
// handful of sample values, and the classification assigned by the pipeline.
// Descriptors are created per import and discarded after the run; only the
// classification survives, in the header cache.
type ColumnDescriptor struct {
	Index     int             `json:"index"`
	Header    string          `json:"header"`
	Samples   []string        `json:"samples"`
	Category  schema.Category `json:"category"`
	Attribute string          `json:"attribute"`
}

// FirstSample returns the first non-empty sample value of the column.
func (c ColumnDescriptor) FirstSample() string {
	for _, s := range c.Samples {
		if s != "" {
			return s
		}
	}
	return ""
}

// ProvenanceInferred marks an attribute value that was deduced from context
// rather than read from a table cell.
const ProvenanceInferred = "inferred"

// AttributeValue is one value of a node attribute together with its
// provenance: the originating column index rendered as a string, or the
// literal "inferred".
type AttributeValue struct {
	Value string `json:"value"`
	Index string `json:"index"`
}

// FromColumn reports whether the value was read from a table column.
func (v AttributeValue) FromColumn() bool {
	return v.Index != ProvenanceInferred && v.Index != ""
}

// ExtractedNode is an in-memory node candidate produced by the node
// extractor. Attribute order is preserved because the relationship extractor
// presents nodes to the model in a stable order across correction turns.
type ExtractedNode struct {
	ID         string          `json:"id"`
	Category   schema.Category `json:"category"`
	Name       string          `json:"name"`
	Attributes []NodeAttribute `json:"attributes"`
}

// NodeAttribute is one named attribute of an extracted node with its values.
type NodeAttribute struct {
	Name   string           `json:"name"`
	Values []AttributeValue `json:"values"`
}

// Attribute returns the values of the named attribute, or nil.
func (n ExtractedNode) Attribute(name string) []AttributeValue {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a.Values
		}
	}
	return nil
}

// Triple is one typed directed edge between two extracted nodes, identified
// by node ID.
type Triple struct {
	Source   string              `json:"source"`
	Relation schema.RelationType `json:"relation"`
	Target   string              `json:"target"`
}

// Graph is the persisted result of one pipeline run.
type Graph struct {
	Nodes   []ExtractedNode `json:"nodes"`
	Triples []Triple        `json:"triples"`
}
