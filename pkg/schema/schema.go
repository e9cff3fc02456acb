// Package schema fixes the vocabulary of the extraction pipeline: the node
// categories, the attribute roles each category may carry, and the relation
// types allowed between category pairs. Everything downstream dispatches on
// these types instead of raw strings.
package schema

// Category is one of the six fixed node types, plus the explicit "No label"
// result for columns that match nothing.
type Category string

const (
	Matter        Category = "Matter"
	Property      Category = "Property"
	Parameter     Category = "Parameter"
	Manufacturing Category = "Manufacturing"
	Measurement   Category = "Measurement"
	Metadata      Category = "Metadata"
	NoLabel       Category = "No label"
)

// Categories lists the six extractable node categories. NoLabel is excluded:
// it is a classification outcome, never an extraction target.
func Categories() []Category {
	return []Category{Matter, Property, Parameter, Manufacturing, Measurement, Metadata}
}

// ParseCategory maps a label string back to a Category.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case Matter, Property, Parameter, Manufacturing, Measurement, Metadata, NoLabel:
		return Category(s), true
	}
	return "", false
}

// Extractable reports whether nodes of this category are extracted from rows.
func (c Category) Extractable() bool {
	return c != NoLabel && c != ""
}

// Attributes returns the attribute vocabulary of the category. Matter nodes
// carry composition attributes, Property and Parameter nodes carry numeric
// attributes, process-like nodes carry only name and identifier.
func (c Category) Attributes() []string {
	switch c {
	case Matter:
		return []string{"name", "identifier", "ratio", "concentration", "batch_number"}
	case Property, Parameter:
		return []string{"name", "value", "unit", "error", "average", "standard_deviation"}
	case Manufacturing, Measurement, Metadata:
		return []string{"name", "identifier"}
	}
	return nil
}

// HasAttribute reports whether name is part of the category's vocabulary.
func (c Category) HasAttribute(name string) bool {
	for _, a := range c.Attributes() {
		if a == name {
			return true
		}
	}
	return false
}

// RelationType is one of the fixed edge types of the property graph.
type RelationType string

const (
	IsInput              RelationType = "is_input"
	HasOutput            RelationType = "has_output"
	HasProperty          RelationType = "has_property"
	HasParameter         RelationType = "has_parameter"
	HasMeasurementOutput RelationType = "has_measurement_output"
)

// AllowedRelations returns the relation vocabulary for a (source category,
// target category) pairing, in both directions. An empty result means the
// pairing is never connected directly.
func AllowedRelations(a, b Category) []RelationType {
	switch {
	case pair(a, b, Matter, Manufacturing):
		return []RelationType{IsInput, HasOutput}
	case pair(a, b, Matter, Property):
		return []RelationType{HasProperty}
	case pair(a, b, Matter, Parameter):
		return []RelationType{HasParameter}
	case pair(a, b, Manufacturing, Parameter):
		return []RelationType{HasParameter}
	case pair(a, b, Measurement, Property):
		return []RelationType{HasMeasurementOutput}
	case pair(a, b, Measurement, Parameter):
		return []RelationType{HasParameter}
	case pair(a, b, Matter, Measurement):
		return []RelationType{IsInput}
	}
	return nil
}

func pair(a, b, x, y Category) bool {
	return (a == x && b == y) || (a == y && b == x)
}

// ParseRelation maps a relation string to its RelationType. The
// manufacturing-prefixed spellings models occasionally produce are accepted
// as aliases of the canonical process relations.
func ParseRelation(s string) (RelationType, bool) {
	switch RelationType(s) {
	case IsInput, HasOutput, HasProperty, HasParameter, HasMeasurementOutput:
		return RelationType(s), true
	}
	switch s {
	case "is_manufacturing_input":
		return IsInput, true
	case "is_manufacturing_output":
		return HasOutput, true
	}
	return "", false
}
