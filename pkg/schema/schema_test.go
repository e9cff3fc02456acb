package schema

import (
	"reflect"
	"testing"
)

func TestAllowedRelationsSymmetric(t *testing.T) {
	categories := append(Categories(), NoLabel)
	for _, a := range categories {
		for _, b := range categories {
			forward := AllowedRelations(a, b)
			backward := AllowedRelations(b, a)
			if !reflect.DeepEqual(forward, backward) {
				t.Errorf("AllowedRelations(%s, %s) = %v, reversed = %v", a, b, forward, backward)
			}
		}
	}
}

func TestAllowedRelationsVocabulary(t *testing.T) {
	tests := []struct {
		a, b Category
		want []RelationType
	}{
		{Matter, Manufacturing, []RelationType{IsInput, HasOutput}},
		{Matter, Property, []RelationType{HasProperty}},
		{Matter, Parameter, []RelationType{HasParameter}},
		{Manufacturing, Parameter, []RelationType{HasParameter}},
		{Measurement, Property, []RelationType{HasMeasurementOutput}},
		{Measurement, Parameter, []RelationType{HasParameter}},
		{Matter, Measurement, []RelationType{IsInput}},
		{Matter, Matter, nil},
		{Manufacturing, Measurement, nil},
		{Metadata, Matter, nil},
	}

	for _, tt := range tests {
		if got := AllowedRelations(tt.a, tt.b); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("AllowedRelations(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCategoryAttributesIncludeName(t *testing.T) {
	for _, c := range Categories() {
		if !c.HasAttribute("name") {
			t.Errorf("category %s has no name attribute", c)
		}
	}
	if NoLabel.Attributes() != nil {
		t.Errorf("NoLabel carries attributes: %v", NoLabel.Attributes())
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range append(Categories(), NoLabel) {
		parsed, ok := ParseCategory(string(c))
		if !ok || parsed != c {
			t.Errorf("ParseCategory(%q) = %v, %v", string(c), parsed, ok)
		}
	}
	if _, ok := ParseCategory("Widget"); ok {
		t.Error("ParseCategory accepted an unknown label")
	}
}

func TestParseRelationAliases(t *testing.T) {
	tests := []struct {
		in   string
		want RelationType
		ok   bool
	}{
		{"is_input", IsInput, true},
		{"has_output", HasOutput, true},
		{"is_manufacturing_input", IsInput, true},
		{"is_manufacturing_output", HasOutput, true},
		{"produces", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRelation(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRelation(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractable(t *testing.T) {
	for _, c := range Categories() {
		if !c.Extractable() {
			t.Errorf("category %s is not extractable", c)
		}
	}
	if NoLabel.Extractable() {
		t.Error("NoLabel is extractable")
	}
}
