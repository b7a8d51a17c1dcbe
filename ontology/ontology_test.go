package ontology

import (
	"reflect"
	"testing"
)

func TestSplitVocabulary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"ascii commas", "滩涂,潮滩", []string{"滩涂", "潮滩"}},
		{"spaces trimmed", "海水, 潮沟, 池塘", []string{"海水", "潮沟", "池塘"}},
		{"full-width comma", "海莲,滨麦，秋英", []string{"海莲", "滨麦", "秋英"}},
		{"empty parts dropped", ",a,,b,", []string{"a", "b"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitVocabulary(tt.input)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitVocabulary(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"relationship": KindRelationship,
		"ER":           KindRelationship,
		" attribute ":  KindAttribute,
		"ea":           KindAttribute,
	} {
		got, err := ParseKind(in)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseKind(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseKind("triples"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestWetlandRelationships(t *testing.T) {
	o := WetlandRelationships()
	if o.Kind() != KindRelationship {
		t.Fatalf("kind = %q", o.Kind())
	}
	if !o.Known("植物", "红树") {
		t.Error("expected 红树 to be a known plant")
	}
	if !o.Known("植物", "秋英") {
		t.Error("expected 秋英 (after full-width comma) to be a known plant")
	}
	if !o.Known("群落", "盐沼群落") {
		t.Error("expected 盐沼群落 to be a known community")
	}
	if o.Known("植物", "海水") {
		t.Error("海水 must not be a plant")
	}
	names := o.LabelNames()
	if len(names) != 12 || names[0] != "邻近" || names[11] != "伴生种" {
		t.Errorf("unexpected relationship labels: %v", names)
	}
	if !o.HasLabel("生长") || o.HasLabel("高度") {
		t.Error("label membership wrong")
	}
}

func TestWetlandAttributesMergesDuplicateLabels(t *testing.T) {
	o := WetlandAttributes()
	if o.Kind() != KindAttribute {
		t.Fatalf("kind = %q", o.Kind())
	}
	var flower *Label
	count := 0
	labels := o.Labels()
	for i := range labels {
		if labels[i].Name == "花" {
			count++
			flower = &labels[i]
		}
	}
	if count != 1 {
		t.Fatalf("expected one 花 label, got %d", count)
	}
	if len(flower.Examples) != 2 {
		t.Errorf("expected merged examples, got %d", len(flower.Examples))
	}
	if o.LabelNames()[0] != "生活型" {
		t.Errorf("label order not preserved: %v", o.LabelNames())
	}
}

func TestOntologyAccessorsReturnCopies(t *testing.T) {
	o := NewRelationship([]Category{{Name: "a", Instances: []string{"x"}}}, []string{"r"})
	cats := o.Categories()
	cats[0].Instances[0] = "mutated"
	labels := o.Labels()
	labels[0].Name = "mutated"
	if !o.Known("a", "x") || o.Categories()[0].Instances[0] != "x" {
		t.Error("category mutation leaked into ontology")
	}
	if o.LabelNames()[0] != "r" {
		t.Error("label mutation leaked into ontology")
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	o, err := reg.Get(KindAttribute)
	if err != nil || o.Kind() != KindAttribute {
		t.Fatalf("Get(attribute) = %v, %v", o, err)
	}
	if _, err := reg.Get("bogus"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := NewRegistry(WetlandAttributes(), WetlandAttributes()); err == nil {
		t.Error("expected error for swapped kinds")
	}
}
