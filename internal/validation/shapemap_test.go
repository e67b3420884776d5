package validation_test

import (
	"testing"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/validation"
)

func TestParseShapeMap_JSON(t *testing.T) {
	sm, err := validation.ParseShapeMap(`[
		{"node": ":alice", "shape": ":User", "status": "conformant"},
		{"node": ":bob", "shape": ":User", "status": "nonconformant", "reason": "missing name"}
	]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.ShapeMap{
		{Node: ":alice", Shape: ":User", Status: domain.Conformant},
		{Node: ":bob", Shape: ":User", Status: domain.NonConformant},
	}
	if !sm.Equal(want) {
		t.Errorf("want %v, got %v", want, sm)
	}
}

func TestParseShapeMap_Compact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.ShapeMap
	}{
		{
			name:  "prefixed names",
			input: ":alice@:User, :bob@!:User",
			want: domain.ShapeMap{
				{Node: ":alice", Shape: ":User", Status: domain.Conformant},
				{Node: ":bob", Shape: ":User", Status: domain.NonConformant},
			},
		},
		{
			name:  "iris with commas and at signs",
			input: "<http://example.org/a,b@c>@<http://example.org/S>",
			want: domain.ShapeMap{
				{Node: "<http://example.org/a,b@c>", Shape: "<http://example.org/S>", Status: domain.Conformant},
			},
		},
		{
			name:  "language tagged literal",
			input: `"hola"@es@!:Greeting`,
			want: domain.ShapeMap{
				{Node: `"hola"@es`, Shape: ":Greeting", Status: domain.NonConformant},
			},
		},
		{
			name:  "blank",
			input: "  \n",
			want:  domain.ShapeMap{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validation.ParseShapeMap(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseShapeMap_Malformed(t *testing.T) {
	for _, input := range []string{
		":alice",
		"@:User",
		":alice@",
		":alice@!",
		`[{"node": ":alice"}]`,
		`[{"node": ":alice", "shape": ":User", "status": "maybe"}]`,
		`[{"node": `,
	} {
		if _, err := validation.ParseShapeMap(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestShapeMapEquality_IgnoresOrderAndSyntax(t *testing.T) {
	compact, err := validation.ParseShapeMap(":bob@!:User,:alice@:User")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fromJSON, err := validation.ParseShapeMap(`[
		{"node": ":alice", "shape": ":User", "status": "conformant"},
		{"node": ":bob", "shape": ":User", "status": "nonconformant"}
	]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !compact.Equal(fromJSON) {
		t.Errorf("expected %v to equal %v", compact, fromJSON)
	}

	flipped, _ := validation.ParseShapeMap(":bob@:User,:alice@:User")
	if compact.Equal(flipped) {
		t.Error("maps differing in status must not be equal")
	}
}
