package model

import (
	"reflect"
	"testing"
)

func TestParseGPR(t *testing.T) {
	tests := []struct {
		rule  string
		want  string
		genes []string
	}{
		{"", "", nil},
		{"b0001", "b0001", []string{"b0001"}},
		{"b0001 and b0002", "b0001 and b0002", []string{"b0001", "b0002"}},
		{"(b0001 AND b0002) or b0003", "(b0001 and b0002) or b0003", []string{"b0001", "b0002", "b0003"}},
		{"b1 or b2 and b3", "b1 or (b2 and b3)", []string{"b1", "b2", "b3"}},
		{"((b1))", "b1", []string{"b1"}},
		{"b1 or b1", "b1 or b1", []string{"b1"}},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			g, err := parseGPR(tt.rule)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := g.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			var genes []string
			if g != nil {
				genes = g.genes()
			}
			if !reflect.DeepEqual(genes, tt.genes) {
				t.Errorf("genes() = %v, want %v", genes, tt.genes)
			}
		})
	}
}

func TestParseGPRErrors(t *testing.T) {
	for _, rule := range []string{"(b1 and b2", "b1 and", "or b1", "b1 b2", "()"} {
		if _, err := parseGPR(rule); err == nil {
			t.Errorf("expected error for %q", rule)
		}
	}
}

func TestPruneGPR(t *testing.T) {
	tests := []struct {
		rule    string
		removed []string
		want    string // "" means no gene of the rule remains
	}{
		{"b1", []string{"b1"}, ""},
		{"b1", []string{"b2"}, "b1"},
		{"b1 and b2", []string{"b2"}, "b1"},
		{"b1 and b2", []string{"b1", "b2"}, ""},
		{"b1 or b2", []string{"b2"}, "b1"},
		{"(b1 and b2) or b3", []string{"b1"}, "b2 or b3"},
		{"(b1 and b2) or b3", []string{"b3"}, "b1 and b2"},
		{"(b1 and b2) or (b3 and b4)", []string{"b1", "b3"}, "b2 or b4"},
		{"(b1 and b2) or (b3 and b4)", []string{"b1", "b2", "b3", "b4"}, ""},
		{"(b1 or b2) and b3", []string{"b1"}, "b2 and b3"},
	}
	for _, tt := range tests {
		g, err := parseGPR(tt.rule)
		if err != nil {
			t.Fatal(err)
		}
		removed := map[string]bool{}
		for _, r := range tt.removed {
			removed[r] = true
		}
		if got := g.prune(removed).String(); got != tt.want {
			t.Errorf("prune(%q, %v) = %q, want %q", tt.rule, tt.removed, got, tt.want)
		}
	}
}
