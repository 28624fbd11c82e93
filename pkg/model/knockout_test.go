package model_test

import (
	"reflect"
	"testing"

	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/model/modeltest"
)

func TestKnockOut(t *testing.T) {
	tests := []struct {
		genes  []string
		closed []string
	}{
		{[]string{"g1"}, []string{"GLCt"}},
		{[]string{"g2"}, nil},
		{[]string{"g2", "g4"}, []string{"GLYC"}},
		{[]string{"unknown"}, nil},
	}
	for _, tt := range tests {
		m := modeltest.Toy()
		got := model.KnockOut(m, tt.genes)
		if !reflect.DeepEqual(got, tt.closed) {
			t.Errorf("KnockOut(%v) = %v, want %v", tt.genes, got, tt.closed)
		}
		for _, id := range got {
			r, _ := m.Reaction(id)
			if r.LowerBound != 0 || r.UpperBound != 0 {
				t.Errorf("%s not closed: [%g, %g]", id, r.LowerBound, r.UpperBound)
			}
		}
		if len(m.GeneIDs()) != 6 {
			t.Error("knockout must not remove genes")
		}
	}
}
