package blast

import (
	"fmt"
	"testing"
)

func sampleTable() *HitTable {
	table := NewHitTable()
	idents := []float64{70, 80, 85, 95, 100}
	for i, pident := range idents {
		table.Add(Hit{
			QSeqID:  fmt.Sprintf("g%d", i%2),
			SSeqID:  fmt.Sprintf("iso_%d", i),
			QLen:    100,
			Length:  20 + i*20,
			PIdent:  pident,
			PPos:    pident + 1,
			HasPPos: true,
		})
	}
	return table
}

func TestFilterBoundaryPasses(t *testing.T) {
	table := NewHitTable()
	table.Add(Hit{QSeqID: "g1", SSeqID: "iso_1", QLen: 100, Length: 25, PIdent: 80, PPos: 90})

	kept := Filter(table, Thresholds{MinCoverage: Value(25), MinIdentity: Value(80), MinPositivity: Value(90)})
	if kept.Count() != 1 {
		t.Error("hit exactly at every threshold must pass")
	}

	dropped := Filter(table, Thresholds{MinCoverage: Value(25.0001)})
	if dropped.Count() != 0 {
		t.Error("hit below coverage threshold must be removed")
	}
}

func TestFilterNoThresholds(t *testing.T) {
	table := sampleTable()
	if Filter(table, Thresholds{}).Count() != table.Count() {
		t.Error("absent thresholds must keep every hit")
	}
}

func TestFilterIsSubsetAndMonotonic(t *testing.T) {
	table := sampleTable()
	before := table.Count()

	prev := table.Count()
	for _, minIdent := range []float64{0, 75, 80, 90, 99, 101} {
		out := Filter(table, Thresholds{MinIdentity: Value(minIdent), MinCoverage: Value(30)})

		for _, q := range out.Queries() {
			for _, h := range out.Get(q) {
				if !containsHit(table.Get(q), h) {
					t.Errorf("filtered hit %+v not in input", h)
				}
			}
		}
		if out.Count() > prev {
			t.Errorf("raising identity to %v increased result size %d > %d", minIdent, out.Count(), prev)
		}
		prev = out.Count()
	}

	if table.Count() != before {
		t.Error("Filter mutated its input")
	}
}

func TestRescueThresholds(t *testing.T) {
	pass := Hit{QLen: 100, Length: 80, PIdent: 80}
	fail := Hit{QLen: 100, Length: 79, PIdent: 99}
	if !RescueThresholds.Keep(pass) || RescueThresholds.Keep(fail) {
		t.Error("rescue thresholds are coverage >= 80 and identity >= 80")
	}
}

func containsHit(hits []Hit, h Hit) bool {
	for _, x := range hits {
		if x == h {
			return true
		}
	}
	return false
}
