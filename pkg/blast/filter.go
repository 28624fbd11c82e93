package blast

// Thresholds holds optional minimums. A nil field imposes no constraint.
type Thresholds struct {
	MinCoverage   *float64
	MinIdentity   *float64
	MinPositivity *float64
}

// Value is a small helper for building Thresholds literals.
func Value(v float64) *float64 {
	return &v
}

// RescueThresholds are fixed for the nucleotide rescue search regardless of user input.
var RescueThresholds = Thresholds{
	MinCoverage: Value(80),
	MinIdentity: Value(80),
}

// Keep reports whether h satisfies every supplied threshold. Equality passes.
func (th Thresholds) Keep(h Hit) bool {
	if th.MinCoverage != nil && h.Coverage() < *th.MinCoverage {
		return false
	}
	if th.MinIdentity != nil && h.PIdent < *th.MinIdentity {
		return false
	}
	if th.MinPositivity != nil && h.PPos < *th.MinPositivity {
		return false
	}
	return true
}

// Filter returns a new table holding only the hits that pass th. The input is untouched.
func Filter(table *HitTable, th Thresholds) *HitTable {
	out := NewHitTable()
	for _, q := range table.Queries() {
		for _, h := range table.Get(q) {
			if th.Keep(h) {
				out.Add(h)
			}
		}
	}
	return out
}
