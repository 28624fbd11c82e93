package model

// KnockOut closes every reaction whose gene rule no longer holds without genes, leaving
// the genes themselves in place. It returns the ids of the closed reactions.
func KnockOut(m Model, genes []string) []string {
	knocked := make(map[string]bool, len(genes))
	for _, g := range genes {
		knocked[g] = true
	}
	var closed []string
	for _, r := range m.Reactions() {
		rule, _ := parseGPR(r.GeneReactionRule)
		if rule == nil || rule.eval(knocked) {
			continue
		}
		r.LowerBound = 0
		r.UpperBound = 0
		closed = append(closed, r.ID)
	}
	return closed
}
