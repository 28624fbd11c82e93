package troubleshoot

import (
	"context"
	"fmt"

	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/solver"
	"github.com/yumyai/strainmodel/pkg/validate"
)

const drainSuffix = "_drain"

// MissingBiomassMetabolites tests each metabolite consumed by the biomass reaction on
// its own: a drain for that metabolite becomes the objective and the metabolite is
// missing when the optimum stays below validate.Epsilon. The drain is removed before
// the next metabolite so results do not depend on each other. m is not modified.
func MissingBiomassMetabolites(ctx context.Context, opt solver.Optimizer, m model.Model, biomassID string) ([]string, error) {
	work := m.Copy()
	biomass, ok := work.Reaction(biomassID)
	if !ok {
		return nil, fmt.Errorf("biomass reaction %s: %w", biomassID, model.ErrNotFound)
	}
	precursors := make([]string, 0, len(biomass.Metabolites))
	for _, c := range biomass.Metabolites {
		if c.Value < 0 {
			precursors = append(precursors, c.Metabolite)
		}
	}

	var missing []string
	for _, met := range precursors {
		drain := &model.Reaction{
			ID:          met + drainSuffix,
			Name:        met + " drain",
			Subsystem:   "Transport/Exchange",
			LowerBound:  0,
			UpperBound:  1000,
			Metabolites: model.Stoichiometry{{Metabolite: met, Value: -1}},
		}
		if err := work.AddReaction(drain); err != nil {
			return nil, err
		}
		if err := work.SetObjective(drain.ID); err != nil {
			return nil, err
		}
		sol, err := opt.Optimize(ctx, work)
		if err != nil {
			return nil, fmt.Errorf("failed to optimize drain of %s: %w", met, err)
		}
		if sol.Status != solver.StatusOptimal || sol.ObjectiveValue < validate.Epsilon {
			missing = append(missing, met)
		}
		work.RemoveReaction(drain.ID)
	}
	return missing, nil
}
