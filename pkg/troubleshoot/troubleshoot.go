// Package troubleshoot diagnoses draft models that fail to produce biomass: it looks
// for reactions that would restore growth, finds biomass precursors the model cannot
// make and ties the proposed reactions back to the alignment evidence.
package troubleshoot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/blast"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/solver"
)

// Hits is the alignment evidence gathered while resolving orthologs. Protein holds the
// unfiltered reference-to-isolate protein hits, Nucleotide the rescue search hits.
type Hits struct {
	Protein    *blast.HitTable
	Nucleotide *blast.HitTable
}

type Troubleshooter struct {
	Optimizer  solver.Optimizer
	Gapfiller  solver.Gapfiller
	Iterations int
	Thresholds []float64
}

func New(opt solver.Optimizer, gf solver.Gapfiller) *Troubleshooter {
	return &Troubleshooter{
		Optimizer:  opt,
		Gapfiller:  gf,
		Iterations: DefaultIterations,
		Thresholds: DefaultThresholds,
	}
}

// Run diagnoses draft against ref, which serves as the universal reaction pool. The
// report is returned even when the gapfill ladder is exhausted; in that case the error
// is ErrGapfillExhausted and the report carries no proposed reactions.
func (t *Troubleshooter) Run(ctx context.Context, ref, draft model.Model, hits Hits, biomassID string) (*Report, error) {
	report := &Report{ModelID: draft.ID(), BiomassID: biomassID, Iterations: t.Iterations}

	gap, gapErr := Gapfill(ctx, t.Gapfiller, draft, ref, t.Iterations, t.Thresholds)
	if gapErr != nil && !errors.Is(gapErr, ErrGapfillExhausted) {
		return nil, gapErr
	}
	report.Gapfill = gap
	report.GapfillErr = gapErr

	missing, err := MissingBiomassMetabolites(ctx, t.Optimizer, draft, biomassID)
	if err != nil {
		return nil, err
	}
	report.MissingMetabolites = missing
	report.Evidence = CollectEvidence(ref, gap.Tally, hits)

	logger.Info("Troubleshooting finished",
		zap.String("model", draft.ID()),
		zap.Int("missing_metabolites", len(missing)),
		zap.Int("missing_reactions", len(gap.Tally)),
		zap.Bool("gapfill_converged", gapErr == nil),
	)
	return report, gapErr
}

// CollectEvidence pairs every gene of every proposed reaction with its protein hits,
// falling back to nucleotide hits when there are none.
func CollectEvidence(ref model.Model, tally []ReactionCount, hits Hits) []Evidence {
	var out []Evidence
	for _, rc := range tally {
		rxn, ok := ref.Reaction(rc.ID)
		if !ok {
			continue
		}
		for _, gene := range rxn.Genes() {
			e := Evidence{Reaction: rc.ID, Gene: gene}
			if hits.Protein != nil {
				e.Protein = hits.Protein.Get(gene)
			}
			if len(e.Protein) == 0 && hits.Nucleotide != nil {
				e.Nucleotide = hits.Nucleotide.Get(gene)
			}
			out = append(out, e)
		}
	}
	return out
}
