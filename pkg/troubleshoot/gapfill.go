package troubleshoot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/solver"
)

var ErrGapfillExhausted = errors.New("gapfilling failed at every integer threshold")

// DefaultThresholds is the descending integer-feasibility ladder tried by Gapfill.
var DefaultThresholds = []float64{1e-6, 1e-7, 1e-10, 1e-20, 1e-50, 0}

const DefaultIterations = 5

// ReactionCount is how many gapfill iterations proposed a reaction.
type ReactionCount struct {
	ID    string
	Count int
}

type GapfillResult struct {
	Iterations [][]string
	Threshold  float64
	// Tally lists every proposed reaction once, in order of first proposal.
	Tally []ReactionCount
}

// Tally counts reaction occurrences across iterations, keeping first-seen order.
func Tally(iterations [][]string) []ReactionCount {
	idx := make(map[string]int)
	var out []ReactionCount
	for _, it := range iterations {
		for _, id := range it {
			i, ok := idx[id]
			if !ok {
				i = len(out)
				idx[id] = i
				out = append(out, ReactionCount{ID: id})
			}
			out[i].Count++
		}
	}
	return out
}

// Gapfill walks thresholds in order and returns the result of the first one at which the
// gapfiller converges. Each attempt works on its own copy of draft. Solver runtime errors
// move on to the next threshold; any other error stops the search.
func Gapfill(ctx context.Context, gf solver.Gapfiller, draft, universal model.Model, iterations int, thresholds []float64) (GapfillResult, error) {
	for _, th := range thresholds {
		opts := solver.GapfillOptions{Iterations: iterations, IntegerThreshold: th}
		found, err := gf.Fill(ctx, draft.Copy(), universal, opts)
		if errors.Is(err, solver.ErrSolverRuntime) {
			logger.Warn("Gapfilling did not converge", zap.String("threshold", solver.FormatThreshold(th)), zap.Error(err))
			continue
		}
		if err != nil {
			return GapfillResult{}, fmt.Errorf("gapfill at threshold %s: %w", solver.FormatThreshold(th), err)
		}
		logger.Info("Gapfilling converged",
			zap.String("threshold", solver.FormatThreshold(th)),
			zap.Int("iterations", len(found)),
		)
		return GapfillResult{Iterations: found, Threshold: th, Tally: Tally(found)}, nil
	}
	return GapfillResult{}, ErrGapfillExhausted
}
