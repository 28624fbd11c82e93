// Package sgk runs single gene knockout analysis.
package sgk

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/media"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/solver"
	"github.com/yumyai/strainmodel/pkg/validate"
)

type Result struct {
	Gene   string
	Growth float64
	Status string
}

// Run knocks out each gene of m in turn on a copy configured with med and atm and
// optimizes the model objective. Results follow model gene order.
func Run(ctx context.Context, opt solver.Optimizer, m model.Model, med media.Media, atm validate.Atmosphere) ([]Result, error) {
	base := m.Copy()
	validate.ApplyMedia(base, med, atm)

	genes := base.GeneIDs()
	results := make([]Result, 0, len(genes))
	for _, g := range genes {
		work := base.Copy()
		closed := model.KnockOut(work, []string{g})

		sol, err := opt.Optimize(ctx, work)
		if err != nil {
			return nil, fmt.Errorf("knockout %s: %w", g, err)
		}
		logger.Debug("Knocked out gene", zap.String("gene", g), zap.Int("closed", len(closed)),
			zap.String("status", sol.Status), zap.Float64("growth", sol.ObjectiveValue))
		results = append(results, Result{Gene: g, Growth: sol.ObjectiveValue, Status: sol.Status})
	}
	return results, nil
}

// WriteTSV writes one row per knockout. Growth is left empty when the solve was not
// optimal.
func WriteTSV(w io.Writer, results []Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ids\tgrowth\tstatus")
	for _, r := range results {
		growth := ""
		if r.Status == solver.StatusOptimal {
			growth = strconv.FormatFloat(r.Growth, 'g', -1, 64)
		}
		fmt.Fprintf(bw, "%s\t%s\t%s\n", r.Gene, growth, r.Status)
	}
	return bw.Flush()
}
