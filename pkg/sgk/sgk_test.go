package sgk

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/media"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/model/modeltest"
	"github.com/yumyai/strainmodel/pkg/solver"
	"github.com/yumyai/strainmodel/pkg/validate"
)

// glycolysisOptimizer grows only while GLYC can carry flux.
var glycolysisOptimizer = solver.OptimizerFunc(func(_ context.Context, m model.Model) (solver.Solution, error) {
	r, ok := m.Reaction("GLYC")
	if !ok || r.UpperBound == 0 {
		return solver.Solution{Status: solver.StatusInfeasible}, nil
	}
	return solver.Solution{Status: solver.StatusOptimal, ObjectiveValue: 0.5}, nil
})

func TestRun(t *testing.T) {
	logger.InitNop()
	m := modeltest.Toy()
	m.RemoveGenes([]string{"g4"})

	med := media.Media{Name: "m", Exchanges: map[string]float64{"EX_glc__D_e": -10}}
	results, err := Run(context.Background(), glycolysisOptimizer, m, med, validate.Aerobic)
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]string{}
	for _, r := range results {
		got[r.Gene] = r.Status
	}
	want := map[string]string{
		"g1": solver.StatusOptimal, "g2": solver.StatusInfeasible, "g3": solver.StatusInfeasible,
		"g5": solver.StatusOptimal, "KPN_SPONT": solver.StatusOptimal,
	}
	if len(got) != len(want) {
		t.Fatalf("results = %+v", results)
	}
	for g, status := range want {
		if got[g] != status {
			t.Errorf("%s: status %q, want %q", g, got[g], status)
		}
	}
	if r, _ := m.Reaction("GLYC"); r.UpperBound == 0 {
		t.Error("input model was modified")
	}
}

func TestRunSolverError(t *testing.T) {
	logger.InitNop()
	boom := solver.OptimizerFunc(func(context.Context, model.Model) (solver.Solution, error) {
		return solver.Solution{}, solver.ErrSolverRuntime
	})
	_, err := Run(context.Background(), boom, modeltest.Toy(), media.Media{}, validate.AtmosphereUnset)
	if !errors.Is(err, solver.ErrSolverRuntime) {
		t.Errorf("expected solver error, got %v", err)
	}
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTSV(&buf, []Result{
		{Gene: "g1", Growth: 0.25, Status: solver.StatusOptimal},
		{Gene: "g2", Status: solver.StatusInfeasible},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "ids\tgrowth\tstatus\ng1\t0.25\toptimal\ng2\t\tinfeasible\n"
	if buf.String() != want {
		t.Errorf("tsv = %q", buf.String())
	}
}
