// Package solver is the bridge to the external constraint-based optimizer. Models are
// handed over as COBRA JSON files and replies come back as JSON on stdout.
package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/internal/command"
	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/model"
)

// ErrSolverRuntime is returned when the optimizer process fails, including a gapfill
// search that does not converge at the requested threshold.
var ErrSolverRuntime = errors.New("solver runtime error")

const (
	StatusOptimal    = "optimal"
	StatusInfeasible = "infeasible"
)

type Solution struct {
	Status         string  `json:"status"`
	ObjectiveValue float64 `json:"objective_value"`
}

type Optimizer interface {
	// Optimize maximises the model objective under its current bounds.
	Optimize(ctx context.Context, m model.Model) (Solution, error)
}

type GapfillOptions struct {
	Iterations       int
	IntegerThreshold float64
	DemandReactions  bool
}

type Gapfiller interface {
	// Fill proposes reaction sets from universal that restore growth of draft, one set
	// per iteration.
	Fill(ctx context.Context, draft, universal model.Model, opts GapfillOptions) ([][]string, error)
}

// Exec runs the optimizer executable at Path:
//
//	<path> optimize --model m.json
//	<path> gapfill --model d.json --universal u.json --iterations N --integer-threshold T [--demand-reactions]
type Exec struct {
	Path       string
	ScratchDir string
}

func NewExec(path, scratchDir string) *Exec {
	if path == "" {
		path = "cobra-solver"
	}
	return &Exec{Path: path, ScratchDir: scratchDir}
}

func (e *Exec) workdir() (string, func(), error) {
	dir, err := os.MkdirTemp(e.ScratchDir, "solver-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create solver scratch dir: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func (e *Exec) run(ctx context.Context, args []string, reply any) error {
	out, err := command.Run(ctx, e.Path, args, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSolverRuntime, err)
	}
	if err := json.Unmarshal(out, reply); err != nil {
		return fmt.Errorf("%w: unreadable reply from %s: %v", ErrSolverRuntime, e.Path, err)
	}
	return nil
}

func (e *Exec) Optimize(ctx context.Context, m model.Model) (Solution, error) {
	dir, cleanup, err := e.workdir()
	if err != nil {
		return Solution{}, err
	}
	defer cleanup()

	path := filepath.Join(dir, "model.json")
	if err := model.Save(m, path); err != nil {
		return Solution{}, err
	}

	var sol Solution
	if err := e.run(ctx, []string{"optimize", "--model", path}, &sol); err != nil {
		return Solution{}, err
	}
	if sol.Status != StatusOptimal {
		// Infeasible problems carry no meaningful objective.
		sol.ObjectiveValue = 0
	}
	logger.Debug("Optimized",
		zap.String("model", m.ID()),
		zap.String("objective", m.Objective()),
		zap.String("status", sol.Status),
		zap.Float64("value", sol.ObjectiveValue),
	)
	return sol, nil
}

type gapfillReply struct {
	Reactions [][]string `json:"reactions"`
}

func (e *Exec) Fill(ctx context.Context, draft, universal model.Model, opts GapfillOptions) ([][]string, error) {
	dir, cleanup, err := e.workdir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	draftPath := filepath.Join(dir, "draft.json")
	universalPath := filepath.Join(dir, "universal.json")
	if err := model.Save(draft, draftPath); err != nil {
		return nil, err
	}
	if err := model.Save(universal, universalPath); err != nil {
		return nil, err
	}

	args := []string{
		"gapfill",
		"--model", draftPath,
		"--universal", universalPath,
		"--iterations", strconv.Itoa(opts.Iterations),
		"--integer-threshold", FormatThreshold(opts.IntegerThreshold),
	}
	if opts.DemandReactions {
		args = append(args, "--demand-reactions")
	}

	var reply gapfillReply
	if err := e.run(ctx, args, &reply); err != nil {
		return nil, err
	}
	return reply.Reactions, nil
}

// FormatThreshold renders an integer threshold the way it is passed to the solver and
// reported in summaries ("1e-06", "0").
func FormatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// OptimizerFunc adapts a function to the Optimizer interface.
type OptimizerFunc func(ctx context.Context, m model.Model) (Solution, error)

func (f OptimizerFunc) Optimize(ctx context.Context, m model.Model) (Solution, error) {
	return f(ctx, m)
}

// GapfillerFunc adapts a function to the Gapfiller interface.
type GapfillerFunc func(ctx context.Context, draft, universal model.Model, opts GapfillOptions) ([][]string, error)

func (f GapfillerFunc) Fill(ctx context.Context, draft, universal model.Model, opts GapfillOptions) ([][]string, error) {
	return f(ctx, draft, universal, opts)
}
