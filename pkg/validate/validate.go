// Package validate checks whether a model can produce biomass on a given medium.
package validate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/media"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/solver"
)

// Epsilon is the smallest objective value counted as growth.
const Epsilon = 1e-4

const (
	OxygenExchange     = "EX_o2_e"
	AerobicOxygenBound = -20.0
)

type Atmosphere string

const (
	AtmosphereUnset Atmosphere = ""
	Aerobic         Atmosphere = "aerobic"
	Anaerobic       Atmosphere = "anaerobic"
)

func ParseAtmosphere(s string) (Atmosphere, error) {
	switch a := Atmosphere(strings.ToLower(strings.TrimSpace(s))); a {
	case AtmosphereUnset, Aerobic, Anaerobic:
		return a, nil
	}
	return AtmosphereUnset, fmt.Errorf("invalid atmosphere %q (choose from aerobic, anaerobic)", s)
}

// OxygenBound returns the oxygen exchange lower bound for a, and false when a leaves the
// bound untouched.
func (a Atmosphere) OxygenBound() (float64, bool) {
	switch a {
	case Aerobic:
		return AerobicOxygenBound, true
	case Anaerobic:
		return 0, true
	}
	return 0, false
}

// SetBounds sets lower bounds of the given reactions, logging a warning for each id the
// model does not have. The missing ids are returned.
func SetBounds(m model.Model, bounds map[string]float64, ids []string) []string {
	var missing []string
	for _, id := range ids {
		r, ok := m.Reaction(id)
		if !ok {
			logger.Warn("Model does not contain reaction", zap.String("model", m.ID()), zap.String("reaction", id))
			missing = append(missing, id)
			continue
		}
		r.LowerBound = bounds[id]
	}
	return missing
}

// ApplyMedia closes every exchange, opens the exchanges listed in med to their lower
// bounds and sets the oxygen exchange from atm. Ids absent from the model are warned
// about and returned; they do not stop the run.
func ApplyMedia(m model.Model, med media.Media, atm Atmosphere) []string {
	for _, r := range m.Exchanges() {
		r.LowerBound = 0
	}
	missing := SetBounds(m, med.Exchanges, med.ExchangeIDs())
	if bound, ok := atm.OxygenBound(); ok {
		missing = append(missing, SetBounds(m, map[string]float64{OxygenExchange: bound}, []string{OxygenExchange})...)
	}
	return missing
}

type Result struct {
	Grows            bool
	Status           string
	ObjectiveValue   float64
	MissingReactions []string
	// Model is the configured copy that was optimized.
	Model model.Model
}

// Validator asks the optimizer whether a model grows on a medium.
type Validator struct {
	Optimizer solver.Optimizer
}

func New(opt solver.Optimizer) *Validator {
	return &Validator{Optimizer: opt}
}

// Validate configures a copy of m with med and atm and optimizes it. When biomassID names
// a reaction of the model it becomes the objective; otherwise the model objective is
// kept. m itself is not modified.
func (v *Validator) Validate(ctx context.Context, m model.Model, med media.Media, atm Atmosphere, biomassID string) (Result, error) {
	work := m.Copy()
	missing := ApplyMedia(work, med, atm)

	if biomassID != "" {
		if _, ok := work.Reaction(biomassID); ok {
			if err := work.SetObjective(biomassID); err != nil {
				return Result{}, err
			}
		} else {
			logger.Warn("Biomass reaction not in model, using model objective",
				zap.String("biomass", biomassID), zap.String("objective", work.Objective()))
		}
	}

	sol, err := v.Optimizer.Optimize(ctx, work)
	if err != nil {
		return Result{}, fmt.Errorf("failed to optimize %s: %w", m.ID(), err)
	}

	res := Result{
		Grows:            sol.Status == solver.StatusOptimal && sol.ObjectiveValue > Epsilon,
		Status:           sol.Status,
		ObjectiveValue:   sol.ObjectiveValue,
		MissingReactions: missing,
		Model:            work,
	}
	logger.Info("Validated biomass production",
		zap.String("model", m.ID()),
		zap.String("media", med.Name),
		zap.String("atmosphere", string(atm)),
		zap.Bool("grows", res.Grows),
		zap.Float64("objective_value", res.ObjectiveValue),
	)
	return res, nil
}
