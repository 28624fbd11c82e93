// Package fba runs flux balance simulations described by FBA specs: growth on the
// defined exchanges and growth with each potential element source substituted in.
package fba

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/solver"
	"github.com/yumyai/strainmodel/pkg/validate"
)

const (
	CarbonDioxideExchange = "EX_co2_e"
	DefaultOpenValue      = -1000.0
	Infeasible            = "infeasible"
)

func elementRe(symbol string) *regexp.Regexp {
	return regexp.MustCompile(`^.*` + symbol + `([0-9A-Z]+.*)?$`)
}

// elementPatterns detect an element in a chemical formula, in ElementSources order.
var elementPatterns = []struct {
	category string
	re       *regexp.Regexp
}{
	{"carbon", elementRe("C")},
	{"phosphorus", elementRe("P")},
	{"nitrogen", elementRe("N")},
	{"sulfur", elementRe("S")},
}

// Categories returns the element source categories of formula.
func Categories(formula string) []string {
	var out []string
	for _, p := range elementPatterns {
		if p.re.MatchString(formula) {
			out = append(out, p.category)
		}
	}
	return out
}

// SourceCategories maps each exchange whose metabolite can supply an element to its
// categories. Exchanges are single-metabolite reactions; anything else is a broken model.
func SourceCategories(m model.Model) (ids []string, cats map[string][]string) {
	cats = make(map[string][]string)
	for _, r := range m.Exchanges() {
		if len(r.Metabolites) != 1 {
			panic(fmt.Sprintf("fba: exchange %s has %d metabolites", r.ID, len(r.Metabolites)))
		}
		formula := ""
		if met, ok := m.Metabolite(r.Metabolites[0].Metabolite); ok {
			formula = met.Formula
		}
		c := Categories(formula)
		if len(c) == 0 {
			continue
		}
		ids = append(ids, r.ID)
		cats[r.ID] = c
	}
	return ids, cats
}

// combinations lists every non-empty subset of items, smaller subsets first and each
// subset in item order.
func combinations(items []string) [][]string {
	var out [][]string
	var pick func(start, size int, cur []string)
	pick = func(start, size int, cur []string) {
		if len(cur) == size {
			out = append(out, append([]string(nil), cur...))
			return
		}
		for i := start; i < len(items); i++ {
			pick(i+1, size, append(cur, items[i]))
		}
	}
	for size := 1; size <= len(items); size++ {
		pick(0, size, nil)
	}
	return out
}

// Row is one simulation result.
type Row struct {
	Type       string
	Spec       string
	Atmosphere validate.Atmosphere
	Exchange   string
	Categories string
	Value      string
}

type Runner struct {
	Optimizer solver.Optimizer
	OpenValue float64
}

func NewRunner(opt solver.Optimizer, openValue float64) *Runner {
	return &Runner{Optimizer: opt, OpenValue: openValue}
}

// Run simulates every spec on copies of m. Sinks are restricted to export first.
func (r *Runner) Run(ctx context.Context, m model.Model, specs []Spec) ([]Row, error) {
	base := m.Copy()
	for _, s := range base.Sinks() {
		s.LowerBound = 0
	}

	var rows []Row
	for _, spec := range specs {
		for _, t := range spec.Types {
			var got []Row
			var err error
			switch t {
			case DefinedExchangesOnly:
				got, err = r.definedExchanges(ctx, base, spec)
			case PotentialElementSources:
				got, err = r.elementSources(ctx, base, spec)
			default:
				err = &SpecError{Spec: spec.Name, Msg: "got bad fba_type: " + t}
			}
			if err != nil {
				return nil, err
			}
			rows = append(rows, got...)
		}
	}
	return rows, nil
}

func mediaBounds(m model.Model, spec Spec) map[string]float64 {
	bounds := make(map[string]float64)
	for _, ex := range m.Exchanges() {
		bounds[ex.ID] = 0
	}
	for id, lb := range spec.Exchanges {
		bounds[id] = lb
	}
	return bounds
}

func (r *Runner) simulate(ctx context.Context, base model.Model, bounds map[string]float64, atm validate.Atmosphere) (string, error) {
	work := base.Copy()
	b := make(map[string]float64, len(bounds)+1)
	for k, v := range bounds {
		b[k] = v
	}
	if o2, ok := atm.OxygenBound(); ok {
		b[validate.OxygenExchange] = o2
	}
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	validate.SetBounds(work, b, ids)

	sol, err := r.Optimizer.Optimize(ctx, work)
	if err != nil {
		return "", err
	}
	if sol.Status == solver.StatusInfeasible {
		return Infeasible, nil
	}
	return strconv.FormatFloat(sol.ObjectiveValue, 'g', -1, 64), nil
}

func (r *Runner) definedExchanges(ctx context.Context, base model.Model, spec Spec) ([]Row, error) {
	bounds := mediaBounds(base, spec)
	var rows []Row
	for _, atm := range spec.Atmospheres {
		v, err := r.simulate(ctx, base, bounds, atm)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Type: DefinedExchangesOnly, Spec: spec.Name, Atmosphere: atm, Exchange: "-", Categories: "-", Value: v})
	}
	return rows, nil
}

func (r *Runner) elementSources(ctx context.Context, base model.Model, spec Spec) ([]Row, error) {
	ids, cats := SourceCategories(base)
	logger.Debug("Potential element sources", zap.String("spec", spec.Name), zap.Int("exchanges", len(ids)))

	var rows []Row
	for _, id := range ids {
		for _, combo := range combinations(cats[id]) {
			bounds := mediaBounds(base, spec)
			for _, category := range combo {
				bounds[spec.DefaultElementSources[category]] = 0
			}
			bounds[id] = r.OpenValue

			for _, atm := range spec.Atmospheres {
				v, err := r.simulate(ctx, base, bounds, atm)
				if err != nil {
					return nil, err
				}
				rows = append(rows, Row{
					Type:       PotentialElementSources,
					Spec:       spec.Name,
					Atmosphere: atm,
					Exchange:   id,
					Categories: strings.Join(combo, ","),
					Value:      v,
				})
			}
		}
	}
	return rows, nil
}

// WriteTSV writes rows under the fixed result header.
func WriteTSV(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "fba_type\tspec_name\tatmosphere\texchange\tcategories\tobjective_value")
	for _, r := range rows {
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Type, r.Spec, r.Atmosphere, r.Exchange, r.Categories, r.Value)
	}
	return bw.Flush()
}
