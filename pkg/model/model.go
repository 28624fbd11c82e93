// Package model holds the metabolic model abstraction used by the pipeline and a
// backend for the COBRA JSON model format.
package model

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrNotFound = errors.New("not found")

// ExternalCompartment is the compartment id of extracellular metabolites.
const ExternalCompartment = "e"

// Model is the narrow contract the pipeline needs from a metabolic model. Reactions and
// metabolites returned by pointer belong to the model and may be mutated in place (bounds).
type Model interface {
	ID() string
	SetID(id string)

	GeneIDs() []string
	Gene(id string) (*Gene, bool)
	AddGene(g *Gene)
	// RemoveGenes removes the genes and every reaction left without any gene. Surviving
	// rules are rewritten without the removed genes; reactions with no rule are kept.
	// The ids of the removed reactions are returned.
	RemoveGenes(ids []string) []string
	RenameGenes(names map[string]string)

	Reactions() []*Reaction
	Reaction(id string) (*Reaction, bool)
	AddReaction(r *Reaction) error
	RemoveReaction(id string) bool

	Metabolite(id string) (*Metabolite, bool)
	AddMetabolite(m *Metabolite)
	// MetaboliteReactions lists the ids of reactions involving metabolite id.
	MetaboliteReactions(id string) []string

	Objective() string
	SetObjective(reactionID string) error

	Exchanges() []*Reaction
	Sinks() []*Reaction
	Demands() []*Reaction

	SetNote(key string, value any)
	Copy() Model
	Encode(w io.Writer) error
}

type Gene struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Notes      map[string]any        `json:"notes,omitempty"`
	Annotation map[string]Annotation `json:"annotation,omitempty"`
}

type Metabolite struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Compartment string                `json:"compartment"`
	Charge      *float64              `json:"charge,omitempty"`
	Formula     string                `json:"formula,omitempty"`
	Notes       map[string]any        `json:"notes,omitempty"`
	Annotation  map[string]Annotation `json:"annotation,omitempty"`
}

type Reaction struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	Metabolites          Stoichiometry         `json:"metabolites"`
	LowerBound           float64               `json:"lower_bound"`
	UpperBound           float64               `json:"upper_bound"`
	GeneReactionRule     string                `json:"gene_reaction_rule"`
	ObjectiveCoefficient float64               `json:"objective_coefficient,omitempty"`
	Subsystem            string                `json:"subsystem,omitempty"`
	Notes                map[string]any        `json:"notes,omitempty"`
	Annotation           map[string]Annotation `json:"annotation,omitempty"`
}

// Genes returns the gene ids of the reaction rule. Rules are validated on load, so a
// rule that fails to parse here yields no genes.
func (r *Reaction) Genes() []string {
	g, err := parseGPR(r.GeneReactionRule)
	if err != nil || g == nil {
		return nil
	}
	return g.genes()
}

// Reversible reports whether flux may run in both directions.
func (r *Reaction) Reversible() bool {
	return r.LowerBound < 0 && r.UpperBound > 0
}

// Equation renders the reaction as "a + 2 b --> c".
func (r *Reaction) Equation() string {
	var left, right []string
	for _, c := range r.Metabolites {
		term := c.Metabolite
		v := c.Value
		if v < 0 {
			v = -v
		}
		if v != 1 {
			term = strconv.FormatFloat(v, 'g', -1, 64) + " " + term
		}
		if c.Value < 0 {
			left = append(left, term)
		} else {
			right = append(right, term)
		}
	}
	arrow := "-->"
	switch {
	case r.Reversible():
		arrow = "<=>"
	case r.UpperBound <= 0 && r.LowerBound < 0:
		arrow = "<--"
	}
	return strings.TrimSpace(strings.Join(left, " + ") + " " + arrow + " " + strings.Join(right, " + "))
}

func (r *Reaction) clone() *Reaction {
	c := *r
	c.Metabolites = append(Stoichiometry(nil), r.Metabolites...)
	c.Notes = cloneNotes(r.Notes)
	return &c
}

func cloneNotes(n map[string]any) map[string]any {
	if n == nil {
		return nil
	}
	out := make(map[string]any, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

// CopyReaction copies reaction id from src into dst together with any metabolites and
// genes it references that dst does not have yet.
func CopyReaction(dst, src Model, id string) error {
	r, ok := src.Reaction(id)
	if !ok {
		return fmt.Errorf("reaction %s: %w", id, ErrNotFound)
	}
	for _, c := range r.Metabolites {
		if _, ok := dst.Metabolite(c.Metabolite); ok {
			continue
		}
		m, ok := src.Metabolite(c.Metabolite)
		if !ok {
			m = &Metabolite{ID: c.Metabolite}
		}
		mc := *m
		dst.AddMetabolite(&mc)
	}
	for _, g := range r.Genes() {
		if _, ok := dst.Gene(g); ok {
			continue
		}
		gene, ok := src.Gene(g)
		if !ok {
			gene = &Gene{ID: g}
		}
		gc := *gene
		dst.AddGene(&gc)
	}
	rc := r.clone()
	rc.ObjectiveCoefficient = 0
	return dst.AddReaction(rc)
}
