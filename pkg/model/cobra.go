package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Document mirrors the COBRA JSON model layout.
type Document struct {
	Metabolites  []*Metabolite     `json:"metabolites"`
	Reactions    []*Reaction       `json:"reactions"`
	Genes        []*Gene           `json:"genes"`
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Compartments map[string]string `json:"compartments,omitempty"`
	Notes        map[string]any    `json:"notes,omitempty"`
	Version      string            `json:"version,omitempty"`
}

// JSONModel is the Model backend for COBRA JSON documents.
type JSONModel struct {
	doc Document

	reactionIdx   map[string]int
	metaboliteIdx map[string]int
	geneIdx       map[string]int
}

// New wraps a decoded document. Reaction rules are parsed up front so a malformed rule
// is reported at load time rather than during pruning.
func New(doc Document) (*JSONModel, error) {
	if doc.Metabolites == nil {
		doc.Metabolites = []*Metabolite{}
	}
	if doc.Reactions == nil {
		doc.Reactions = []*Reaction{}
	}
	if doc.Genes == nil {
		doc.Genes = []*Gene{}
	}
	m := &JSONModel{doc: doc}
	seen := make(map[string]bool, len(doc.Reactions))
	for _, r := range doc.Reactions {
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate reaction %q", r.ID)
		}
		seen[r.ID] = true
		if _, err := parseGPR(r.GeneReactionRule); err != nil {
			return nil, fmt.Errorf("reaction %s: %w", r.ID, err)
		}
	}
	return m, nil
}

func Decode(r io.Reader) (*JSONModel, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	return New(doc)
}

func Load(path string) (*JSONModel, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	m, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save writes m as COBRA JSON to path.
func Save(m Model, path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Encode(fh); err != nil {
		fh.Close()
		return fmt.Errorf("failed to write model %s: %w", path, err)
	}
	return fh.Close()
}

func (m *JSONModel) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m.doc)
}

func (m *JSONModel) Document() Document { return m.doc }

func (m *JSONModel) ID() string      { return m.doc.ID }
func (m *JSONModel) SetID(id string) { m.doc.ID = id }

func (m *JSONModel) reindex() {
	m.reactionIdx = nil
	m.metaboliteIdx = nil
	m.geneIdx = nil
}

func (m *JSONModel) reactions() map[string]int {
	if m.reactionIdx == nil {
		m.reactionIdx = make(map[string]int, len(m.doc.Reactions))
		for i, r := range m.doc.Reactions {
			m.reactionIdx[r.ID] = i
		}
	}
	return m.reactionIdx
}

func (m *JSONModel) metabolites() map[string]int {
	if m.metaboliteIdx == nil {
		m.metaboliteIdx = make(map[string]int, len(m.doc.Metabolites))
		for i, met := range m.doc.Metabolites {
			m.metaboliteIdx[met.ID] = i
		}
	}
	return m.metaboliteIdx
}

func (m *JSONModel) genes() map[string]int {
	if m.geneIdx == nil {
		m.geneIdx = make(map[string]int, len(m.doc.Genes))
		for i, g := range m.doc.Genes {
			m.geneIdx[g.ID] = i
		}
	}
	return m.geneIdx
}

func (m *JSONModel) GeneIDs() []string {
	ids := make([]string, len(m.doc.Genes))
	for i, g := range m.doc.Genes {
		ids[i] = g.ID
	}
	return ids
}

func (m *JSONModel) Gene(id string) (*Gene, bool) {
	i, ok := m.genes()[id]
	if !ok {
		return nil, false
	}
	return m.doc.Genes[i], true
}

func (m *JSONModel) AddGene(g *Gene) {
	if _, ok := m.genes()[g.ID]; ok {
		return
	}
	m.doc.Genes = append(m.doc.Genes, g)
	m.reindex()
}

func (m *JSONModel) RemoveGenes(ids []string) []string {
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}

	var dropped []string
	kept := m.doc.Reactions[:0:0]
	for _, r := range m.doc.Reactions {
		rule, _ := parseGPR(r.GeneReactionRule)
		if rule == nil {
			kept = append(kept, r)
			continue
		}
		pruned := rule.prune(removed)
		if pruned == nil {
			dropped = append(dropped, r.ID)
			continue
		}
		r.GeneReactionRule = pruned.String()
		kept = append(kept, r)
	}
	m.doc.Reactions = kept

	genes := m.doc.Genes[:0:0]
	for _, g := range m.doc.Genes {
		if !removed[g.ID] {
			genes = append(genes, g)
		}
	}
	m.doc.Genes = genes
	m.reindex()
	return dropped
}

// RenameGenes renames genes in the gene list and in every reaction rule. Two genes
// renamed onto the same id collapse into one entry.
func (m *JSONModel) RenameGenes(names map[string]string) {
	for _, r := range m.doc.Reactions {
		rule, _ := parseGPR(r.GeneReactionRule)
		if rule == nil {
			continue
		}
		rule.rename(names)
		r.GeneReactionRule = rule.String()
	}

	seen := make(map[string]bool, len(m.doc.Genes))
	genes := m.doc.Genes[:0:0]
	for _, g := range m.doc.Genes {
		if to, ok := names[g.ID]; ok {
			g.ID = to
		}
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		genes = append(genes, g)
	}
	m.doc.Genes = genes
	m.reindex()
}

func (m *JSONModel) Reactions() []*Reaction {
	out := make([]*Reaction, len(m.doc.Reactions))
	copy(out, m.doc.Reactions)
	return out
}

func (m *JSONModel) Reaction(id string) (*Reaction, bool) {
	i, ok := m.reactions()[id]
	if !ok {
		return nil, false
	}
	return m.doc.Reactions[i], true
}

func (m *JSONModel) AddReaction(r *Reaction) error {
	if _, ok := m.reactions()[r.ID]; ok {
		return fmt.Errorf("reaction %q already exists", r.ID)
	}
	if _, err := parseGPR(r.GeneReactionRule); err != nil {
		return err
	}
	for _, c := range r.Metabolites {
		if _, ok := m.metabolites()[c.Metabolite]; !ok {
			return fmt.Errorf("reaction %s: metabolite %s: %w", r.ID, c.Metabolite, ErrNotFound)
		}
	}
	m.doc.Reactions = append(m.doc.Reactions, r)
	m.reindex()
	return nil
}

func (m *JSONModel) RemoveReaction(id string) bool {
	i, ok := m.reactions()[id]
	if !ok {
		return false
	}
	m.doc.Reactions = append(m.doc.Reactions[:i:i], m.doc.Reactions[i+1:]...)
	m.reindex()
	return true
}

func (m *JSONModel) Metabolite(id string) (*Metabolite, bool) {
	i, ok := m.metabolites()[id]
	if !ok {
		return nil, false
	}
	return m.doc.Metabolites[i], true
}

func (m *JSONModel) AddMetabolite(met *Metabolite) {
	if _, ok := m.metabolites()[met.ID]; ok {
		return
	}
	m.doc.Metabolites = append(m.doc.Metabolites, met)
	m.reindex()
}

func (m *JSONModel) MetaboliteReactions(id string) []string {
	var out []string
	for _, r := range m.doc.Reactions {
		if _, ok := r.Metabolites.Get(id); ok {
			out = append(out, r.ID)
		}
	}
	return out
}

// Objective returns the id of the first reaction with a non-zero objective coefficient.
func (m *JSONModel) Objective() string {
	for _, r := range m.doc.Reactions {
		if r.ObjectiveCoefficient != 0 {
			return r.ID
		}
	}
	return ""
}

func (m *JSONModel) SetObjective(reactionID string) error {
	target, ok := m.Reaction(reactionID)
	if !ok {
		return fmt.Errorf("objective %s: %w", reactionID, ErrNotFound)
	}
	for _, r := range m.doc.Reactions {
		r.ObjectiveCoefficient = 0
	}
	target.ObjectiveCoefficient = 1
	return nil
}

type boundary int

const (
	notBoundary boundary = iota
	exchange
	demand
	sink
)

// boundaryType classifies single-metabolite reactions by id prefix first, then by
// compartment and reversibility.
func (m *JSONModel) boundaryType(r *Reaction) boundary {
	if len(r.Metabolites) != 1 {
		return notBoundary
	}
	switch {
	case strings.HasPrefix(r.ID, "EX_"):
		return exchange
	case strings.HasPrefix(r.ID, "DM_"):
		return demand
	case strings.HasPrefix(r.ID, "SK_"), strings.HasPrefix(r.ID, "sink_"):
		return sink
	}
	if met, ok := m.Metabolite(r.Metabolites[0].Metabolite); ok && met.Compartment == ExternalCompartment {
		return exchange
	}
	if r.Reversible() {
		return sink
	}
	return demand
}

func (m *JSONModel) byBoundary(kind boundary) []*Reaction {
	var out []*Reaction
	for _, r := range m.doc.Reactions {
		if m.boundaryType(r) == kind {
			out = append(out, r)
		}
	}
	return out
}

func (m *JSONModel) Exchanges() []*Reaction { return m.byBoundary(exchange) }
func (m *JSONModel) Sinks() []*Reaction     { return m.byBoundary(sink) }
func (m *JSONModel) Demands() []*Reaction   { return m.byBoundary(demand) }

func (m *JSONModel) SetNote(key string, value any) {
	if m.doc.Notes == nil {
		m.doc.Notes = make(map[string]any)
	}
	m.doc.Notes[key] = value
}

// Copy returns an independent model. Annotations are shared since nothing mutates them.
func (m *JSONModel) Copy() Model {
	doc := m.doc
	doc.Notes = cloneNotes(m.doc.Notes)

	doc.Reactions = make([]*Reaction, len(m.doc.Reactions))
	for i, r := range m.doc.Reactions {
		doc.Reactions[i] = r.clone()
	}
	doc.Metabolites = make([]*Metabolite, len(m.doc.Metabolites))
	for i, met := range m.doc.Metabolites {
		c := *met
		doc.Metabolites[i] = &c
	}
	doc.Genes = make([]*Gene, len(m.doc.Genes))
	for i, g := range m.doc.Genes {
		c := *g
		doc.Genes[i] = &c
	}
	return &JSONModel{doc: doc}
}
