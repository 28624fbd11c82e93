package model_test

import (
	"bytes"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/model/modeltest"
)

func reactionIDs(rs []*model.Reaction) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

func TestRemoveGenesCascade(t *testing.T) {
	m := modeltest.Toy()

	dropped := m.RemoveGenes([]string{"g1", "g2"})
	if !reflect.DeepEqual(dropped, []string{"GLCt"}) {
		t.Errorf("dropped = %v, want [GLCt]", dropped)
	}
	if _, ok := m.Reaction("GLCt"); ok {
		t.Error("GLCt should be removed with its only gene")
	}
	glyc, ok := m.Reaction("GLYC")
	if !ok {
		t.Fatal("GLYC is still supported by g3 and g4")
	}
	if glyc.GeneReactionRule != "g3 or g4" {
		t.Errorf("GLYC rule = %q, want g3 or g4", glyc.GeneReactionRule)
	}
	if _, ok := m.Reaction("O2t"); !ok {
		t.Error("reactions without a rule must never be removed")
	}
	for _, g := range m.GeneIDs() {
		if g == "g1" || g == "g2" {
			t.Errorf("gene %s still present", g)
		}
	}
}

func TestRenameGenes(t *testing.T) {
	m := modeltest.Toy()
	m.RenameGenes(map[string]string{"g2": "iso_2", "g4": "iso_4", "g5": "iso_4"})

	glyc, _ := m.Reaction("GLYC")
	if glyc.GeneReactionRule != "(iso_2 and g3) or iso_4" {
		t.Errorf("GLYC rule = %q", glyc.GeneReactionRule)
	}
	want := []string{"g1", "iso_2", "g3", "iso_4", "KPN_SPONT"}
	if got := m.GeneIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("genes = %v, want %v", got, want)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	m := modeltest.Toy()
	c := m.Copy()

	ex, _ := c.Reaction("EX_glc__D_e")
	ex.LowerBound = 0
	c.RemoveGenes([]string{"g5"})
	c.SetNote("Original_Genes", []string{"x"})

	orig, _ := m.Reaction("EX_glc__D_e")
	if orig.LowerBound != -10 {
		t.Error("bound change leaked into the original")
	}
	if _, ok := m.Reaction("ATPM"); !ok {
		t.Error("gene removal leaked into the original")
	}
	if _, ok := m.Document().Notes["Original_Genes"]; ok {
		t.Error("note leaked into the original")
	}
}

func TestBoundaryClassification(t *testing.T) {
	m := modeltest.Toy()
	if got := reactionIDs(m.Exchanges()); !reflect.DeepEqual(got, []string{"EX_glc__D_e", "EX_o2_e", "EX_nh4_e"}) {
		t.Errorf("exchanges = %v", got)
	}
	if got := reactionIDs(m.Demands()); !reflect.DeepEqual(got, []string{"DM_pyr_c"}) {
		t.Errorf("demands = %v", got)
	}
	if got := reactionIDs(m.Sinks()); !reflect.DeepEqual(got, []string{"SK_atp_c"}) {
		t.Errorf("sinks = %v", got)
	}
}

func TestObjective(t *testing.T) {
	m := modeltest.Toy()
	if m.Objective() != modeltest.BiomassID {
		t.Fatalf("objective = %q", m.Objective())
	}
	if err := m.SetObjective("ATPM"); err != nil {
		t.Fatal(err)
	}
	if m.Objective() != "ATPM" {
		t.Errorf("objective = %q, want ATPM", m.Objective())
	}
	if err := m.SetObjective("nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddRemoveReaction(t *testing.T) {
	m := modeltest.Toy()
	drain := &model.Reaction{
		ID:          "pyr_c_drain",
		UpperBound:  1000,
		Metabolites: model.Stoichiometry{{Metabolite: "pyr_c", Value: -1}},
	}
	if err := m.AddReaction(drain); err != nil {
		t.Fatal(err)
	}
	if err := m.AddReaction(drain); err == nil {
		t.Error("expected duplicate reaction error")
	}
	if got := m.MetaboliteReactions("pyr_c"); !reflect.DeepEqual(got, []string{"GLYC", "DM_pyr_c", modeltest.BiomassID, "pyr_c_drain"}) {
		t.Errorf("pyr_c reactions = %v", got)
	}
	if !m.RemoveReaction("pyr_c_drain") || m.RemoveReaction("pyr_c_drain") {
		t.Error("RemoveReaction should succeed exactly once")
	}

	bad := &model.Reaction{ID: "X", Metabolites: model.Stoichiometry{{Metabolite: "unknown_c", Value: 1}}}
	if err := m.AddReaction(bad); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown metabolite, got %v", err)
	}
}

func TestCopyReaction(t *testing.T) {
	ref := modeltest.Toy()
	dst := ref.Copy()
	dst.RemoveGenes([]string{"g2", "g3", "g4"})
	if _, ok := dst.Reaction("GLYC"); ok {
		t.Fatal("setup: GLYC should be gone")
	}

	if err := model.CopyReaction(dst, ref, "GLYC"); err != nil {
		t.Fatal(err)
	}
	glyc, ok := dst.Reaction("GLYC")
	if !ok || glyc.GeneReactionRule != "(g2 and g3) or g4" {
		t.Errorf("GLYC not restored: %+v", glyc)
	}
	for _, g := range []string{"g2", "g3", "g4"} {
		if _, ok := dst.Gene(g); !ok {
			t.Errorf("gene %s not copied", g)
		}
	}
	if err := model.CopyReaction(dst, ref, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEncodeDecodeKeepsMetaboliteOrder(t *testing.T) {
	src := `{"id":"m","metabolites":[{"id":"b_c","name":"","compartment":"c"},{"id":"a_c","name":"","compartment":"c"}],
"reactions":[{"id":"R","name":"","metabolites":{"b_c":-1,"a_c":2},"lower_bound":0,"upper_bound":1000,"gene_reaction_rule":"x",
"annotation":{"ec-code":"1.1.1.1","rhea":["1","2"]}}],"genes":[{"id":"x","name":""}]}`
	m, err := model.Decode(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	r, _ := m.Reaction("R")
	if r.Metabolites[0].Metabolite != "b_c" || r.Metabolites[1].Value != 2 {
		t.Errorf("metabolites out of order: %+v", r.Metabolites)
	}
	if got := r.Annotation["ec-code"]; len(got) != 1 || got[0] != "1.1.1.1" {
		t.Errorf("string annotation = %v", got)
	}
	if r.Equation() != "b_c --> 2 a_c" {
		t.Errorf("equation = %q", r.Equation())
	}

	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"b_c": -1`) || strings.Index(buf.String(), `"b_c": -1`) > strings.Index(buf.String(), `"a_c": 2`) {
		t.Errorf("encoded metabolites lost order:\n%s", buf.String())
	}
}

func TestDecodeRejectsBadRules(t *testing.T) {
	src := `{"id":"m","metabolites":[],"reactions":[{"id":"R","metabolites":{},"lower_bound":0,"upper_bound":1,"gene_reaction_rule":"(a and"}],"genes":[]}`
	if _, err := model.Decode(strings.NewReader(src)); err == nil {
		t.Error("expected error for malformed gene rule")
	}
}

func TestGenesSorted(t *testing.T) {
	r := &model.Reaction{GeneReactionRule: "b or (a and c)"}
	got := r.Genes()
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("genes = %v", got)
	}
}
