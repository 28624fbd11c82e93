package ortholog

import (
	"bytes"
	"testing"

	"github.com/yumyai/strainmodel/pkg/blast"
)

func phit(q, s string, pident float64) blast.Hit {
	return blast.Hit{QSeqID: q, SSeqID: s, QLen: 100, Length: 100, PIdent: pident, PPos: pident, HasPPos: true}
}

func table(hits ...blast.Hit) *blast.HitTable {
	t := blast.NewHitTable()
	for _, h := range hits {
		t.Add(h)
	}
	return t
}

var modelGenes = []string{"g1", "g2", "g5", "g7"}

func TestResolveReciprocal(t *testing.T) {
	ref := table(
		phit("g1", "iso_1", 95),
		phit("g1", "iso_9", 60),
		phit("g2", "iso_2", 90),
	)
	iso := table(
		phit("iso_1", "g1", 95),
		phit("iso_2", "g2", 90),
	)

	m := Resolve(ref, iso, modelGenes)
	if m.Len() != 2 {
		t.Fatalf("expected 2 orthologs, got %d", m.Len())
	}
	if e, _ := m.Get("g1"); e.IsoGene != "iso_1" || e.Kind != Annotated {
		t.Errorf("g1 -> %+v", e)
	}
	if e, _ := m.Get("g2"); e.IsoGene != "iso_2" {
		t.Errorf("g2 -> %+v", e)
	}
}

func TestResolveRejectsOneDirectional(t *testing.T) {
	tests := []struct {
		name string
		ref  *blast.HitTable
		iso  *blast.HitTable
	}{
		{
			name: "isolate best hit points elsewhere",
			ref:  table(phit("g1", "iso_1", 95)),
			iso:  table(phit("iso_1", "g7", 99), phit("iso_1", "g1", 95)),
		},
		{
			name: "isolate locus has no hits back",
			ref:  table(phit("g1", "iso_1", 95)),
			iso:  table(phit("iso_2", "g1", 95)),
		},
		{
			name: "reference best hit is a different locus",
			ref:  table(phit("g1", "iso_2", 99), phit("g1", "iso_1", 95)),
			iso:  table(phit("iso_1", "g1", 95), phit("iso_2", "g5", 99)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Resolve(tt.ref, tt.iso, modelGenes)
			if m.Has("g1") {
				e, _ := m.Get("g1")
				t.Errorf("non-reciprocal pair accepted: g1 -> %s", e.IsoGene)
			}
		})
	}
}

func TestResolveTieBreakIsDeterministic(t *testing.T) {
	// Identical identities: the lexically smallest subject wins regardless of order.
	iso := table(phit("iso_a", "g1", 90), phit("iso_b", "g1", 90))

	forward := Resolve(table(phit("g1", "iso_b", 90), phit("g1", "iso_a", 90)), iso, modelGenes)
	backward := Resolve(table(phit("g1", "iso_a", 90), phit("g1", "iso_b", 90)), iso, modelGenes)

	ef, _ := forward.Get("g1")
	eb, _ := backward.Get("g1")
	if ef.IsoGene != "iso_a" || eb.IsoGene != "iso_a" {
		t.Errorf("tie-break depends on order: %q vs %q", ef.IsoGene, eb.IsoGene)
	}
}

func TestResolveKeepsModelGenesOnly(t *testing.T) {
	ref := table(
		phit("g1", "iso_1", 95),
		phit("not_in_model", "iso_9", 99),
		phit("g2", "iso_2", 90),
	)
	iso := table(
		phit("iso_1", "g1", 95),
		phit("iso_9", "not_in_model", 99),
		// The off-model protein is iso_2's best hit; g2 still pairs once it is ignored.
		phit("iso_2", "paralog_x", 97),
		phit("iso_2", "g2", 90),
	)

	m := Resolve(ref, iso, []string{"g1", "g2"})
	for _, e := range m.Entries() {
		if e.RefGene != "g1" && e.RefGene != "g2" {
			t.Errorf("ortholog key %q is not a model gene", e.RefGene)
		}
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 orthologs, got %d", m.Len())
	}

	var buf bytes.Buffer
	if err := m.WriteDictionary(&buf); err != nil {
		t.Fatal(err)
	}
	if want := "g1,iso_1\ng2,iso_2\n"; buf.String() != want {
		t.Errorf("dictionary = %q, want %q", buf.String(), want)
	}
}

func TestMapAddPanicsOnCollision(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate reference gene")
		}
	}()
	m := NewMap()
	m.Add(Entry{RefGene: "g1", IsoGene: "iso_1", Kind: Annotated})
	m.Add(Entry{RefGene: "g1", IsoGene: "iso_2", Kind: Annotated})
}

func TestWriteDictionaryKeepsOrder(t *testing.T) {
	m := NewMap()
	m.Add(Entry{RefGene: "g2", IsoGene: "iso_2", Kind: Annotated})
	m.Add(Entry{RefGene: "g1", IsoGene: "iso_1", Kind: Annotated})
	m.Add(Entry{RefGene: "g3", IsoGene: "g3_unannotated", Kind: Unannotated})

	var buf bytes.Buffer
	if err := m.WriteDictionary(&buf); err != nil {
		t.Fatal(err)
	}
	want := "g2,iso_2\ng1,iso_1\ng3,g3_unannotated\n"
	if buf.String() != want {
		t.Errorf("dictionary = %q, want %q", buf.String(), want)
	}
	if m.CountKind(Unannotated) != 1 || m.CountKind(Annotated) != 2 {
		t.Error("CountKind mismatch")
	}
	if m.Rename()["g1"] != "iso_1" {
		t.Error("Rename mismatch")
	}
}
