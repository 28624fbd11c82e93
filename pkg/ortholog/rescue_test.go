package ortholog

import (
	"testing"

	"github.com/yumyai/strainmodel/pkg/blast"
)

func nhit(q, s string, sstart, send int) blast.Hit {
	length := send - sstart + 1
	if sstart > send {
		length = sstart - send + 1
	}
	return blast.Hit{QSeqID: q, SSeqID: s, QLen: length, Length: length, SStart: sstart, SEnd: send, PIdent: 100}
}

func TestScenarioProteinThenRescue(t *testing.T) {
	// g1 resolves at protein level, g2 only through a gapless ORF in the genome.
	ref := table(phit("g1", "iso_1", 95))
	iso := table(phit("iso_1", "g1", 95))
	orthologs := Resolve(ref, iso, []string{"g1", "g2"})

	//                 1        10
	genome := map[string]string{"contig_1": "CCCATGGCTAAATAACCC"}
	nucl := table(nhit("g2", "contig_1", 4, 15))

	unmatched := Unmatched([]string{"g1", "g2"}, orthologs)
	if len(unmatched) != 1 || unmatched[0] != "g2" {
		t.Fatalf("unexpected unmatched set %v", unmatched)
	}

	rescued, err := Rescue(orthologs, unmatched, genome, nucl)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{"g1": "iso_1", "g2": "g2" + UnannotatedSuffix}
	if got := orthologs.Rename(); len(got) != 2 || got["g1"] != want["g1"] || got["g2"] != want["g2"] {
		t.Errorf("orthologs = %v, want %v", got, want)
	}
	if e, _ := orthologs.Get("g2"); e.Kind != Unannotated {
		t.Errorf("g2 should be unannotated, got %s", e.Kind)
	}
	if len(rescued) != 1 || rescued[0].Sequence != "ATGGCTAAATAA" {
		t.Errorf("rescued sequences = %+v", rescued)
	}
}

func TestRescueSkipsInternalStopAndStopsAtFirstAccept(t *testing.T) {
	genome := map[string]string{
		"contig_1": "ATGTAAGCTAAA", // internal stop
		"contig_2": "ATGGCTAAATAA", // clean
		"contig_3": "ATGGCTAAAGCT", // clean too, must never be considered
	}
	nucl := table(
		nhit("g2", "contig_1", 1, 12),
		nhit("g2", "contig_2", 1, 12),
		nhit("g2", "contig_3", 1, 12),
	)

	orthologs := NewMap()
	rescued, err := Rescue(orthologs, []string{"g2"}, genome, nucl)
	if err != nil {
		t.Fatal(err)
	}
	if len(rescued) != 1 || rescued[0].Sequence != "ATGGCTAAATAA" {
		t.Errorf("expected contig_2 span to be accepted, got %+v", rescued)
	}
}

func TestRescueMinusStrandAndPadding(t *testing.T) {
	// Reverse complement of CTTAGCCAT is ATGGCTAAG; the hit spans 10 bases so two Ns complete the last codon.
	genome := map[string]string{"contig_1": "ACTTAGCCAT"}
	nucl := table(nhit("g3", "contig_1", 10, 1))

	orthologs := NewMap()
	rescued, err := Rescue(orthologs, []string{"g3"}, genome, nucl)
	if err != nil {
		t.Fatal(err)
	}
	if len(rescued) != 1 {
		t.Fatalf("expected one rescue, got %d", len(rescued))
	}
	if got := rescued[0].Sequence; got != "ATGGCTAAGTNN" {
		t.Errorf("rescued = %q, want reverse complement padded to ATGGCTAAGTNN", got)
	}
}

func TestRescueAppliesFixedThresholds(t *testing.T) {
	genome := map[string]string{"contig_1": "ATGGCTAAATAA"}
	low := nhit("g2", "contig_1", 1, 12)
	low.PIdent = 79.9

	orthologs := NewMap()
	rescued, err := Rescue(orthologs, []string{"g2"}, genome, table(low))
	if err != nil {
		t.Fatal(err)
	}
	if len(rescued) != 0 || orthologs.Has("g2") {
		t.Error("hit below 80% identity must not be rescued")
	}
}

func TestRescueIgnoresResolvedGenes(t *testing.T) {
	genome := map[string]string{"contig_1": "ATGGCTAAATAA"}
	orthologs := NewMap()
	orthologs.Add(Entry{RefGene: "g1", IsoGene: "iso_1", Kind: Annotated})

	rescued, err := Rescue(orthologs, []string{"g2"}, genome, table(nhit("g1", "contig_1", 1, 12)))
	if err != nil {
		t.Fatal(err)
	}
	if len(rescued) != 0 {
		t.Error("hits for genes outside the unmatched set must be ignored")
	}
}

func TestRescueUnknownContig(t *testing.T) {
	_, err := Rescue(NewMap(), []string{"g2"}, map[string]string{}, table(nhit("g2", "missing", 1, 12)))
	if err == nil {
		t.Error("expected error for hit on unknown sequence")
	}
}
