package annotate

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/seq"
)

const scoOutput = `# Sequence Data: seqnum=1;seqlen=30;seqhdr="contig_1 some description"
# Model Data: version=Prodigal.v2.6.3;run_type=Single;model="Ab initio";gc_cont=50.00;transl_table=11;uses_sd=1
>1_4_15_+
>2_19_27_-
# Sequence Data: seqnum=2;seqlen=12;seqhdr="contig_2"
# Model Data: version=Prodigal.v2.6.3
>1_1_12_+
`

func TestParseSCO(t *testing.T) {
	got, err := ParseSCO(strings.NewReader(scoOutput), "KP_1")
	if err != nil {
		t.Fatal(err)
	}
	want := []Feature{
		{LocusTag: "KP_1_00001", Contig: "contig_1", Start: 4, End: 15},
		{LocusTag: "KP_1_00002", Contig: "contig_1", Start: 19, End: 27, Minus: true},
		{LocusTag: "KP_1_00003", Contig: "contig_2", Start: 1, End: 12},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("features = %+v\nwant %+v", got, want)
	}
}

func TestParseSCOErrors(t *testing.T) {
	tests := map[string]string{
		"gene before header": ">1_1_12_+\n",
		"garbage":            "# Sequence Data: seqhdr=\"c\"\nnot a gene\n",
	}
	for name, in := range tests {
		if _, err := ParseSCO(strings.NewReader(in), "x"); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestExtract(t *testing.T) {
	contigs := map[string]string{
		// ATG GCT AAA TAA at 4..15; reverse complement of ATGGCTTAA at 19..27
		"contig_1": "CCCATGGCTAAATAAGGG" + "TTAAGCCAT" + "CCC",
	}
	features := []Feature{
		{LocusTag: "a", Contig: "contig_1", Start: 4, End: 15},
		{LocusTag: "b", Contig: "contig_1", Start: 19, End: 27, Minus: true},
	}
	got, err := Extract(features, contigs)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Nucleotide != "ATGGCTAAATAA" || got[0].Protein != "MAK" {
		t.Errorf("plus strand = %+v", got[0])
	}
	if got[1].Nucleotide != "ATGGCTTAA" || got[1].Protein != "MA" {
		t.Errorf("minus strand = %+v", got[1])
	}

	if _, err := Extract([]Feature{{LocusTag: "c", Contig: "nope", Start: 1, End: 3}}, contigs); err == nil {
		t.Error("expected error for unknown contig")
	}
}

func TestPredictWithFakeProdigal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are bash scripts")
	}
	logger.InitNop()
	dir := t.TempDir()
	bin := filepath.Join(dir, "prodigal")
	script := "#!/usr/bin/env bash\n[ \"$1\" = \"-f\" ] && [ \"$2\" = \"sco\" ] || exit 2\ncat <<'EOF'\n" + scoOutput + "EOF\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	features, err := Prodigal{Path: bin}.Predict(context.Background(), "assembly.fasta", "KP_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 3 {
		t.Errorf("expected 3 features, got %d", len(features))
	}
}

func TestWriteCoding(t *testing.T) {
	dir := t.TempDir()
	genes, proteins, err := WriteCoding(dir, "isolate", []Coding{{LocusTag: "a", Nucleotide: "ATGGCT", Protein: "MA"}})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(genes) != "isolate_genes.fasta" || filepath.Base(proteins) != "isolate_proteins.fasta" {
		t.Errorf("paths = %s, %s", genes, proteins)
	}
	g, err := seq.ReadFasta(genes)
	if err != nil || len(g) != 1 || g[0].Sequence != "ATGGCT" {
		t.Errorf("genes = %+v, %v", g, err)
	}
	p, err := seq.ReadFasta(proteins)
	if err != nil || len(p) != 1 || p[0].Sequence != "MA" {
		t.Errorf("proteins = %+v, %v", p, err)
	}
}
