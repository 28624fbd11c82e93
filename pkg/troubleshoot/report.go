package troubleshoot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/yumyai/strainmodel/pkg/blast"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/solver"
)

// annotationURLs maps annotation namespaces to the base URL of their records.
var annotationURLs = map[string]string{
	"bigg.metabolite":   "http://bigg.ucsd.edu/universal/metabolites/",
	"bigg.reaction":     "http://bigg.ucsd.edu/universal/reactions/",
	"biocyc":            "http://identifiers.org/biocyc/",
	"ec-code":           "http://identifiers.org/ec-code/",
	"kegg.reaction":     "http://identifiers.org/kegg.reaction/",
	"metanetx.reaction": "http://identifiers.org/metanetx.reaction/",
	"rhea":              "http://identifiers.org/rhea/",
	"seed.reaction":     "http://identifiers.org/seed.reaction/",
}

// Evidence is the alignment support for one gene of a reaction proposed by gapfilling.
// Nucleotide hits are only looked up when there are no protein hits.
type Evidence struct {
	Reaction   string
	Gene       string
	Protein    []blast.Hit
	Nucleotide []blast.Hit
}

// Report is everything the troubleshooting artifacts are written from.
type Report struct {
	ModelID            string
	BiomassID          string
	MissingMetabolites []string
	Gapfill            GapfillResult
	GapfillErr         error
	Iterations         int
	Evidence           []Evidence
}

// Artifacts names the files written for prefix.
func Artifacts(prefix string) (summary, blastp, blastn string) {
	return prefix + "_summary.txt", prefix + "_blastp.tsv", prefix + "_blastn.tsv"
}

func urlLines(w io.Writer, annotation map[string]model.Annotation) {
	keys := make([]string, 0, len(annotation))
	for k := range annotation {
		if _, ok := annotationURLs[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, id := range annotation[k] {
			fmt.Fprintf(w, "\t%s%s\n", annotationURLs[k], id)
		}
	}
}

// WriteSummary writes the human readable troubleshooting summary. ref resolves reaction
// details, draft resolves the missing metabolites.
func (r *Report) WriteSummary(w io.Writer, ref, draft model.Model) error {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "Missing metabolites required for biomass production:")
	for _, id := range r.MissingMetabolites {
		name := ""
		var annotation map[string]model.Annotation
		if met, ok := draft.Metabolite(id); ok {
			name = met.Name
			annotation = met.Annotation
		}
		var reactions []string
		for _, rid := range ref.MetaboliteReactions(id) {
			if rid != r.BiomassID {
				reactions = append(reactions, rid)
			}
		}
		fmt.Fprintf(bw, "\nid: %s\n", id)
		fmt.Fprintf(bw, "name: %s\n", name)
		fmt.Fprintf(bw, "reactions: %s\n", strings.Join(reactions, ", "))
		urlLines(bw, annotation)
	}

	threshold := "none"
	if r.GapfillErr == nil {
		threshold = solver.FormatThreshold(r.Gapfill.Threshold)
	}
	fmt.Fprintf(bw, "\nMissing reactions required to fix model (iterations: %d; threshold: %s)\n", r.Iterations, threshold)
	if r.GapfillErr != nil {
		fmt.Fprintf(bw, "gapfilling failed: %v\n", r.GapfillErr)
	}
	for _, rc := range r.Gapfill.Tally {
		fmt.Fprintf(bw, "%s %d/%d\n", rc.ID, rc.Count, r.Iterations)
	}
	for i, it := range r.Gapfill.Iterations {
		fmt.Fprintf(bw, "\nIteration %d\n", i+1)
		for _, id := range it {
			fmt.Fprintln(bw, id)
		}
	}

	fmt.Fprint(bw, "\nReaction info")
	for _, rc := range r.Gapfill.Tally {
		fmt.Fprintf(bw, "\nid: %s\n", rc.ID)
		rxn, ok := ref.Reaction(rc.ID)
		if !ok {
			fmt.Fprintln(bw, "not in reference model")
			continue
		}
		fmt.Fprintf(bw, "name: %s\n", rxn.Name)
		fmt.Fprintf(bw, "subsystem: %s\n", rxn.Subsystem)
		fmt.Fprintf(bw, "reaction: %s\n", rxn.Equation())
		fmt.Fprintf(bw, "genes: %s\n", strings.Join(rxn.Genes(), ", "))
		fmt.Fprintln(bw, "urls:")
		urlLines(bw, rxn.Annotation)
	}

	fmt.Fprintln(bw, "\nBLASTp hits")
	for _, e := range r.Evidence {
		fmt.Fprintf(bw, "%s %s %d\n", e.Reaction, e.Gene, len(e.Protein))
	}
	fmt.Fprintln(bw, "\nBLASTn hits (only done for ORFs with no BLASTp result)")
	for _, e := range r.Evidence {
		if len(e.Protein) == 0 {
			fmt.Fprintf(bw, "%s %s %d\n", e.Reaction, e.Gene, len(e.Nucleotide))
		}
	}
	return bw.Flush()
}

// ProteinHits and NucleotideHits flatten the evidence in report order.
func (r *Report) ProteinHits() []blast.Hit {
	var out []blast.Hit
	for _, e := range r.Evidence {
		out = append(out, e.Protein...)
	}
	return out
}

func (r *Report) NucleotideHits() []blast.Hit {
	var out []blast.Hit
	for _, e := range r.Evidence {
		out = append(out, e.Nucleotide...)
	}
	return out
}

// WriteArtifacts writes the summary and both hit dumps next to prefix and returns the
// paths written.
func (r *Report) WriteArtifacts(prefix string, ref, draft model.Model) ([]string, error) {
	summary, blastp, blastn := Artifacts(prefix)

	write := func(path string, fn func(io.Writer) error) error {
		fh, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(fh); err != nil {
			fh.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return fh.Close()
	}

	if err := write(summary, func(w io.Writer) error { return r.WriteSummary(w, ref, draft) }); err != nil {
		return nil, err
	}
	if err := write(blastp, func(w io.Writer) error { return blast.WriteHits(w, r.ProteinHits()) }); err != nil {
		return nil, err
	}
	if err := write(blastn, func(w io.Writer) error { return blast.WriteHits(w, r.NucleotideHits()) }); err != nil {
		return nil, err
	}
	return []string{summary, blastp, blastn}, nil
}
