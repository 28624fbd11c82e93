// Package annotate calls coding sequences in an assembly with prodigal and extracts
// their nucleotide and protein sequences.
package annotate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/internal/command"
	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/seq"
)

// Feature is one predicted coding sequence. Coordinates are 1-based and inclusive.
type Feature struct {
	LocusTag string
	Contig   string
	Start    int
	End      int
	Minus    bool
}

// Coding is a feature with its sequences.
type Coding struct {
	LocusTag   string
	Nucleotide string
	Protein    string
	Feature    Feature
}

type Prodigal struct {
	Path string
	// TrainingFile is passed with -t when set.
	TrainingFile string
}

var (
	scoContigRe = regexp.MustCompile(`^# Sequence Data:.*?seqhdr="(.+?)"(?:;|$)`)
	scoGeneRe   = regexp.MustCompile(`^>[0-9]+_([0-9]+)_([0-9]+)_([-+])$`)
)

// Predict runs prodigal on assembly and returns its features with locus tags
// "<prefix>_00001", "<prefix>_00002", ...
func (p Prodigal) Predict(ctx context.Context, assembly, prefix string) ([]Feature, error) {
	bin := p.Path
	if bin == "" {
		bin = "prodigal"
	}
	args := []string{"-f", "sco", "-i", assembly}
	if p.TrainingFile != "" {
		args = append(args, "-m", "-t", p.TrainingFile)
	}
	out, err := command.Run(ctx, bin, args, nil)
	if err != nil {
		return nil, err
	}
	features, err := ParseSCO(strings.NewReader(string(out)), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prodigal output for %s: %w", assembly, err)
	}
	logger.Info("Predicted coding sequences", zap.String("assembly", assembly), zap.Int("features", len(features)))
	return features, nil
}

// ParseSCO reads prodigal's simple coordinate output.
func ParseSCO(r io.Reader, prefix string) ([]Feature, error) {
	var features []Feature
	contig := ""
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r ")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "# Sequence Data"):
			m := scoContigRe.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("line %d: no seqhdr in %q", lineNo, line)
			}
			contig = strings.Fields(m[1])[0]
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}

		m := scoGeneRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: unexpected %q", lineNo, line)
		}
		if contig == "" {
			return nil, fmt.Errorf("line %d: gene before any sequence header", lineNo)
		}
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		features = append(features, Feature{
			LocusTag: fmt.Sprintf("%s_%05d", prefix, len(features)+1),
			Contig:   contig,
			Start:    start,
			End:      end,
			Minus:    m[3] == "-",
		})
	}
	return features, sc.Err()
}

// Extract cuts each feature out of its contig and translates it with the bacterial
// table. Partial codons are padded with N and stop symbols dropped.
func Extract(features []Feature, contigs map[string]string) ([]Coding, error) {
	out := make([]Coding, 0, len(features))
	for _, f := range features {
		contig, ok := contigs[f.Contig]
		if !ok {
			return nil, fmt.Errorf("feature %s on unknown contig %q", f.LocusTag, f.Contig)
		}
		start, end := f.Start, f.End
		if f.Minus {
			start, end = end, start
		}
		nucl, err := seq.Extract(contig, start, end)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", f.LocusTag, err)
		}
		prot, err := seq.Translate(nucl)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", f.LocusTag, err)
		}
		out = append(out, Coding{LocusTag: f.LocusTag, Nucleotide: nucl, Protein: prot, Feature: f})
	}
	return out, nil
}

// WriteCoding writes <dir>/<name>_genes.fasta and <dir>/<name>_proteins.fasta.
func WriteCoding(dir, name string, coding []Coding) (genes, proteins string, err error) {
	genes = filepath.Join(dir, name+"_genes.fasta")
	proteins = filepath.Join(dir, name+"_proteins.fasta")

	nucl := make([]seq.Record, len(coding))
	prot := make([]seq.Record, len(coding))
	for i, c := range coding {
		nucl[i] = seq.Record{ID: c.LocusTag, Sequence: c.Nucleotide}
		prot[i] = seq.Record{ID: c.LocusTag, Sequence: c.Protein}
	}
	if err := seq.WriteFastaFile(genes, nucl); err != nil {
		return "", "", err
	}
	if err := seq.WriteFastaFile(proteins, prot); err != nil {
		return "", "", err
	}
	return genes, proteins, nil
}
