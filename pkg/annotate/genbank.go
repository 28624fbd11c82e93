package annotate

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bebop/poly/io/genbank"
	"github.com/bebop/poly/transform"
	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/seq"
)

// Format is the file format of an assembly.
type Format string

const (
	FormatFasta   Format = "fasta"
	FormatGenbank Format = "genbank"
)

var ErrUnknownFormat = errors.New("not a FASTA or GenBank file")

var formatByExt = map[string]Format{
	".fasta": FormatFasta,
	".fna":   FormatFasta,
	".fa":    FormatFasta,
	".gbk":   FormatGenbank,
	".gb":    FormatGenbank,
}

// DetectFormat looks at the first non-empty line of path. A format that disagrees with
// the file extension is logged and the content wins.
func DetectFormat(path string) (Format, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fh.Close()

	var format Format
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, ">"):
			format = FormatFasta
		case strings.HasPrefix(line, "LOCUS"):
			format = FormatGenbank
		}
		break
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if format == "" {
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if expected, ok := formatByExt[ext]; !ok {
		logger.Warn("Parsed assembly with an unknown file extension", zap.String("path", path), zap.String("format", string(format)), zap.String("extension", ext))
	} else if expected != format {
		logger.Warn("Parsed assembly as a different format than its extension", zap.String("path", path), zap.String("format", string(format)), zap.String("expected", string(expected)))
	}
	return format, nil
}

// Genome is an annotated assembly.
type Genome struct {
	Contigs []seq.Record
	Coding  []Coding
}

// ContigMap indexes the contigs by id.
func (g *Genome) ContigMap() map[string]string {
	out := make(map[string]string, len(g.Contigs))
	for _, c := range g.Contigs {
		out[c.ID] = c.Sequence
	}
	return out
}

// ReadGenbank reads every record of a GenBank file. Each CDS feature must carry a
// locus_tag; its protein is the translation qualifier, or the translated nucleotide
// sequence when the qualifier is missing.
func ReadGenbank(path string) (*Genome, error) {
	records, err := genbank.ReadMulti(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GenBank %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no GenBank records: %w", path, ErrUnknownFormat)
	}

	g := &Genome{}
	for _, rec := range records {
		contigID := rec.Meta.Locus.Name
		contig := strings.ToUpper(rec.Sequence)
		g.Contigs = append(g.Contigs, seq.Record{ID: contigID, Sequence: contig})

		for _, f := range rec.Features {
			if f.Type != "CDS" {
				continue
			}
			tag := strings.TrimSpace(f.Attributes["locus_tag"])
			if tag == "" {
				return nil, fmt.Errorf("%s: CDS %s on %s has no locus_tag", path, f.Location.GbkLocationString, contigID)
			}
			nucl, err := locationSequence(contig, f.Location)
			if err != nil {
				return nil, fmt.Errorf("%s: CDS %s: %w", path, tag, err)
			}
			prot := strings.Join(strings.Fields(f.Attributes["translation"]), "")
			if prot == "" {
				if prot, err = seq.Translate(nucl); err != nil {
					return nil, fmt.Errorf("%s: CDS %s: %w", path, tag, err)
				}
			}
			g.Coding = append(g.Coding, Coding{
				LocusTag:   tag,
				Nucleotide: nucl,
				Protein:    prot,
				Feature:    Feature{LocusTag: tag, Contig: contigID},
			})
		}
	}
	return g, nil
}

// locationSequence follows poly's location model: Start is 0-based and End exclusive.
func locationSequence(contig string, loc genbank.Location) (string, error) {
	var b strings.Builder
	if len(loc.SubLocations) == 0 {
		if loc.Start < 0 || loc.Start >= loc.End || loc.End > len(contig) {
			return "", fmt.Errorf("location %q outside sequence of length %d", loc.GbkLocationString, len(contig))
		}
		b.WriteString(contig[loc.Start:loc.End])
	}
	for _, sub := range loc.SubLocations {
		s, err := locationSequence(contig, sub)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	if loc.Complement {
		return transform.ReverseComplement(b.String()), nil
	}
	return b.String(), nil
}

// genbankDate stands in for the modification date, which the annotation does not have.
const genbankDate = "01-JAN-1980"

// WriteGenbank writes contigs and their predicted coding features as a multi-record
// GenBank file.
func WriteGenbank(path string, contigs []seq.Record, coding []Coding) error {
	byContig := make(map[string][]genbank.Feature)
	for _, c := range coding {
		f := c.Feature
		byContig[f.Contig] = append(byContig[f.Contig], genbank.Feature{
			Type:     "CDS",
			Location: genbank.Location{Start: f.Start - 1, End: f.End, Complement: f.Minus},
			Attributes: map[string]string{
				"locus_tag":   c.LocusTag,
				"translation": c.Protein,
			},
		})
	}

	records := make([]genbank.Genbank, 0, len(contigs))
	for _, c := range contigs {
		records = append(records, genbank.Genbank{
			Meta: genbank.Meta{
				Definition: c.ID,
				Locus: genbank.Locus{
					Name:             c.ID,
					SequenceLength:   strconv.Itoa(len(c.Sequence)),
					MoleculeType:     "DNA",
					GenbankDivision:  "BCT",
					ModificationDate: genbankDate,
				},
			},
			Features: byContig[c.ID],
			Sequence: strings.ToLower(c.Sequence),
		})
	}
	if err := genbank.WriteMulti(records, path); err != nil {
		return fmt.Errorf("failed to write GenBank %s: %w", path, err)
	}
	return nil
}
