// Package seq holds the small amount of sequence handling the pipeline needs:
// FASTA in/out, strand-aware extraction, codon padding and stop-codon checks.
package seq

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bebop/poly/io/fasta"
	"github.com/bebop/poly/synthesis/codon"
	"github.com/bebop/poly/transform"
)

// FastaLineWidth is the column width used when writing FASTA.
const FastaLineWidth = 80

// BacterialTable is the NCBI translation table for bacteria and archaea.
const BacterialTable = 11

type Record struct {
	ID       string
	Sequence string
}

// ReadFasta reads every record of a FASTA file. The record id is the first
// whitespace-delimited token of the header, matching what BLAST reports as qseqid/sseqid.
func ReadFasta(path string) ([]Record, error) {
	entries, err := fasta.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read FASTA %s: %w", path, err)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		records = append(records, Record{
			ID:       headerID(entry.Name),
			Sequence: strings.ToUpper(strings.TrimSpace(entry.Sequence)),
		})
	}
	return records, nil
}

// ReadFastaMap is ReadFasta keyed by record id.
func ReadFastaMap(path string) (map[string]string, error) {
	records, err := ReadFasta(path)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(records))
	for _, r := range records {
		m[r.ID] = r.Sequence
	}
	return m, nil
}

func headerID(header string) string {
	header = strings.TrimPrefix(strings.TrimSpace(header), ">")
	if fields := strings.Fields(header); len(fields) > 0 {
		return fields[0]
	}
	return header
}

// WriteFasta writes records wrapped at FastaLineWidth columns.
func WriteFasta(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := fmt.Fprintf(bw, ">%s\n", r.ID); err != nil {
			return err
		}
		for i := 0; i < len(r.Sequence); i += FastaLineWidth {
			end := i + FastaLineWidth
			if end > len(r.Sequence) {
				end = len(r.Sequence)
			}
			if _, err := bw.WriteString(r.Sequence[i:end] + "\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFastaFile creates path and writes records into it.
func WriteFastaFile(path string, records []Record) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFasta(fh, records); err != nil {
		fh.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return fh.Close()
}

// Extract returns the span [start, end] (1-based, inclusive) of s. When start > end the
// span lies on the minus strand and the reverse complement of [end, start] is returned.
func Extract(s string, start, end int) (string, error) {
	lo, hi := start, end
	minus := start > end
	if minus {
		lo, hi = end, start
	}
	if lo < 1 || hi > len(s) {
		return "", fmt.Errorf("span %d..%d outside sequence of length %d", start, end, len(s))
	}
	span := s[lo-1 : hi]
	if minus {
		return transform.ReverseComplement(span), nil
	}
	return span, nil
}

// PadCodons right-pads s with N up to the next multiple of three.
func PadCodons(s string) string {
	n := (3 - len(s)%3) % 3
	return s + strings.Repeat("N", n)
}

// Codons splits s into consecutive triplets, dropping a trailing partial codon.
func Codons(s string) []string {
	codons := make([]string, 0, len(s)/3)
	for i := 0; i+3 <= len(s); i += 3 {
		codons = append(codons, s[i:i+3])
	}
	return codons
}

func stopCodons() (map[string]bool, error) {
	table, err := codon.NewTranslationTable(BacterialTable)
	if err != nil {
		return nil, err
	}
	stops := make(map[string]bool, len(table.StopCodons))
	for _, c := range table.StopCodons {
		stops[strings.ToUpper(c)] = true
	}
	return stops, nil
}

// HasInternalStop reports whether any codon but the last one is a stop codon.
// s is padded with N first, so the translation of every nucleotide is considered.
func HasInternalStop(s string) (bool, error) {
	stops, err := stopCodons()
	if err != nil {
		return false, err
	}
	codons := Codons(PadCodons(strings.ToUpper(s)))
	for i := 0; i < len(codons)-1; i++ {
		if stops[codons[i]] {
			return true, nil
		}
	}
	return false, nil
}

// Translate pads s to whole codons and translates it with the bacterial table,
// stripping stop symbols.
func Translate(s string) (string, error) {
	table, err := codon.NewTranslationTable(BacterialTable)
	if err != nil {
		return "", err
	}
	protein, err := table.Translate(PadCodons(strings.ToUpper(s)))
	if err != nil {
		return "", fmt.Errorf("failed to translate: %w", err)
	}
	return strings.ReplaceAll(protein, "*", ""), nil
}
