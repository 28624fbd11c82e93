// Package blast runs the external aligner, parses its tabular output into hit tables and
// keeps the subject databases built exactly once.
package blast

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/internal/command"
	"github.com/yumyai/strainmodel/logger"
)

// MaxEValue is the e-value ceiling passed to every search.
const MaxEValue = "0.001"

// Aligner invokes blastp/blastn against a subject FASTA, building its database first.
type Aligner struct {
	BlastP  string
	BlastN  string
	Indexes *IndexManager
}

// NewAligner returns an Aligner using the given executables. Empty paths fall back to
// the binaries on PATH.
func NewAligner(blastp, blastn string, indexes *IndexManager) *Aligner {
	if blastp == "" {
		blastp = "blastp"
	}
	if blastn == "" {
		blastn = "blastn"
	}
	return &Aligner{BlastP: blastp, BlastN: blastn, Indexes: indexes}
}

// RunProtein aligns query proteins against subject proteins.
func (a *Aligner) RunProtein(ctx context.Context, query, subject string) (*HitTable, error) {
	return a.run(ctx, a.BlastP, Protein, ProteinColumns, query, subject)
}

// RunNucleotide aligns query nucleotides against subject nucleotides.
func (a *Aligner) RunNucleotide(ctx context.Context, query, subject string) (*HitTable, error) {
	return a.run(ctx, a.BlastN, Nucleotide, NucleotideColumns, query, subject)
}

func (a *Aligner) run(ctx context.Context, bin string, kind SeqKind, columns []string, query, subject string) (*HitTable, error) {
	if err := a.Indexes.EnsureIndex(ctx, subject, kind); err != nil {
		return nil, err
	}

	args := []string{
		"-db", subject,
		"-query", query,
		"-evalue", MaxEValue,
		"-outfmt", "6 " + strings.Join(columns, " "),
	}
	out, err := command.Run(ctx, bin, args, nil)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(out)) == 0 {
		return NewHitTable(), nil
	}

	table, err := ParseHits(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s output: %w", bin, err)
	}
	logger.Debug("Alignment finished",
		zap.String("cmd", bin),
		zap.String("query", query),
		zap.String("subject", subject),
		zap.Int("queries_with_hits", table.Len()),
		zap.Int("hits", table.Count()),
	)
	return table, nil
}
