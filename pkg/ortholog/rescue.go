package ortholog

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/blast"
	"github.com/yumyai/strainmodel/pkg/seq"
)

// Unmatched returns the reference genes that have no ortholog yet, in the given order.
func Unmatched(refGenes []string, orthologs *Map) []string {
	var out []string
	for _, g := range refGenes {
		if !orthologs.Has(g) {
			out = append(out, g)
		}
	}
	return out
}

// Rescue looks for unannotated orthologs of the unmatched reference genes in the whole
// isolate genome. Hits are filtered with blast.RescueThresholds and visited in emission
// order; the first one whose translation has no internal stop codon is accepted.
// Accepted loci are added to orthologs and their nucleotide sequences returned.
func Rescue(orthologs *Map, unmatched []string, genome map[string]string, nuclHits *blast.HitTable) ([]seq.Record, error) {
	wanted := make(map[string]bool, len(unmatched))
	for _, g := range unmatched {
		wanted[g] = true
	}

	filtered := blast.Filter(nuclHits, blast.RescueThresholds)

	var rescued []seq.Record
	for _, refGene := range filtered.Queries() {
		if !wanted[refGene] {
			continue
		}
		if orthologs.Has(refGene) {
			panic(fmt.Sprintf("ortholog: rescue requested for already resolved gene %q", refGene))
		}

		for _, hit := range filtered.Get(refGene) {
			contig, ok := genome[hit.SSeqID]
			if !ok {
				return nil, fmt.Errorf("rescue hit for %s references unknown isolate sequence %q", refGene, hit.SSeqID)
			}
			nucl, err := seq.Extract(contig, hit.SStart, hit.SEnd)
			if err != nil {
				return nil, fmt.Errorf("rescue hit for %s on %s: %w", refGene, hit.SSeqID, err)
			}
			nucl = seq.PadCodons(nucl)

			stop, err := seq.HasInternalStop(nucl)
			if err != nil {
				return nil, err
			}
			if stop {
				logger.Debug("Rejected rescue hit with internal stop",
					zap.String("ref_gene", refGene),
					zap.String("subject", hit.SSeqID),
					zap.Int("sstart", hit.SStart),
					zap.Int("send", hit.SEnd),
				)
				continue
			}

			isoID := refGene + UnannotatedSuffix
			orthologs.Add(Entry{RefGene: refGene, IsoGene: isoID, Kind: Unannotated})
			rescued = append(rescued, seq.Record{ID: isoID, Sequence: nucl})
			break
		}
	}
	return rescued, nil
}
