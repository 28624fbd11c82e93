// Package draft turns a reference model into an isolate model using an ortholog map.
package draft

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/ortholog"
)

// OriginalGenesNote is the model note holding the reference gene ids kept in the draft.
const OriginalGenesNote = "Original_Genes"

// DefaultExemptGenes are artificial genes (spontaneous reactions) that never need an
// ortholog.
var DefaultExemptGenes = []string{"KPN_SPONT"}

// MissingGenes returns reference genes without an ortholog, excluding exempt ids, in
// reference model order.
func MissingGenes(ref model.Model, orthologs *ortholog.Map, exempt []string) []string {
	skip := make(map[string]bool, len(exempt))
	for _, g := range exempt {
		skip[g] = true
	}
	var missing []string
	for _, g := range ref.GeneIDs() {
		if skip[g] || orthologs.Has(g) {
			continue
		}
		missing = append(missing, g)
	}
	return missing
}

// Assemble copies ref, removes genes without an ortholog together with reactions left
// without genes, records the surviving reference ids under OriginalGenesNote and renames
// genes to their isolate ids. ref is never modified.
func Assemble(ref model.Model, orthologs *ortholog.Map, isolateID string, exempt []string) model.Model {
	draft := ref.Copy()
	if isolateID != "" {
		draft.SetID(isolateID)
	}

	missing := MissingGenes(ref, orthologs, exempt)
	removed := draft.RemoveGenes(missing)

	draft.SetNote(OriginalGenesNote, draft.GeneIDs())
	draft.RenameGenes(orthologs.Rename())

	logger.Info("Assembled draft model",
		zap.String("model", draft.ID()),
		zap.Int("genes_removed", len(missing)),
		zap.Int("reactions_removed", len(removed)),
		zap.Int("genes", len(draft.GeneIDs())),
		zap.Int("reactions", len(draft.Reactions())),
	)
	return draft
}

// MaxListedMissing is the largest number of missing ids CheckReference spells out.
const MaxListedMissing = 10

// CheckReference warns about model genes absent from a reference sequence set. kind
// names the set ("genes", "proteins") in the message. The missing ids are returned sorted.
func CheckReference(modelGenes []string, sequenceIDs map[string]string, kind string) []string {
	var missing []string
	for _, g := range modelGenes {
		if _, ok := sequenceIDs[g]; !ok {
			missing = append(missing, g)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	entries := "entries"
	if len(missing) == 1 {
		entries = "entry"
	}
	fields := []zap.Field{zap.Int("count", len(missing)), zap.String("reference", kind)}
	if len(missing) <= MaxListedMissing {
		fields = append(fields, zap.String("ids", strings.Join(missing, ", ")))
	}
	logger.Warn("Could not find model "+entries+" in reference "+kind, fields...)
	return missing
}
