// Package ortholog resolves reference genes to isolate loci from bidirectional alignment
// results and rescues unannotated loci from a nucleotide search of the isolate genome.
package ortholog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/yumyai/strainmodel/pkg/blast"
)

// UnannotatedSuffix marks isolate ids that come from a genomic rescue hit.
const UnannotatedSuffix = "_unannotated"

type Kind string

const (
	Annotated   Kind = "annotated"
	Unannotated Kind = "unannotated"
)

type Entry struct {
	RefGene string
	IsoGene string
	Kind    Kind
}

// Map is an insertion-ordered mapping from reference gene id to isolate gene id.
type Map struct {
	entries []Entry
	index   map[string]int
}

func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

// Add records an ortholog. A reference gene maps to at most one isolate locus, so a second
// Add for the same reference gene is a programming error.
func (m *Map) Add(e Entry) {
	if _, ok := m.index[e.RefGene]; ok {
		panic(fmt.Sprintf("ortholog: reference gene %q resolved twice", e.RefGene))
	}
	m.index[e.RefGene] = len(m.entries)
	m.entries = append(m.entries, e)
}

func (m *Map) Get(refGene string) (Entry, bool) {
	i, ok := m.index[refGene]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

func (m *Map) Has(refGene string) bool {
	_, ok := m.index[refGene]
	return ok
}

func (m *Map) Len() int {
	return len(m.entries)
}

// Entries returns the orthologs in resolution order.
func (m *Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Rename returns the reference -> isolate id mapping used to rename model genes.
func (m *Map) Rename() map[string]string {
	out := make(map[string]string, len(m.entries))
	for _, e := range m.entries {
		out[e.RefGene] = e.IsoGene
	}
	return out
}

// CountKind counts entries of kind k.
func (m *Map) CountKind(k Kind) int {
	n := 0
	for _, e := range m.entries {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// WriteDictionary writes the two-column gene dictionary in resolution order.
func (m *Map) WriteDictionary(w io.Writer) error {
	cw := csv.NewWriter(w)
	for _, e := range m.entries {
		if err := cw.Write([]string{e.RefGene, e.IsoGene}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (m *Map) WriteDictionaryFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WriteDictionary(fh); err != nil {
		fh.Close()
		return fmt.Errorf("failed to write gene dictionary %s: %w", path, err)
	}
	return fh.Close()
}

// bestHit picks the hit with the highest percent identity. Ties go to the lexically
// smallest subject id, then to emission order.
func bestHit(hits []blast.Hit) (blast.Hit, bool) {
	if len(hits) == 0 {
		return blast.Hit{}, false
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.PIdent > best.PIdent || (h.PIdent == best.PIdent && h.SSeqID < best.SSeqID) {
			best = h
		}
	}
	return best, true
}

// Resolve finds bidirectional best hits. refHits holds reference->isolate hits and
// isoHits isolate->reference hits, both already filtered. A reference gene r is paired
// with isolate locus s only if s is r's best hit and r is s's best hit. Only reference
// proteins that are genes of the model take part: hits from or to any other reference
// protein are ignored.
func Resolve(refHits, isoHits *blast.HitTable, modelGenes []string) *Map {
	inModel := make(map[string]bool, len(modelGenes))
	for _, g := range modelGenes {
		inModel[g] = true
	}

	orthologs := NewMap()
	for _, refGene := range refHits.Queries() {
		if !inModel[refGene] {
			continue
		}
		bestIso, ok := bestHit(refHits.Get(refGene))
		if !ok {
			continue
		}
		var back []blast.Hit
		for _, h := range isoHits.Get(bestIso.SSeqID) {
			if inModel[h.SSeqID] {
				back = append(back, h)
			}
		}
		bestRef, ok := bestHit(back)
		if !ok {
			continue
		}
		if bestRef.SSeqID != refGene {
			continue
		}
		orthologs.Add(Entry{RefGene: refGene, IsoGene: bestRef.QSeqID, Kind: Annotated})
	}
	return orthologs
}
