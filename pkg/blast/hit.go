package blast

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Tabular columns requested from the aligner (-outfmt 6). Nucleotide searches drop ppos.
var (
	ProteinColumns    = []string{"qseqid", "sseqid", "qlen", "slen", "qstart", "qend", "sstart", "send", "length", "evalue", "bitscore", "pident", "nident", "ppos", "mismatch", "gaps"}
	NucleotideColumns = []string{"qseqid", "sseqid", "qlen", "slen", "qstart", "qend", "sstart", "send", "length", "evalue", "bitscore", "pident", "nident", "mismatch", "gaps"}
)

// Hit is one row of aligner output. It is never modified after parsing.
type Hit struct {
	QSeqID   string
	SSeqID   string
	QLen     int
	SLen     int
	QStart   int
	QEnd     int
	SStart   int
	SEnd     int
	Length   int
	EValue   float64
	BitScore float64
	PIdent   float64
	NIdent   int
	PPos     float64
	Mismatch int
	Gaps     int

	// HasPPos is false for nucleotide hits, which carry no positive-match column.
	HasPPos bool
}

// Coverage is the share of the query spanned by the alignment, in percent.
func (h Hit) Coverage() float64 {
	if h.QLen == 0 {
		return 0
	}
	return float64(h.Length) / float64(h.QLen) * 100
}

// MinusStrand reports whether the hit lies on the reverse strand of the subject.
func (h Hit) MinusStrand() bool {
	return h.SStart > h.SEnd
}

func (h Hit) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	fields := []string{
		h.QSeqID, h.SSeqID,
		strconv.Itoa(h.QLen), strconv.Itoa(h.SLen),
		strconv.Itoa(h.QStart), strconv.Itoa(h.QEnd),
		strconv.Itoa(h.SStart), strconv.Itoa(h.SEnd),
		strconv.Itoa(h.Length),
		f(h.EValue), f(h.BitScore), f(h.PIdent),
		strconv.Itoa(h.NIdent),
	}
	if h.HasPPos {
		fields = append(fields, f(h.PPos))
	}
	fields = append(fields, strconv.Itoa(h.Mismatch), strconv.Itoa(h.Gaps))
	return strings.Join(fields, "\t")
}

// ParseHit reads one whitespace separated line. Sixteen columns are a protein hit,
// fifteen a nucleotide hit.
func ParseHit(line string) (Hit, error) {
	cols := strings.Fields(line)

	var withPPos bool
	switch len(cols) {
	case len(ProteinColumns):
		withPPos = true
	case len(NucleotideColumns):
		withPPos = false
	default:
		return Hit{}, fmt.Errorf("expected %d or %d columns, got %d: %q",
			len(NucleotideColumns), len(ProteinColumns), len(cols), line)
	}

	p := &colParser{cols: cols}
	h := Hit{
		QSeqID:   p.str(),
		SSeqID:   p.str(),
		QLen:     p.int(),
		SLen:     p.int(),
		QStart:   p.int(),
		QEnd:     p.int(),
		SStart:   p.int(),
		SEnd:     p.int(),
		Length:   p.int(),
		EValue:   p.float(),
		BitScore: p.float(),
		PIdent:   p.float(),
		NIdent:   p.int(),
		HasPPos:  withPPos,
	}
	if withPPos {
		h.PPos = p.float()
	}
	h.Mismatch = p.int()
	h.Gaps = p.int()

	if p.err != nil {
		return Hit{}, fmt.Errorf("bad hit line %q: %w", line, p.err)
	}
	return h, nil
}

type colParser struct {
	cols []string
	i    int
	err  error
}

func (p *colParser) next() string {
	v := p.cols[p.i]
	p.i++
	return v
}

func (p *colParser) str() string { return p.next() }

func (p *colParser) int() int {
	col := p.next()
	v, err := strconv.Atoi(col)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %d: %w", p.i, err)
	}
	return v
}

func (p *colParser) float() float64 {
	col := p.next()
	v, err := strconv.ParseFloat(col, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %d: %w", p.i, err)
	}
	return v
}

// HitTable groups hits by query id. Both the query order and the per-query hit order are
// the order in which the aligner emitted them.
type HitTable struct {
	order []string
	hits  map[string][]Hit
}

func NewHitTable() *HitTable {
	return &HitTable{hits: make(map[string][]Hit)}
}

func (t *HitTable) Add(h Hit) {
	if _, ok := t.hits[h.QSeqID]; !ok {
		t.order = append(t.order, h.QSeqID)
	}
	t.hits[h.QSeqID] = append(t.hits[h.QSeqID], h)
}

// Get returns the hits for query id. The returned slice must not be modified.
func (t *HitTable) Get(query string) []Hit {
	if t == nil {
		return nil
	}
	return t.hits[query]
}

func (t *HitTable) Has(query string) bool {
	return len(t.Get(query)) > 0
}

// Queries lists query ids in emission order.
func (t *HitTable) Queries() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len is the number of queries with at least one hit.
func (t *HitTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Count is the total number of hits.
func (t *HitTable) Count() int {
	n := 0
	for _, q := range t.Queries() {
		n += len(t.hits[q])
	}
	return n
}

// ParseHits reads aligner output line by line. Blank lines and '#' comments are skipped.
func ParseHits(r io.Reader) (*HitTable, error) {
	table := NewHitTable()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hit, err := ParseHit(line)
		if err != nil {
			return nil, err
		}
		table.Add(hit)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
