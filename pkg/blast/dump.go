package blast

import (
	"bufio"
	"io"
	"strings"
)

// WriteHits writes a header row followed by hits in the aligner's tabular format.
// Protein column names are used for the header, matching what the troubleshooter emits.
func WriteHits(w io.Writer, hits []Hit) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(ProteinColumns, "\t") + "\n"); err != nil {
		return err
	}
	for _, h := range hits {
		if _, err := bw.WriteString(h.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
