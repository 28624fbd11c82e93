package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// output is a result file and the function that writes it.
type output struct {
	path  string
	write func(path string) error
}

// writeAll writes every output to a temporary file next to its final path and moves
// them into place once all were written. On failure none of the outputs is left.
func writeAll(outputs []output) error {
	tmps := make([]string, 0, len(outputs))
	removeTmps := func() {
		for _, t := range tmps {
			os.Remove(t)
		}
	}

	for _, o := range outputs {
		fh, err := os.CreateTemp(filepath.Dir(o.path), "."+filepath.Base(o.path)+".*")
		if err != nil {
			removeTmps()
			return fmt.Errorf("failed to stage %s: %w", o.path, err)
		}
		tmps = append(tmps, fh.Name())
		if err := fh.Close(); err != nil {
			removeTmps()
			return err
		}
		if err := os.Chmod(fh.Name(), 0o644); err != nil {
			removeTmps()
			return err
		}
		if err := o.write(fh.Name()); err != nil {
			removeTmps()
			return err
		}
	}

	for i, o := range outputs {
		if err := os.Rename(tmps[i], o.path); err != nil {
			for _, done := range outputs[:i] {
				os.Remove(done.path)
			}
			removeTmps()
			return fmt.Errorf("failed to move %s into place: %w", o.path, err)
		}
	}
	return nil
}
