// Package merge assembles the per-spread PDFs of a book into one
// page-ordered output document. Assembly is best effort: missing or
// unreadable spreads are warned about and excluded, never fatal.
package merge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ztrue/tracerr"

	"github.com/mvdberg/spreaddl/internal/book"
	"github.com/mvdberg/spreaddl/internal/spread"
)

// Result summarizes a merge for the final operator report.
type Result struct {
	OutputPath string
	Spreads    int   // spreads merged into the output
	Missing    []int // spread indices that were absent or rejected
	Pages      int
	Size       int64
}

// Merger writes merged book PDFs.
type Merger struct {
	// Out receives per-spread warnings. Defaults to os.Stdout.
	Out io.Writer
}

// Book merges spreads 0..spreadCount-1 from spreadDir into outputPath.
// Order is strictly ascending by index; every excluded spread produces
// exactly one warning. At least one valid spread is required.
func (m *Merger) Book(spreadDir string, spreadCount int, outputPath string) (*Result, error) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	warn := color.New(color.FgYellow)
	conf := model.NewDefaultConfiguration()

	inputs := make([]string, 0, spreadCount)
	var missing []int
	for i := 0; i < spreadCount; i++ {
		path := filepath.Join(spreadDir, book.SpreadFilename(i))
		if !spread.ArtifactExists(path) {
			warn.Fprintf(out, "WARN: spread %d is missing, excluded from output\n", i)
			missing = append(missing, i)
			continue
		}
		if err := pdfcpu.ValidateFile(path, conf); err != nil {
			warn.Fprintf(out, "WARN: spread %d is unreadable, excluded from output: %v\n", i, err)
			missing = append(missing, i)
			continue
		}
		inputs = append(inputs, path)
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("no spreads to merge in %s", spreadDir)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := pdfcpu.MergeCreateFile(inputs, outputPath, false, conf); err != nil {
		return nil, tracerr.Wrap(err)
	}

	pages, err := pdfcpu.PageCountFile(outputPath)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	return &Result{
		OutputPath: outputPath,
		Spreads:    len(inputs),
		Missing:    missing,
		Pages:      pages,
		Size:       info.Size(),
	}, nil
}
