// Package spread downloads individual spread PDFs from the viewer: one
// navigate-trigger-capture-persist cycle per spread, resumable across
// runs because the on-disk artifact is the completion marker.
package spread

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mvdberg/spreaddl/internal/book"
	"github.com/mvdberg/spreaddl/internal/viewer"
	"github.com/ztrue/tracerr"
)

// TriggerSelector is the viewer's per-spread print button. Its presence
// also doubles as the access marker during the auth check.
const TriggerSelector = `#btnPrint`

// Status reports what Fetch did for a task.
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkipped
	StatusFailed
)

// ArtifactExists reports whether path holds a usable spread artifact.
// Zero-byte files are leftovers of an interrupted write and count as
// absent so the next run re-fetches them.
func ArtifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Fetcher downloads spreads through a viewer driver. All calls are
// strictly sequential; the viewer session has a single active surface.
type Fetcher struct {
	Driver viewer.Driver
	Waits  viewer.WaitPolicy
}

// Fetch runs one task: skip if the artifact exists, otherwise navigate
// to the spread, trigger the print export, capture the document it
// opens, and persist its bytes whole-file. Errors are per-spread
// failures; the caller continues with the next task.
func (f *Fetcher) Fetch(ctx context.Context, job book.Job, task book.SpreadTask, dir string) (Status, error) {
	outPath := filepath.Join(dir, task.Filename)
	if ArtifactExists(outPath) {
		return StatusSkipped, nil
	}

	if err := f.Driver.Navigate(ctx, job.PageURL(task.FirstPage)); err != nil {
		return StatusFailed, tracerr.Wrap(fmt.Errorf("spread %d: navigate: %w", task.Index, err))
	}
	// The viewer loads spread content asynchronously and exposes no
	// completion signal.
	time.Sleep(f.Waits.Settle)

	wait := f.Driver.ExpectNewSurface(f.Waits.Capture)
	if err := f.Driver.Click(ctx, TriggerSelector); err != nil {
		return StatusFailed, tracerr.Wrap(fmt.Errorf("spread %d: print trigger: %w", task.Index, err))
	}

	surface, err := wait(ctx)
	if err != nil {
		return StatusFailed, tracerr.Wrap(fmt.Errorf("spread %d: capture: %w", task.Index, err))
	}

	data, err := f.Driver.FetchBytes(ctx, surface.URL())
	// The surface is transient; a failed close is not worth failing the
	// spread over once its bytes are in hand.
	_ = surface.Close(ctx)
	if err != nil {
		return StatusFailed, tracerr.Wrap(fmt.Errorf("spread %d: fetch bytes: %w", task.Index, err))
	}
	if len(data) == 0 || !bytes.HasPrefix(data, []byte("%PDF")) {
		return StatusFailed, fmt.Errorf("spread %d: capture did not produce a PDF (%d bytes)", task.Index, len(data))
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return StatusFailed, tracerr.Wrap(err)
	}

	time.Sleep(f.Waits.Cooldown)
	return StatusDownloaded, nil
}
