// Package viewer abstracts the browser automation capabilities the
// download pipeline needs: navigation, in-page evaluation, clicking,
// observing surfaces opened by a trigger, and binary fetches. The only
// production implementation drives Chrome through chromedp; tests fake
// the Driver interface instead.
package viewer

import (
	"context"
	"errors"
	"time"
)

// ErrCaptureTimeout is returned when the print trigger did not open a
// new surface within the capture window.
var ErrCaptureTimeout = errors.New("timed out waiting for a new surface")

// WaitPolicy names the fixed delays used by the pipeline. The viewer
// exposes no render-complete signal, so settling is time based.
type WaitPolicy struct {
	// Settle is waited after navigation before touching the page.
	Settle time.Duration
	// Capture bounds the wait for the print surface to open.
	Capture time.Duration
	// Cooldown is inserted between spreads to avoid overwhelming the viewer.
	Cooldown time.Duration
}

// DefaultWaits mirrors the delays the viewer has proven to need.
var DefaultWaits = WaitPolicy{
	Settle:   3 * time.Second,
	Capture:  20 * time.Second,
	Cooldown: time.Second,
}

// Surface is a browser page opened as the result of a trigger.
type Surface interface {
	URL() string
	Close(ctx context.Context) error
}

// SurfaceWait blocks until the expected surface opens, bounded by the
// timeout given when the wait was armed.
type SurfaceWait func(ctx context.Context) (Surface, error)

// Driver is a single controllable viewer session.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Evaluate runs expr in the page and unmarshals the result into out.
	// Promises are awaited. out may be nil.
	Evaluate(ctx context.Context, expr string, out any) error
	Click(ctx context.Context, selector string) error
	// ExpectNewSurface must be armed before the action that opens the
	// surface, otherwise the open event can be missed.
	ExpectNewSurface(timeout time.Duration) SurfaceWait
	// FetchBytes retrieves url as binary from within the session, so
	// the session's cookies apply.
	FetchBytes(ctx context.Context, url string) ([]byte, error)
	Close() error
}
