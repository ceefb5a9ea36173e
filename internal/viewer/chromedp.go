package viewer

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/ztrue/tracerr"
)

// Options configures a browser session.
type Options struct {
	// ProfileDir persists cookies and login state across runs.
	ProfileDir string
	// Headless runs without a window. Login requires a visible browser,
	// so the pipeline leaves this off.
	Headless bool
}

// Session drives one Chrome instance with a single active page.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

var _ Driver = (*Session)(nil)

// NewSession launches Chrome and waits for it to come up, so a missing
// binary fails here rather than mid-run.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-notifications", true),
		// The print action opens a new window; the default popup
		// blocker would swallow it.
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.WindowSize(1400, 1000),
	)
	if opts.ProfileDir != "" {
		execOpts = append(execOpts, chromedp.UserDataDir(opts.ProfileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, tracerr.Wrap(err)
	}

	return &Session{ctx: browserCtx, cancel: cancel, allocCancel: allocCancel}, nil
}

// run executes actions on the session's browser context, carrying over
// a deadline from the caller's context when one is set.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return tracerr.Wrap(s.run(ctx, chromedp.Navigate(url)))
}

func (s *Session) Evaluate(ctx context.Context, expr string, out any) error {
	return tracerr.Wrap(s.run(ctx, chromedp.Evaluate(expr, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		})))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return tracerr.Wrap(s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)))
}

func (s *Session) ExpectNewSurface(timeout time.Duration) SurfaceWait {
	ch := chromedp.WaitNewTarget(s.ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})

	return func(ctx context.Context) (Surface, error) {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case id := <-ch:
			// The target registers before its URL commits; poll briefly.
			url := ""
			for i := 0; i < 10; i++ {
				url = s.targetURL(id)
				if url != "" && url != "about:blank" {
					break
				}
				time.Sleep(250 * time.Millisecond)
			}
			return &tab{session: s, id: id, url: url}, nil
		case <-timer.C:
			return nil, ErrCaptureTimeout
		case <-ctx.Done():
			return nil, tracerr.Wrap(ctx.Err())
		}
	}
}

func (s *Session) targetURL(id target.ID) string {
	infos, err := chromedp.Targets(s.ctx)
	if err != nil {
		return ""
	}
	for _, info := range infos {
		if info.TargetID == id {
			return info.URL
		}
	}
	return ""
}

// fetchScript pulls a URL as binary from inside the page, where the
// session's cookies apply, and hands it back base64 encoded.
const fetchScript = `fetch(%q, {credentials: "include"})
	.then(r => {
		if (!r.ok) throw new Error("HTTP " + r.status);
		return r.arrayBuffer();
	})
	.then(buf => {
		const bytes = new Uint8Array(buf);
		let bin = "";
		for (let i = 0; i < bytes.length; i += 0x8000) {
			bin += String.fromCharCode.apply(null, bytes.subarray(i, i + 0x8000));
		}
		return btoa(bin);
	})`

func (s *Session) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	var encoded string
	if err := s.Evaluate(ctx, fmt.Sprintf(fetchScript, url), &encoded); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return data, nil
}

func (s *Session) Close() error {
	s.cancel()
	s.allocCancel()
	return nil
}

// tab is a surface opened by a trigger, addressed by its target ID.
type tab struct {
	session *Session
	id      target.ID
	url     string
}

func (t *tab) URL() string { return t.url }

func (t *tab) Close(ctx context.Context) error {
	tabCtx, cancel := chromedp.NewContext(t.session.ctx, chromedp.WithTargetID(t.id))
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		tabCtx, dcancel = context.WithDeadline(tabCtx, deadline)
		defer dcancel()
	}
	return tracerr.Wrap(chromedp.Run(tabCtx, page.Close()))
}
