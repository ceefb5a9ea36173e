package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/ztrue/tracerr"
	"golang.org/x/sync/errgroup"

	"github.com/mvdberg/spreaddl/internal/book"
	"github.com/mvdberg/spreaddl/internal/detect"
	"github.com/mvdberg/spreaddl/internal/merge"
	"github.com/mvdberg/spreaddl/internal/spread"
	"github.com/mvdberg/spreaddl/internal/viewer"
)

type Args struct {
	Urls          []string `arg:"positional" help:"One or more book viewer URLs. A trailing number is treated as a page limit"`
	Limit         int      `arg:"-l,--limit" help:"(Optional) Only download the first N pages"`
	Parallel      bool     `arg:"-p,--parallel" help:"(Optional) Download multiple books concurrently instead of one after another"`
	ClearCache    bool     `arg:"--clear-cache" help:"(Optional) Wipe the persisted browser profile(s) before running"`
	OutputFolder  string   `arg:"-o,--output" help:"(Optional) Folder for the merged PDFs" default:"output"`
	SpreadsFolder string   `arg:"--spreads" help:"(Optional) Working folder for the per-spread PDFs" default:"spreads"`
	TerminalUI    bool     `arg:"-t,--termui" help:"(Optional) Use the terminal UI instead of command line arguments"`
}

// errNoAccess marks a book whose print trigger never appeared, even
// after a login attempt.
var errNoAccess = errors.New("no access to this book (print trigger not available)")

// waits is swapped for a zero-delay policy in tests.
var waits = viewer.DefaultWaits

// loginMu serializes interactive login prompts: stdin is shared, and in
// parallel mode only the prompting book may block on it.
var loginMu sync.Mutex

// viewState is the capability probe of a loaded book view.
type viewState struct {
	HasTrigger  bool `json:"hasTrigger"`
	HasPassword bool `json:"hasPassword"`
	WantsLogin  bool `json:"wantsLogin"`
}

const viewStateScript = `(() => {
	const text = document.body ? document.body.innerText : "";
	return {
		hasTrigger: document.querySelector(%q) !== null,
		hasPassword: document.querySelector('input[type="password"]') !== null,
		wantsLogin: /inloggen|aanmelden|log in/i.test(text),
	};
})()`

func probeView(ctx context.Context, d viewer.Driver) (viewState, error) {
	var state viewState
	if err := d.Evaluate(ctx, fmt.Sprintf(viewStateScript, spread.TriggerSelector), &state); err != nil {
		return state, tracerr.Wrap(err)
	}
	return state, nil
}

func promptLogin(id string, stdin io.Reader) error {
	loginMu.Lock()
	defer loginMu.Unlock()

	color.Yellow("LOGIN: %s requires a login. Sign in using the browser window, then press Enter here to continue.", id)
	if _, err := bufio.NewReader(stdin).ReadString('\n'); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

// downloadBook runs the whole pipeline for one book on its own browser
// session.
func downloadBook(ctx context.Context, args *Args, id, rawURL, profileDir string) error {
	session, err := viewer.NewSession(ctx, viewer.Options{ProfileDir: profileDir})
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer session.Close()

	return runPipeline(ctx, args, id, rawURL, session, os.Stdin)
}

// runPipeline is downloadBook minus the session bootstrap, so it can be
// exercised against a fake driver.
func runPipeline(ctx context.Context, args *Args, id, rawURL string, driver viewer.Driver, stdin io.Reader) error {
	info := color.New(color.FgCyan).SprintFunc()
	success := color.New(color.FgGreen).SprintFunc()

	fmt.Printf("%s Opening %s\n", info("INFO:"), rawURL)
	if err := driver.Navigate(ctx, rawURL); err != nil {
		return tracerr.Wrap(err)
	}
	time.Sleep(waits.Settle)

	// Auth check: the print trigger doubles as the access marker.
	state, err := probeView(ctx, driver)
	if err != nil {
		return err
	}
	if !state.HasTrigger {
		if state.HasPassword || state.WantsLogin {
			if err := promptLogin(id, stdin); err != nil {
				return err
			}
			if err := driver.Navigate(ctx, rawURL); err != nil {
				return tracerr.Wrap(err)
			}
			time.Sleep(waits.Settle)
			if state, err = probeView(ctx, driver); err != nil {
				return err
			}
		}
		if !state.HasTrigger {
			return errNoAccess
		}
	}

	// Detection. The job is immutable from here on.
	doc, err := detect.Capture(ctx, driver)
	if err != nil {
		return err
	}
	total, ok := detect.PageCount(doc)
	if !ok {
		if total, err = detect.PromptPageCount(stdin, os.Stdout); err != nil {
			return tracerr.Wrap(err)
		}
	}
	job := book.Job{
		ID:             id,
		URL:            rawURL,
		Title:          detect.Title(doc, id),
		TotalPages:     total,
		Limit:          args.Limit,
		PagesPerSpread: book.PagesPerSpread,
	}

	tasks := book.Plan(job.TotalPages, job.PagesPerSpread, job.Limit)
	spreadDir := filepath.Join(args.SpreadsFolder, job.ID)
	if err := os.MkdirAll(spreadDir, 0o755); err != nil {
		return tracerr.Wrap(err)
	}

	existing := 0
	for _, task := range tasks {
		if spread.ArtifactExists(filepath.Join(spreadDir, task.Filename)) {
			existing++
		}
	}

	pages := job.TotalPages
	if job.Limit > 0 && job.Limit < pages {
		pages = job.Limit
	}
	fmt.Printf("%s %q: %d pages, %d spreads (%d already downloaded)\n",
		info("INFO:"), job.Title, pages, len(tasks), existing)

	downloaded, skipped := 0, 0
	var failed []int

	if existing == len(tasks) {
		fmt.Printf("%s All spreads already present, skipping straight to merge\n", info("INFO:"))
		skipped = existing
	} else {
		fetcher := &spread.Fetcher{Driver: driver, Waits: waits}
		bar := progressbar.NewOptions(len(tasks),
			progressbar.OptionSetDescription("Downloading spreads"),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)

		for _, task := range tasks {
			status, err := fetcher.Fetch(ctx, job, task, spreadDir)
			switch {
			case err != nil:
				failed = append(failed, task.Index)
				fmt.Fprintf(os.Stderr, "\n%s spread %d failed: %v\n", color.RedString("ERROR:"), task.Index, err)
			case status == spread.StatusSkipped:
				skipped++
			default:
				downloaded++
			}
			if err := bar.Add(1); err != nil {
				fmt.Fprintf(os.Stderr, "Error updating progress bar: %v\n", err)
			}
		}
		if err := bar.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing progress bar: %v\n", err)
		}

		if len(failed) > 0 {
			color.Yellow("WARNING: %d spreads failed: %v (re-run the command to retry them)", len(failed), failed)
		}
	}

	merger := &merge.Merger{}
	outPath := filepath.Join(args.OutputFolder, job.OutputName())
	result, err := merger.Book(spreadDir, len(tasks), outPath)
	if err != nil {
		return tracerr.Wrap(err)
	}

	fmt.Printf("%s Wrote %s (%d pages from %d spreads, %s)\n",
		success("SUCCESS:"), result.OutputPath, result.Pages, result.Spreads, formatSize(result.Size))
	fmt.Printf("Downloaded: %d, skipped: %d, failed: %d\n", downloaded, skipped, len(failed))
	return nil
}

// run downloads every requested book, sequentially by default or
// concurrently with --parallel.
func run(ctx context.Context, args *Args, urls []string) error {
	ids := make([]string, len(urls))
	for i, u := range urls {
		id, err := book.ParseID(u)
		if err != nil {
			return tracerr.Wrap(err)
		}
		ids[i] = id
	}

	multi := len(urls) > 1
	if args.ClearCache {
		for _, id := range ids {
			if err := os.RemoveAll(book.ProfileDir(id, multi)); err != nil {
				return tracerr.Wrap(err)
			}
		}
		color.Cyan("INFO: cleared browser profile(s)")
	}

	start := time.Now()

	if args.Parallel && multi {
		// Deliberately no shared context cancellation: one failed book
		// must not abort its siblings.
		var eg errgroup.Group
		for i := range urls {
			i := i
			eg.Go(func() error {
				err := downloadBook(ctx, args, ids[i], urls[i], book.ProfileDir(ids[i], true))
				if err != nil {
					color.Red("ERROR: %s: %v", urls[i], err)
				}
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	} else {
		var firstErr error
		for i := range urls {
			if err := downloadBook(ctx, args, ids[i], urls[i], book.ProfileDir(ids[i], multi)); err != nil {
				color.Red("ERROR: %s: %v", urls[i], err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if firstErr != nil {
			return firstErr
		}
	}

	fmt.Printf("Total processing time: %s\n", formatDuration(time.Since(start)))
	return nil
}

// splitArgs peels a trailing numeric positional off the URL list and
// returns it as the page limit.
func splitArgs(positionals []string) ([]string, int, error) {
	if n := len(positionals); n > 1 {
		if v, err := strconv.Atoi(positionals[n-1]); err == nil {
			if v <= 0 {
				return nil, 0, fmt.Errorf("page limit must be positive, got %d", v)
			}
			return positionals[:n-1], v, nil
		}
	}
	return positionals, 0, nil
}

func mainWithErrors() error {
	var args Args
	argP := arg.MustParse(&args)

	if args.TerminalUI {
		RunTerminalUI()
		return nil
	}

	urls, limit, err := splitArgs(args.Urls)
	if err != nil {
		argP.WriteHelp(os.Stderr)
		return err
	}
	if limit > 0 && args.Limit == 0 {
		args.Limit = limit
	}
	if len(urls) == 0 {
		argP.WriteHelp(os.Stderr)
		return fmt.Errorf("at least one book URL is required")
	}

	return run(context.Background(), &args, urls)
}

func main() {
	if err := mainWithErrors(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
