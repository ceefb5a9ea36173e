// Package detect extracts a book's page count and title from the
// rendered viewer. The viewer never states the page count in one
// reliable place, so detection is an ordered chain of best-effort
// strategies over a single captured snapshot of the document.
package detect

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/mvdberg/spreaddl/internal/viewer"
	"github.com/ztrue/tracerr"
)

// Document is a one-shot snapshot of the rendered book view. Strategies
// run offline against it, so they are testable with synthetic input.
type Document struct {
	Title    string
	BodyText string
	Metadata string // concatenated JSON-LD blocks, possibly empty
}

const probeScript = `(() => {
	const meta = Array.from(document.querySelectorAll('script[type="application/ld+json"]'))
		.map(s => s.textContent)
		.join("\n");
	return {
		title: document.title || "",
		bodyText: document.body ? document.body.innerText : "",
		metadata: meta,
	};
})()`

// Capture snapshots the loaded book view with a single evaluate call.
func Capture(ctx context.Context, d viewer.Driver) (Document, error) {
	var raw struct {
		Title    string `json:"title"`
		BodyText string `json:"bodyText"`
		Metadata string `json:"metadata"`
	}
	if err := d.Evaluate(ctx, probeScript, &raw); err != nil {
		return Document{}, tracerr.Wrap(err)
	}
	return Document{Title: raw.Title, BodyText: raw.BodyText, Metadata: raw.Metadata}, nil
}

// A Strategy inspects the document and reports a page count.
type Strategy func(Document) (int, bool)

// Strategies in detection order; the first success wins.
var Strategies = []Strategy{
	MetadataPages,
	LabelPages,
	IndicatorPages,
	ScanPages,
}

// PageCount runs the strategy chain.
func PageCount(doc Document) (int, bool) {
	for _, strategy := range Strategies {
		if n, ok := strategy(doc); ok && n > 0 {
			return n, true
		}
	}
	return 0, false
}

var (
	metadataPattern  = regexp.MustCompile(`"numberOfPages"\s*:\s*"?(\d+)"?`)
	labelPattern     = regexp.MustCompile(`(?i)\b(\d+)\s*(?:pagina'?s|pages?)\b`)
	indicatorPattern = regexp.MustCompile(`(?m)^\s*(\d+)\s*/\s*(\d+)\s*$`)
	ratioPattern     = regexp.MustCompile(`\b(\d+)\s*/\s*(\d+)\b`)
	namePattern      = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
)

// MetadataPages reads numberOfPages from the structured metadata block.
func MetadataPages(doc Document) (int, bool) {
	m := metadataPattern.FindStringSubmatch(doc.Metadata)
	if m == nil {
		return 0, false
	}
	return atoi(m[1])
}

// LabelPages matches a localized "<N> pagina's" / "<N> pages" label.
func LabelPages(doc Document) (int, bool) {
	m := labelPattern.FindStringSubmatch(doc.BodyText)
	if m == nil {
		return 0, false
	}
	return atoi(m[1])
}

// IndicatorPages finds a line that is exactly a "current / total"
// pagination indicator and takes the total.
func IndicatorPages(doc Document) (int, bool) {
	m := indicatorPattern.FindStringSubmatch(doc.BodyText)
	if m == nil {
		return 0, false
	}
	current, okC := atoi(m[1])
	total, okT := atoi(m[2])
	if !okC || !okT || total < current {
		return 0, false
	}
	return total, true
}

// scanMaxLen bounds accepted "<N> / <M>" matches so unrelated numeric
// ratios (dates, fractions in running text) are not mistaken for a
// pagination indicator.
const scanMaxLen = 9

// ScanPages is the last-resort scan of the whole text for a short
// "<N> / <M>" string.
func ScanPages(doc Document) (int, bool) {
	for _, m := range ratioPattern.FindAllStringSubmatch(doc.BodyText, -1) {
		if len(m[0]) > scanMaxLen {
			continue
		}
		current, okC := atoi(m[1])
		total, okT := atoi(m[2])
		if !okC || !okT || total < current {
			continue
		}
		return total, true
	}
	return 0, false
}

// Title picks the display title: structured metadata first, then the
// document title, then the fallback identifier.
func Title(doc Document, fallback string) string {
	if m := namePattern.FindStringSubmatch(doc.Metadata); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	if title := strings.TrimSpace(doc.Title); title != "" {
		return title
	}
	return fallback
}

// PromptPageCount asks the operator for the page count when every
// strategy failed. A non-numeric or non-positive reply is fatal.
func PromptPageCount(r io.Reader, w io.Writer) (int, error) {
	fmt.Fprint(w, "Could not detect the page count. Enter it manually: ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return 0, fmt.Errorf("no page count entered")
	}
	reply := strings.TrimSpace(scanner.Text())

	n, err := strconv.Atoi(reply)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid page count: %q", reply)
	}
	return n, nil
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
