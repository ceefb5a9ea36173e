package book

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// PagesPerSpread is the number of book pages the viewer shows per spread.
// The print action always exports the full spread.
const PagesPerSpread = 2

var segmentPattern = regexp.MustCompile(`^\w+$`)

// Job describes one book download. It is assembled once per invocation
// and never mutated after detection completes.
type Job struct {
	ID             string
	URL            string
	Title          string
	TotalPages     int
	Limit          int
	PagesPerSpread int
}

// ParseID derives the book identifier from a viewer URL. The viewer
// addresses books as <account>/<book>, the last two path segments.
func ParseID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid book URL: %s", rawURL)
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return "", fmt.Errorf("URL %s is missing the <account>/<book> segments", rawURL)
	}

	account := segments[len(segments)-2]
	name := segments[len(segments)-1]
	if !segmentPattern.MatchString(account) || !segmentPattern.MatchString(name) {
		return "", fmt.Errorf("URL %s is missing the <account>/<book> segments", rawURL)
	}

	return account + "-" + name, nil
}

// PageURL returns the viewer URL anchored on the given zero-based page
// offset. The viewer numbers pages from 1 in its fragment.
func (j Job) PageURL(firstPage int) string {
	return fmt.Sprintf("%s#p=%d", j.URL, firstPage+1)
}

// OutputName is the filename of the merged PDF, derived from the
// sanitized title with the book identifier as fallback.
func (j Job) OutputName() string {
	name := Sanitize(j.Title)
	if name == "" {
		name = Sanitize(j.ID)
	}
	if name == "" {
		name = j.ID
	}
	return name + ".pdf"
}

// Sanitize reduces a title to a filesystem-safe token: letters and
// digits only, lower-cased.
func Sanitize(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SpreadFilename pads the index to three digits so that lexical sort
// order of the spread store equals page order.
func SpreadFilename(index int) string {
	return fmt.Sprintf("spread-%03d.pdf", index)
}

// ProfileDir is the persistent browser profile for a book. Multi-book
// runs get isolated profiles so concurrent logins do not collide.
func ProfileDir(id string, isolated bool) string {
	if isolated {
		return ".browser-data-" + id
	}
	return ".browser-data"
}
