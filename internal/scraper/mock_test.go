package scraper

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

// recordingReporter captures warnings for assertions
type recordingReporter struct {
	warnings []error
}

func (r *recordingReporter) Warn(err error) {
	r.warnings = append(r.warnings, err)
}

func (r *recordingReporter) kinds() []errors.Kind {
	var kinds []errors.Kind
	for _, err := range r.warnings {
		if se, ok := err.(*errors.ScrapeError); ok {
			kinds = append(kinds, se.Kind)
		}
	}
	return kinds
}

func (r *recordingReporter) hasKind(kind errors.Kind) bool {
	for _, k := range r.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// htmlResponse builds a Response from inline fixture HTML
func htmlResponse(t *testing.T, pageURL, html string, form url.Values) *Response {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return &Response{URL: pageURL, Doc: doc, Form: form}
}

// fixedClock pins a spider's wall clock for deterministic records
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
