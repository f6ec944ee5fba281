package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

// CrawlWindow is a bounded date range issued as a single query unit against
// a portal. End is exclusive.
type CrawlWindow struct {
	Start time.Time
	End   time.Time
}

// FormValue renders the window as the portal's date filter. The portals
// take a "dd/mm/yyyy - dd/mm/yyyy" range covering the window's single day.
func (w CrawlWindow) FormValue() string {
	day := w.Start.Format("02/01/2006")
	return day + " - " + day
}

// DailyWindows produces one window per calendar day from initial up to, but
// excluding, today, in ascending order. Consecutive windows are contiguous.
// The sequence is empty when initial is today or later.
func DailyWindows(initial, today time.Time) []CrawlWindow {
	start := truncateToDay(initial)
	end := truncateToDay(today)

	var windows []CrawlWindow
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		windows = append(windows, CrawlWindow{Start: day, End: day.AddDate(0, 0, 1)})
	}
	return windows
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthGate decides whether a discovered month link still needs visiting.
// The bids portal lists one link per month since inception; the gate is
// what keeps a run from walking the entire site history.
type MonthGate struct {
	Spider string
	Start  time.Time
}

// ShouldVisit extracts the MM-YYYY token from the link's dt query parameter
// and reports whether that month is within the configured span. A missing or
// malformed token is a fatal error: it means the portal's addressing scheme
// changed, and skipping it silently would mask lost content.
func (g MonthGate) ShouldVisit(rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, errors.Fatal(g.Spider, fmt.Sprintf("unparsable month link %q", rawURL), err)
	}

	token := parsed.Query().Get("dt")
	if token == "" {
		return false, errors.Fatal(g.Spider, fmt.Sprintf("month link %q carries no dt parameter", rawURL), nil)
	}

	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return false, errors.Fatal(g.Spider, fmt.Sprintf("malformed dt token %q in %q", token, rawURL), nil)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return false, errors.Fatal(g.Spider, fmt.Sprintf("malformed dt month %q in %q", token, rawURL), err)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return false, errors.Fatal(g.Spider, fmt.Sprintf("malformed dt year %q in %q", token, rawURL), err)
	}

	linked := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	gate := time.Date(g.Start.Year(), g.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	return !linked.Before(gate), nil
}
