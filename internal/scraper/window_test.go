package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

func day(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func TestDailyWindowsEmptyWhenInitialIsTodayOrLater(t *testing.T) {
	today := day(2020, 8, 15)

	assert.Empty(t, DailyWindows(today, today))
	assert.Empty(t, DailyWindows(day(2020, 8, 16), today))
	assert.Empty(t, DailyWindows(day(2021, 1, 1), today))
}

func TestDailyWindowsIgnoresTimeOfDay(t *testing.T) {
	initial := time.Date(2020, 8, 14, 23, 59, 0, 0, time.UTC)
	today := time.Date(2020, 8, 15, 0, 1, 0, 0, time.UTC)

	windows := DailyWindows(initial, today)
	require.Len(t, windows, 1)
	assert.Equal(t, day(2020, 8, 14), windows[0].Start)
	assert.Equal(t, day(2020, 8, 15), windows[0].End)
}

func TestDailyWindowsAreContiguousAndBounded(t *testing.T) {
	initial := day(2020, 8, 1)
	today := day(2020, 8, 11)

	windows := DailyWindows(initial, today)
	require.Len(t, windows, 10)

	for i, window := range windows {
		assert.True(t, window.Start.Before(window.End))
		assert.False(t, window.Start.Before(initial))
		assert.False(t, window.End.After(today))
		if i > 0 {
			assert.Equal(t, windows[i-1].End, window.Start, "windows must be contiguous")
		}
	}
	assert.Equal(t, initial, windows[0].Start)
	assert.Equal(t, today, windows[len(windows)-1].End)
}

func TestCrawlWindowFormValue(t *testing.T) {
	window := CrawlWindow{Start: day(2020, 8, 3), End: day(2020, 8, 4)}
	assert.Equal(t, "03/08/2020 - 03/08/2020", window.FormValue())
}

func TestMonthGateShouldVisit(t *testing.T) {
	url := "http://www.feiradesantana.ba.gov.br/seadm/licitacoes_pm.asp?cat=PMFS&dt=08-2020"

	gate := MonthGate{Spider: "cityhall_bids", Start: day(2020, 1, 1)}
	visit, err := gate.ShouldVisit(url)
	require.NoError(t, err)
	assert.True(t, visit)

	gate = MonthGate{Spider: "cityhall_bids", Start: day(2021, 1, 1)}
	visit, err = gate.ShouldVisit(url)
	require.NoError(t, err)
	assert.False(t, visit)
}

func TestMonthGateSameMonthIsVisited(t *testing.T) {
	gate := MonthGate{Spider: "cityhall_bids", Start: day(2020, 8, 20)}
	visit, err := gate.ShouldVisit("http://example.com/licitacoes_pm.asp?cat=PMFS&dt=08-2020")
	require.NoError(t, err)
	assert.True(t, visit, "the gate compares whole months, not days")
}

func TestMonthGateMalformedTokenFails(t *testing.T) {
	gate := MonthGate{Spider: "cityhall_bids", Start: day(2020, 1, 1)}

	for _, rawURL := range []string{
		"http://example.com/licitacoes_pm.asp?cat=PMFS",
		"http://example.com/licitacoes_pm.asp?cat=PMFS&dt=2020",
		"http://example.com/licitacoes_pm.asp?cat=PMFS&dt=ago-2020",
		"http://example.com/licitacoes_pm.asp?cat=PMFS&dt=13-2020",
	} {
		_, err := gate.ShouldVisit(rawURL)
		require.Error(t, err, rawURL)
		assert.True(t, errors.IsFatal(err), "malformed dt tokens must stop the run: %s", rawURL)
	}
}
