package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"cityhall_bids",
		"cityhall_contracts",
		"cityhall_payments",
		"cityhall_covid19expenses",
	}, Names())
}

func TestDefaults(t *testing.T) {
	cfg, ok := Defaults("cityhall_bids")
	require.True(t, ok)
	assert.Equal(t, BidsURL, cfg.URL)
	assert.Equal(t, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)

	_, ok = Defaults("cityhall_sewers")
	assert.False(t, ok)
}

func TestNewAppliesDefaults(t *testing.T) {
	spider, err := New("cityhall_contracts", PortalConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "cityhall_contracts", spider.Name())

	contracts, ok := spider.(*ContractsSpider)
	require.True(t, ok)
	assert.Equal(t, ContractsURL, contracts.url)
	assert.Equal(t, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), contracts.start)
}

func TestNewWithOverrides(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	spider, err := New("cityhall_payments", PortalConfig{URL: "http://example.com/despesa.php", StartDate: start}, NopReporter)
	require.NoError(t, err)

	payments, ok := spider.(*PaymentsSpider)
	require.True(t, ok)
	assert.Equal(t, "http://example.com/despesa.php", payments.url)
	assert.Equal(t, start, payments.start)
}

func TestNewUnknownSpider(t *testing.T) {
	_, err := New("cityhall_sewers", PortalConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cityhall_sewers")
}

func TestEverySpiderBuilds(t *testing.T) {
	for _, name := range Names() {
		spider, err := New(name, PortalConfig{}, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, spider.Name())
	}
}
