package scraper

import (
	"fmt"
	"time"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

// PortalConfig is everything a spider needs to know about its portal: the
// endpoint to query and the earliest date worth visiting.
type PortalConfig struct {
	URL       string
	StartDate time.Time
}

type spiderEntry struct {
	defaults PortalConfig
	build    func(PortalConfig, Reporter) Spider
}

// registry maps spider names to their constructors and built-in portal
// defaults. The initial dates match how far back each portal publishes.
var registry = map[string]spiderEntry{
	bidsSpiderName: {
		defaults: PortalConfig{URL: BidsURL, StartDate: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)},
		build:    func(cfg PortalConfig, rep Reporter) Spider { return NewBidsSpider(cfg, rep) },
	},
	contractsSpiderName: {
		defaults: PortalConfig{URL: ContractsURL, StartDate: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		build:    func(cfg PortalConfig, rep Reporter) Spider { return NewContractsSpider(cfg, rep) },
	},
	paymentsSpiderName: {
		defaults: PortalConfig{URL: PaymentsURL, StartDate: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		build:    func(cfg PortalConfig, rep Reporter) Spider { return NewPaymentsSpider(cfg, rep) },
	},
	covidSpiderName: {
		defaults: PortalConfig{URL: COVID19ExpensesURL, StartDate: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		build:    func(cfg PortalConfig, rep Reporter) Spider { return NewCOVID19ExpensesSpider(cfg, rep) },
	},
}

// spiderOrder keeps listings and default runs in a stable order.
var spiderOrder = []string{
	bidsSpiderName,
	contractsSpiderName,
	paymentsSpiderName,
	covidSpiderName,
}

// Names returns all registered spider names in registration order.
func Names() []string {
	return append([]string(nil), spiderOrder...)
}

// Defaults returns the built-in portal configuration for a spider.
func Defaults(name string) (PortalConfig, bool) {
	entry, ok := registry[name]
	return entry.defaults, ok
}

// New builds the named spider with the given portal configuration.
func New(name string, cfg PortalConfig, rep Reporter) (Spider, error) {
	entry, ok := registry[name]
	if !ok {
		return nil, errors.Config(fmt.Sprintf("unknown spider %q", name), nil)
	}
	if cfg.URL == "" {
		cfg.URL = entry.defaults.URL
	}
	if cfg.StartDate.IsZero() {
		cfg.StartDate = entry.defaults.StartDate
	}
	if rep == nil {
		rep = NopReporter
	}
	return entry.build(cfg, rep), nil
}
