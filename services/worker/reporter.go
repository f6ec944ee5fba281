package worker

import (
	"sync/atomic"

	"github.com/beatrizuezu/maria-quiteria/logger"
)

// Reporter surfaces recoverable scrape problems through the structured
// logger. The parsers report shape drift and bad values here instead of
// failing the run.
type Reporter struct {
	log      *logger.Logger
	warnings atomic.Int64
}

// NewReporter creates a reporter scoped to one spider
func NewReporter(spider string) *Reporter {
	return &Reporter{log: logger.ForSpider(spider)}
}

// Warn logs one recoverable problem
func (r *Reporter) Warn(err error) {
	r.warnings.Add(1)
	r.log.Warn().Err(err).Msg("Recoverable scrape problem")
}

// Warnings returns how many problems were reported so far
func (r *Reporter) Warnings() int64 {
	return r.warnings.Load()
}
