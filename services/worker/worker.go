package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beatrizuezu/maria-quiteria/internal/engine"
	"github.com/beatrizuezu/maria-quiteria/internal/scraper"
	"github.com/beatrizuezu/maria-quiteria/logger"
	"github.com/beatrizuezu/maria-quiteria/services/archive"
	"github.com/beatrizuezu/maria-quiteria/services/publisher"
)

// Runner executes the requests a spider emits. Satisfied by *engine.Engine.
type Runner interface {
	Run(ctx context.Context, seeds []*scraper.Request, emit engine.EmitFunc) error
}

// Worker drives full crawl runs: it fans the spiders out, serializes every
// record they produce and delivers it to the publisher and the local archive.
type Worker struct {
	ctx       context.Context
	spiders   []scraper.Spider
	runner    Runner
	publisher publisher.Publisher
	archive   archive.Archive
	interval  time.Duration
	once      bool
	log       *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	spiders []scraper.Spider,
	runner Runner,
	pub publisher.Publisher,
	arch archive.Archive,
	interval time.Duration,
	once bool,
) *Worker {
	return &Worker{
		ctx:       ctx,
		spiders:   spiders,
		runner:    runner,
		publisher: pub,
		archive:   arch,
		interval:  interval,
		once:      once,
		log:       logger.ForWorker(),
	}
}

// Start runs crawls until the context is cancelled. With once set, a single
// run is performed and Start returns.
func (w *Worker) Start() {
	for {
		start := time.Now()
		w.runSpiders()
		w.log.Info().Dur("elapsed", time.Since(start)).Msg("Crawl run finished")

		if w.once {
			return
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(w.interval):
		}
	}
}

// runSpiders runs all spiders in parallel under one run id, then trims the
// streams so they never grow unbounded
func (w *Worker) runSpiders() {
	runID := uuid.NewString()

	var wg sync.WaitGroup
	for _, spider := range w.spiders {
		wg.Add(1)
		go func(s scraper.Spider) {
			defer wg.Done()
			w.crawlAndPublish(runID, s)
		}(spider)
	}
	wg.Wait()

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(); err != nil {
			w.log.Error().Err(err).Msg("Failed to trim streams")
		}
	}
}

// crawlAndPublish runs one spider to completion and delivers its records
func (w *Worker) crawlAndPublish(runID string, spider scraper.Spider) {
	log := logger.ForSpider(spider.Name()).WithField("run_id", runID)

	seeds, err := spider.StartRequests(time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build start requests")
		return
	}

	var mu sync.Mutex
	published := 0
	failed := 0

	emit := func(record scraper.Record) {
		payload, err := json.Marshal(record)
		if err != nil {
			log.Error().Err(err).Str("source", record.Source()).Msg("Failed to serialize record")
			mu.Lock()
			failed++
			mu.Unlock()
			return
		}

		ok := true
		if w.publisher != nil {
			if err := w.publisher.Publish(spider.Name(), payload); err != nil {
				log.Error().Err(err).Str("source", record.Source()).Msg("Failed to publish record")
				ok = false
			}
		}
		if w.archive != nil {
			err := w.archive.Save(archive.Row{
				ID:          uuid.NewString(),
				RunID:       runID,
				Spider:      spider.Name(),
				RecordType:  record.Kind(),
				SourceURL:   record.Source(),
				RetrievedAt: record.Retrieved(),
				Payload:     payload,
			})
			if err != nil {
				log.Error().Err(err).Str("source", record.Source()).Msg("Failed to archive record")
				ok = false
			}
		}

		mu.Lock()
		if ok {
			published++
		} else {
			failed++
		}
		mu.Unlock()
	}

	if err := w.runner.Run(w.ctx, seeds, emit); err != nil {
		log.Error().Err(err).Msg("Crawl aborted")
	}

	log.Info().
		Int("published", published).
		Int("failed", failed).
		Msg("Spider finished")
}
