package engine

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/beatrizuezu/maria-quiteria/internal/scraper"
	"github.com/beatrizuezu/maria-quiteria/logger"
	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
	"github.com/beatrizuezu/maria-quiteria/services/cache"
)

// Options configures the fetch engine
type Options struct {
	Timeout    time.Duration
	Workers    int
	Retries    int
	RetryDelay time.Duration
	BlockTime  time.Duration
	Cache      cache.CacheService
}

// Engine executes the requests a spider emits: it fetches pages, hands the
// decoded documents back to the spider's callbacks, requeues the follow-up
// requests and forwards finished records to the emit function. All network
// concurrency lives here; the scraper core stays a pure function from
// responses to records and requests.
type Engine struct {
	client     *http.Client
	cache      cache.CacheService
	workers    int
	retries    int
	retryDelay time.Duration
	blockTime  time.Duration
	log        *logger.Logger
}

// New creates an engine with the given options
func New(opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		client:     &http.Client{Timeout: opts.Timeout},
		cache:      opts.Cache,
		workers:    opts.Workers,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		blockTime:  opts.BlockTime,
		log:        logger.ForEngine(),
	}
}

// EmitFunc receives every record a run produces. It may be called
// concurrently from multiple workers.
type EmitFunc func(scraper.Record)

// Run executes the seed requests and everything they spawn, until the
// frontier drains, a fatal error surfaces or ctx is cancelled. Records
// already emitted stay valid either way.
func (e *Engine) Run(ctx context.Context, seeds []*scraper.Request, emit EmitFunc) error {
	if len(seeds) == 0 {
		return nil
	}

	q := newQueue()
	var pending atomic.Int64
	var fatalOnce sync.Once
	var fatalErr error

	abort := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			q.stop()
		})
	}

	pending.Add(int64(len(seeds)))
	for _, seed := range seeds {
		q.push(seed)
	}

	watchDone := make(chan struct{})
	watchExited := make(chan struct{})
	go func() {
		defer close(watchExited)
		select {
		case <-ctx.Done():
			abort(ctx.Err())
		case <-watchDone:
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				request, ok := q.pop()
				if !ok {
					return
				}
				e.process(request, q, &pending, emit, abort)
			}
		}()
	}

	wg.Wait()
	// join the watcher before reading fatalErr: a cancellation landing just
	// as the run drains must not race the read below
	close(watchDone)
	<-watchExited
	return fatalErr
}

// process fetches one request, runs its callback and accounts for the
// frontier. When the last pending request finishes, the queue is stopped
// and the run completes naturally.
func (e *Engine) process(request *scraper.Request, q *queue, pending *atomic.Int64, emit EmitFunc, abort func(error)) {
	defer func() {
		if pending.Add(-1) == 0 {
			q.stop()
		}
	}()

	result, err := e.execute(request)
	if err != nil {
		if errors.IsFatal(err) {
			e.log.Error().Err(err).Str("url", request.URL).Msg("Fatal error, aborting run")
			abort(err)
			return
		}
		e.log.Warn().Err(err).Str("url", request.URL).Msg("Request failed")
		return
	}
	if result == nil {
		return
	}

	for _, followUp := range result.Requests {
		pending.Add(1)
		if !q.push(followUp) {
			pending.Add(-1)
		}
	}
	for _, record := range result.Records {
		emit(record)
	}
}

// execute fetches the page and hands the parsed document to the callback
func (e *Engine) execute(request *scraper.Request) (*scraper.Result, error) {
	body, err := e.fetchWithRetry(request)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.Parse("", "failed to parse HTML from "+request.URL, err)
	}

	return request.Callback(&scraper.Response{
		URL:  request.URL,
		Doc:  doc,
		Form: request.Form,
	})
}
