package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatrizuezu/maria-quiteria/internal/engine"
	"github.com/beatrizuezu/maria-quiteria/internal/scraper"
	"github.com/beatrizuezu/maria-quiteria/services/archive"
	"github.com/beatrizuezu/maria-quiteria/services/publisher"
)

// mockSpider emits a fixed set of records through a fake runner
type mockSpider struct {
	name     string
	records  []scraper.Record
	startErr error
}

var _ scraper.Spider = (*mockSpider)(nil)

func (m *mockSpider) Name() string { return m.name }

func (m *mockSpider) StartRequests(time.Time) ([]*scraper.Request, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return []*scraper.Request{{Method: http.MethodGet, URL: "http://example.com/" + m.name}}, nil
}

// fakeRunner short-circuits the fetch engine: instead of hitting the
// network it looks the spider up by its seed URL and emits its records.
type fakeRunner struct {
	bySeed map[string][]scraper.Record
	runErr error
}

var _ Runner = (*fakeRunner)(nil)

func (f *fakeRunner) Run(_ context.Context, seeds []*scraper.Request, emit engine.EmitFunc) error {
	for _, seed := range seeds {
		for _, record := range f.bySeed[seed.URL] {
			emit(record)
		}
	}
	return f.runErr
}

type mockPublisher struct {
	mu       sync.Mutex
	bySpider map[string][][]byte
	trimmed  int
	err      error
}

var _ publisher.Publisher = (*mockPublisher)(nil)

func newMockPublisher() *mockPublisher {
	return &mockPublisher{bySpider: make(map[string][][]byte)}
}

func (m *mockPublisher) Publish(spider string, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.bySpider[spider] = append(m.bySpider[spider], append([]byte(nil), record...))
	return nil
}

func (m *mockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockArchive struct {
	mu   sync.Mutex
	rows []archive.Row
}

var _ archive.Archive = (*mockArchive)(nil)

func (m *mockArchive) Save(row archive.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockArchive) CountBySpider(runID, spider string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.RunID == runID && row.Spider == spider {
			count++
		}
	}
	return count, nil
}

func (m *mockArchive) Payloads(runID, spider string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var payloads [][]byte
	for _, row := range m.rows {
		if row.Spider == spider && (runID == "" || row.RunID == runID) {
			payloads = append(payloads, row.Payload)
		}
	}
	return payloads, nil
}

func (m *mockArchive) Close() error { return nil }

func bidRecord(source string) scraper.Record {
	return scraper.Bid{
		CrawledAt:   time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC),
		CrawledFrom: source,
		Codes:       "PREGÃO PRESENCIAL N° 123-2019",
		Modality:    scraper.ModalityPregaoPresencial,
	}
}

func TestWorkerPublishesAndArchives(t *testing.T) {
	spider := &mockSpider{name: "cityhall_bids"}
	runner := &fakeRunner{bySeed: map[string][]scraper.Record{
		"http://example.com/cityhall_bids": {
			bidRecord("http://example.com/page1"),
			bidRecord("http://example.com/page2"),
		},
	}}
	pub := newMockPublisher()
	arch := &mockArchive{}

	w := NewWorker(context.Background(), []scraper.Spider{spider}, runner, pub, arch, time.Second, true)
	w.Start()

	require.Len(t, pub.bySpider["cityhall_bids"], 2)

	var decoded scraper.Bid
	require.NoError(t, json.Unmarshal(pub.bySpider["cityhall_bids"][0], &decoded))
	assert.Equal(t, "PREGÃO PRESENCIAL N° 123-2019", decoded.Codes)

	require.Len(t, arch.rows, 2)
	row := arch.rows[0]
	assert.NotEmpty(t, row.ID)
	assert.NotEmpty(t, row.RunID)
	assert.Equal(t, "cityhall_bids", row.Spider)
	assert.Equal(t, "bid", row.RecordType)
	assert.Equal(t, "http://example.com/page1", row.SourceURL)

	// Both records belong to the same run
	assert.Equal(t, arch.rows[0].RunID, arch.rows[1].RunID)

	assert.Equal(t, 1, pub.trimmed)
}

func TestWorkerRunsSpidersInParallelUnderOneRun(t *testing.T) {
	bids := &mockSpider{name: "cityhall_bids"}
	payments := &mockSpider{name: "cityhall_payments"}
	runner := &fakeRunner{bySeed: map[string][]scraper.Record{
		"http://example.com/cityhall_bids":     {bidRecord("http://example.com/b")},
		"http://example.com/cityhall_payments": {bidRecord("http://example.com/p")},
	}}
	pub := newMockPublisher()
	arch := &mockArchive{}

	w := NewWorker(context.Background(), []scraper.Spider{bids, payments}, runner, pub, arch, time.Second, true)
	w.Start()

	assert.Len(t, pub.bySpider["cityhall_bids"], 1)
	assert.Len(t, pub.bySpider["cityhall_payments"], 1)

	require.Len(t, arch.rows, 2)
	assert.Equal(t, arch.rows[0].RunID, arch.rows[1].RunID)
}

func TestWorkerSurvivesStartRequestFailure(t *testing.T) {
	broken := &mockSpider{name: "cityhall_contracts", startErr: errors.New("bad portal config")}
	healthy := &mockSpider{name: "cityhall_bids"}
	runner := &fakeRunner{bySeed: map[string][]scraper.Record{
		"http://example.com/cityhall_bids": {bidRecord("http://example.com/b")},
	}}
	pub := newMockPublisher()

	w := NewWorker(context.Background(), []scraper.Spider{broken, healthy}, runner, pub, &mockArchive{}, time.Second, true)
	w.Start()

	assert.Empty(t, pub.bySpider["cityhall_contracts"])
	assert.Len(t, pub.bySpider["cityhall_bids"], 1)
}

func TestWorkerCountsPublishFailures(t *testing.T) {
	spider := &mockSpider{name: "cityhall_bids"}
	runner := &fakeRunner{bySeed: map[string][]scraper.Record{
		"http://example.com/cityhall_bids": {bidRecord("http://example.com/b")},
	}}
	pub := newMockPublisher()
	pub.err = errors.New("redis unavailable")
	arch := &mockArchive{}

	w := NewWorker(context.Background(), []scraper.Spider{spider}, runner, pub, arch, time.Second, true)
	w.Start()

	// Publishing failed but the record still reaches the archive
	assert.Empty(t, pub.bySpider["cityhall_bids"])
	assert.Len(t, arch.rows, 1)
}

func TestReporterCountsWarnings(t *testing.T) {
	r := NewReporter("cityhall_bids")
	assert.EqualValues(t, 0, r.Warnings())

	r.Warn(errors.New("mismatched field counts"))
	r.Warn(errors.New("unparsable pagination widget"))
	assert.EqualValues(t, 2, r.Warnings())
}
