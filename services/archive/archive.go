package archive

import (
	"time"
)

// Row is one archived record as stored locally
type Row struct {
	ID          string
	RunID       string
	Spider      string
	RecordType  string
	SourceURL   string
	RetrievedAt time.Time
	Payload     []byte
}

// Archive keeps a local copy of every published record, so a run can be
// replayed or audited without touching the portals again.
type Archive interface {
	// Save persists one record
	Save(row Row) error

	// CountBySpider returns how many records a spider archived in a run.
	// An empty runID counts across all runs.
	CountBySpider(runID, spider string) (int, error)

	// Payloads returns the serialized records a spider archived in a run,
	// in insertion order. An empty runID spans all runs.
	Payloads(runID, spider string) ([][]byte, error)

	// Close closes the underlying store
	Close() error
}
