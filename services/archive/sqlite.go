package archive

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/beatrizuezu/maria-quiteria/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	spider       TEXT NOT NULL,
	record_type  TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	retrieved_at TIMESTAMP NOT NULL,
	payload      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_run_spider ON records (run_id, spider);
`

// SQLiteArchive implements Archive on a local SQLite database
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (or creates) the database at path and prepares the
// schema. WAL mode keeps concurrent readers out of the writers' way.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	logger.ForArchive().Debug().Str("path", path).Msg("Archive ready")
	return &SQLiteArchive{db: db}, nil
}

// Save persists one record
func (a *SQLiteArchive) Save(row Row) error {
	_, err := a.db.Exec(
		`INSERT INTO records (id, run_id, spider, record_type, source_url, retrieved_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.RunID, row.Spider, row.RecordType, row.SourceURL, row.RetrievedAt, row.Payload,
	)
	return err
}

// CountBySpider returns how many records a spider archived in a run. An
// empty runID counts across all runs.
func (a *SQLiteArchive) CountBySpider(runID, spider string) (int, error) {
	var count int
	var err error
	if runID == "" {
		err = a.db.QueryRow(`SELECT COUNT(*) FROM records WHERE spider = ?`, spider).Scan(&count)
	} else {
		err = a.db.QueryRow(`SELECT COUNT(*) FROM records WHERE run_id = ? AND spider = ?`, runID, spider).Scan(&count)
	}
	return count, err
}

// Payloads returns the serialized records a spider archived in a run, in
// insertion order. An empty runID spans all runs.
func (a *SQLiteArchive) Payloads(runID, spider string) ([][]byte, error) {
	query := `SELECT payload FROM records WHERE spider = ? ORDER BY rowid`
	args := []interface{}{spider}
	if runID != "" {
		query = `SELECT payload FROM records WHERE run_id = ? AND spider = ? ORDER BY rowid`
		args = []interface{}{runID, spider}
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, rows.Err()
}

// Close closes the database
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
