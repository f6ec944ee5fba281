package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies a scrape error by how the pipeline must react to it.
type Kind string

const (
	// KindShape marks a page whose structure deviates from the expected
	// layout (missing pagination widget, mismatched field counts, odd
	// label/value sequences). Processing continues with best-effort output.
	KindShape Kind = "shape"
	// KindValue marks a single unparsable field (date, contract id, URL).
	// The field is dropped or the record skipped; the page survives.
	KindValue Kind = "value"
	// KindUnsupported marks a case the system intentionally does not
	// handle, such as multiple document URLs on one record.
	KindUnsupported Kind = "unsupported"
	// KindFatal marks a change in the portal's addressing scheme. The run
	// must stop rather than silently skip content.
	KindFatal Kind = "fatal"
	// KindNetwork represents transport failures.
	KindNetwork Kind = "network"
	// KindRateLimit represents a host asking us to back off. Not retried;
	// the cache block key covers the backoff window.
	KindRateLimit Kind = "rate_limit"
	// KindParse represents HTML parsing failures.
	KindParse Kind = "parse"
	// KindConfig represents configuration errors.
	KindConfig Kind = "config"
)

// ScrapeError is the error type carried through the scraping pipeline.
type ScrapeError struct {
	Kind    Kind
	Spider  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Kind, e.Spider, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Spider, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the failed operation may be reissued.
func (e *ScrapeError) IsRetryable() bool {
	return e.Kind == KindNetwork
}

// New creates a new ScrapeError
func New(kind Kind, spider, message string, err error) *ScrapeError {
	return &ScrapeError{
		Kind:    kind,
		Spider:  spider,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// Shape creates a new shape error
func Shape(spider, message string) *ScrapeError {
	return New(KindShape, spider, message, nil)
}

// Value creates a new value error
func Value(spider, message string, err error) *ScrapeError {
	return New(KindValue, spider, message, err)
}

// Unsupported creates a new unsupported-case error
func Unsupported(spider, message string) *ScrapeError {
	return New(KindUnsupported, spider, message, nil)
}

// Fatal creates a new fatal error
func Fatal(spider, message string, err error) *ScrapeError {
	return New(KindFatal, spider, message, err)
}

// Network creates a new network error
func Network(spider, message string, err error) *ScrapeError {
	return New(KindNetwork, spider, message, err)
}

// RateLimit creates a new rate limit error
func RateLimit(spider, message string) *ScrapeError {
	return New(KindRateLimit, spider, message, nil)
}

// Parse creates a new parse error
func Parse(spider, message string, err error) *ScrapeError {
	return New(KindParse, spider, message, err)
}

// Config creates a new configuration error
func Config(message string, err error) *ScrapeError {
	return New(KindConfig, "", message, err)
}

// IsFatal reports whether err carries a fatal scrape error anywhere in its
// chain.
func IsFatal(err error) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Kind == KindFatal
	}
	return false
}
