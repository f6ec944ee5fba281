package scraper

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Request is a unit of work emitted by a spider and executed by the engine.
// The core never performs network I/O itself; waiting for the next page or
// the next date window is expressed as emitting one of these.
type Request struct {
	Method   string
	URL      string
	Form     url.Values // nil for plain GET requests
	Callback Callback
}

// Response carries a fetched, UTF-8 decoded page back into a parse step.
type Response struct {
	URL  string
	Doc  *goquery.Document
	Form url.Values // the form that produced this response, nil for GET
}

// Result is everything a single parse step produced: follow-up requests for
// the engine and finished records for the sinks.
type Result struct {
	Requests []*Request
	Records  []Record
}

// Callback processes one response. Returned errors are fatal to the run;
// recoverable problems go through the Reporter instead.
type Callback func(*Response) (*Result, error)

// Record is one normalized portal record. Every record carries its own
// provenance: the URL of the page that produced it and the UTC wall-clock
// time of processing.
type Record interface {
	Kind() string
	Source() string
	Retrieved() time.Time
}

// Spider enumerates the fetch targets for one portal.
type Spider interface {
	Name() string
	StartRequests(today time.Time) ([]*Request, error)
}

// Reporter receives the recoverable problems (shape drift, bad values,
// unsupported cases) found while parsing. The caller decides how to surface
// them; the core only reports.
type Reporter interface {
	Warn(err error)
}

type nopReporter struct{}

func (nopReporter) Warn(error) {}

// NopReporter discards all warnings.
var NopReporter Reporter = nopReporter{}

// BidEvent is one row of a bid's published history.
type BidEvent struct {
	PublishedAt time.Time `json:"published_at"`
	Event       string    `json:"event"`
	URL         string    `json:"url"`
}

// Bid is one procurement process collected from the city hall bids portal.
type Bid struct {
	CrawledAt    time.Time  `json:"crawled_at"`
	CrawledFrom  string     `json:"crawled_from"`
	PublicAgency string     `json:"public_agency"`
	Month        int        `json:"month"`
	Year         int        `json:"year"`
	Description  string     `json:"description"`
	History      []BidEvent `json:"history"`
	Codes        string     `json:"codes"`
	Modality     Modality   `json:"modality"`
	SessionAt    time.Time  `json:"session_at"`
	Files        []string   `json:"files,omitempty"`
}

func (b Bid) Kind() string         { return "bid" }
func (b Bid) Source() string       { return b.CrawledFrom }
func (b Bid) Retrieved() time.Time { return b.CrawledAt }

// Contract is one contract collected from the transparency portal.
type Contract struct {
	CrawledAt          time.Time `json:"crawled_at"`
	CrawledFrom        string    `json:"crawled_from"`
	ContractID         string    `json:"contract_id"`
	StartsAt           string    `json:"starts_at"`
	Summary            string    `json:"summary"`
	ContractorDocument string    `json:"contractor_document"`
	ContractorName     string    `json:"contractor_name"`
	Value              string    `json:"value"`
	EndsAt             string    `json:"ends_at"`
	Files              []string  `json:"files,omitempty"`
}

func (c Contract) Kind() string         { return "contract" }
func (c Contract) Source() string       { return c.CrawledFrom }
func (c Contract) Retrieved() time.Time { return c.CrawledAt }

// Payment is one expense record, shared by the payments and COVID-19
// expenses portals. Monetary values stay as extracted text; numeric
// interpretation belongs to downstream consumers.
type Payment struct {
	CrawledAt       time.Time `json:"crawled_at"`
	CrawledFrom     string    `json:"crawled_from"`
	PublishedAt     string    `json:"published_at"`
	Phase           string    `json:"phase"`
	CompanyOrPerson string    `json:"company_or_person"`
	Value           string    `json:"value"`
	Number          string    `json:"number"`
	Document        string    `json:"document"`
	Date            string    `json:"date"`
	ProcessNumber   string    `json:"process_number"`
	Summary         string    `json:"summary"`
	Group           string    `json:"group"`
	Action          string    `json:"action"`
	Function        string    `json:"function"`
	Subfunction     string    `json:"subfunction"`
	TypeOfProcess   string    `json:"type_of_process"`
	Resource        string    `json:"resource"`
}

func (p Payment) Kind() string         { return "payment" }
func (p Payment) Source() string       { return p.CrawledFrom }
func (p Payment) Retrieved() time.Time { return p.CrawledAt }

// CloneForm deep-copies a form so page and window requests never share
// mutable state.
func CloneForm(form url.Values) url.Values {
	clone := make(url.Values, len(form))
	for key, values := range form {
		clone[key] = append([]string(nil), values...)
	}
	return clone
}
