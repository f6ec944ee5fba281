package scraper

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

const (
	contractsSpiderName = "cityhall_contracts"
	transparencyBaseURL = "http://www.transparencia.feiradesantana.ba.gov.br"

	// ContractsURL answers the transparency portal's contract search form.
	ContractsURL = transparencyBaseURL + "/controller/contrato.php"
)

// contractsBaseForm returns a fresh copy of the portal's search form. Every
// request builds its own values from this base; forms are never shared or
// mutated across requests.
func contractsBaseForm() url.Values {
	return url.Values{
		"POST_PARAMETRO":  {"PesquisaContratos"},
		"POST_DATA":       {""},
		"POST_NMCREDOR":   {""},
		"POST_CPFCNPJ":    {""},
		"POST_NUCONTRATO": {""},
	}
}

// ContractsSpider collects contracts from the transparency portal, one
// daily window at a time.
type ContractsSpider struct {
	url   string
	start time.Time
	rep   Reporter
	now   func() time.Time
}

// NewContractsSpider creates a contracts spider for the given portal
// configuration.
func NewContractsSpider(cfg PortalConfig, rep Reporter) *ContractsSpider {
	return &ContractsSpider{
		url:   cfg.URL,
		start: cfg.StartDate,
		rep:   rep,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Name implements Spider.
func (s *ContractsSpider) Name() string { return contractsSpiderName }

// StartRequests implements Spider: one form POST per daily window from the
// configured start date up to today.
func (s *ContractsSpider) StartRequests(today time.Time) ([]*Request, error) {
	windows := DailyWindows(s.start, today)
	requests := make([]*Request, 0, len(windows))
	for _, window := range windows {
		form := contractsBaseForm()
		form.Set("POST_DATA", window.FormValue())
		requests = append(requests, &Request{
			Method:   http.MethodPost,
			URL:      s.url,
			Form:     form,
			Callback: s.parse,
		})
	}
	return requests, nil
}

// parse expands the window's first response into its result pages. Without
// a pagination widget the response itself is the only page.
func (s *ContractsSpider) parse(resp *Response) (*Result, error) {
	requests := PageRequests(s.Name(), s.url, resp, s.parsePage, s.rep)
	if requests == nil {
		return s.parsePage(resp)
	}
	return &Result{Requests: requests}, nil
}

// parsePage zips contract headlines against their detail rows and yields
// one contract record per pair.
func (s *ContractsSpider) parsePage(resp *Response) (*Result, error) {
	headlines := resp.Doc.Find(`tbody tr:not([class^="informacao"])`)
	details := resp.Doc.Find("tr.informacao")

	count := headlines.Length()
	if details.Length() < count {
		count = details.Length()
	}
	if headlines.Length() != details.Length() {
		s.rep.Warn(errors.Shape(s.Name(), fmt.Sprintf(
			"mismatched row counts on %s: %d headlines, %d detail rows",
			resp.URL, headlines.Length(), details.Length())))
	}

	retrievedAt := s.now()
	var records []Record
	for i := 0; i < count; i++ {
		record, err := s.parseContract(headlines.Eq(i), details.Eq(i), resp.URL, retrievedAt)
		if err != nil {
			s.rep.Warn(err)
			continue
		}
		records = append(records, record)
	}
	return &Result{Records: records}, nil
}

func (s *ContractsSpider) parseContract(headline, details *goquery.Selection, pageURL string, retrievedAt time.Time) (Contract, error) {
	texts := TextNodes(headline.Find("th"))
	if len(texts) < 2 {
		return Contract{}, errors.Shape(s.Name(), fmt.Sprintf("contract headline has %d cells, want id and start date", len(texts)))
	}

	contractID, err := IdentifyContractID(s.Name(), texts[0])
	if err != nil {
		return Contract{}, err
	}

	block, err := s.parseDetails(details)
	if err != nil {
		return Contract{}, err
	}

	contractorDocument, contractorName, err := SplitContractor(s.Name(), block.contractor)
	if err != nil {
		return Contract{}, err
	}

	contract := Contract{
		CrawledAt:          retrievedAt,
		CrawledFrom:        pageURL,
		ContractID:         contractID,
		StartsAt:           texts[1],
		Summary:            block.summary,
		ContractorDocument: contractorDocument,
		ContractorName:     contractorName,
		Value:              block.value,
		EndsAt:             block.endsAt,
	}
	if href, ok := details.Find("a.btn").First().Attr("href"); ok && href != "" {
		contract.Files = []string{transparencyBaseURL + href}
	}
	return contract, nil
}

// contractDetailLabels are the static labels interleaved with the detail
// values; they are filtered out before the positional read.
var contractDetailLabels = map[string]bool{
	"Objeto:":                 true,
	"Contratada:":             true,
	"Valor:":                  true,
	"Data Final de Contrato:": true,
	"VISUALIZAR":              true,
}

type contractDetailBlock struct {
	summary    string
	contractor string
	value      string
	endsAt     string
}

// parseDetails reads the four detail values in their fixed order. Fewer
// than four means the block's shape changed and the record cannot be
// trusted.
func (s *ContractsSpider) parseDetails(details *goquery.Selection) (contractDetailBlock, error) {
	var fields []string
	for _, text := range TextNodes(details.Find("p")) {
		if !contractDetailLabels[text] {
			fields = append(fields, text)
		}
	}
	if len(fields) < 4 {
		return contractDetailBlock{}, errors.Shape(s.Name(), fmt.Sprintf("contract detail block has %d fields, want 4", len(fields)))
	}
	return contractDetailBlock{
		summary:    fields[0],
		contractor: fields[1],
		value:      fields[2],
		endsAt:     fields[3],
	}, nil
}
