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
	paymentsSpiderName = "cityhall_payments"

	// PaymentsURL answers the transparency portal's expense search form.
	PaymentsURL = transparencyBaseURL + "/controller/despesa.php"
)

func paymentsBaseForm() url.Values {
	return url.Values{
		"POST_PARAMETRO": {"PesquisaDespesas"},
		"POST_FASE":      {""},
		"POST_UNIDADE":   {""},
		"POST_DATA":      {""},
		"POST_NMCREDOR":  {""},
		"POST_CPFCNPJ":   {""},
	}
}

// PaymentsSpider collects payments from the transparency portal, one daily
// window at a time.
type PaymentsSpider struct {
	url   string
	start time.Time
	rep   Reporter
	now   func() time.Time
}

// NewPaymentsSpider creates a payments spider for the given portal
// configuration.
func NewPaymentsSpider(cfg PortalConfig, rep Reporter) *PaymentsSpider {
	return &PaymentsSpider{
		url:   cfg.URL,
		start: cfg.StartDate,
		rep:   rep,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Name implements Spider.
func (s *PaymentsSpider) Name() string { return paymentsSpiderName }

// StartRequests implements Spider: one form POST per daily window from the
// configured start date up to today.
func (s *PaymentsSpider) StartRequests(today time.Time) ([]*Request, error) {
	windows := DailyWindows(s.start, today)
	requests := make([]*Request, 0, len(windows))
	for _, window := range windows {
		form := paymentsBaseForm()
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

func (s *PaymentsSpider) parse(resp *Response) (*Result, error) {
	requests := PageRequests(s.Name(), s.url, resp, s.parsePage, s.rep)
	if requests == nil {
		return s.parsePage(resp)
	}
	return &Result{Requests: requests}, nil
}

func (s *PaymentsSpider) parsePage(resp *Response) (*Result, error) {
	return parsePaymentPage(s.Name(), resp, s.rep, s.now)
}

type paymentHeadline struct {
	publishedAt     string
	phase           string
	companyOrPerson string
	value           string
}

func parsePaymentHeadline(spider string, row *goquery.Selection) (paymentHeadline, error) {
	texts := TextNodes(row.Find("td"))
	if len(texts) < 4 {
		return paymentHeadline{}, errors.Shape(spider, fmt.Sprintf("payment headline has %d cells, want 4", len(texts)))
	}
	return paymentHeadline{
		publishedAt:     texts[0],
		phase:           texts[1],
		companyOrPerson: texts[2],
		value:           texts[3],
	}, nil
}

// parsePaymentPage zips accordion headlines against their detail blocks.
// The headline is positional; the detail block is a strict label/value
// sequence consumed in pairs. A record whose pairs cannot be mapped is
// skipped; the rest of the page's records stand.
func parsePaymentPage(spider string, resp *Response, rep Reporter, now func() time.Time) (*Result, error) {
	headlines := resp.Doc.Find("#editable-sample tr.accordion-toggle")
	details := resp.Doc.Find("#editable-sample div.accordion-inner")

	count := headlines.Length()
	if details.Length() < count {
		count = details.Length()
	}
	if headlines.Length() != details.Length() {
		rep.Warn(errors.Shape(spider, fmt.Sprintf(
			"mismatched row counts on %s: %d headlines, %d detail blocks",
			resp.URL, headlines.Length(), details.Length())))
	}

	retrievedAt := now()
	var records []Record
	for i := 0; i < count; i++ {
		headline, err := parsePaymentHeadline(spider, headlines.Eq(i))
		if err != nil {
			rep.Warn(err)
			continue
		}
		fields, err := PopLabelPairs(spider, TextNodes(details.Eq(i).Find("td")))
		if err != nil {
			rep.Warn(err)
			continue
		}
		records = append(records, Payment{
			CrawledAt:       retrievedAt,
			CrawledFrom:     resp.URL,
			PublishedAt:     headline.publishedAt,
			Phase:           headline.phase,
			CompanyOrPerson: headline.companyOrPerson,
			Value:           headline.value,
			Number:          fields[FieldNumber],
			Document:        fields[FieldDocument],
			Date:            fields[FieldDate],
			ProcessNumber:   fields[FieldProcessNumber],
			Summary:         fields[FieldSummary],
			Group:           fields[FieldGroup],
			Action:          fields[FieldAction],
			Function:        fields[FieldFunction],
			Subfunction:     fields[FieldSubfunction],
			TypeOfProcess:   fields[FieldTypeOfProcess],
			Resource:        fields[FieldResource],
		})
	}
	return &Result{Records: records}, nil
}
