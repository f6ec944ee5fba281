package scraper

import (
	"net/http"
	"net/url"
	"time"
)

const (
	covidSpiderName = "cityhall_covid19expenses"

	// COVID19ExpensesURL answers the pandemic expenses search form.
	COVID19ExpensesURL = transparencyBaseURL + "/controller/despesaCovid.php"
)

// covidPhases are the expense phases the portal tracks: payment,
// commitment and settlement.
var covidPhases = []string{"PAG", "EMP", "LIQ"}

func covidBaseForm() url.Values {
	return url.Values{
		"POST_PARAMETRO": {"PesquisaDespesasCovid"},
		"POST_DATA":      {""},
		"POST_NMCREDOR":  {""},
		"POST_CPFCNPJ":   {""},
		"POST_BEM":       {""},
	}
}

// COVID19ExpensesSpider collects pandemic-related expenses. The portal is
// not date-windowed: one query per expense phase covers its whole history.
// Records share the payment shape.
type COVID19ExpensesSpider struct {
	url string
	rep Reporter
	now func() time.Time
}

// NewCOVID19ExpensesSpider creates a covid expenses spider for the given
// portal configuration.
func NewCOVID19ExpensesSpider(cfg PortalConfig, rep Reporter) *COVID19ExpensesSpider {
	return &COVID19ExpensesSpider{
		url: cfg.URL,
		rep: rep,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Name implements Spider.
func (s *COVID19ExpensesSpider) Name() string { return covidSpiderName }

// StartRequests implements Spider: one form POST per expense phase, each
// carrying its own form copy so the phase value never leaks between
// requests.
func (s *COVID19ExpensesSpider) StartRequests(time.Time) ([]*Request, error) {
	requests := make([]*Request, 0, len(covidPhases))
	for _, phase := range covidPhases {
		form := covidBaseForm()
		form.Set("POST_FASE", phase)
		requests = append(requests, &Request{
			Method:   http.MethodPost,
			URL:      s.url,
			Form:     form,
			Callback: s.parse,
		})
	}
	return requests, nil
}

func (s *COVID19ExpensesSpider) parse(resp *Response) (*Result, error) {
	requests := PageRequests(s.Name(), s.url, resp, s.parsePage, s.rep)
	if requests == nil {
		return s.parsePage(resp)
	}
	return &Result{Requests: requests}, nil
}

func (s *COVID19ExpensesSpider) parsePage(resp *Response) (*Result, error) {
	return parsePaymentPage(s.Name(), resp, s.rep, s.now)
}
