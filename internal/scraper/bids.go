package scraper

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

const (
	bidsSpiderName = "cityhall_bids"
	bidsSiteRoot   = "http://www.feiradesantana.ba.gov.br"

	// BidsURL is the index page listing one link per historical month.
	BidsURL = bidsSiteRoot + "/seadm/licitacoes.asp"
)

// Month-page selectors. The portal nests everything in positional table
// cells, so the selectors mirror that structure verbatim; any drift here is
// reported as a shape warning by the zip step.
const (
	selBidModalities   = "tr > td:first-child > table > tbody > tr > td"
	selBidDescriptions = "table > tbody > tr:nth-child(2) > td > table > tbody > tr:nth-child(6) > td > table > tbody > tr > td:nth-child(2) > table:nth-of-type(1)"
	selBidHistory      = "table > tbody > tr:nth-child(2) > td > table > tbody > tr:nth-child(6) > td > table > tbody > tr > td:nth-child(2) > table:nth-of-type(2)"
	selBidSessionDates = "tr > td:nth-child(3) > table > tbody > tr > td"
	selBidIndexLinks   = "table tbody tr td:first-child div a"
)

// bidPageURL identifies a month page and carries the agency and month/year
// the page's records belong to.
var bidPageURL = regexp.MustCompile(`licitacoes_pm\.asp[?&]cat=(\w+)&dt=(\d+-\d+)`)

// BidsSpider collects procurement processes from the city hall bids portal.
// The portal is link-based: the index lists every month since inception and
// the month gate filters the links down to the configured span.
type BidsSpider struct {
	url   string
	start time.Time
	rep   Reporter
	now   func() time.Time
}

// NewBidsSpider creates a bids spider for the given portal configuration.
func NewBidsSpider(cfg PortalConfig, rep Reporter) *BidsSpider {
	return &BidsSpider{
		url:   cfg.URL,
		start: cfg.StartDate,
		rep:   rep,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Name implements Spider.
func (s *BidsSpider) Name() string { return bidsSpiderName }

// StartRequests implements Spider. The bids portal has no date-windowed
// query; everything starts from the month index.
func (s *BidsSpider) StartRequests(time.Time) ([]*Request, error) {
	return []*Request{{Method: http.MethodGet, URL: s.url, Callback: s.parseIndex}}, nil
}

// parseIndex walks the month links and follows those the gate admits. A
// gate error aborts the run: the portal's addressing scheme changed.
func (s *BidsSpider) parseIndex(resp *Response) (*Result, error) {
	gate := MonthGate{Spider: s.Name(), Start: s.start}

	var requests []*Request
	var fatal error
	resp.Doc.Find(selBidIndexLinks).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := s.monthURL(strings.TrimSpace(href))
		visit, err := gate.ShouldVisit(target)
		if err != nil {
			fatal = err
			return false
		}
		if visit {
			requests = append(requests, &Request{Method: http.MethodGet, URL: target, Callback: s.parseMonth})
		}
		return true
	})
	if fatal != nil {
		return nil, fatal
	}
	return &Result{Requests: requests}, nil
}

// monthURL resolves the index's inconsistent relative links. Most years
// link relative to /seadm/, but a few (2017 and 2018) link straight to
// servicos.asp under the site root.
func (s *BidsSpider) monthURL(href string) string {
	if strings.Contains(href, bidsSiteRoot) {
		return href
	}
	if strings.HasPrefix(href, "servicos.asp") {
		return bidsSiteRoot + "/" + href
	}
	return bidsSiteRoot + "/seadm/" + href
}

// parseMonth extracts the month page's four parallel sequences and zips
// them index-wise into bid records. A length mismatch means the page shape
// drifted; the shortest intersection is still processed.
func (s *BidsSpider) parseMonth(resp *Response) (*Result, error) {
	match := bidPageURL.FindStringSubmatch(resp.URL)
	if match == nil {
		return nil, errors.Fatal(s.Name(), fmt.Sprintf("month page URL %q carries no cat/dt parameters", resp.URL), nil)
	}
	agency := strings.ToUpper(match[1])
	monthYear := strings.SplitN(match[2], "-", 2)
	month, _ := strconv.Atoi(monthYear[0])
	year, _ := strconv.Atoi(monthYear[1])

	modalities := s.parseModalities(resp.Doc)
	descriptions := s.parseDescriptions(resp.Doc)
	histories := s.parseHistories(resp.Doc)
	sessions := s.parseSessionDates(resp.Doc)

	count := len(modalities)
	for _, length := range []int{len(descriptions), len(histories), len(sessions)} {
		if length < count {
			count = length
		}
	}
	if count != len(modalities) || count != len(descriptions) || count != len(histories) || count != len(sessions) {
		s.rep.Warn(errors.Shape(s.Name(), fmt.Sprintf(
			"mismatched field counts on %s: %d modalities, %d descriptions, %d histories, %d dates",
			resp.URL, len(modalities), len(descriptions), len(histories), len(sessions))))
	}

	retrievedAt := s.now()
	var records []Record
	for i := 0; i < count; i++ {
		sessionAt, err := ParseDate(s.Name(), sessions[i])
		if err != nil {
			s.rep.Warn(err)
			continue
		}
		bid := Bid{
			CrawledAt:    retrievedAt,
			CrawledFrom:  resp.URL,
			PublicAgency: agency,
			Month:        month,
			Year:         year,
			Description:  descriptions[i].text,
			History:      histories[i],
			Codes:        modalities[i].codes,
			Modality:     modalities[i].modality,
			SessionAt:    sessionAt,
		}
		if descriptions[i].documentURL != "" {
			bid.Files = []string{descriptions[i].documentURL}
		}
		records = append(records, bid)
	}
	return &Result{Records: records}, nil
}

type bidModality struct {
	codes    string
	modality Modality
}

func (s *BidsSpider) parseModalities(doc *goquery.Document) []bidModality {
	var modalities []bidModality
	for _, text := range OwnTextNodes(doc.Find(selBidModalities)) {
		// the cell holds the modality title and its codes split by a line
		// break; the HTML parser may have normalized the CRLF already
		codes := strings.ReplaceAll(text, "\r\n", "\n")
		codes = strings.ReplaceAll(codes, "\n", " / ")
		modalities = append(modalities, bidModality{codes: codes, modality: ClassifyModality(codes)})
	}
	return modalities
}

type bidDescription struct {
	text        string
	documentURL string
}

func (s *BidsSpider) parseDescriptions(doc *goquery.Document) []bidDescription {
	var descriptions []bidDescription
	doc.Find(selBidDescriptions).Each(func(_ int, table *goquery.Selection) {
		text := JoinedText(table)
		if text == "Objeto" {
			// header row, not a record
			return
		}
		descriptions = append(descriptions, bidDescription{
			text:        text,
			documentURL: DocumentURL(s.Name(), table, s.rep),
		})
	})
	return descriptions
}

func (s *BidsSpider) parseHistories(doc *goquery.Document) [][]BidEvent {
	var histories [][]BidEvent
	doc.Find(selBidHistory).Each(func(_ int, table *goquery.Selection) {
		events := []BidEvent{}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			dateText := strings.TrimSpace(row.Find("td:nth-child(2)").First().Text())
			event := strings.TrimSpace(row.Find("td:nth-child(3) div").First().Text())
			if dateText == "" || event == "" {
				return
			}
			publishedAt, err := ParseDate(s.Name(), dateText)
			if err != nil {
				s.rep.Warn(err)
				return
			}
			href, _ := row.Find("td:nth-child(4) div a").First().Attr("href")
			events = append(events, BidEvent{
				PublishedAt: publishedAt,
				Event:       Capitalize(event),
				URL:         href,
			})
		})
		histories = append(histories, events)
	})
	return histories
}

// parseSessionDates drops the leading marker rune each date cell carries
// before the actual date text. A marker-only cell still takes a slot as an
// empty entry; keeping the slot is what holds the four sequences aligned,
// so a broken date fails only its own record.
func (s *BidsSpider) parseSessionDates(doc *goquery.Document) []string {
	var dates []string
	for _, text := range OwnTextNodes(doc.Find(selBidSessionDates)) {
		chars := []rune(text)
		dates = append(dates, string(chars[1:]))
	}
	return dates
}
