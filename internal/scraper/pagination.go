package scraper

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

const paginationSelector = "div.pagination li a"

// PageQuery is one page of a fixed query against a paginated portal.
type PageQuery struct {
	Form  map[string][]string
	Index int
	Count int
}

// PageRequests expands the first response to a query into one request per
// result page. The portal's pagination widget lists page numbers followed by
// a trailing "next" navigation label, so the page count is the second-to-last
// entry, never the last. When the widget is absent or unparsable the query is
// treated as single-page and nil is returned: the triggering response itself
// is the only page.
func PageRequests(spider, target string, resp *Response, callback Callback, rep Reporter) []*Request {
	entries := resp.Doc.Find(paginationSelector).Map(func(_ int, s *goquery.Selection) string {
		return strings.TrimSpace(s.Text())
	})
	if len(entries) == 0 {
		return nil
	}
	if len(entries) < 2 {
		rep.Warn(errors.Shape(spider, fmt.Sprintf("pagination control has %d entries, want at least 2", len(entries))))
		return nil
	}

	lastPage, err := strconv.Atoi(entries[len(entries)-2])
	if err != nil || lastPage < 1 {
		rep.Warn(errors.Shape(spider, fmt.Sprintf("pagination entry %q is not a page count", entries[len(entries)-2])))
		return nil
	}

	requests := make([]*Request, 0, lastPage)
	for page := 1; page <= lastPage; page++ {
		form := CloneForm(resp.Form)
		form.Set("POST_PAGINA", strconv.Itoa(page))
		form.Set("POST_PAGINAS", strconv.Itoa(lastPage))
		requests = append(requests, &Request{
			Method:   http.MethodPost,
			URL:      target,
			Form:     form,
			Callback: callback,
		})
	}
	return requests
}
