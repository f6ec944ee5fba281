package engine

import (
	"bytes"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/beatrizuezu/maria-quiteria/internal/scraper"
	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
}

// blockKey is the cache key marking a host as rate limited
func blockKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "block:" + rawURL
	}
	return "block:" + parsed.Host
}

// fetch issues a single request and returns the response body decoded to
// UTF-8. The portals serve ISO-8859-1; feeding that to the parser untouched
// is where the mojibake in older captures came from.
func (e *Engine) fetch(request *scraper.Request) (io.Reader, error) {
	if e.cache != nil {
		if _, err := e.cache.Get(blockKey(request.URL)); err == nil {
			return nil, errors.RateLimit("", fmt.Sprintf("host for %s is rate limited, skipping", request.URL))
		}
	}

	var httpReq *http.Request
	var err error
	if request.Method == http.MethodPost && request.Form != nil {
		httpReq, err = http.NewRequest(http.MethodPost, request.URL, strings.NewReader(request.Form.Encode()))
		if httpReq != nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		httpReq, err = http.NewRequest(http.MethodGet, request.URL, nil)
	}
	if err != nil {
		return nil, errors.Network("", fmt.Sprintf("failed to create request for %s", request.URL), err)
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	httpReq.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Pragma", "no-cache")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, errors.Network("", fmt.Sprintf("failed to fetch %s", request.URL), err)
	}
	defer resp.Body.Close()

	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		if e.cache != nil {
			e.cache.Set(blockKey(request.URL), []byte(fmt.Sprintf("%d", e.blockTime/time.Second)), e.blockTime)
		}
		return nil, errors.RateLimit("", fmt.Sprintf("rate limited by %s; retry after %s", request.URL, resp.Header.Get("Retry-After")))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Network("", fmt.Sprintf("fetch %s unexpected status code: %d", request.URL, resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Network("", fmt.Sprintf("failed to read response body from %s", request.URL), err)
	}

	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if strings.EqualFold(name, "utf-8") {
		return bytes.NewReader(bodyBytes), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, errors.Network("", fmt.Sprintf("failed to decode response body from %s", request.URL), err)
	}
	return &buf, nil
}

// fetchWithRetry retries transient failures with a fixed delay. Rate-limit
// blocks are not retried; the block key already covers the backoff.
func (e *Engine) fetchWithRetry(request *scraper.Request) (io.Reader, error) {
	var lastErr error
	attempts := e.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(e.retryDelay)
		}
		body, err := e.fetch(request)
		if err == nil {
			return body, nil
		}
		lastErr = err

		se, ok := err.(*errors.ScrapeError)
		if !ok || !se.IsRetryable() {
			return nil, err
		}
	}
	return nil, lastErr
}
