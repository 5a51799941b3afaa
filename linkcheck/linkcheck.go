// Package linkcheck validates persistent-identifier links (handles, PURLs)
// extracted from record metadata. A link is checked with HEAD first; since
// some handle resolvers reject HEAD outright, a failed or disallowed HEAD
// falls back to GET.
package linkcheck

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
)

// Result is the check outcome for one URL.
type Result struct {
	URL        string
	StatusCode int
	OK         bool
	Err        string
}

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Checker validates links sequentially with a bounded per-request timeout.
type Checker struct {
	Client Doer
}

// New returns a checker with a retrying HTTP client.
func New(maxRetries int, timeout time.Duration) *Checker {
	c := pester.New()
	c.Backoff = pester.ExponentialBackoff
	c.MaxRetries = maxRetries
	c.Timeout = timeout
	return &Checker{Client: c}
}

// Check validates a single URL.
func (c *Checker) Check(ctx context.Context, url string) Result {
	status, err := c.request(ctx, "HEAD", url)
	if err != nil || headUnsupported(status) {
		status, err = c.request(ctx, "GET", url)
	}
	res := Result{URL: url, StatusCode: status}
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.OK = status >= 200 && status < 400
	return res
}

func headUnsupported(status int) bool {
	return status == http.StatusMethodNotAllowed || status == http.StatusForbidden
}

func (c *Checker) request(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain so keep-alive connections are reused across checks.
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// CheckAll validates all URLs in order, reporting progress per URL.
func (c *Checker) CheckAll(ctx context.Context, urls []string, onProgress func(done, total int)) []Result {
	results := make([]Result, 0, len(urls))
	for i, u := range urls {
		select {
		case <-ctx.Done():
			log.WithField("done", i).Warn("link check canceled")
			return results
		default:
		}
		res := c.Check(ctx, u)
		if !res.OK {
			log.WithFields(log.Fields{
				"url":    res.URL,
				"status": res.StatusCode,
				"error":  res.Err,
			}).Warn("broken link")
		}
		results = append(results, res)
		if onProgress != nil {
			onProgress(i+1, len(urls))
		}
	}
	return results
}

// WriteCSV writes results sorted by status then URL, so broken links
// cluster at the top of the spreadsheet.
func WriteCSV(w io.Writer, results []Result) error {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OK != sorted[j].OK {
			return !sorted[i].OK
		}
		if sorted[i].StatusCode != sorted[j].StatusCode {
			return sorted[i].StatusCode < sorted[j].StatusCode
		}
		return sorted[i].URL < sorted[j].URL
	})
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"url", "status", "ok", "error"}); err != nil {
		return err
	}
	for _, r := range sorted {
		ok := "no"
		if r.OK {
			ok = "yes"
		}
		line := []string{r.URL, fmt.Sprintf("%d", r.StatusCode), ok, r.Err}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
