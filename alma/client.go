// Package alma is a minimal client for the Ex Libris Alma bibliographic
// records API, covering exactly what batch curation needs: GET and PUT of a
// single bib by MMS ID, and chunked batch GET by MMS ID list.
package alma

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethgrid/pester"
)

// Regional API hosts, see
// https://developers.exlibrisgroup.com/alma/apis/#calling
const (
	RegionNA = "North America"
	RegionEU = "EU"
	RegionAP = "Asia Pacific"
)

// BaseURL maps a region name to its API host. Unknown regions fall back to
// North America, matching the original tool's behavior.
func BaseURL(region string) string {
	switch region {
	case RegionEU:
		return "https://api-eu.hosted.exlibrisgroup.com"
	case RegionAP:
		return "https://api-ap.hosted.exlibrisgroup.com"
	default:
		return "https://api-na.hosted.exlibrisgroup.com"
	}
}

// batchChunkSize is the maximum number of MMS IDs per batch GET; the API
// caps the mms_id parameter at 100 ids.
const batchChunkSize = 100

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the Alma bibs API. The zero retry/timeout configuration
// comes from DefaultHTTPClient; Alma rate-limits aggressively, so retries on
// 429 with backoff are on by default.
type Client struct {
	BaseURL string
	APIKey  string
	Client  Doer
}

// DefaultHTTPClient returns a retrying HTTP client tuned for the Alma API.
func DefaultHTTPClient(maxRetries int, timeout time.Duration) *pester.Client {
	c := pester.New()
	c.Backoff = pester.ExponentialBackoff
	c.MaxRetries = maxRetries
	c.RetryOnHTTP429 = true
	c.Timeout = timeout
	return c
}

// New returns a client for the given API host and key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  DefaultHTTPClient(3, 60*time.Second),
	}
}

// FetchError is a failed GET of a bib record.
type FetchError struct {
	MMSID      string
	StatusCode int
	Message    string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d: %s", e.MMSID, e.StatusCode, e.Message)
}

// WriteError is a failed PUT of a bib record. Body keeps the raw response
// for diagnostics; Alma validator messages only show up there.
type WriteError struct {
	MMSID      string
	StatusCode int
	Body       string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: status %d: %s", e.MMSID, e.StatusCode, clip(e.Body))
}

// webServiceResult is the Alma API error envelope.
type webServiceResult struct {
	Errors []struct {
		Code    string `xml:"errorCode"`
		Message string `xml:"errorMessage"`
	} `xml:"errorList>error"`
}

// errorMessage extracts a readable message from an Alma error response
// body, falling back to the raw body.
func errorMessage(body []byte) string {
	var result webServiceResult
	if err := xml.Unmarshal(body, &result); err == nil && len(result.Errors) > 0 {
		var parts []string
		for _, e := range result.Errors {
			parts = append(parts, fmt.Sprintf("%s: %s", e.Code, e.Message))
		}
		return strings.Join(parts, "; ")
	}
	return clip(string(body))
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:197] + "..."
	}
	return s
}

func (c *Client) bibURL(mmsID string) string {
	v := url.Values{}
	v.Set("view", "full")
	v.Set("expand", "None")
	v.Set("apikey", c.APIKey)
	return fmt.Sprintf("%s/almaws/v1/bibs/%s?%s", c.BaseURL, url.PathEscape(mmsID), v.Encode())
}

// Fetch retrieves the full raw XML of one bib record.
func (c *Client) Fetch(ctx context.Context, mmsID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.bibURL(mmsID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", mmsID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", mmsID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			MMSID:      mmsID,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}
	return body, nil
}

// Write sends the updated record XML back. Alma validates the payload
// strictly; normalize before calling this.
func (c *Client) Write(ctx context.Context, mmsID string, record []byte) error {
	req, err := http.NewRequestWithContext(ctx, "PUT", c.bibURL(mmsID), bytes.NewReader(record))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("Content-Type", "application/xml")
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("write %s: %w", mmsID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("write %s: read body: %w", mmsID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &WriteError{
			MMSID:      mmsID,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return nil
}
