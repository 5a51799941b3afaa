package alma

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/grinnell-libraries/almadc/export"
)

// Bib is one record from a batch GET: the identifier plus the record's full
// raw XML, handed off to the transformation core as-is.
type Bib struct {
	MMSID string
	Raw   []byte
}

// FetchAll retrieves many records with the batch bibs endpoint, chunked to
// the API's id-list limit. Records the API silently omits (unknown ids) are
// simply missing from the result; callers needing per-id errors should
// Fetch individually.
func (c *Client) FetchAll(ctx context.Context, mmsIDs []string) ([]Bib, error) {
	var out []Bib
	for start := 0; start < len(mmsIDs); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(mmsIDs) {
			end = len(mmsIDs)
		}
		bibs, err := c.fetchChunk(ctx, mmsIDs[start:end])
		if err != nil {
			return out, err
		}
		out = append(out, bibs...)
	}
	return out, nil
}

func (c *Client) fetchChunk(ctx context.Context, mmsIDs []string) ([]Bib, error) {
	v := url.Values{}
	v.Set("mms_id", strings.Join(mmsIDs, ","))
	v.Set("view", "full")
	v.Set("expand", "None")
	v.Set("apikey", c.APIKey)
	u := fmt.Sprintf("%s/almaws/v1/bibs?%s", c.BaseURL, v.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			MMSID:      strings.Join(mmsIDs, ","),
			StatusCode: resp.StatusCode,
			Message:    "batch fetch failed",
		}
	}
	// The response wraps each record in a <bib> element; cut them out of
	// the stream instead of round-tripping the envelope through a
	// marshaler, which would disturb the inner namespaces.
	var out []Bib
	sc := export.NewScanner(resp.Body)
	for sc.Scan() {
		raw := make([]byte, len(sc.Bytes()))
		copy(raw, sc.Bytes())
		out = append(out, Bib{MMSID: export.MMSID(raw), Raw: raw})
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("batch fetch: scan response: %w", err)
	}
	return out, nil
}
