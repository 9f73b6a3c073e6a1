package httpds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// FetchFirstBytes returns at most n bytes from url. It asks for a Range but
// also caps the read locally, so servers that ignore Range are fine.
// Non-2xx responses are returned as *StatusError.
func (c *Client) FetchFirstBytes(ctx context.Context, url string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("httpds: n must be > 0")
	}
	h := make(http.Header)
	h.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))

	resp, err := c.Get(ctx, url, h)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, int64(n))); err != nil {
		return nil, fmt.Errorf("httpds: read %s: %w", url, err)
	}
	return buf.Bytes(), nil
}

// StatusError is a final non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: %s: status %d", e.URL, e.Code)
}
