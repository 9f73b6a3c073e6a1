package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"

	"salesetl/internal/datasource"
)

// Source reads an export from a URL.
type Source struct {
	client *Client
	url    string
}

// NewSource binds client to url.
func NewSource(client *Client, url string) *Source {
	return &Source{client: client, url: url}
}

// Describe implements datasource.Describer.
func (s *Source) Describe() string { return s.url }

// Open GETs the export. 404 and 410 map to datasource.ErrSourceMissing; any
// other failure to obtain a 2xx body maps to datasource.ErrSourceUnreadable.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, nil)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	if err := s.check(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// Size implements datasource.Sizer using HEAD and Content-Length.
func (s *Source) Size(ctx context.Context) (int64, error) {
	resp, err := s.client.Do(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return 0, s.classify(ctx, err)
	}
	defer resp.Body.Close()
	if err := s.check(resp); err != nil {
		return 0, err
	}
	if resp.ContentLength < 0 {
		return 0, datasource.Unreadable(s.url, errors.New("no content length"))
	}
	return resp.ContentLength, nil
}

// Peek implements datasource.Peeker with a ranged GET.
func (s *Source) Peek(ctx context.Context, n int) ([]byte, error) {
	b, err := s.client.FetchFirstBytes(ctx, s.url, n)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, statusErr(s.url, se)
		}
		return nil, s.classify(ctx, err)
	}
	return b, nil
}

func (s *Source) check(resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	return statusErr(s.url, &StatusError{URL: s.url, Code: resp.StatusCode})
}

func (s *Source) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return datasource.Unreadable(s.url, err)
}

func statusErr(url string, se *StatusError) error {
	if se.Code == http.StatusNotFound || se.Code == http.StatusGone {
		return datasource.Missing(url, se)
	}
	return datasource.Unreadable(url, se)
}
