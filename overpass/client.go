package overpass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

type Client struct {
	endpoint string
	http     *http.Client

	// MaxElapsedTime bounds retries of busy (429) and 5xx responses.
	MaxElapsedTime time.Duration
}

func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{endpoint: endpoint, http: &http.Client{}, MaxElapsedTime: 2 * time.Minute}
}

type QueryError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %d %s: %s", e.StatusCode, e.Status, e.Body)
}

func (c *Client) Query(ctx context.Context, query string) (*Response, error) {
	var out *Response
	err := backoff.Retry(func() error {
		resp, err := c.queryNoRetry(ctx, query)
		if err != nil {
			var qErr *QueryError
			if errors.As(err, &qErr) && qErr.StatusCode < 500 && qErr.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		out = resp
		return nil
	}, backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(c.MaxElapsedTime)), ctx))
	return out, err
}

func (c *Client) queryNoRetry(ctx context.Context, query string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, strings.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "open-geo-engine")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			body = nil
		}
		return nil, &QueryError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	return ParseJSON(resp.Body)
}
