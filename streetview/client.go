package streetview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"open-geo-engine/cache"
)

const (
	DefaultBase     = "https://maps.googleapis.com/maps/api/streetview"
	DefaultMetaBase = "https://maps.googleapis.com/maps/api/streetview/metadata"
)

type Client struct {
	key      string
	base     string
	metaBase string
	http     *http.Client
	cache    cache.Cache

	MaxElapsedTime time.Duration
}

func New(key, base, metaBase string, c cache.Cache) *Client {
	if base == "" {
		base = DefaultBase
	}
	if metaBase == "" {
		metaBase = DefaultMetaBase
	}
	if c == nil {
		c = cache.Nop{}
	}
	return &Client{
		key:            key,
		base:           strings.TrimSuffix(base, "?"),
		metaBase:       strings.TrimSuffix(metaBase, "?"),
		http:           &http.Client{Timeout: time.Minute},
		cache:          c,
		MaxElapsedTime: time.Minute,
	}
}

type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("streetview: %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

type ImageParams struct {
	Size    string
	Heading string
	Pitch   string
	FOV     string
}

// ImageURL returns the static image URL for loc ("lat,lon"). The key is only
// included when withKey is set so that links can be written to disk.
func (c *Client) ImageURL(loc string, p ImageParams, withKey bool) string {
	q := url.Values{}
	q.Set("location", loc)
	q.Set("size", p.Size)
	if p.Heading != "" {
		q.Set("heading", p.Heading)
	}
	if p.Pitch != "" {
		q.Set("pitch", p.Pitch)
	}
	if p.FOV != "" {
		q.Set("fov", p.FOV)
	}
	if withKey {
		q.Set("key", c.key)
	}
	return c.base + "?" + q.Encode()
}

type Metadata struct {
	Location  string  `json:"location"`
	Status    string  `json:"status"`
	PanoID    string  `json:"pano_id,omitempty"`
	Date      string  `json:"date,omitempty"`
	Copyright string  `json:"copyright,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lng       float64 `json:"lng,omitempty"`
}

func (m Metadata) HasImagery() bool {
	return m.Status == "OK"
}

// MetadataError is a metadata response whose status is neither OK nor a
// definite absence of imagery.
type MetadataError struct {
	Location string
	Status   string
	Message  string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("streetview metadata for %s: %s: %s", e.Location, e.Status, e.Message)
}

// cacheableStatus reports whether a metadata status describes the location
// rather than the request.
func cacheableStatus(status string) bool {
	switch status {
	case "OK", "ZERO_RESULTS", "NOT_FOUND":
		return true
	}
	return false
}

// Metadata looks up whether imagery exists at loc. Only answers about the
// location are cached. OVER_QUERY_LIMIT and UNKNOWN_ERROR are retried; any
// other status is returned as a *MetadataError.
func (c *Client) Metadata(ctx context.Context, loc string) (Metadata, error) {
	key := cache.Key("streetview:metadata", loc)
	body, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("streetview cache get failed", "err", err)
	}
	if ok && !cacheableStatus(gjson.GetBytes(body, "status").String()) {
		ok = false
	}

	if !ok {
		q := url.Values{}
		q.Set("location", loc)
		q.Set("key", c.key)
		u := c.metaBase + "?" + q.Encode()

		err := c.retry(ctx, func() error {
			b, err := c.getOnce(ctx, u)
			if err != nil {
				return err
			}
			if !gjson.ValidBytes(b) {
				return backoff.Permanent(fmt.Errorf("metadata for %s: invalid json", loc))
			}
			status := gjson.GetBytes(b, "status").String()
			if cacheableStatus(status) {
				body = b
				return nil
			}
			metaErr := &MetadataError{
				Location: loc,
				Status:   status,
				Message:  gjson.GetBytes(b, "error_message").String(),
			}
			if status == "OVER_QUERY_LIMIT" || status == "UNKNOWN_ERROR" {
				return metaErr
			}
			return backoff.Permanent(metaErr)
		})
		if err != nil {
			return Metadata{Location: loc}, err
		}
		if err := c.cache.Set(ctx, key, body); err != nil {
			slog.Warn("streetview cache set failed", "err", err)
		}
	}

	parsed := gjson.ParseBytes(body)
	return Metadata{
		Location:  loc,
		Status:    parsed.Get("status").String(),
		PanoID:    parsed.Get("pano_id").String(),
		Date:      parsed.Get("date").String(),
		Copyright: parsed.Get("copyright").String(),
		Lat:       parsed.Get("location.lat").Float(),
		Lng:       parsed.Get("location.lng").Float(),
	}, nil
}

// Download fetches the image at loc. The caller closes the reader.
func (c *Client) Download(ctx context.Context, loc string, p ImageParams) (io.ReadCloser, error) {
	u := c.ImageURL(loc, p, true)
	var body io.ReadCloser
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return statusErr(c.redact(u), resp)
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) getOnce(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(c.redact(u), resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(c.MaxElapsedTime)), ctx))

	var statusErr *StatusError
	var metaErr *MetadataError
	if err != nil && !errors.As(err, &statusErr) && !errors.As(err, &metaErr) {
		return fmt.Errorf("streetview: %w", err)
	}
	return err
}

func statusErr(u string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := &StatusError{URL: u, StatusCode: resp.StatusCode, Body: string(body)}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return err
	}
	return backoff.Permanent(err)
}

// redact removes the key from u so it never reaches logs or errors.
func (c *Client) redact(u string) string {
	if c.key == "" {
		return u
	}
	return strings.ReplaceAll(u, url.QueryEscape(c.key), "REDACTED")
}
