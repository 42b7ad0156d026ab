// Package nominatim resolves place names to bounding boxes using the
// OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"
)

const DefaultEndpoint = "https://nominatim.openstreetmap.org/search"

var ErrNotFound = errors.New("place not found")

type Client struct {
	endpoint string
	http     *http.Client
}

func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{endpoint: endpoint, http: &http.Client{}}
}

// Lookup returns the bounding box of the best match for place.
func (c *Client) Lookup(ctx context.Context, place string) (orb.Bound, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return orb.Bound{}, err
	}
	q := u.Query()
	q.Set("q", place)
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return orb.Bound{}, err
	}
	req.Header.Set("User-Agent", "open-geo-engine")

	resp, err := c.http.Do(req)
	if err != nil {
		return orb.Bound{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return orb.Bound{}, fmt.Errorf("unexpected http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("read body: %w", err)
	}
	return parseBoundingBox(body, place)
}

func parseBoundingBox(body []byte, place string) (orb.Bound, error) {
	if !gjson.ValidBytes(body) {
		return orb.Bound{}, fmt.Errorf("invalid json response")
	}

	bbox := gjson.GetBytes(body, "0.boundingbox")
	if !bbox.Exists() {
		return orb.Bound{}, fmt.Errorf("%w: %s", ErrNotFound, place)
	}

	// south, north, west, east
	parts := bbox.Array()
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("unexpected boundingbox: %s", bbox.Raw)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p.String(), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("parse boundingbox: %w", err)
		}
		v[i] = f
	}

	return orb.Bound{
		Min: orb.Point{v[2], v[0]},
		Max: orb.Point{v[3], v[1]},
	}, nil
}
