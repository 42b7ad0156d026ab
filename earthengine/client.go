package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"open-geo-engine/cache"
)

const DefaultEndpoint = "https://earthengine.googleapis.com"

type Client struct {
	endpoint string
	project  string
	token    string
	http     *http.Client
	cache    cache.Cache

	MaxElapsedTime time.Duration
}

// New returns a client for the Earth Engine REST API. token is an OAuth2
// access token with the earthengine scope.
func New(endpoint, project, token string, c cache.Cache) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if c == nil {
		c = cache.Nop{}
	}
	return &Client{
		endpoint:       strings.TrimSuffix(endpoint, "/"),
		project:        project,
		token:          token,
		http:           &http.Client{Timeout: 5 * time.Minute},
		cache:          c,
		MaxElapsedTime: 2 * time.Minute,
	}
}

type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("earth engine: %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Compute evaluates expr and returns the raw result value. Results are
// cached by expression.
func (c *Client) Compute(ctx context.Context, expr Expression) (json.RawMessage, error) {
	body, err := json.Marshal(struct {
		Expression Expression `json:"expression"`
	}{expr})
	if err != nil {
		return nil, fmt.Errorf("marshal expression: %w", err)
	}

	key := cache.Key("value:compute", c.project, string(body))
	if cached, ok, err := c.cache.Get(ctx, key); err != nil {
		slog.Warn("earth engine cache get failed", "err", err)
	} else if ok {
		return cached, nil
	}

	respBody, err := c.post(ctx, "value:compute", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode compute response: %w", err)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, fmt.Errorf("compute response has no result")
	}

	if err := c.cache.Set(ctx, key, resp.Result); err != nil {
		slog.Warn("earth engine cache set failed", "err", err)
	}
	return resp.Result, nil
}

type DriveDestination struct {
	Folder         string `json:"folder,omitempty"`
	FilenamePrefix string `json:"filenamePrefix,omitempty"`
}

type FileExportOptions struct {
	FileFormat       string           `json:"fileFormat"`
	DriveDestination DriveDestination `json:"driveDestination"`
}

type ExportRequest struct {
	Expression        Expression        `json:"expression"`
	Description       string            `json:"description"`
	FileExportOptions FileExportOptions `json:"fileExportOptions"`
	RequestID         string            `json:"requestId,omitempty"`
}

// Export starts an image export task and returns the name of its
// long-running operation.
func (c *Client) Export(ctx context.Context, req ExportRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}

	respBody, err := c.post(ctx, "image:export", body)
	if err != nil {
		return "", err
	}

	name := gjson.GetBytes(respBody, "name")
	if !name.Exists() {
		return "", fmt.Errorf("export response has no operation name")
	}
	return name.String(), nil
}

func (c *Client) post(ctx context.Context, method string, body []byte) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/projects/%s/%s", c.endpoint, c.project, method)

	var out []byte
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Message:    gjson.GetBytes(respBody, "error.message").String(),
			}
			if apiErr.Message == "" {
				apiErr.Message = string(respBody)
			}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		out = respBody
		return nil
	}, backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(c.MaxElapsedTime)), ctx))

	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, err
}
