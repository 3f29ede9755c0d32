package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrRejected marks a 4xx reply for a malformed or unknown id. It always
// comes wrapped together with domain.ErrProductNotFound.
var ErrRejected = errors.New("catalog rejected product id")

// Client looks up single products in the catalog service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type productResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    *domain.ProductSnapshot `json:"data"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetProduct returns domain.ErrProductNotFound when the catalog has no such
// product or rejects the id. Every other failure is returned wrapped.
func (c *Client) GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if isRejection(resp.StatusCode) {
		return nil, fmt.Errorf("%w: %w: status %d", domain.ErrProductNotFound, ErrRejected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload productResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	if payload.Data == nil {
		return nil, domain.ErrProductNotFound
	}
	if payload.Data.ID == "" {
		payload.Data.ID = productID
	}

	return payload.Data, nil
}

// isRejection reports a client error the catalog will repeat for the same
// id. Timeouts and throttling are left to the breaker.
func isRejection(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
