// Package commerce is the WooCommerce REST adapter. All catalog and
// order operations the conversation tools need go through here.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
)

var (
	// ErrNotConfigured means store credentials are missing; catalog
	// tools report this instead of attempting a call.
	ErrNotConfigured = errors.New("woocommerce not configured")

	// ErrNoItems means an order was requested with no purchasable lines.
	ErrNoItems = errors.New("order has no items")

	// ErrCancelWindowExceeded means the order is older than the
	// cancellation window and was left untouched.
	ErrCancelWindowExceeded = errors.New("cancel window exceeded")
)

// cancelWindow is how long after creation an order may be cancelled.
const cancelWindow = 24 * time.Hour

// APIError is a non-2xx response from the store API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("woocommerce: HTTP %d", e.Status)
}

// Client talks to a WooCommerce store over the REST v3 API using
// consumer key/secret query authentication.
type Client struct {
	baseURL         string
	consumerKey     string
	consumerSecret  string
	useZoneShipping bool
	defaultShipping ShippingMethod

	http *http.Client
	log  *logging.Logger

	products *productCache
	shipping *shippingCache
}

// ShippingMethod is a raw shipping method choice.
type ShippingMethod struct {
	MethodID    string
	MethodTitle string
	Total       string
}

// New creates a store client from config.
func New(cfg config.WooConfig, log *logging.Logger) *Client {
	return &Client{
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		consumerKey:     cfg.ConsumerKey,
		consumerSecret:  cfg.ConsumerSecret,
		useZoneShipping: cfg.UseZoneShipping,
		defaultShipping: ShippingMethod{MethodID: "flat_rate", MethodTitle: "Flat Rate", Total: "0.00"},
		http:            &http.Client{Timeout: 20 * time.Second},
		log:             log.Sub("commerce"),
		products:        newProductCache(60 * time.Second),
		shipping:        newShippingCache(5 * time.Minute),
	}
}

// IsConfigured reports whether store credentials are present.
func (c *Client) IsConfigured() bool {
	return c.consumerKey != "" && c.consumerSecret != ""
}

// endpoint builds a full API URL with auth query parameters attached.
func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("consumer_key", c.consumerKey)
	query.Set("consumer_secret", c.consumerSecret)
	return c.baseURL + "/wp-json/wc/v3" + path + "?" + query.Encode()
}

// getJSON performs a GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, out)
}

// sendJSON performs a POST or PUT with a JSON body and decodes the response.
func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, nil), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Int("status", resp.StatusCode).Str("path", req.URL.Path).Msg("store api error")
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
