// Package vegvesen is a client for the Statens vegvesen "kjøretøydata
// enkeltoppslag" API, which returns registration data for a single vehicle.
package vegvesen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"vehiclelookup/internal/regnr"
)

const (
	// DefaultBaseURL is the production lookup endpoint.
	DefaultBaseURL = "https://www.vegvesen.no/ws/no/vegvesen/kjoretoy/felles/" +
		"datautlevering/enkeltoppslag/kjoretoydata"

	// DefaultTimeout bounds every request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 4 << 20

	envelopeField  = "kjoretoydataListe"
	vehicleIDField = "kjoretoyId"
	queryParam     = "kjennemerke"
	authHeader     = "SVV-Authorization"
)

// Record is one decoded vehicle document. Numbers are kept as json.Number.
type Record = map[string]any

// Client performs registry lookups.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the lookup endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout overrides the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a registry client authenticating with apiKey.
func NewClient(apiKey string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		logger:     logger.Named("vegvesen"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the vehicle registered under number. The number is sent
// as given; callers are expected to normalise it first.
func (c *Client) Lookup(ctx context.Context, number string) (Record, error) {
	status, body, err := c.get(ctx, number)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d, check your API key", ErrAuth, status)
	case status == http.StatusBadRequest:
		c.logger.Warn("Registry rejected the request, the registration number may be invalid",
			zap.String("regnr", number))
		return nil, fmt.Errorf("%w: invalid request (HTTP 400)", ErrAPI)
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: HTTP 404", ErrNotFound)
	case status >= 500:
		c.logger.Error("Registry server error", zap.Int("status", status))
		return nil, fmt.Errorf("%w: server error (HTTP %d)", ErrAPI, status)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("%w: unexpected HTTP status %d", ErrAPI, status)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: failed to parse JSON response", ErrAPI)
	}

	return c.extractVehicle(body, number)
}

// ValidateKey checks whether the registry accepts the API key by looking up
// a placeholder number. Any status other than 401/403 proves the key was
// accepted, including 400 and 404.
func (c *Client) ValidateKey(ctx context.Context) (bool, error) {
	status, _, err := c.get(ctx, regnr.Placeholder)
	if err != nil {
		return false, err
	}
	return status != http.StatusUnauthorized && status != http.StatusForbidden, nil
}

// get issues the GET request and returns the status code and body.
// Transport failures and timeouts are reported as ErrConnection.
func (c *Client) get(ctx context.Context, number string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: invalid base URL: %w", ErrAPI, err)
	}
	q := u.Query()
	q.Set(queryParam, number)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: building request: %w", ErrAPI, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(authHeader, "Apikey "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("%w: request timed out after %s", ErrConnection, c.timeout)
		}
		return 0, nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("%w: reading response timed out after %s", ErrConnection, c.timeout)
		}
		return 0, nil, fmt.Errorf("%w: reading response: %w", ErrConnection, err)
	}

	return resp.StatusCode, body, nil
}

// extractVehicle unwraps the response envelope to a single vehicle.
// Unknown shapes are returned as-is rather than rejected.
func (c *Client) extractVehicle(body []byte, number string) (Record, error) {
	doc := gjson.ParseBytes(body)

	if doc.IsObject() {
		list := doc.Get(envelopeField)
		if list.Exists() {
			if isEmpty(list) {
				return nil, fmt.Errorf("%w: no vehicle data returned for %s", ErrNotFound, number)
			}
			if first := list.Get("0"); list.IsArray() && first.IsObject() {
				return decodeRecord([]byte(first.Raw))
			}
			c.logger.Warn("Vehicle list entry is not an object, returning empty record",
				zap.String("regnr", number))
			return Record{}, nil
		}
		if doc.Get(vehicleIDField).Exists() {
			return decodeRecord(body)
		}

		c.logger.Warn("Unexpected API response structure, returning raw data",
			zap.String("regnr", number))
		return decodeRecord(body)
	}

	c.logger.Warn("Unexpected API response structure, returning empty record",
		zap.String("regnr", number),
		zap.String("type", doc.Type.String()))
	return Record{}, nil
}

// isEmpty reports whether v is null, false, zero, "" or an empty list or object.
func isEmpty(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.True:
		return false
	case gjson.Number:
		return v.Num == 0
	case gjson.String:
		return v.Str == ""
	}
	if v.IsArray() {
		return len(v.Array()) == 0
	}
	return len(v.Map()) == 0
}

func decodeRecord(raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: decoding vehicle: %w", ErrAPI, err)
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}
