// Package transitapi talks to the Warsaw dbtimetable_get endpoint. Every
// resource is a GET with an id, an apikey and resource-specific parameters,
// answered with {"result": ...} where result is either data or an error string.
package transitapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/models"
)

const maxResponseSize = 8 * 1024 * 1024

// Config configures a Client.
type Config struct {
	BaseURL             string
	APIKey              string
	TimetableResourceID string
	LinesResourceID     string
	StopsResourceID     string
	Timeout             time.Duration
	RequestsPerSecond   float64
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client issues one blocking request per call, bounded by the configured timeout.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Client. RequestsPerSecond <= 0 disables throttling.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   cfg.Timeout,
				ResponseHeaderTimeout: cfg.Timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logging.Component(logger, "transit_api"),
	}
}

// Timetable returns the raw result array of per-trip key/value arrays for
// one line at one stop post, exactly as received.
func (c *Client) Timetable(ctx context.Context, stopID, stopPost, line string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("busstopId", stopID)
	params.Set("busstopNr", stopPost)
	params.Set("line", line)

	return c.get(ctx, c.config.TimetableResourceID, params)
}

// LinesAtStop returns the distinct lines serving a stop post, sorted.
func (c *Client) LinesAtStop(ctx context.Context, stopID, stopPost string) ([]string, error) {
	params := url.Values{}
	params.Set("busstopId", stopID)
	params.Set("busstopNr", stopPost)

	raw, err := c.get(ctx, c.config.LinesResourceID, params)
	if err != nil {
		return nil, err
	}

	records, err := decodeValueRecords(raw)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var lines []string
	for _, rec := range records {
		line, ok := rec[models.FieldLine]
		if !ok || line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	sort.Strings(lines)

	return lines, nil
}

// SearchStops returns stop posts whose group name contains name, ignoring case.
func (c *Client) SearchStops(ctx context.Context, name string) ([]models.StopGroup, error) {
	raw, err := c.get(ctx, c.config.StopsResourceID, url.Values{})
	if err != nil {
		return nil, err
	}

	records, err := decodeValueRecords(raw)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	var groups []models.StopGroup
	for _, rec := range records {
		groupName := rec[models.FieldStopName]
		if !strings.Contains(strings.ToLower(groupName), needle) {
			continue
		}
		groups = append(groups, models.StopGroup{
			Name:    groupName,
			GroupID: rec[models.FieldStopGroup],
			Post:    rec[models.FieldStopPost],
			Street:  rec[models.FieldStreet],
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].Post < groups[j].Post
	})

	return groups, nil
}

type envelope struct {
	Result json.RawMessage `json:"result"`
}

func (c *Client) get(ctx context.Context, resourceID string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("invalid base URL: %w", err)}
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("id", resourceID)
	q.Set("apikey", c.config.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "http_response_body")

	c.logger.Debug("transit_api_request",
		slog.String("resource_id", resourceID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: fmt.Errorf("unexpected HTTP status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}
	if len(body) > maxResponseSize {
		return nil, &TransportError{Err: fmt.Errorf("response exceeds size limit of %d bytes", maxResponseSize)}
	}

	return parseResult(body)
}

// parseResult extracts the result array, classifying string results as API errors.
// A body that is not JSON at all is a transport failure. A missing or null
// result is an empty array.
func parseResult(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("invalid response body: %w", err)}
	}

	trimmed := strings.TrimSpace(string(env.Result))
	switch {
	case trimmed == "" || trimmed == "null":
		return json.RawMessage("[]"), nil
	case strings.HasPrefix(trimmed, `"`):
		var msg string
		if err := json.Unmarshal(env.Result, &msg); err != nil {
			return nil, &APIError{Message: trimmed}
		}
		return nil, &APIError{Message: msg}
	case strings.HasPrefix(trimmed, "["):
		return env.Result, nil
	default:
		return nil, &APIError{Message: fmt.Sprintf("unexpected result type: %.40s", trimmed)}
	}
}

type valueRecord struct {
	Values []models.KeyValue `json:"values"`
}

func decodeValueRecords(raw json.RawMessage) ([]models.RawDepartureRecord, error) {
	var items []valueRecord
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("unexpected record shape: %v", err)}
	}
	out := make([]models.RawDepartureRecord, 0, len(items))
	for _, item := range items {
		out = append(out, models.NewRawDepartureRecord(item.Values))
	}
	return out, nil
}
