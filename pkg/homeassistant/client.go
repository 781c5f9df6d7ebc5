package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

// DefaultBaseURL is the Supervisor proxy to Home Assistant Core, reachable
// from inside an add-on container.
const DefaultBaseURL = "http://supervisor/core"

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// Config holds client configuration.
type Config struct {
	// BaseURL of Home Assistant (default DefaultBaseURL).
	BaseURL string

	// Token is a long-lived access token or the Supervisor token.
	Token string

	// Timeout per request (default DefaultTimeout).
	Timeout time.Duration

	// FullResolution requests every state change instead of significant
	// changes only.
	FullResolution bool

	Logger *slog.Logger
}

// Client reads state history from the Home Assistant REST API.
type Client struct {
	baseURL        *url.URL
	token          string
	fullResolution bool
	client         *http.Client
	logger         *slog.Logger
}

// NewClient creates a REST client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	return &Client{
		baseURL:        base,
		token:          cfg.Token,
		fullResolution: cfg.FullResolution,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}, nil
}

// BaseURL returns the configured Home Assistant URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Ping checks that the API answers and accepts the token.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, c.endpoint("api/"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Available reports whether Ping succeeds.
func (c *Client) Available(ctx context.Context) bool {
	if err := c.Ping(ctx); err != nil {
		c.logger.Warn("home assistant not available", "url", c.BaseURL(), "error", err)
		return false
	}
	return true
}

// FetchRange implements history.Source over /api/history/period.
func (c *Client) FetchRange(ctx context.Context, entityIDs []string, start, end time.Time) (history.Set, error) {
	if len(entityIDs) == 0 {
		return history.Set{}, nil
	}

	u := c.endpoint("api/history/period/" + start.UTC().Format(time.RFC3339))
	q := url.Values{}
	q.Set("end_time", end.UTC().Format(time.RFC3339))
	q.Set("filter_entity_id", strings.Join(entityIDs, ","))
	if minimalResponseSafe(entityIDs) {
		q.Set("minimal_response", "")
	}
	if c.fullResolution {
		q.Set("significant_changes_only", "0")
	}
	u.RawQuery = q.Encode()

	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload [][]stateJSON
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode history response: %v", history.ErrConnection, err)
	}

	set := c.toSet(payload)
	c.logger.Debug("fetched history",
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339),
		"entities", len(set),
		"records", set.Count())
	return set, nil
}

// minimalResponseSafe reports whether no structured entity is requested.
// Minimal responses drop attributes after the first record of each entity.
func minimalResponseSafe(entityIDs []string) bool {
	for _, id := range entityIDs {
		if history.ClassifyEntity(id) == history.KindStructured {
			return false
		}
	}
	return true
}

type stateJSON struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
}

// toSet converts the per-entity lists of the history API. The entity id of a
// list is taken from its first record. Records without a parseable
// timestamp are dropped.
func (c *Client) toSet(payload [][]stateJSON) history.Set {
	set := make(history.Set, len(payload))
	for _, states := range payload {
		if len(states) == 0 || states[0].EntityID == "" {
			continue
		}
		id := states[0].EntityID

		h := make(history.EntityHistory, 0, len(states))
		for _, s := range states {
			ts, err := parseTimestamp(s.LastChanged, s.LastUpdated)
			if err != nil {
				c.logger.Debug("skipping record without timestamp", "entity_id", id, "error", err)
				continue
			}
			h = append(h, history.StateRecord{
				EntityID:   id,
				State:      s.State,
				Attributes: s.Attributes,
				Timestamp:  ts,
			})
		}
		h.Sort()
		set[id] = append(set[id], h...)
	}
	return set
}

func parseTimestamp(candidates ...string) (time.Time, error) {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	return time.Time{}, fmt.Errorf("no timestamp")
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + path
	return &u
}

func (c *Client) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", history.ErrConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", history.ErrConnection, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned status %d: %s",
			history.ErrConnection, u.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
