package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nicktill/heatcycle/pkg/history"
	"github.com/nicktill/heatcycle/pkg/statistics"
)

// Message types of the Home Assistant WebSocket API.
const (
	msgAuthRequired = "auth_required"
	msgAuth         = "auth"
	msgAuthOK       = "auth_ok"
	msgAuthInvalid  = "auth_invalid"
	msgResult       = "result"

	commandStatisticsDuringPeriod = "recorder/statistics_during_period"
)

// ErrAuthInvalid is returned when Home Assistant rejects the access token.
var ErrAuthInvalid = fmt.Errorf("%w: access token rejected", history.ErrConnection)

// StatisticsConfig holds StatisticsClient configuration.
type StatisticsConfig struct {
	// URL is the WebSocket endpoint. When empty it is derived from BaseURL
	// with WebSocketURL.
	URL     string
	BaseURL string
	Token   string

	// Period of the requested rows (default statistics.Period5m).
	Period statistics.Period

	// Timeout bounds one whole exchange (default DefaultTimeout).
	Timeout time.Duration

	Logger *slog.Logger
}

// StatisticsClient reads long-term statistics over the WebSocket API. Every
// FetchRange opens its own connection, so the client is safe for concurrent
// use.
type StatisticsClient struct {
	url     string
	token   string
	period  statistics.Period
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewStatisticsClient creates a statistics client.
func NewStatisticsClient(cfg StatisticsConfig) (*StatisticsClient, error) {
	if cfg.URL == "" {
		base := cfg.BaseURL
		if base == "" {
			base = DefaultBaseURL
		}
		u, err := WebSocketURL(base)
		if err != nil {
			return nil, err
		}
		cfg.URL = u
	}
	if cfg.Period == "" {
		cfg.Period = statistics.Period5m
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &StatisticsClient{
		url:     cfg.URL,
		token:   cfg.Token,
		period:  cfg.Period,
		timeout: cfg.Timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}, nil
}

// WebSocketURL derives the WebSocket endpoint from a REST base URL. The
// Supervisor proxy serves it at /core/websocket, Home Assistant itself at
// /api/websocket.
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid base URL %q: unsupported scheme", baseURL)
	}

	if strings.HasSuffix(u.Path, "/core") {
		u.Path += "/websocket"
	} else {
		u.Path += "/api/websocket"
	}
	return u.String(), nil
}

type wsMessage struct {
	ID          int             `json:"id,omitempty"`
	Type        string          `json:"type"`
	AccessToken string          `json:"access_token,omitempty"`
	Message     string          `json:"message,omitempty"`
	Success     bool            `json:"success,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *wsError        `json:"error,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type statisticsRequest struct {
	ID           int      `json:"id"`
	Type         string   `json:"type"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	StatisticIDs []string `json:"statistic_ids"`
	Period       string   `json:"period"`
	Types        []string `json:"types"`
}

type statisticsRow struct {
	Start json.RawMessage `json:"start"`
	Mean  *float64        `json:"mean"`
	Min   *float64        `json:"min"`
	Max   *float64        `json:"max"`
	State *float64        `json:"state"`
	Sum   *float64        `json:"sum"`
}

// FetchRange implements history.Source. Rows become state records stamped
// at their period start; see statistics.Row.Record.
func (c *StatisticsClient) FetchRange(ctx context.Context, entityIDs []string, start, end time.Time) (history.Set, error) {
	if len(entityIDs) == 0 {
		return history.Set{}, nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", history.ErrConnection, c.url, err)
	}
	defer conn.Close()

	// Unblock reads when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	if err := c.authenticate(conn); err != nil {
		return nil, c.wrap(ctx, err)
	}

	const requestID = 1
	req := statisticsRequest{
		ID:           requestID,
		Type:         commandStatisticsDuringPeriod,
		StartTime:    start.UTC().Format(time.RFC3339),
		EndTime:      end.UTC().Format(time.RFC3339),
		StatisticIDs: entityIDs,
		Period:       string(c.period),
		Types:        []string{"mean", "min", "max", "state", "sum"},
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, c.wrap(ctx, fmt.Errorf("send statistics request: %w", err))
	}

	var msg wsMessage
	for {
		msg = wsMessage{}
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, c.wrap(ctx, fmt.Errorf("read statistics result: %w", err))
		}
		if msg.ID == requestID && msg.Type == msgResult {
			break
		}
	}
	if !msg.Success {
		reason := "unknown error"
		if msg.Error != nil {
			reason = msg.Error.Code + ": " + msg.Error.Message
		}
		return nil, fmt.Errorf("%w: statistics request failed: %s", history.ErrConnection, reason)
	}

	var result map[string][]statisticsRow
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode statistics: %v", history.ErrConnection, err)
	}

	rows := make(map[string][]statistics.Row, len(result))
	for id, rs := range result {
		for _, r := range rs {
			ts, err := parseStatisticsStart(r.Start)
			if err != nil {
				c.logger.Debug("skipping statistics row", "statistic_id", id, "error", err)
				continue
			}
			rows[id] = append(rows[id], statistics.Row{
				Start: ts,
				Mean:  r.Mean,
				Min:   r.Min,
				Max:   r.Max,
				State: r.State,
				Sum:   r.Sum,
			})
		}
	}

	set := statistics.ToSet(rows)
	c.logger.Debug("fetched statistics",
		"period", string(c.period),
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339),
		"entities", len(set),
		"records", set.Count())
	return set, nil
}

// authenticate runs the auth handshake: auth_required, auth, auth_ok.
func (c *StatisticsClient) authenticate(conn *websocket.Conn) error {
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth request: %w", err)
	}
	if msg.Type != msgAuthRequired {
		return fmt.Errorf("unexpected message %q, want %q", msg.Type, msgAuthRequired)
	}

	if err := conn.WriteJSON(wsMessage{Type: msgAuth, AccessToken: c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	msg = wsMessage{}
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	switch msg.Type {
	case msgAuthOK:
		return nil
	case msgAuthInvalid:
		return fmt.Errorf("%w: %s", ErrAuthInvalid, msg.Message)
	default:
		return fmt.Errorf("unexpected message %q, want %q", msg.Type, msgAuthOK)
	}
}

func (c *StatisticsClient) wrap(ctx context.Context, err error) error {
	if errors.Is(err, history.ErrConnection) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v (%v)", history.ErrConnection, err, ctxErr)
	}
	return fmt.Errorf("%w: %v", history.ErrConnection, err)
}

// parseStatisticsStart accepts both encodings Home Assistant has used for
// the row start: milliseconds since the epoch and an ISO 8601 string.
func parseStatisticsStart(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, errors.New("missing start")
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("invalid start %s", string(raw))
	}
	return time.Parse(time.RFC3339Nano, s)
}
