package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/httpclient"
	"github.com/foodmap/foodmap/pkg/geo"
)

// ErrNoResults means the query returned no match.
var ErrNoResults = errors.New("geocode: no results")

// HistoryStore records successfully resolved addresses for quick re-entry.
type HistoryStore interface {
	PushAddressHistory(ctx context.Context, sessionID, address string) error
	AddressHistory(ctx context.Context, sessionID string) ([]string, error)
}

// Result is one resolved location.
type Result struct {
	Point       geo.Point `json:"point"`
	DisplayName string    `json:"display_name"`
}

// Client resolves free-text addresses through Nominatim. The underlying
// httpclient carries a per-host limiter, which keeps outbound traffic at
// the usage policy's one request per second.
type Client struct {
	logger    *zap.Logger
	http      *httpclient.Client
	baseURL   string
	userAgent string
	history   HistoryStore
}

func New(logger *zap.Logger, hc *httpclient.Client, baseURL, contact string, history HistoryStore) *Client {
	return &Client{
		logger:    logger,
		http:      hc,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "foodmap/1.0 (" + contact + ")",
		history:   history,
	}
}

// nominatimRow is the upstream wire shape; coordinates come back as strings.
type nominatimRow struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Search resolves query to coordinates, restricted to Taiwan. On success
// the query is pushed onto the session's address history.
func (c *Client) Search(ctx context.Context, sessionID, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "tw")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	var rows []nominatimRow
	if err := c.http.DoJSON(ctx, req, &rows); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoResults
	}

	lat, err := strconv.ParseFloat(rows[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: bad latitude %q", query, rows[0].Lat)
	}
	lng, err := strconv.ParseFloat(rows[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: bad longitude %q", query, rows[0].Lon)
	}

	if c.history != nil && sessionID != "" {
		if err := c.history.PushAddressHistory(ctx, sessionID, query); err != nil {
			c.logger.Warn("geocode.history_push_failed",
				zap.String("session", sessionID),
				zap.Error(err))
		}
	}

	return &Result{
		Point:       geo.Point{Lat: lat, Lng: lng},
		DisplayName: rows[0].DisplayName,
	}, nil
}

// History returns the session's recent addresses, most recent first.
func (c *Client) History(ctx context.Context, sessionID string) ([]string, error) {
	if c.history == nil {
		return nil, nil
	}
	return c.history.AddressHistory(ctx, sessionID)
}
