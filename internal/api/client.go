// Package api implements the HTTP client for the streaming content API:
// catalog search, show details, episode lists, playable sources, and the
// home feed.
package api

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
	"unicode/utf8"

	"github.com/kaede-io/anibox/internal/domain"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "Anibox/1.0"

	// minQueryLength is the shortest search query the API accepts.
	minQueryLength = 3
)

// Client talks to a user-configured content API endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a content API client for the given base URL. An empty
// base URL is allowed; calls will fail with domain.ErrNotConfigured until
// one is set.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// SetBaseURL swaps the endpoint, e.g. after the user edits settings.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// checkEndpoint validates the configured base URL before any I/O.
func (c *Client) checkEndpoint() error {
	if c.baseURL == "" {
		return domain.ErrNotConfigured
	}
	u, err := url.Parse(c.baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", domain.ErrInvalidEndpoint, c.baseURL)
	}
	return nil
}

// doRequest performs a GET against the content API and returns the body.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.checkEndpoint(); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("api request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("api request failed", "url", reqURL, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("api request error", "status", resp.StatusCode, "url", reqURL)
		return nil, &domain.ServerError{StatusCode: resp.StatusCode, Message: serverMessage(body)}
	}

	return body, nil
}

// serverMessage extracts an error message from a non-2xx body, best effort.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// decode unmarshals an API response, mapping failures to ErrDecoding.
func decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecoding, err)
	}
	return nil
}

// Search queries the catalog. Queries shorter than three characters are
// rejected with domain.ErrQueryTooShort before any network I/O.
func (c *Client) Search(ctx context.Context, query string) ([]domain.CatalogItem, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return nil, domain.ErrQueryTooShort
	}

	body, err := c.doRequest(ctx, "/search", url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}

	var payload searchResponse
	if err := decode(body, &payload); err != nil {
		return nil, err
	}
	return payload.items(), nil
}

// Details fetches the full detail payload for one show.
func (c *Client) Details(ctx context.Context, showID string) (*domain.ShowDetail, error) {
	body, err := c.doRequest(ctx, "/anime/"+url.PathEscape(showID), nil)
	if err != nil {
		return nil, err
	}

	var payload detailResponse
	if err := decode(body, &payload); err != nil {
		return nil, err
	}
	detail := payload.detail()
	return &detail, nil
}

// Episodes fetches the episode list for one show.
func (c *Client) Episodes(ctx context.Context, showID string) ([]domain.Episode, error) {
	body, err := c.doRequest(ctx, "/anime/"+url.PathEscape(showID)+"/episodes", nil)
	if err != nil {
		return nil, err
	}

	var payload episodesResponse
	if err := decode(body, &payload); err != nil {
		return nil, err
	}
	return payload.episodes(), nil
}

// StreamingSources fetches the playable stream variants for an episode.
// lang selects the audio track ("sub" or "dub"); server picks the upstream
// host and may be empty for the provider default.
func (c *Client) StreamingSources(ctx context.Context, episodeID, lang, server string) (*domain.StreamingSources, error) {
	query := url.Values{
		"episodeId": {episodeID},
		"lang":      {lang},
	}
	if server != "" {
		query.Set("server", server)
	}

	body, err := c.doRequest(ctx, "/episode/sources", query)
	if err != nil {
		return nil, err
	}

	var payload sourcesResponse
	if err := decode(body, &payload); err != nil {
		return nil, err
	}
	sources := payload.sources()
	return &sources, nil
}

// Home fetches the provider's home feed sections.
func (c *Client) Home(ctx context.Context) ([]domain.HomeSection, error) {
	body, err := c.doRequest(ctx, "/home", nil)
	if err != nil {
		return nil, err
	}

	var payload homeResponse
	if err := decode(body, &payload); err != nil {
		return nil, err
	}
	return payload.sections(), nil
}
