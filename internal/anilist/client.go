// Package anilist talks to the AniList GraphQL API: OAuth token lifecycle,
// remote library fetch and reconciliation, and local-title matching.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kaede-io/anibox/internal/domain"
)

const graphqlURL = "https://graphql.anilist.co"

// GraphQLClient executes one GraphQL request and returns the raw data
// payload. Provider-reported errors surface as *domain.GraphQLError,
// distinct from transport failure.
type GraphQLClient interface {
	Execute(ctx context.Context, query string, variables map[string]interface{}, authRequired bool) (json.RawMessage, error)
}

// TokenSource supplies the current access token for authenticated calls.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Client is the HTTP GraphQLClient implementation.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient creates a GraphQL client against the AniList API.
func NewClient(tokens TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: graphqlURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
		logger: logger,
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Execute posts one GraphQL request. Non-200 status or malformed JSON
// yields domain.ErrInvalidResponse.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}, authRequired bool) (json.RawMessage, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if authRequired {
		token, ok := c.tokens.AccessToken()
		if !ok {
			return nil, domain.ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("graphql request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("graphql request error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: status %d", domain.ErrInvalidResponse, resp.StatusCode)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}

	if len(gqlResp.Errors) > 0 {
		messages := make([]string, len(gqlResp.Errors))
		for i, e := range gqlResp.Errors {
			messages[i] = e.Message
		}
		return nil, &domain.GraphQLError{Messages: messages}
	}

	return gqlResp.Data, nil
}
