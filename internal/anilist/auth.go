package anilist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kaede-io/anibox/internal/config"
	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/retry"
)

const (
	tokenURL = "https://anilist.co/api/v2/oauth/token"

	keyAccessToken  = "auth:access_token"
	keyRefreshToken = "auth:refresh_token"
	keyExpiresAt    = "auth:expires_at"

	// implicitGrantLifetime is used when a raw token is stored with no
	// refresh token; expiry then requires a full re-auth.
	implicitGrantLifetime = 365 * 24 * time.Hour
)

// Sync manages the AniList session and library reconciliation. The token
// triple is persisted through the key/value store and replaced wholesale on
// every refresh.
type Sync struct {
	client      GraphQLClient
	kv          domain.KeyValueStore
	cfg         config.AniListConfig
	logger      *slog.Logger
	now         func() time.Time
	httpClient  *http.Client
	tokenURL    string
	retryPolicy retry.Policy

	mu      sync.RWMutex
	session domain.AuthSession
}

// NewSync creates the sync service, loading any persisted session.
// A nil client makes the service construct its own HTTP GraphQL client.
func NewSync(client GraphQLClient, kv domain.KeyValueStore, cfg config.AniListConfig, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sync{
		client: client,
		kv:     kv,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokenURL:    tokenURL,
		retryPolicy: retry.DefaultPolicy(),
	}
	s.retryPolicy.Retryable = transientError
	if s.client == nil {
		s.client = NewClient(s, logger)
	}

	s.session = s.loadSession()
	if s.session.AccessToken != "" {
		logger.Debug("loaded auth session", "expiresAt", s.session.ExpiresAt)
	}
	return s
}

// AccessToken implements TokenSource for the GraphQL client.
func (s *Sync) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.session.IsAuthenticatedAt(s.now()) {
		return "", false
	}
	return s.session.AccessToken, true
}

// Session returns a copy of the current session.
func (s *Sync) Session() domain.AuthSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// IsAuthenticated reports whether the session carries a usable token.
func (s *Sync) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticatedAt(s.now())
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Authenticate exchanges an authorization code for a token triple. On any
// transport or shape failure the prior session is left untouched.
func (s *Sync) Authenticate(ctx context.Context, code string) error {
	resp, err := s.exchangeToken(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     s.cfg.ClientID,
		"client_secret": s.cfg.ClientSecret,
		"redirect_uri":  s.cfg.RedirectURI,
		"code":          code,
	})
	if err != nil {
		s.logger.Error("authentication failed", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}

	s.storeSession(domain.AuthSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	})
	s.logger.Info("authenticated with list service")
	return nil
}

// StoreAccessToken stores a token obtained via the implicit grant: a
// year-long expiry and no refresh token, so expiry requires full re-auth.
func (s *Sync) StoreAccessToken(token string) {
	s.storeSession(domain.AuthSession{
		AccessToken: token,
		ExpiresAt:   s.now().Add(implicitGrantLifetime),
	})
	s.logger.Info("stored implicit-grant token")
}

// Refresh exchanges the stored refresh token for a new token triple,
// replacing all three fields on success. A failed exchange clears the
// session entirely; the next call sees unauthenticated instead of retrying
// a refresh token the server already rejected.
func (s *Sync) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.session.RefreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return domain.ErrNoRefreshToken
	}

	resp, err := s.exchangeToken(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     s.cfg.ClientID,
		"client_secret": s.cfg.ClientSecret,
		"refresh_token": refreshToken,
	})
	if err != nil {
		s.logger.Error("token refresh failed", "error", err)
		s.Logout()
		return fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}

	s.storeSession(domain.AuthSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	})
	s.logger.Info("refreshed auth session")
	return nil
}

// Logout clears all three token fields unconditionally. Idempotent.
func (s *Sync) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = domain.AuthSession{}
	s.kv.Remove(keyAccessToken)
	s.kv.Remove(keyRefreshToken)
	s.kv.Remove(keyExpiresAt)
	s.logger.Info("logged out of list service")
}

// ensureAuthenticated gates authenticated calls. An expired session with a
// refresh token is renewed in place; without one it lazily transitions to
// unauthenticated.
func (s *Sync) ensureAuthenticated(ctx context.Context) error {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()

	if session.IsAuthenticatedAt(s.now()) {
		return nil
	}
	if session.RefreshToken != "" {
		return s.Refresh(ctx)
	}
	if session.AccessToken != "" {
		// Expired with no way to renew; drop the dead session
		s.Logout()
	}
	return domain.ErrNotAuthenticated
}

func (s *Sync) exchangeToken(ctx context.Context, params map[string]string) (*tokenResponse, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &token, nil
}

func (s *Sync) storeSession(session domain.AuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
	s.kv.Set(keyAccessToken, []byte(session.AccessToken))
	if session.RefreshToken != "" {
		s.kv.Set(keyRefreshToken, []byte(session.RefreshToken))
	} else {
		s.kv.Remove(keyRefreshToken)
	}
	s.kv.Set(keyExpiresAt, []byte(session.ExpiresAt.Format(time.RFC3339)))
}

func (s *Sync) loadSession() domain.AuthSession {
	var session domain.AuthSession
	if v, ok := s.kv.Get(keyAccessToken); ok {
		session.AccessToken = string(v)
	}
	if v, ok := s.kv.Get(keyRefreshToken); ok {
		session.RefreshToken = string(v)
	}
	if v, ok := s.kv.Get(keyExpiresAt); ok {
		if t, err := time.Parse(time.RFC3339, string(v)); err == nil {
			session.ExpiresAt = t
		}
	}
	return session
}
