package anilist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaede-io/anibox/internal/config"
	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/log"
	"github.com/kaede-io/anibox/internal/store"
)

// fakeClient scripts GraphQL responses per query.
type fakeClient struct {
	handler func(query string, variables map[string]interface{}, authRequired bool) (json.RawMessage, error)
}

func (f *fakeClient) Execute(ctx context.Context, query string, variables map[string]interface{}, authRequired bool) (json.RawMessage, error) {
	return f.handler(query, variables, authRequired)
}

func newTestSync(t *testing.T, client GraphQLClient) *Sync {
	t.Helper()
	kv, err := store.NewBoltStore("")
	require.NoError(t, err)
	return NewSync(client, kv, config.AniListConfig{ClientID: "id", ClientSecret: "secret"}, log.NullLogger())
}

func TestExpiredSessionIsNotAuthenticated(t *testing.T) {
	s := newTestSync(t, &fakeClient{})
	s.session = domain.AuthSession{
		AccessToken: "abc",
		ExpiresAt:   time.Now().Add(-time.Second),
	}

	assert.False(t, s.IsAuthenticated())
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	s := newTestSync(t, &fakeClient{})
	s.session = domain.AuthSession{
		AccessToken: "abc",
		ExpiresAt:   time.Now().Add(-time.Second),
	}

	err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoRefreshToken)
	assert.NotErrorIs(t, err, domain.ErrTokenRefreshFailed)
}

func TestAuthenticateStoresTokenTriple(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "authorization_code", body["grant_type"])
		assert.Equal(t, "code123", body["code"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	s := newTestSync(t, &fakeClient{})
	s.tokenURL = srv.URL

	require.NoError(t, s.Authenticate(context.Background(), "code123"))

	session := s.Session()
	assert.Equal(t, "new-access", session.AccessToken)
	assert.Equal(t, "new-refresh", session.RefreshToken)
	assert.True(t, s.IsAuthenticated())
}

func TestAuthenticateFailureLeavesSessionUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := newTestSync(t, &fakeClient{})
	s.tokenURL = srv.URL
	prior := domain.AuthSession{AccessToken: "old", ExpiresAt: time.Now().Add(time.Hour)}
	s.session = prior

	err := s.Authenticate(context.Background(), "bad-code")
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Equal(t, prior, s.Session())
}

func TestRefreshReplacesAllFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh_token", body["grant_type"])
		assert.Equal(t, "old-refresh", body["refresh_token"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "rotated-access",
			"refresh_token": "rotated-refresh",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	s := newTestSync(t, &fakeClient{})
	s.tokenURL = srv.URL
	s.session = domain.AuthSession{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	require.NoError(t, s.Refresh(context.Background()))

	session := s.Session()
	assert.Equal(t, "rotated-access", session.AccessToken)
	assert.Equal(t, "rotated-refresh", session.RefreshToken)
}

func TestRefreshTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestSync(t, &fakeClient{})
	s.tokenURL = srv.URL
	s.session = domain.AuthSession{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrTokenRefreshFailed)
}

func TestFailedRefreshClearsSession(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := &fakeClient{handler: func(query string, vars map[string]interface{}, auth bool) (json.RawMessage, error) {
		t.Fatal("unexpected list service call")
		return nil, nil
	}}
	s := newTestSync(t, client)
	s.tokenURL = srv.URL
	s.session = domain.AuthSession{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrTokenRefreshFailed)
	assert.Equal(t, 1, hits)

	// The rejected refresh token is gone, not waiting to be retried
	assert.Empty(t, s.Session())
	assert.False(t, s.IsAuthenticated())

	// Subsequent authenticated calls see unauthenticated without touching
	// the token endpoint again
	_, err = s.FetchLibrary(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Equal(t, 1, hits)
}

func TestStoreAccessTokenImplicitGrant(t *testing.T) {
	s := newTestSync(t, &fakeClient{})
	s.StoreAccessToken("implicit-token")

	session := s.Session()
	assert.Equal(t, "implicit-token", session.AccessToken)
	assert.Empty(t, session.RefreshToken)
	// Long-lived: roughly a year out
	assert.True(t, session.ExpiresAt.After(time.Now().Add(364*24*time.Hour)))
	assert.True(t, s.IsAuthenticated())
}

func TestLogoutIsIdempotent(t *testing.T) {
	s := newTestSync(t, &fakeClient{})
	s.StoreAccessToken("tok")

	s.Logout()
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Session().AccessToken)

	s.Logout() // second call is harmless
	assert.False(t, s.IsAuthenticated())
}

func TestSessionPersistsAcrossRestart(t *testing.T) {
	kv, err := store.NewBoltStore("")
	require.NoError(t, err)

	s := NewSync(&fakeClient{}, kv, config.AniListConfig{}, log.NullLogger())
	s.StoreAccessToken("persisted")

	s2 := NewSync(&fakeClient{}, kv, config.AniListConfig{}, log.NullLogger())
	assert.Equal(t, "persisted", s2.Session().AccessToken)
	assert.True(t, s2.IsAuthenticated())
}
