package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrNotConfigured indicates no server base URL has been set
	ErrNotConfigured = errors.New("server is not configured")

	// ErrInvalidEndpoint indicates the configured base URL is not usable
	ErrInvalidEndpoint = errors.New("server endpoint is invalid")

	// ErrNetwork indicates a transport-level failure reaching the server
	ErrNetwork = errors.New("network request failed")

	// ErrDecoding indicates a response did not match the expected shape
	ErrDecoding = errors.New("failed to decode response")

	// ErrQueryTooShort indicates a search query below the minimum length
	ErrQueryTooShort = errors.New("search query must be at least 3 characters")

	// ErrNotAuthenticated indicates no valid session for an authenticated call
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoRefreshToken indicates a refresh was requested without a refresh token
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrTokenRefreshFailed indicates the token refresh exchange failed
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrAuthenticationFailed indicates the authorization code exchange failed
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrFetchLibrary indicates the remote library fetch failed
	ErrFetchLibrary = errors.New("failed to fetch remote library")

	// ErrInvalidResponse indicates a non-200 or malformed GraphQL response
	ErrInvalidResponse = errors.New("invalid response from list service")
)

// ServerError carries a non-2xx status from the content API so callers can
// branch on the code (e.g. treat 404 as empty rather than broken).
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error %d", e.StatusCode)
}

// GraphQLError is a provider-reported error distinct from transport failure.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 0 {
		return "graphql request failed"
	}
	return "graphql request failed: " + e.Messages[0]
}
