package authsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Session is an authenticated client. On a 401 it renews its access token
// with the refresh token once and replays the request.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *UserResponse // set by Login
}

// AccessToken returns the current access token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// User returns the account returned at login, or nil for sessions built
// from tokens.
func (s *Session) User() *UserResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Logout ends the session server side. The session is unusable afterwards.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken, s.refreshToken = "", ""
	s.mu.Unlock()
	return nil
}

// doAuthRequest sends an authenticated JSON request, renewing the access
// token and retrying once if the server answers 401.
func (s *Session) doAuthRequest(ctx context.Context, method, path string, in any) (*http.Response, error) {
	body, err := encodeBody(in)
	if err != nil {
		return nil, err
	}

	token := s.AccessToken()
	resp, err := s.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	renewed, rerr := s.renew(ctx, token)
	if rerr != nil {
		// Report the original 401, not the renewal failure
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return s.send(ctx, method, path, body, renewed)
}

func (s *Session) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	req, err := s.client.newRequest(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// renew swaps in a new access token. If another goroutine already replaced
// stale, its token is reused instead of refreshing again.
func (s *Session) renew(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != stale {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", fmt.Errorf("access token rejected and no refresh token available")
	}

	token, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = token
	return token, nil
}
