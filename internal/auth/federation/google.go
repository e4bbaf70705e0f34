// Package federation signs users in through Google's OAuth 2.0 web flow.
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	maxResponseBytes = 1 << 20
)

var (
	ErrNotConfigured    = errors.New("federation: google sign-in is not configured")
	ErrEmailNotVerified = errors.New("federation: google email is not verified")
)

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// Endpoint overrides, for tests.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.CallbackURL != ""
}

// Profile is the subset of Google's userinfo we use.
type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ProviderError is a non-2xx answer from Google.
type ProviderError struct {
	Operation   string
	Status      int
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("federation: google %s failed (%d): %s %s", e.Operation, e.Status, e.Code, e.Description)
}

type Google struct {
	cfg    GoogleConfig
	client *http.Client
}

func NewGoogle(cfg GoogleConfig) *Google {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Google{cfg: cfg, client: client}
}

func (g *Google) Enabled() bool { return g != nil && g.cfg.Enabled() }

// AuthCodeURL is where the browser is sent to consent.
func (g *Google) AuthCodeURL(state string) string {
	params := url.Values{
		"client_id":     {g.cfg.ClientID},
		"redirect_uri":  {g.cfg.CallbackURL},
		"response_type": {"code"},
		"scope":         {strings.Join(g.cfg.Scopes, " ")},
		"state":         {state},
		"prompt":        {"select_account"},
	}
	return g.cfg.AuthURL + "?" + params.Encode()
}

// Exchange trades an authorization code for Google's access token.
func (g *Google) Exchange(ctx context.Context, code string) (string, error) {
	if !g.Enabled() {
		return "", ErrNotConfigured
	}

	data := url.Values{
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"code":          {code},
		"redirect_uri":  {g.cfg.CallbackURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	status, err := g.do(req, &tok)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || tok.Error != "" {
		return "", &ProviderError{Operation: "exchange", Status: status, Code: tok.Error, Description: tok.Description}
	}
	if tok.AccessToken == "" {
		return "", &ProviderError{Operation: "exchange", Status: status, Code: "missing_access_token"}
	}
	return tok.AccessToken, nil
}

// UserInfo fetches the profile behind a Google access token.
func (g *Google) UserInfo(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.UserInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var p Profile
	status, err := g.do(req, &p)
	if err != nil {
		return Profile{}, err
	}
	if status != http.StatusOK {
		return Profile{}, &ProviderError{Operation: "user_info", Status: status}
	}
	return p, nil
}

// Authenticate runs the callback half of the flow: code to verified profile.
func (g *Google) Authenticate(ctx context.Context, code string) (Profile, error) {
	token, err := g.Exchange(ctx, code)
	if err != nil {
		return Profile{}, err
	}

	p, err := g.UserInfo(ctx, token)
	if err != nil {
		return Profile{}, err
	}
	if p.Email == "" || !p.EmailVerified {
		return Profile{}, ErrEmailNotVerified
	}
	return p, nil
}

// do sends req and decodes a JSON body into v regardless of status, so error
// payloads are available to the caller.
func (g *Google) do(req *http.Request, v any) (int, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("federation: google request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("federation: read google response: %w", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil && resp.StatusCode == http.StatusOK {
			return resp.StatusCode, fmt.Errorf("federation: decode google response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
