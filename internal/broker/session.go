package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"alerttrader/internal/config"
	"alerttrader/internal/observ"
)

// Credentials are the interactive login credentials for the venue. The auth
// flow drives the venue's browser login form headlessly, so these are the
// same username/password a human would type.
type Credentials struct {
	Username string
	Password string
}

// Token is the venue token endpoint's response, persisted verbatim between
// runs so a restart can resume with a refresh instead of a full login.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Session owns the OAuth authorization-code flow against the venue: initial
// authentication, token refresh, and passive expiry checks. Safe for
// concurrent use.
type Session struct {
	env   config.Environment
	creds Credentials
	file  string
	state string

	mu    sync.Mutex
	token Token

	// client must not follow redirects: the flow reads Location headers.
	client *http.Client
}

func NewSession(env config.Environment, creds Credentials, file string) *Session {
	return &Session{
		env:   env,
		creds: creds,
		file:  file,
		state: uuid.NewString(),
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Token returns the current access token.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token.AccessToken
}

// Connect establishes a usable session: resume from the persisted token file
// when possible, refresh if it is stale, fall back to a full login.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.loadFile(); err != nil {
		observ.Log("session_no_saved_token", map[string]any{"file": s.file})
		return s.Authenticate(ctx)
	}
	if Valid(s.Token()) {
		observ.Log("session_resumed", map[string]any{"token": mask(s.Token())})
		return nil
	}
	return s.Refresh(ctx)
}

// EnsureValid refreshes the session if the current access token has expired.
func (s *Session) EnsureValid(ctx context.Context) error {
	if Valid(s.Token()) {
		return nil
	}
	return s.Refresh(ctx)
}

// Authenticate runs the full authorization-code grant: request the login
// page, submit credentials, follow the redirect back and exchange the code.
func (s *Session) Authenticate(ctx context.Context) error {
	authURL := fmt.Sprintf("%s?response_type=code&client_id=%s&state=%s&redirect_uri=%s",
		s.env.AuthEndpoint,
		url.QueryEscape(s.env.AppKey),
		url.QueryEscape(s.state),
		url.QueryEscape(s.env.RedirectURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return NewAuthError("authorize", "build request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return NewAuthError("authorize", "request failed", err)
	}
	resp.Body.Close()
	loginURL, err := locationOf(resp)
	if err != nil {
		return NewAuthError("authorize", "no login redirect", err)
	}

	form := url.Values{
		"field_userid":   {s.creds.Username},
		"field_password": {s.creds.Password},
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return NewAuthError("login", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = s.client.Do(req)
	if err != nil {
		return NewAuthError("login", "request failed", err)
	}
	resp.Body.Close()
	nextURL, err := locationOf(resp)
	if err != nil {
		return NewAuthError("login", "credentials rejected", err)
	}
	if strings.Contains(nextURL, "ChangePassword") {
		return NewAuthError("login", "venue demands a password change", nil)
	}
	if strings.Contains(nextURL, "Disclaimer") {
		return NewAuthError("login", "venue demands disclaimer acceptance", nil)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, nextURL, nil)
	if err != nil {
		return NewAuthError("callback", "build request", err)
	}
	resp, err = s.client.Do(req)
	if err != nil {
		return NewAuthError("callback", "request failed", err)
	}
	resp.Body.Close()
	callbackURL, err := locationOf(resp)
	if err != nil {
		return NewAuthError("callback", "no code redirect", err)
	}
	code, err := codeOf(callbackURL)
	if err != nil {
		return NewAuthError("callback", "redirect carries no code", err)
	}

	if err := s.exchange(ctx, url.Values{"grant_type": {"authorization_code"}, "code": {code}}); err != nil {
		return err
	}
	observ.Log("session_authenticated", map[string]any{"token": mask(s.Token())})
	return nil
}

// Refresh exchanges the refresh token for a new access token. A failed
// refresh falls back to a full re-authentication before giving up.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.token.RefreshToken
	s.mu.Unlock()

	if refreshToken != "" {
		err := s.exchange(ctx, url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refreshToken}})
		if err == nil {
			observ.Log("session_refreshed", map[string]any{"token": mask(s.Token())})
			return nil
		}
		observ.Warn("session_refresh_failed", map[string]any{"error": err.Error()})
	}
	return s.Authenticate(ctx)
}

func (s *Session) exchange(ctx context.Context, form url.Values) error {
	form.Set("redirect_uri", s.env.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.env.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return NewAuthError("token", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.env.AppKey, s.env.AppSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return NewAuthError("token", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return NewAuthError("token", fmt.Sprintf("token endpoint returned %d", resp.StatusCode), nil)
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return NewAuthError("token", "decode response", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.saveFile(); err != nil {
		observ.Warn("session_save_failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// Valid passively checks an access token: decode without verifying the
// signature and inspect the expiry claim. Tokens we cannot decode count as
// invalid; tokens without an expiry count as valid.
func Valid(token string) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return exp.After(time.Now())
}

func (s *Session) loadFile() error {
	b, err := os.ReadFile(s.file)
	if err != nil {
		return err
	}
	var token Token
	if err := json.Unmarshal(b, &token); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *Session) saveFile() error {
	s.mu.Lock()
	b, err := json.Marshal(s.token)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(s.file, b, 0o600)
}

// locationOf extracts the Location header of a redirect response, resolving
// relative targets against the request URL.
func locationOf(resp *http.Response) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("response %d has no Location header", resp.StatusCode)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL.ResolveReference(u)
	}
	return u.String(), nil
}

func codeOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("no code parameter in %s", rawURL)
	}
	return code, nil
}

// mask shortens a token for log output.
func mask(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
