package lakehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew is subtracted from token expiry so a token is refreshed before
// the remote system would reject it mid-request.
const expirySkew = 1 * time.Minute

// tokenSource yields the bearer token for outgoing requests.
type tokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// staticTokenSource wraps a personal access token.
type staticTokenSource struct {
	token string
}

func (s *staticTokenSource) AccessToken(context.Context) (string, error) {
	return s.token, nil
}

// oauthTokenSource obtains machine-to-machine tokens from the workspace
// token endpoint (client-credentials grant) and caches the token until near
// expiry.
type oauthTokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newOAuthTokenSource(host, clientID, clientSecret string, httpClient *http.Client) *oauthTokenSource {
	return &oauthTokenSource{
		tokenURL:     strings.TrimRight(host, "/") + "/oidc/v1/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *oauthTokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiresAt.Add(-expirySkew)) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "all-apis")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	s.token = tok.AccessToken
	s.expiresAt = tokenExpiry(tok)
	return s.token, nil
}

// tokenExpiry resolves when a token stops being usable. The endpoint usually
// reports expires_in; when it does not, the exp claim of the (trusted, so
// unverified) JWT access token is used, falling back to a conservative
// default.
func tokenExpiry(tok tokenResponse) time.Time {
	if tok.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, _, err := parser.ParseUnverified(tok.AccessToken, &jwt.RegisteredClaims{})
	if err == nil {
		if claims, ok := parsed.Claims.(*jwt.RegisteredClaims); ok && claims.ExpiresAt != nil {
			return claims.ExpiresAt.Time
		}
	}

	return time.Now().Add(10 * time.Minute)
}
