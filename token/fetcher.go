package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bankgw/webhook-gateway/config"
	"github.com/bankgw/webhook-gateway/webhook/signature"
)

/* Fetcher performs one OAuth2 client-credentials exchange per call.
 * Pure request/response: no caching, no retries. The store decides when a
 * fetch happens and the scheduler decides when to refresh proactively.
 */
type Fetcher interface {
	Fetch(ctx context.Context) (Token, error)
}

// tokenResponse is the success body from the bank's login endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// HTTPFetcher exchanges client credentials against the bank's login endpoint.
type HTTPFetcher struct {
	client    *http.Client
	cfg       config.OAuthConfig
	staticKey string
	now       func() time.Time
}

// NewHTTPFetcher creates a fetcher for the configured token endpoint.
func NewHTTPFetcher(cfg config.OAuthConfig, staticKey string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		cfg:       cfg,
		staticKey: staticKey,
		now:       time.Now,
	}
}

// Fetch performs the client-credentials exchange and computes the token
// expiry from the reported expires_in.
func (f *HTTPFetcher) Fetch(ctx context.Context) (Token, error) {
	obtainedAt := f.now()
	timestamp := signature.Timestamp(obtainedAt)
	sig := signature.Sign(f.staticKey, f.cfg.APIKey, timestamp, []byte(f.cfg.GrantBody))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TokenURL, strings.NewReader(f.cfg.GrantBody))
	if err != nil {
		return Token{}, &AuthError{Err: fmt.Errorf("building token request: %w", err)}
	}

	basic := base64.StdEncoding.EncodeToString([]byte(f.cfg.Username + ":" + f.cfg.Password))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", f.cfg.APIKey)
	req.Header.Set("OAUTH-Timestamp", timestamp)
	req.Header.Set("OAUTH-Signature", sig)

	resp, err := f.client.Do(req)
	if err != nil {
		return Token{}, &AuthError{Err: fmt.Errorf("calling token endpoint: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("reading token response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("token endpoint rejected login")
		return Token{}, &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, &AuthError{Status: resp.StatusCode, Body: string(body), Err: fmt.Errorf("parsing token response: %w", err)}
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return Token{}, &AuthError{Status: resp.StatusCode, Body: string(body), Err: fmt.Errorf("token response missing access_token or expires_in")}
	}

	tok := Token{
		AccessToken: tr.AccessToken,
		ObtainedAt:  obtainedAt,
		ExpiresAt:   obtainedAt.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}

	log.Info().
		Int64("expires_in", tr.ExpiresIn).
		Time("expires_at", tok.ExpiresAt).
		Msg("obtained access token")

	return tok, nil
}
