package zalo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/edgard/zalobot/internal/errs"
)

const (
	// PlaceholderRefreshToken and PlaceholderAccessToken are the unconfigured
	// values shipped in sample env files; they are treated as absent.
	PlaceholderRefreshToken = "your_refresh_token"
	PlaceholderAccessToken  = "your_access_token"

	// DefaultTokenLifetime applies when the token endpoint omits expires_in.
	DefaultTokenLifetime = 3600 * time.Second

	// ExpiryMargin is subtracted from the expiry when deciding if a cached token is usable.
	ExpiryMargin = 60 * time.Second
)

// Token is the result of a refresh exchange.
type Token struct {
	AccessToken  string
	RefreshToken string // rotated refresh token, empty when not returned
	Expiry       time.Time
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// TokenCache holds the single process-wide access token.
type TokenCache struct {
	refresher Refresher
	logger    *slog.Logger
	now       func() time.Time
	group     singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	rotated   string
}

// NewTokenCache creates a cache seeded with seedToken and no known expiry.
func NewTokenCache(seedToken string, refresher Refresher, logger *slog.Logger) *TokenCache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if seedToken == PlaceholderAccessToken {
		seedToken = ""
	}
	return &TokenCache{
		refresher: refresher,
		logger:    logger.With("component", "token_cache"),
		now:       time.Now,
		token:     seedToken,
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *TokenCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// GetValidToken returns a usable access token, refreshing when needed.
//
// A cached token with a known expiry is returned while now < expiry-ExpiryMargin.
// A seeded token without expiry triggers one refresh and is returned as-is if
// that refresh fails. Otherwise a failed refresh falls back to fallbackCredential
// when it is configured.
func (c *TokenCache) GetValidToken(ctx context.Context, refreshCredential, fallbackCredential string) (string, error) {
	c.mu.Lock()
	token, expiresAt, now := c.token, c.expiresAt, c.now()
	c.mu.Unlock()

	if token != "" && !expiresAt.IsZero() && now.Before(expiresAt.Add(-ExpiryMargin)) {
		return token, nil
	}

	if token != "" && expiresAt.IsZero() {
		fresh, err := c.refresh(ctx, refreshCredential)
		if err != nil {
			c.logger.WarnContext(ctx, "Could not refresh token, using initial access token", "error", err)
			return token, nil
		}
		return fresh, nil
	}

	fresh, err := c.refresh(ctx, refreshCredential)
	if err != nil {
		if fallbackCredential != "" && fallbackCredential != PlaceholderAccessToken {
			c.logger.WarnContext(ctx, "Token refresh failed, using configured access token as fallback", "error", err)
			return fallbackCredential, nil
		}
		c.logger.ErrorContext(ctx, "Token refresh failed and no fallback is configured", "error", err)
		return "", err
	}
	return fresh, nil
}

// ExpiresAt returns the expiry of the cached token, zero when unknown.
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// refresh performs one exchange. Concurrent callers share the same exchange.
func (c *TokenCache) refresh(ctx context.Context, refreshCredential string) (string, error) {
	v, err, shared := c.group.Do("refresh", func() (any, error) {
		c.mu.Lock()
		credential := refreshCredential
		if c.rotated != "" {
			credential = c.rotated
		}
		c.mu.Unlock()

		tok, err := c.refresher.Refresh(ctx, credential)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.token = tok.AccessToken
		c.expiresAt = tok.Expiry
		if c.expiresAt.IsZero() {
			c.expiresAt = c.now().Add(DefaultTokenLifetime)
		}
		if tok.RefreshToken != "" {
			c.rotated = tok.RefreshToken
		}
		c.logger.InfoContext(ctx, "Access token refreshed", "expires_at", c.expiresAt)
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.DebugContext(ctx, "Joined in-flight token refresh")
	}
	return v.(string), nil
}

// OAuthRefresher exchanges refresh tokens at the Zalo OA OAuth endpoint.
type OAuthRefresher struct {
	config     oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuthRefresher builds a refresher for the given app. secretKey is sent in
// the secret_key header Zalo requires on token requests.
func NewOAuthRefresher(appID, secretKey, tokenURL string, timeout time.Duration) *OAuthRefresher {
	return &OAuthRefresher{
		config: oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &zaloTokenTransport{
				base:      http.DefaultTransport,
				appID:     appID,
				secretKey: secretKey,
			},
		},
		now: time.Now,
	}
}

// Refresh implements Refresher.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" || refreshToken == PlaceholderRefreshToken {
		return nil, errs.NewCredentialError("zalo refresh token is not configured", nil)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, errs.NewNetworkError("failed to refresh zalo access token", err)
	}
	if tok.AccessToken == "" {
		return nil, errs.NewNetworkError("zalo token endpoint returned no access token", nil)
	}

	out := &Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}
	if tok.RefreshToken != refreshToken {
		out.RefreshToken = tok.RefreshToken
	}
	if out.Expiry.IsZero() {
		out.Expiry = r.now().Add(DefaultTokenLifetime)
	}
	return out, nil
}

// zaloTokenTransport adds the app_id parameter and secret_key header that the
// Zalo token endpoint expects in place of standard client credentials.
type zaloTokenTransport struct {
	base      http.RoundTripper
	appID     string
	secretKey string
}

func (t *zaloTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.secretKey != "" {
		req.Header.Set("secret_key", t.secretKey)
	}
	if t.appID != "" {
		q := req.URL.Query()
		q.Set("app_id", t.appID)
		req.URL.RawQuery = q.Encode()
	}
	return t.base.RoundTrip(req)
}
