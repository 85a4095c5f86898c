package baidu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTokenURL is the OAuth2 endpoint of the Baidu AI platform
const DefaultTokenURL = "https://aip.baidubce.com/oauth/2.0/token"

type credential struct {
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// CredentialCache obtains the upstream access token with a client
// credentials exchange and keeps it until shortly before it expires.
// Concurrent callers that find no valid token share one exchange.
type CredentialCache struct {
	client       *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	timeout      time.Duration
	skew         time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.RWMutex
	current *credential
	group   singleflight.Group
}

// NewCredentialCache creates a credential cache. Both the API key and the
// secret key are required.
func NewCredentialCache(
	client *http.Client,
	tokenURL string,
	clientID string,
	clientSecret string,
	timeout time.Duration,
	skew time.Duration,
	logger *zap.Logger,
) (*CredentialCache, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: baidu api key and secret key are required", core.ErrConfiguration)
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return &CredentialCache{
		client:       client,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		timeout:      timeout,
		skew:         skew,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Token returns the cached token, exchanging credentials when it is missing
// or expired
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	v, err, shared := c.group.Do("token", func() (interface{}, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug("Shared in-flight token exchange")
	}
	return v.(string), nil
}

// Invalidate drops the cached token if it is still the given one
func (c *CredentialCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.token == token {
		c.current = nil
		c.logger.Info("Invalidated cached access token")
	}
}

func (c *CredentialCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil || !c.now().Before(c.current.expiresAt) {
		return "", false
	}
	return c.current.token, true
}

// exchange runs detached from the first caller's cancellation since its
// result is shared by every waiting caller
func (c *CredentialCache) exchange(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	cred, err := c.fetch(ctx)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("failure").Inc()
		c.logger.Error("Failed to obtain access token", zap.Error(err))
		return "", err
	}
	metrics.TokenExchanges.WithLabelValues("success").Inc()

	c.mu.Lock()
	c.current = cred
	c.mu.Unlock()

	c.logger.Info("Obtained access token", zap.Time("expires_at", cred.expiresAt))
	return cred.token, nil
}

func (c *CredentialCache) fetch(ctx context.Context) (*credential, error) {
	u, err := url.Parse(c.tokenURL)
	if err != nil {
		return nil, core.NewAuthError("invalid token url", err)
	}
	q := u.Query()
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", c.clientID)
	q.Set("client_secret", c.clientSecret)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, core.NewAuthError("failed to build token request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, core.NewAuthError("token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, core.NewAuthError("failed to read token response", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil && resp.StatusCode == http.StatusOK {
		return nil, core.NewAuthError("failed to parse token response", err)
	}

	if resp.StatusCode != http.StatusOK || tr.Error != "" || tr.AccessToken == "" {
		msg := fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)
		if tr.Error != "" {
			msg = fmt.Sprintf("%s: %s %s", msg, tr.Error, tr.ErrorDescription)
		}
		return nil, core.NewAuthError(msg, nil)
	}

	return &credential{
		token:     tr.AccessToken,
		expiresAt: c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - c.skew),
	}, nil
}
