package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
)

// userAgent is the fixed client identification header sent on every
// outbound provider call.
const userAgent = "commitbadge/1.0"

// TokenAuthConfig configures bearer-token authentication. An empty token
// produces an unauthenticated client that still carries the identification
// header.
type TokenAuthConfig struct {
	Token   string
	Timeout time.Duration
}

// InstallationAuthConfig configures GitHub App installation authentication.
type InstallationAuthConfig struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	Timeout        time.Duration
	BaseTransport  http.RoundTripper
}

// MonitoredUser is the verified provider-side view of the monitored identity.
type MonitoredUser struct {
	Login string
	Type  string
}

// IsBotAccount reports whether the provider classifies the account as a bot.
func (u MonitoredUser) IsBotAccount() bool {
	return strings.EqualFold(u.Type, "Bot")
}

type identityTransport struct {
	base  http.RoundTripper
	token string
}

func (t *identityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("User-Agent", userAgent)
	cloned.Header.Set("Accept", "application/vnd.github+json")
	if t.token != "" {
		cloned.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(cloned)
}

// NewTokenHTTPClient creates an HTTP client that attaches the identification
// header and, when configured, a bearer credential.
func NewTokenHTTPClient(cfg TokenAuthConfig) *http.Client {
	return &http.Client{
		Transport: &identityTransport{
			base:  http.DefaultTransport,
			token: strings.TrimSpace(cfg.Token),
		},
		Timeout: cfg.Timeout,
	}
}

// NewInstallationHTTPClient creates an authenticated HTTP client for one
// GitHub App installation.
func NewInstallationHTTPClient(cfg InstallationAuthConfig) (*http.Client, error) {
	if cfg.AppID <= 0 {
		return nil, fmt.Errorf("app id must be > 0")
	}
	if cfg.InstallationID <= 0 {
		return nil, fmt.Errorf("installation id must be > 0")
	}
	if strings.TrimSpace(cfg.PrivateKeyPath) == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	baseTransport := cfg.BaseTransport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	baseTransport = &identityTransport{base: baseTransport}

	transport, err := ghinstallation.NewKeyFromFile(baseTransport, cfg.AppID, cfg.InstallationID, cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("create github app transport: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}

// RESTClient wraps the go-github REST client used for identity lookups.
type RESTClient struct {
	Client *github.Client
}

// NewGitHubRESTClient creates a go-github client with optional API base URL
// override.
func NewGitHubRESTClient(httpClient *http.Client, apiBaseURL string) (*RESTClient, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client := github.NewClient(httpClient)
	trimmedBaseURL := strings.TrimSpace(apiBaseURL)
	if trimmedBaseURL == "" {
		return &RESTClient{Client: client}, nil
	}

	parsedURL, err := url.Parse(trimmedBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	client.BaseURL = parsedURL
	return &RESTClient{Client: client}, nil
}

// VerifyMonitoredUser looks up the monitored identity on the provider and
// returns its canonical login and account type.
func (c *RESTClient) VerifyMonitoredUser(ctx context.Context, username string) (MonitoredUser, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return MonitoredUser{}, fmt.Errorf("username is required")
	}
	if c == nil || c.Client == nil {
		return MonitoredUser{}, fmt.Errorf("rest client is not initialized")
	}

	user, _, err := c.Client.Users.Get(ctx, trimmed)
	if err != nil {
		return MonitoredUser{}, fmt.Errorf("look up user %q: %w", trimmed, err)
	}

	return MonitoredUser{
		Login: user.GetLogin(),
		Type:  user.GetType(),
	}, nil
}
