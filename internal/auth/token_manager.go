package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/retry"
)

const (
	defaultBaseURL = "https://api.github.com"
	// refreshSkew renews a token this long before it actually expires.
	refreshSkew = time.Minute
	// tokenLifetime is assumed when the forge omits expires_at.
	tokenLifetime = time.Hour
	perPage       = 100
)

// InstallationTokens resolves and caches installation access tokens per owner.
// It is the only state shared between concurrent builds.
type InstallationTokens struct {
	signer  Signer
	baseURL string
	client  *http.Client
	policy  retry.Policy
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]domain.InstallationCredential
	group singleflight.Group
}

// Option configures InstallationTokens.
type Option func(*InstallationTokens)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(t *InstallationTokens) { t.client = c }
}

// WithRetryPolicy sets the retry policy for both endpoints.
func WithRetryPolicy(p retry.Policy) Option {
	return func(t *InstallationTokens) { t.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *InstallationTokens) { t.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *InstallationTokens) { t.now = now }
}

// NewInstallationTokens creates a token cache.
// Pass an empty baseURL to use the real GitHub API. Pass a test server URL in tests.
func NewInstallationTokens(signer Signer, baseURL string, opts ...Option) *InstallationTokens {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	t := &InstallationTokens{
		signer:  signer,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
		now:     time.Now,
		cache:   make(map[string]domain.InstallationCredential),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CredentialFor returns a valid installation token for owner, reusing the
// cached one until it is about to expire. Concurrent misses for the same
// owner share a single exchange.
func (t *InstallationTokens) CredentialFor(ctx context.Context, owner string) (domain.InstallationCredential, error) {
	key := strings.ToLower(owner)
	if cred, ok := t.cached(key); ok {
		return cred, nil
	}

	// The exchange outlives a single caller's cancellation since other
	// callers may be waiting on it; the HTTP client timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := t.group.DoChan(key, func() (interface{}, error) {
		if cred, ok := t.cached(key); ok {
			return cred, nil
		}
		cred, err := t.exchange(flightCtx, owner)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.cache[key] = cred
		t.mu.Unlock()
		return cred, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.InstallationCredential{}, res.Err
		}
		return res.Val.(domain.InstallationCredential), nil
	case <-ctx.Done():
		return domain.InstallationCredential{}, ctx.Err()
	}
}

// Invalidate drops the cached token for owner so the next call exchanges a new one.
func (t *InstallationTokens) Invalidate(owner string) {
	t.mu.Lock()
	delete(t.cache, strings.ToLower(owner))
	t.mu.Unlock()
}

func (t *InstallationTokens) cached(key string) (domain.InstallationCredential, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cred, ok := t.cache[key]
	if !ok || !cred.Valid(t.now(), refreshSkew) {
		return domain.InstallationCredential{}, false
	}
	return cred, true
}

func (t *InstallationTokens) exchange(ctx context.Context, owner string) (domain.InstallationCredential, error) {
	t.logger.Debug("exchanging installation token", zap.String("owner", owner))

	id, err := t.installationID(ctx, owner)
	if err != nil {
		return domain.InstallationCredential{}, err
	}

	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", t.baseURL, id)
	var raw struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := t.call(ctx, http.MethodPost, endpoint, &raw); err != nil {
		return domain.InstallationCredential{}, err
	}
	if raw.Token == "" {
		return domain.InstallationCredential{}, domain.NewError(domain.ErrAuthentication, endpoint, fmt.Errorf("empty token in response"))
	}

	expires, _ := time.Parse(time.RFC3339, raw.ExpiresAt)
	if expires.IsZero() {
		expires = t.now().Add(tokenLifetime)
	}
	t.logger.Info("installation token issued",
		zap.String("owner", owner),
		zap.Int64("installation_id", id),
		zap.Time("expires_at", expires))
	return domain.InstallationCredential{InstallationID: id, Token: raw.Token, ExpiresAt: expires}, nil
}

// installationID scans every page of the app's installations for owner.
func (t *InstallationTokens) installationID(ctx context.Context, owner string) (int64, error) {
	for page := 1; ; page++ {
		endpoint := t.baseURL + "/app/installations?per_page=" + strconv.Itoa(perPage) + "&page=" + strconv.Itoa(page)
		var installations []installation
		if err := t.call(ctx, http.MethodGet, endpoint, &installations); err != nil {
			return 0, err
		}
		for _, inst := range installations {
			if strings.EqualFold(inst.Account.Login, owner) {
				return inst.ID, nil
			}
		}
		if len(installations) < perPage {
			return 0, domain.NewError(domain.ErrAuthentication, owner, fmt.Errorf("no installation registered for owner"))
		}
	}
}

// installation is the raw GitHub API response shape for an app installation.
type installation struct {
	ID      int64 `json:"id"`
	Account struct {
		Login string `json:"login"`
	} `json:"account"`
}

// call performs one signed request under the retry policy. A fresh assertion
// is signed per attempt so a retry never reuses an expired one.
func (t *InstallationTokens) call(ctx context.Context, method, endpoint string, target interface{}) error {
	op := method + " " + endpoint
	return retry.Do(ctx, t.policy, func(ctx context.Context) error {
		assertion, err := t.signer.Sign()
		if err != nil {
			return domain.NewError(domain.ErrAuthentication, "", err)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+assertion)
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return &domain.NetworkError{Op: op, Temporary: ctx.Err() == nil, Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden,
			resp.StatusCode == http.StatusNotFound:
			return domain.NewError(domain.ErrAuthentication, endpoint, fmt.Errorf("github responded %s", resp.Status))
		case resp.StatusCode >= 400:
			return &domain.NetworkError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Temporary:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			}
		}
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return domain.NewError(domain.ErrAuthentication, endpoint, fmt.Errorf("decoding response: %w", err))
		}
		return nil
	})
}
