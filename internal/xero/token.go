package xero

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/vipul43/ledger-sync/internal/models"
	"github.com/vipul43/ledger-sync/internal/repository"
)

const (
	DefaultExpiryBuffer  = 5 * time.Minute
	DefaultTokenLifetime = 1800 * time.Second
	defaultTokenAttempts = 3
	defaultTokenBackoff  = 2 * time.Second
)

// TokenStore persists the token pair across runs.
type TokenStore interface {
	Load(ctx context.Context, tenantID string) (*models.TokenState, error)
	Save(ctx context.Context, state models.TokenState) error
}

type TokenManagerConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	TenantID     string
	// ExpiryBuffer treats a token as expired this long before its real expiry,
	// so it cannot lapse in the middle of a request.
	ExpiryBuffer time.Duration
	// HTTPClient is used for the token exchange; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// TokenManager owns the in-memory access token and rotates the refresh token.
// Every refresh is persisted before the new access token is handed out.
type TokenManager struct {
	cfg   TokenManagerConfig
	oauth *oauth2.Config
	store TokenStore

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	attempts int

	accessToken string
	expiresAt   time.Time
}

func NewTokenManager(cfg TokenManagerConfig, store TokenStore) *TokenManager {
	if cfg.ExpiryBuffer <= 0 {
		cfg.ExpiryBuffer = DefaultExpiryBuffer
	}
	return &TokenManager{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:    store,
		now:      time.Now,
		sleep:    sleepContext,
		attempts: defaultTokenAttempts,
	}
}

// AccessToken returns a token valid for at least the expiry buffer, refreshing when
// forceRefresh is set or the cached token is about to expire.
func (m *TokenManager) AccessToken(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh && m.fresh(m.accessToken, m.expiresAt) {
		return m.accessToken, nil
	}

	// Another run may have rotated the refresh token since we last looked;
	// the old one is dead once that happens.
	persisted, err := m.store.Load(ctx, m.cfg.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return "", fmt.Errorf("%w: no refresh token stored for tenant %s, run authorize first", ErrAuth, m.cfg.TenantID)
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}

	if !forceRefresh && persisted.AccessTokenExpiresAt != nil && m.fresh(persisted.AccessToken, *persisted.AccessTokenExpiresAt) {
		m.accessToken = persisted.AccessToken
		m.expiresAt = *persisted.AccessTokenExpiresAt
		return m.accessToken, nil
	}

	if persisted.RefreshToken == "" {
		return "", fmt.Errorf("%w: stored refresh token is empty", ErrAuth)
	}

	token, err := m.exchange(ctx, persisted.RefreshToken)
	if err != nil {
		return "", err
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = m.now().Add(DefaultTokenLifetime)
	}
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = persisted.RefreshToken
	}

	state := models.TokenState{
		TenantID:             m.cfg.TenantID,
		AccessToken:          token.AccessToken,
		RefreshToken:         refreshToken,
		AccessTokenExpiresAt: &expiresAt,
	}
	if err := m.persist(ctx, state); err != nil {
		return "", err
	}

	m.accessToken = token.AccessToken
	m.expiresAt = expiresAt

	log.Printf("Token refreshed for tenant %s, expires at %s", m.cfg.TenantID, expiresAt.Format(time.RFC3339))
	return m.accessToken, nil
}

func (m *TokenManager) fresh(accessToken string, expiresAt time.Time) bool {
	return accessToken != "" && m.now().Add(m.cfg.ExpiryBuffer).Before(expiresAt)
}

// exchange trades the refresh token for a new pair. Endpoint rejections are final;
// transport failures are retried.
func (m *TokenManager) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if m.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.cfg.HTTPClient)
	}

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		token, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err == nil {
			return token, nil
		}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: identity endpoint rejected refresh token: %v", ErrAuth, err)
		}

		lastErr = err
		log.Printf("Warning: token exchange attempt %d/%d failed: %v", attempt, m.attempts, err)
		if attempt < m.attempts {
			if err := m.sleep(ctx, defaultTokenBackoff); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrAuth, err)
			}
		}
	}

	return nil, fmt.Errorf("%w: token exchange failed after %d attempts: %v", ErrAuth, m.attempts, lastErr)
}

// persist writes the rotated pair. The previous refresh token is already invalid
// upstream, so losing this write means re-authorizing by hand.
// The write outlives cancellation of ctx for the same reason.
func (m *TokenManager) persist(ctx context.Context, state models.TokenState) error {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if err = m.store.Save(ctx, state); err == nil {
			return nil
		}
		log.Printf("Warning: failed to persist rotated token (attempt %d/%d): %v", attempt, m.attempts, err)
		if attempt < m.attempts {
			_ = m.sleep(ctx, defaultTokenBackoff)
		}
	}
	log.Printf("ERROR: rotated refresh token for tenant %s could not be stored; re-authorization will be required", m.cfg.TenantID)
	return fmt.Errorf("failed to persist rotated token: %w", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
