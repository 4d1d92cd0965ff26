package xero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipul43/ledger-sync/internal/models"
	"github.com/vipul43/ledger-sync/internal/repository"
)

type memoryTokenStore struct {
	mu      sync.Mutex
	state   *models.TokenState
	saves   int
	saveErr error
	// failSaves fails that many saves before accepting one
	failSaves int
}

func (s *memoryTokenStore) Load(_ context.Context, _ string) (*models.TokenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, repository.ErrTokenNotFound
	}
	copied := *s.state
	return &copied, nil
}

func (s *memoryTokenStore) Save(_ context.Context, state models.TokenState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves > 0 {
		s.failSaves--
		return errors.New("connection reset")
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.state = &state
	return nil
}

// identityServer rotates the refresh token on every exchange and rejects any
// refresh token other than the latest one.
type identityServer struct {
	mu        sync.Mutex
	current   string
	issued    int
	expiresIn int
	omitRT    bool
	requests  int
}

func (s *identityServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++

	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("refresh_token") != s.current {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	s.issued++
	body := map[string]interface{}{
		"access_token": fmt.Sprintf("access-%d", s.issued),
		"token_type":   "Bearer",
	}
	if s.expiresIn > 0 {
		body["expires_in"] = s.expiresIn
	}
	if !s.omitRT {
		s.current = fmt.Sprintf("refresh-%d", s.issued)
		body["refresh_token"] = s.current
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestManager(t *testing.T, identity http.Handler, store TokenStore) *TokenManager {
	t.Helper()
	srv := httptest.NewServer(identity)
	t.Cleanup(srv.Close)

	m := NewTokenManager(TokenManagerConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
		TenantID:     "tenant-1",
		HTTPClient:   srv.Client(),
	}, store)
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

func TestTokenManager_RefreshPersistsRotatedToken(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, identity, store)

	token, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	require.NotNil(t, store.state)
	assert.Equal(t, "access-1", store.state.AccessToken)
	assert.Equal(t, "refresh-1", store.state.RefreshToken)
	require.NotNil(t, store.state.AccessTokenExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), *store.state.AccessTokenExpiresAt, time.Minute)
}

func TestTokenManager_ReturnsCachedToken(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, identity, store)

	for i := 0; i < 3; i++ {
		token, err := m.AccessToken(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, "access-1", token)
	}
	assert.Equal(t, 1, identity.requests)
}

func TestTokenManager_RefreshesInsideExpiryBuffer(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, identity, store)

	_, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)

	// 26 minutes later the token has 4 minutes left, inside the 5 minute buffer
	m.now = func() time.Time { return time.Now().Add(26 * time.Minute) }
	token, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Equal(t, 2, identity.requests)
}

func TestTokenManager_DefaultLifetime(t *testing.T) {
	identity := &identityServer{current: "refresh-0"}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, identity, store)
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	_, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, store.state.AccessTokenExpiresAt)
	assert.True(t, fixed.Add(1800*time.Second).Equal(*store.state.AccessTokenExpiresAt))
}

func TestTokenManager_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800, omitRT: true}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, identity, store)

	_, err := m.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "refresh-0", store.state.RefreshToken)
}

func TestTokenManager_RotationSafety(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, identity, store)

	const n = 5
	for i := 1; i <= n; i++ {
		token, err := m.AccessToken(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("access-%d", i), token)
	}
	assert.Equal(t, fmt.Sprintf("refresh-%d", n), store.state.RefreshToken)
	assert.Equal(t, n, store.saves)

	// a rotated-out refresh token is dead
	stale := newTestManager(t, identity, &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-2"}})
	_, err := stale.AccessToken(context.Background(), true)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestTokenManager_RereadsStoreBeforeRefresh(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	first := newTestManager(t, identity, store)
	second := newTestManager(t, identity, store)

	_, err := first.AccessToken(context.Background(), true)
	require.NoError(t, err)
	_, err = first.AccessToken(context.Background(), true)
	require.NoError(t, err)

	// second never saw refresh-1 or refresh-2 but picks the latest from the store
	token, err := second.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "access-3", token)
	assert.Equal(t, "refresh-3", store.state.RefreshToken)
}

func TestTokenManager_AdoptsFreshPersistedAccessToken(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800}
	expiry := time.Now().Add(20 * time.Minute)
	store := &memoryTokenStore{state: &models.TokenState{
		TenantID:             "tenant-1",
		AccessToken:          "from-other-run",
		RefreshToken:         "refresh-0",
		AccessTokenExpiresAt: &expiry,
	}}
	m := newTestManager(t, identity, store)

	token, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "from-other-run", token)
	assert.Zero(t, identity.requests)
}

func TestTokenManager_NoStoredToken(t *testing.T) {
	m := newTestManager(t, &identityServer{}, &memoryTokenStore{})

	_, err := m.AccessToken(context.Background(), false)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestTokenManager_PersistFailureIsReturned(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, identity, store)
	store.saveErr = errors.New("disk full")

	_, err := m.AccessToken(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist rotated token")
	assert.Empty(t, m.accessToken, "cache must not hold a token whose refresh pair was not stored")
}

func TestTokenManager_PersistBacksOffBetweenAttempts(t *testing.T) {
	identity := &identityServer{current: "refresh-0", expiresIn: 1800}
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, identity, store)
	var sleeps []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	store.failSaves = 2

	token, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, []time.Duration{defaultTokenBackoff, defaultTokenBackoff}, sleeps)
	assert.Equal(t, "refresh-1", store.state.RefreshToken)
}

func TestTokenManager_RetriesTransportErrors(t *testing.T) {
	var calls int
	flaky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// hijack and drop the connection to produce a transport error
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
	})
	store := &memoryTokenStore{state: &models.TokenState{TenantID: "tenant-1", RefreshToken: "refresh-0"}}
	m := newTestManager(t, flaky, store)

	_, err := m.AccessToken(context.Background(), false)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, defaultTokenAttempts, calls)
}
