package xero

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/vipul43/ledger-sync/internal/models"
)

const (
	DefaultCallbackAddr = "localhost:8888"
	callbackPath        = "/callback"
)

// DefaultScopes grants read access to every synced collection plus a refresh token.
var DefaultScopes = []string{
	"offline_access",
	"accounting.settings.read",
	"accounting.contacts.read",
	"accounting.transactions.read",
	"accounting.journals.read",
}

type AuthorizerConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	// CallbackAddr is the host:port the local redirect listener binds to.
	CallbackAddr string
	Scopes       []string
	HTTPClient   *http.Client
}

// Authorizer runs the one-time authorization code flow that produces the
// first refresh token.
type Authorizer struct {
	oauth      *oauth2.Config
	addr       string
	state      string
	httpClient *http.Client
	now        func() time.Time
}

func NewAuthorizer(cfg AuthorizerConfig) *Authorizer {
	if cfg.CallbackAddr == "" {
		cfg.CallbackAddr = DefaultCallbackAddr
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	return &Authorizer{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  "http://" + cfg.CallbackAddr + callbackPath,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		addr:       cfg.CallbackAddr,
		state:      uuid.NewString(),
		httpClient: cfg.HTTPClient,
		now:        time.Now,
	}
}

// AuthCodeURL is the consent page the user has to open.
func (a *Authorizer) AuthCodeURL() string {
	return a.oauth.AuthCodeURL(a.state)
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler accepts the identity provider redirect and reports the
// authorization code, or the reason there is none, on results.
func (a *Authorizer) callbackHandler(results chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		var result callbackResult
		switch {
		case query.Get("error") != "":
			result.err = fmt.Errorf("%w: authorization denied: %s", ErrAuth, query.Get("error"))
		case query.Get("state") != a.state:
			result.err = fmt.Errorf("%w: callback state mismatch", ErrAuth)
		case query.Get("code") == "":
			result.err = fmt.Errorf("%w: no authorization code received", ErrAuth)
		default:
			result.code = query.Get("code")
		}

		w.Header().Set("Content-Type", "text/html")
		if result.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("<html><body><h1>Error</h1><p>Authorization failed. Check the terminal.</p></body></html>"))
		} else {
			_, _ = w.Write([]byte("<html><body><h1>Success!</h1><p>Authorization successful. You can close this window.</p></body></html>"))
		}

		select {
		case results <- result:
		default:
		}
	})
	return mux
}

// Await serves the callback until a code arrives or ctx ends.
func (a *Authorizer) Await(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", a.addr, err)
	}

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           a.callbackHandler(results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Callback server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: timed out waiting for authorization: %v", ErrAuth, ctx.Err())
	case result := <-results:
		return result.code, result.err
	}
}

// Exchange trades the authorization code for the first token pair of tenantID.
func (a *Authorizer) Exchange(ctx context.Context, code, tenantID string) (models.TokenState, error) {
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return models.TokenState{}, fmt.Errorf("%w: code exchange failed: %v", ErrAuth, err)
	}
	if token.RefreshToken == "" {
		return models.TokenState{}, fmt.Errorf("%w: no refresh token issued, is offline_access in scope?", ErrAuth)
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = a.now().Add(DefaultTokenLifetime)
	}
	return models.TokenState{
		TenantID:             tenantID,
		AccessToken:          token.AccessToken,
		RefreshToken:         token.RefreshToken,
		AccessTokenExpiresAt: &expiresAt,
	}, nil
}
