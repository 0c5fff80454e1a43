// Package firebase implements identity.Provider against the Identity
// Toolkit REST API used by Firebase Authentication.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/identity"
	"github.com/smartlearnhub/slh/internal/redact"
)

// DefaultEndpoint is the public Identity Toolkit API.
const DefaultEndpoint = "https://identitytoolkit.googleapis.com/v1"

// Config configures a Provider.
type Config struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
	Now        func() time.Time
}

type federated struct {
	providerID string
	flow       identity.ConsentFlow
}

// Provider is an Identity Toolkit client.
type Provider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	now      func() time.Time

	mu        sync.RWMutex
	federated map[string]federated
}

var _ identity.Provider = (*Provider)(nil)

// New returns a Provider. Federated providers are added with
// RegisterFederated.
func New(cfg Config) *Provider {
	p := &Provider{
		apiKey:    cfg.APIKey,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		client:    cfg.HTTPClient,
		now:       cfg.Now,
		federated: make(map[string]federated),
	}
	if p.endpoint == "" {
		p.endpoint = DefaultEndpoint
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 15 * time.Second}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// RegisterFederated binds a provider name ("google") to its Identity
// Toolkit provider id ("google.com") and the consent flow that yields
// its upstream ID token.
func (p *Provider) RegisterFederated(name, providerID string, flow identity.ConsentFlow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.federated[strings.ToLower(name)] = federated{providerID: providerID, flow: flow}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type idpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
}

type tokenResponse struct {
	IDToken   string `json:"idToken"`
	Email     string `json:"email"`
	LocalID   string `json:"localId"`
	ExpiresIn string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiError is a rejected Identity Toolkit call.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("identity toolkit: %d %s", e.Status, e.Message)
}

// code strips the detail suffix ("WEAK_PASSWORD : Password should be ...").
func (e *apiError) code() string {
	code, _, _ := strings.Cut(e.Message, " ")
	return code
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (identity.Token, error) {
	slog.Debug("identity: password sign-in", "email", redact.Email(email))
	resp, err := p.call(ctx, "accounts:signInWithPassword", passwordRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	})
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			switch apiErr.code() {
			case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "USER_DISABLED":
				return identity.Token{}, fmt.Errorf("sign in: %w", autherr.ErrInvalidCredentials)
			}
			return identity.Token{}, fmt.Errorf("sign in: %w: %w", autherr.ErrProvider, err)
		}
		return identity.Token{}, fmt.Errorf("sign in: %w", err)
	}
	return p.token(resp), nil
}

func (p *Provider) Register(ctx context.Context, email, password string) (identity.Token, error) {
	slog.Debug("identity: sign-up", "email", redact.Email(email))
	resp, err := p.call(ctx, "accounts:signUp", passwordRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	})
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			switch apiErr.code() {
			case "EMAIL_EXISTS":
				return identity.Token{}, fmt.Errorf("sign up: %w", autherr.ErrEmailAlreadyInUse)
			case "WEAK_PASSWORD":
				return identity.Token{}, fmt.Errorf("sign up: %w", autherr.ErrWeakPassword)
			}
			return identity.Token{}, fmt.Errorf("sign up: %w: %w", autherr.ErrProvider, err)
		}
		return identity.Token{}, fmt.Errorf("sign up: %w", err)
	}
	return p.token(resp), nil
}

func (p *Provider) SignInWithFederated(ctx context.Context, providerName string) (identity.Token, error) {
	p.mu.RLock()
	fed, ok := p.federated[strings.ToLower(providerName)]
	p.mu.RUnlock()
	if !ok {
		return identity.Token{}, fmt.Errorf("federated sign-in %q: %w: provider not configured", providerName, autherr.ErrProvider)
	}

	upstream, err := fed.flow.Consent(ctx)
	if err != nil {
		if errors.Is(err, autherr.ErrUserCancelled) || errors.Is(err, autherr.ErrProvider) {
			return identity.Token{}, fmt.Errorf("federated sign-in %q: %w", providerName, err)
		}
		return identity.Token{}, fmt.Errorf("federated sign-in %q: %w: %w", providerName, autherr.ErrProvider, err)
	}

	body := url.Values{}
	body.Set("id_token", upstream)
	body.Set("providerId", fed.providerID)
	resp, err := p.call(ctx, "accounts:signInWithIdp", idpRequest{
		PostBody:            body.Encode(),
		RequestURI:          "http://localhost",
		ReturnSecureToken:   true,
		ReturnIdpCredential: true,
	})
	if err != nil {
		if errors.Is(err, autherr.ErrProvider) {
			return identity.Token{}, fmt.Errorf("federated sign-in %q: %w", providerName, err)
		}
		return identity.Token{}, fmt.Errorf("federated sign-in %q: %w: %w", providerName, autherr.ErrProvider, err)
	}
	return p.token(resp), nil
}

// call posts body to the named method. Transport failures wrap
// autherr.ErrNetwork; rejected calls return *apiError.
func (p *Provider) call(ctx context.Context, method string, body any) (tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return tokenResponse{}, err
	}

	endpoint := p.endpoint + "/" + method + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("%w: %w", autherr.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("%w: reading response: %w", autherr.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if err := json.Unmarshal(data, &e); err != nil || e.Error.Message == "" {
			return tokenResponse{}, &apiError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return tokenResponse{}, &apiError{Status: resp.StatusCode, Message: e.Error.Message}
	}

	var out tokenResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return tokenResponse{}, fmt.Errorf("%w: decoding response: %w", autherr.ErrProvider, err)
	}
	if out.IDToken == "" {
		return tokenResponse{}, fmt.Errorf("%w: response has no idToken", autherr.ErrProvider)
	}
	return out, nil
}

func (p *Provider) token(resp tokenResponse) identity.Token {
	tok := identity.NewToken(resp.IDToken)
	if resp.LocalID != "" {
		tok.UID = resp.LocalID
	}
	if resp.Email != "" {
		tok.Email = resp.Email
	}
	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil && secs > 0 {
		tok.ExpiresAt = p.now().Add(time.Duration(secs) * time.Second)
	}
	return tok
}
