// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/identity"
)

// FederatedAccount is the outcome of a federated sign-in for one provider
// name: either Email is signed in or Err is returned.
type FederatedAccount struct {
	Email string
	Err   error
}

// Provider keeps accounts in memory and issues HS256-signed tokens.
type Provider struct {
	mu        sync.Mutex
	accounts  map[string]account
	federated map[string]FederatedAccount
	calls     int

	// Fail, when set, is returned by every call.
	Fail error
	TTL  time.Duration
}

type account struct {
	uid      string
	password string
}

var _ identity.Provider = (*Provider)(nil)

var secret = []byte("identitytest")

func New() *Provider {
	return &Provider{
		accounts:  make(map[string]account),
		federated: make(map[string]FederatedAccount),
		TTL:       time.Hour,
	}
}

// AddAccount registers email/password and returns its uid.
func (p *Provider) AddAccount(email, password string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	uid := uuid.NewString()
	p.accounts[email] = account{uid: uid, password: password}
	return uid
}

// SetFederated configures the outcome for providerName.
func (p *Provider) SetFederated(providerName string, acct FederatedAccount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.federated[providerName] = acct
}

// Calls counts provider invocations.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (identity.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Fail != nil {
		return identity.Token{}, p.Fail
	}
	acct, ok := p.accounts[email]
	if !ok || acct.password != password {
		return identity.Token{}, fmt.Errorf("sign in: %w", autherr.ErrInvalidCredentials)
	}
	return p.issue(acct.uid, email)
}

func (p *Provider) SignInWithFederated(ctx context.Context, providerName string) (identity.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Fail != nil {
		return identity.Token{}, p.Fail
	}
	fed, ok := p.federated[providerName]
	if !ok {
		return identity.Token{}, fmt.Errorf("federated %q: %w", providerName, autherr.ErrProvider)
	}
	if fed.Err != nil {
		return identity.Token{}, fed.Err
	}
	acct, ok := p.accounts[fed.Email]
	if !ok {
		acct = account{uid: uuid.NewString()}
		p.accounts[fed.Email] = acct
	}
	return p.issue(acct.uid, fed.Email)
}

func (p *Provider) Register(ctx context.Context, email, password string) (identity.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Fail != nil {
		return identity.Token{}, p.Fail
	}
	if _, ok := p.accounts[email]; ok {
		return identity.Token{}, fmt.Errorf("sign up: %w", autherr.ErrEmailAlreadyInUse)
	}
	if len(password) < 6 {
		return identity.Token{}, fmt.Errorf("sign up: %w", autherr.ErrWeakPassword)
	}
	uid := uuid.NewString()
	p.accounts[email] = account{uid: uid, password: password}
	return p.issue(uid, email)
}

func (p *Provider) issue(uid, email string) (identity.Token, error) {
	now := time.Now()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{
		UserID: uid,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
		},
	}).SignedString(secret)
	if err != nil {
		return identity.Token{}, err
	}
	return identity.ParseToken(raw)
}
