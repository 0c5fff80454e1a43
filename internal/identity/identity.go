// Package identity is the bridge to the external identity provider. It
// authenticates a principal and surfaces one short-lived identity token;
// it never touches persistent storage.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/redact"
)

// Provider authenticates against one backing identity service.
type Provider interface {
	// SignInWithPassword fails with autherr.ErrInvalidCredentials when the
	// pair is rejected and autherr.ErrNetwork on transport failure.
	SignInWithPassword(ctx context.Context, email, password string) (Token, error)

	// SignInWithFederated runs the interactive consent flow registered for
	// providerName. Dismissing it yields autherr.ErrUserCancelled; every
	// other failure is autherr.ErrProvider.
	SignInWithFederated(ctx context.Context, providerName string) (Token, error)

	// Register creates a principal. Fails with autherr.ErrEmailAlreadyInUse,
	// autherr.ErrWeakPassword or autherr.ErrNetwork.
	Register(ctx context.Context, email, password string) (Token, error)
}

// ConsentFlow is the interactive part of a federated sign-in. It returns
// the upstream OIDC ID token.
type ConsentFlow interface {
	Consent(ctx context.Context) (string, error)
}

// Token is an identity token plus the claims the client reads from it.
type Token struct {
	Raw       string
	UID       string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry. Tokens without an
// expiry never expire client-side.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Claims are the JWT claims issued by the identity provider.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken decodes the claims of raw without verifying its signature.
// Verification is the backend's responsibility.
func ParseToken(raw string) (Token, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Token{}, fmt.Errorf("parse identity token: %w", err)
	}
	tok := Token{Raw: raw, UID: claims.UserID, Email: claims.Email}
	if tok.UID == "" {
		tok.UID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		tok.ExpiresAt = claims.ExpiresAt.Time
	}
	return tok, nil
}

// NewToken builds a Token from raw, filling the claims when raw is a JWT.
// Opaque tokens are kept as is.
func NewToken(raw string) Token {
	if tok, err := ParseToken(raw); err == nil {
		return tok
	}
	return Token{Raw: raw}
}

// Credentials are an email/password pair held only until submission.
type Credentials struct {
	Email    string
	Password string
}

// Normalize trims the email so the provider and the backend see the same
// address.
func (c Credentials) Normalize() Credentials {
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// LogValue masks both fields when credentials are logged.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", redact.Email(c.Email)),
		slog.String("password", redact.Password()),
	)
}

// Validate rejects empty or malformed input before any provider call.
func (c Credentials) Validate() error {
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}
	if c.Password == "" {
		return autherr.Invalid("password", "password is required")
	}
	return nil
}

// ValidateEmail checks that s is a bare, syntactically valid address.
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return autherr.Invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return autherr.Invalid("email", fmt.Sprintf("%q is not a valid email address", s))
	}
	return nil
}

var displayNames = map[string]string{
	"google": "Google",
	"github": "GitHub",
}

// DisplayName returns the human name of a federated provider.
func DisplayName(providerName string) string {
	if n, ok := displayNames[strings.ToLower(providerName)]; ok {
		return n
	}
	if providerName == "" {
		return "Provider"
	}
	return strings.ToUpper(providerName[:1]) + providerName[1:]
}
