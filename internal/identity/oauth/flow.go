// Package oauth runs the interactive OAuth consent step of a federated
// sign-in: browser → provider → loopback callback → code exchange.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/identity"
	"golang.org/x/oauth2"
)

// Config configures a Flow.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string

	// CallbackAddr is the loopback listen address. Port 0 picks a free port.
	CallbackAddr string
	// Timeout bounds the wait for the browser to come back.
	Timeout time.Duration

	// Open shows the authorization URL to the user. Defaults to OpenBrowser.
	Open       func(url string) error
	HTTPClient *http.Client
}

// Flow is an OIDC authorization-code flow with PKCE.
type Flow struct {
	cfg Config
}

var _ identity.ConsentFlow = (*Flow)(nil)

func New(cfg Config) *Flow {
	if cfg.CallbackAddr == "" {
		cfg.CallbackAddr = "127.0.0.1:0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.Open == nil {
		cfg.Open = OpenBrowser
	}
	return &Flow{cfg: cfg}
}

// Consent runs the flow and returns the upstream id_token. Cancellation of
// ctx or a denied consent yields autherr.ErrUserCancelled.
func (f *Flow) Consent(ctx context.Context) (string, error) {
	if f.cfg.ClientID == "" {
		return "", fmt.Errorf("%w: oauth client id is not configured", autherr.ErrProvider)
	}

	state := uuid.NewString()
	cb, err := newCallbackServer(f.cfg.CallbackAddr, state)
	if err != nil {
		return "", fmt.Errorf("%w: %w", autherr.ErrProvider, err)
	}
	go cb.Run()
	defer cb.Shutdown()

	oc := &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: f.cfg.AuthURL, TokenURL: f.cfg.TokenURL},
		RedirectURL:  cb.RedirectURL(),
		Scopes:       f.cfg.Scopes,
	}
	verifier := oauth2.GenerateVerifier()
	authURL := oc.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", uuid.NewString()),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	slog.Info("opening browser for sign-in", "redirect", cb.RedirectURL())
	if err := f.cfg.Open(authURL); err != nil {
		return "", fmt.Errorf("%w: opening browser: %w", autherr.ErrProvider, err)
	}

	timer := time.NewTimer(f.cfg.Timeout)
	defer timer.Stop()

	var res callbackResult
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", autherr.ErrUserCancelled, ctx.Err())
	case <-timer.C:
		return "", fmt.Errorf("%w: no response from browser after %s", autherr.ErrProvider, f.cfg.Timeout)
	case res = <-cb.results:
	}
	if res.err != nil {
		return "", res.err
	}

	exchangeCtx := ctx
	if f.cfg.HTTPClient != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, f.cfg.HTTPClient)
	}
	tok, err := oc.Exchange(exchangeCtx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: %w", autherr.ErrUserCancelled, err)
		}
		return "", fmt.Errorf("%w: exchanging code: %w", autherr.ErrProvider, err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", fmt.Errorf("%w: token response has no id_token", autherr.ErrProvider)
	}
	return idToken, nil
}
