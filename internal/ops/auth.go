// Package ops centralises the authentication hand-off shared by every
// command: identity provider → identity token → backend exchange →
// persisted session.
package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/identity"
	"github.com/smartlearnhub/slh/internal/logging"
	"github.com/smartlearnhub/slh/internal/redact"
	"github.com/smartlearnhub/slh/internal/session"
	"github.com/smartlearnhub/slh/internal/state"
	"github.com/smartlearnhub/slh/internal/storage"
)

// Notices shown for each kind of attempt.
const (
	NoticeLogin    = "Invalid credentials or server error"
	NoticeRegister = "Something went wrong"
	NoticeBusy     = "A sign-in is already in progress"
	NoticeMismatch = "Passwords do not match"
)

// FederatedNotice is shown when a federated sign-in fails.
func FederatedNotice(providerName string) string {
	return identity.DisplayName(providerName) + " Sign-In failed"
}

// Auth drives one attempt at a time through the state container.
type Auth struct {
	identity identity.Provider
	sessions *session.Exchanger
	state    *state.Container
	now      func() time.Time
}

func NewAuth(p identity.Provider, ex *session.Exchanger, st *state.Container) *Auth {
	return &Auth{identity: p, sessions: ex, state: st, now: time.Now}
}

// State returns the container the attempts report into.
func (a *Auth) State() *state.Container { return a.state }

// LoginWithPassword signs in with email and password.
func (a *Auth) LoginWithPassword(ctx context.Context, creds identity.Credentials, progress ProgressFunc) (session.Session, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return session.Session{}, &Notice{Message: err.Error(), Err: err}
	}
	ctx = logging.Into(ctx, slog.Default().With("op", "login", "credentials", creds))
	return a.run(ctx, NoticeLogin, progress,
		func(ctx context.Context) (identity.Token, error) {
			return a.identity.SignInWithPassword(ctx, creds.Email, creds.Password)
		},
		a.sessions.Login,
	)
}

// LoginWithProvider signs in through the named federated provider.
func (a *Auth) LoginWithProvider(ctx context.Context, providerName string, progress ProgressFunc) (session.Session, error) {
	ctx = logging.Into(ctx, slog.Default().With("op", "federated_login", "provider", providerName))
	return a.run(ctx, FederatedNotice(providerName), progress,
		func(ctx context.Context) (identity.Token, error) {
			return a.identity.SignInWithFederated(ctx, providerName)
		},
		a.sessions.Login,
	)
}

// RegisterForm is everything the register command collects.
type RegisterForm struct {
	session.RegistrationFields
	Password        string
	ConfirmPassword string
}

// Register creates the identity account, then the backend profile.
func (a *Auth) Register(ctx context.Context, form RegisterForm, progress ProgressFunc) (session.Session, error) {
	if form.Password != form.ConfirmPassword {
		err := autherr.Invalid("confirmPassword", NoticeMismatch)
		return session.Session{}, &Notice{Message: NoticeMismatch, Err: err}
	}
	role, err := session.ParseRole(string(form.Role))
	if err != nil {
		return session.Session{}, &Notice{Message: err.Error(), Err: err}
	}
	form.Role = role
	creds := identity.Credentials{Email: form.Email, Password: form.Password}.Normalize()
	form.Email = creds.Email
	if err := creds.Validate(); err != nil {
		return session.Session{}, &Notice{Message: err.Error(), Err: err}
	}
	if err := form.RegistrationFields.Validate(); err != nil {
		return session.Session{}, &Notice{Message: err.Error(), Err: err}
	}

	ctx = logging.Into(ctx, slog.Default().With("op", "register", "email", redact.Email(form.Email), "role", string(role)))
	return a.run(ctx, NoticeRegister, progress,
		func(ctx context.Context) (identity.Token, error) {
			return a.identity.Register(ctx, form.Email, form.Password)
		},
		func(ctx context.Context, tok identity.Token) (session.Session, error) {
			return a.sessions.Register(ctx, tok, form.RegistrationFields)
		},
	)
}

// Current loads the persisted session into the container.
func (a *Auth) Current(ctx context.Context) (session.Session, error) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("reading stored session", "error", err)
		}
		return session.Session{}, err
	}
	a.state.Update(func(st *state.State) {
		if !st.Phase.InFlight() {
			st.Phase = state.SessionPersisted
			st.Session = &s
		}
	})
	return s, nil
}

// Logout removes the stored session.
func (a *Auth) Logout(ctx context.Context) error {
	if err := a.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	a.state.SignedOut()
	return nil
}

type (
	obtainFunc   func(ctx context.Context) (identity.Token, error)
	exchangeFunc func(ctx context.Context, tok identity.Token) (session.Session, error)
)

const totalSteps = 3

// run performs one attempt. Storage is written only after both the
// provider and the backend succeeded, and run returns success only after
// the write completed.
func (a *Auth) run(ctx context.Context, notice string, progress ProgressFunc, obtain obtainFunc, exchange exchangeFunc) (session.Session, error) {
	if err := a.state.Begin(); err != nil {
		return session.Session{}, &Notice{Message: NoticeBusy, Err: err}
	}
	log := logging.From(ctx)

	step := func(n int, label string) func(err error) {
		progress.emit(ProgressEvent{Step: n, Total: totalSteps, Label: label, Status: "running"})
		return func(err error) {
			if err != nil {
				progress.emit(ProgressEvent{Step: n, Total: totalSteps, Label: label, Status: "failed", Error: err.Error()})
				return
			}
			progress.emit(ProgressEvent{Step: n, Total: totalSteps, Label: label, Status: "completed"})
		}
	}

	done := step(1, "Authenticating with identity provider")
	tok, err := obtain(ctx)
	if err == nil && tok.Expired(a.now()) {
		err = fmt.Errorf("%w: identity token already expired", autherr.ErrProvider)
	}
	done(err)
	if err != nil {
		return session.Session{}, a.fail(log, notice, err)
	}
	if err := a.state.Advance(state.TokenObtained); err != nil {
		return session.Session{}, a.fail(log, notice, err)
	}

	if err := a.state.Advance(state.Exchanging); err != nil {
		return session.Session{}, a.fail(log, notice, err)
	}
	done = step(2, "Exchanging token for a session")
	s, err := exchange(ctx, tok)
	done(err)
	if err != nil {
		return session.Session{}, a.fail(log, notice, err)
	}

	done = step(3, "Saving session")
	err = a.sessions.Persist(ctx, s)
	done(err)
	if err != nil {
		return session.Session{}, a.fail(log, notice, err)
	}
	if err := a.state.Persisted(s); err != nil {
		return session.Session{}, a.fail(log, notice, err)
	}

	log.Info("signed in", "user", s.User.Key())
	return s, nil
}

func (a *Auth) fail(log *slog.Logger, notice string, err error) error {
	if errors.Is(err, autherr.ErrUserCancelled) {
		log.Info("sign-in cancelled", "kind", autherr.Kind(err))
	} else {
		log.Error("sign-in failed", "kind", autherr.Kind(err), "error", err)
	}
	a.state.Fail(notice)
	return &Notice{Message: notice, Err: err}
}
