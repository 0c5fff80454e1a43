package cli

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/smartlearnhub/slh/internal/config"
	"github.com/smartlearnhub/slh/internal/identity/firebase"
	"github.com/smartlearnhub/slh/internal/identity/oauth"
	"github.com/smartlearnhub/slh/internal/ops"
	"github.com/smartlearnhub/slh/internal/session"
	"github.com/smartlearnhub/slh/internal/state"
	"github.com/smartlearnhub/slh/internal/storage"
	"github.com/smartlearnhub/slh/internal/storage/file"
	"github.com/smartlearnhub/slh/internal/storage/sqlite"
)

// app is the wiring shared by every command.
type app struct {
	cfg   *config.Config
	store storage.Store
	http  *http.Client
	auth  *ops.Auth
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	theme, err := state.ParseTheme(cfg.Theme)
	if err != nil {
		slog.Warn("ignoring configured theme", "error", err)
		theme = state.ThemeLight
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	hc := &http.Client{Timeout: cfg.API.Timeout}

	provider := firebase.New(firebase.Config{
		APIKey:     cfg.Identity.APIKey,
		Endpoint:   cfg.Identity.Endpoint,
		HTTPClient: hc,
	})
	g := cfg.OAuth.Google
	provider.RegisterFederated("google", "google.com", oauth.New(oauth.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		AuthURL:      g.AuthURL,
		TokenURL:     g.TokenURL,
		Scopes:       g.Scopes,
		CallbackAddr: net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.OAuth.CallbackPort)),
		Timeout:      cfg.OAuth.Timeout,
		Open:         openConsent,
		HTTPClient:   hc,
	}))

	ex := session.NewExchanger(session.Config{BaseURL: cfg.API.BaseURL, HTTPClient: hc}, store)
	st := state.NewContainer(state.State{Theme: theme})

	return &app{
		cfg:   cfg,
		store: store,
		http:  hc,
		auth:  ops.NewAuth(provider, ex, st),
	}, nil
}

// openConsent also prints the URL so sign-in works without a local browser.
func openConsent(url string) error {
	fmt.Fprintf(os.Stderr, "If your browser does not open, visit:\n  %s\n", url)
	if err := oauth.OpenBrowser(url); err != nil {
		slog.Warn("could not open browser", "error", err)
	}
	return nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(cfg *config.Config) (storage.Store, error) {
	path := cfg.SessionPath()
	switch cfg.Storage.Driver {
	case "", "file":
		return file.Open(path)
	case "sqlite":
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q (want file or sqlite)", cfg.Storage.Driver)
}
