package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/stretchr/testify/require"
)

// tokenEndpoint checks the PKCE exchange and returns an id_token.
func tokenEndpoint(t *testing.T, idToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		require.Equal(t, "code-1", r.Form.Get("code"))
		require.NotEmpty(t, r.Form.Get("code_verifier"))

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if idToken != "" {
			resp["id_token"] = idToken
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// browser simulates the provider redirecting back to the loopback server
// with the given query parameters.
func browser(t *testing.T, params func(auth url.Values) url.Values) func(string) error {
	return func(raw string) error {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		auth := u.Query()
		require.Equal(t, "S256", auth.Get("code_challenge_method"))
		require.NotEmpty(t, auth.Get("code_challenge"))
		require.Equal(t, "client-1", auth.Get("client_id"))

		cb, err := url.Parse(auth.Get("redirect_uri"))
		require.NoError(t, err)
		cb.RawQuery = params(auth).Encode()
		go func() {
			resp, err := http.Get(cb.String())
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func newFlow(tokenURL string, open func(string) error) *Flow {
	return New(Config{
		ClientID: "client-1",
		AuthURL:  "https://provider.example.com/authorize",
		TokenURL: tokenURL,
		Scopes:   []string{"openid", "email"},
		Timeout:  5 * time.Second,
		Open:     open,
	})
}

func TestConsent_Success(t *testing.T) {
	tokenSrv := tokenEndpoint(t, "upstream-id-token")
	f := newFlow(tokenSrv.URL, browser(t, func(auth url.Values) url.Values {
		return url.Values{"code": {"code-1"}, "state": {auth.Get("state")}}
	}))

	idToken, err := f.Consent(context.Background())
	require.NoError(t, err)
	require.Equal(t, "upstream-id-token", idToken)
}

func TestConsent_AccessDeniedIsCancel(t *testing.T) {
	f := newFlow("http://unused.invalid", browser(t, func(auth url.Values) url.Values {
		return url.Values{"error": {"access_denied"}, "state": {auth.Get("state")}}
	}))

	_, err := f.Consent(context.Background())
	require.ErrorIs(t, err, autherr.ErrUserCancelled)
}

func TestConsent_ProviderErrorParam(t *testing.T) {
	f := newFlow("http://unused.invalid", browser(t, func(auth url.Values) url.Values {
		return url.Values{"error": {"server_error"}, "state": {auth.Get("state")}}
	}))

	_, err := f.Consent(context.Background())
	require.ErrorIs(t, err, autherr.ErrProvider)
}

func TestConsent_ContextCancelIsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFlow("http://unused.invalid", func(string) error {
		cancel()
		return nil
	})

	_, err := f.Consent(ctx)
	require.ErrorIs(t, err, autherr.ErrUserCancelled)
}

func TestConsent_Timeout(t *testing.T) {
	f := newFlow("http://unused.invalid", func(string) error { return nil })
	f.cfg.Timeout = 50 * time.Millisecond

	_, err := f.Consent(context.Background())
	require.ErrorIs(t, err, autherr.ErrProvider)
}

func TestConsent_OpenFails(t *testing.T) {
	f := newFlow("http://unused.invalid", func(string) error { return errors.New("no display") })

	_, err := f.Consent(context.Background())
	require.ErrorIs(t, err, autherr.ErrProvider)
}

func TestConsent_MissingIDToken(t *testing.T) {
	tokenSrv := tokenEndpoint(t, "")
	f := newFlow(tokenSrv.URL, browser(t, func(auth url.Values) url.Values {
		return url.Values{"code": {"code-1"}, "state": {auth.Get("state")}}
	}))

	_, err := f.Consent(context.Background())
	require.ErrorIs(t, err, autherr.ErrProvider)
}

func TestConsent_UnconfiguredClient(t *testing.T) {
	f := New(Config{})
	_, err := f.Consent(context.Background())
	require.ErrorIs(t, err, autherr.ErrProvider)
}

func TestCallback_IgnoresForeignState(t *testing.T) {
	cb, err := newCallbackServer("127.0.0.1:0", "state-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cb.lis.Close() })

	rec := httptest.NewRecorder()
	cb.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?code=x&state=other", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, cb.results)

	rec = httptest.NewRecorder()
	cb.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?code=c1&state=state-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, callbackResult{code: "c1"}, <-cb.results)
}

func TestCallback_ErrorWithForeignStateIsIgnored(t *testing.T) {
	cb, err := newCallbackServer("127.0.0.1:0", "state-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cb.lis.Close() })

	for _, q := range []string{"?error=access_denied", "?error=server_error&state=other"} {
		rec := httptest.NewRecorder()
		cb.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+q, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, cb.results)
	}

	rec := httptest.NewRecorder()
	cb.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?error=access_denied&state=state-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	res := <-cb.results
	require.ErrorIs(t, res.err, autherr.ErrUserCancelled)
}
