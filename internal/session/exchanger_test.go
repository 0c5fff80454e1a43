package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/identity"
	"github.com/smartlearnhub/slh/internal/storage"
	"github.com/smartlearnhub/slh/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type capture struct {
	path   string
	auth   string
	reqID  string
	body   map[string]any
	bodies int
}

func backend(t *testing.T, c *capture, handle func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if c != nil {
			c.path = r.URL.Path
			c.auth = r.Header.Get("Authorization")
			c.reqID = r.Header.Get("X-Request-Id")
			c.body = map[string]any{}
			require.NoError(t, json.Unmarshal(raw, &c.body))
			c.bodies++
		}
		handle(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func reply(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestLoginPersist_Scenario(t *testing.T) {
	var c capture
	srv := backend(t, &c, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"token":"t1","user":{"id":1,"email":"a@b.com"}}`)
	})
	store := memory.New()
	ex := NewExchanger(Config{BaseURL: srv.URL + "/"}, store)

	s, err := ex.Login(context.Background(), identity.Token{Raw: "id-token-1"})
	require.NoError(t, err)
	require.Equal(t, "/auth/login", c.path)
	require.Equal(t, map[string]any{"idToken": "id-token-1"}, c.body)
	require.NotEmpty(t, c.reqID)
	require.Equal(t, "t1", s.AppToken)
	require.Equal(t, "a@b.com", s.User.Email)
	require.Equal(t, "1", s.User.Key())

	require.Empty(t, store.Snapshot(), "login alone must not write storage")
	require.NoError(t, ex.Persist(context.Background(), s))
	require.Equal(t, map[string]string{
		"token": "t1",
		"user":  `{"id":1,"email":"a@b.com"}`,
	}, store.Snapshot())

	loaded, err := ex.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "t1", loaded.AppToken)
	require.Equal(t, "a@b.com", loaded.User.Email)
}

func TestLogin_Failures(t *testing.T) {
	tcs := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"invalid token"}`, autherr.ErrBackendRejected},
		{"server_error", http.StatusInternalServerError, ``, autherr.ErrBackendRejected},
		{"not_json", http.StatusOK, `<html>`, autherr.ErrMalformedResponse},
		{"no_token", http.StatusOK, `{"user":{"id":1}}`, autherr.ErrMalformedResponse},
		{"no_user", http.StatusOK, `{"token":"t1"}`, autherr.ErrMalformedResponse},
		{"user_not_object", http.StatusOK, `{"token":"t1","user":"a@b.com"}`, autherr.ErrMalformedResponse},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			srv := backend(t, nil, func(w http.ResponseWriter, r *http.Request) {
				reply(w, tc.status, tc.body)
			})
			ex := NewExchanger(Config{BaseURL: srv.URL}, memory.New())

			_, err := ex.Login(context.Background(), identity.Token{Raw: "x"})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLogin_BackendErrorCarriesStatus(t *testing.T) {
	srv := backend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusUnauthorized, `{"error":"expired id token"}`)
	})
	ex := NewExchanger(Config{BaseURL: srv.URL}, memory.New())

	_, err := ex.Login(context.Background(), identity.Token{Raw: "x"})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, http.StatusUnauthorized, be.Status)
	require.Equal(t, "expired id token", be.Message)
}

func TestLogin_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	ex := NewExchanger(Config{BaseURL: base}, memory.New())
	_, err := ex.Login(context.Background(), identity.Token{Raw: "x"})
	require.ErrorIs(t, err, autherr.ErrNetwork)
}

func studentFields() RegistrationFields {
	return RegistrationFields{
		FullName:      "Ada Lovelace",
		Email:         "ada@b.com",
		Role:          RoleStudent,
		School:        "North High",
		City:          "London",
		ParentContact: "555-0100",
		Standard:      "10",
		Subject:       "should be dropped",
	}
}

func teacherFields() RegistrationFields {
	return RegistrationFields{
		FullName:      "Alan Turing",
		Email:         "alan@b.com",
		Role:          RoleTeacher,
		School:        "North High",
		City:          "London",
		ParentContact: "should be dropped",
		Standard:      "should be dropped",
		Subject:       "Maths",
	}
}

func TestRegister_RoleSpecificPayload(t *testing.T) {
	t.Run("student", func(t *testing.T) {
		var c capture
		srv := backend(t, &c, func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusOK, `{"token":"app-1","user":{"id":"u1","email":"ada@b.com","role":"student"}}`)
		})
		ex := NewExchanger(Config{BaseURL: srv.URL}, memory.New())

		_, err := ex.Register(context.Background(), identity.Token{Raw: "id-1", UID: "uid-1"}, studentFields())
		require.NoError(t, err)
		require.Equal(t, "/auth/register", c.path)
		require.Equal(t, "Bearer id-1", c.auth)
		require.Equal(t, "uid-1", c.body["uid"])
		require.Equal(t, "555-0100", c.body["parentContact"])
		require.Equal(t, "10", c.body["standard"])
		require.NotContains(t, c.body, "subject")
	})

	t.Run("teacher", func(t *testing.T) {
		var c capture
		srv := backend(t, &c, func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusOK, `{"token":"app-1","user":{"id":"u2","email":"alan@b.com","role":"teacher"}}`)
		})
		ex := NewExchanger(Config{BaseURL: srv.URL}, memory.New())

		_, err := ex.Register(context.Background(), identity.Token{Raw: "id-2", UID: "uid-2"}, teacherFields())
		require.NoError(t, err)
		require.Equal(t, "Maths", c.body["subject"])
		require.NotContains(t, c.body, "parentContact")
		require.NotContains(t, c.body, "standard")
	})
}

func TestRegister_WithoutTokenExchangesViaLogin(t *testing.T) {
	var paths []string
	srv := backend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case RegisterPath:
			reply(w, http.StatusOK, `{"user":{"id":"u1","email":"ada@b.com"}}`)
		case LoginPath:
			reply(w, http.StatusOK, `{"token":"backend-app-token","user":{"id":"u1","email":"ada@b.com"}}`)
		}
	})
	ex := NewExchanger(Config{BaseURL: srv.URL}, memory.New())

	s, err := ex.Register(context.Background(), identity.Token{Raw: "raw-identity-token", UID: "uid-1"}, studentFields())
	require.NoError(t, err)
	require.Equal(t, []string{RegisterPath, LoginPath}, paths)
	require.Equal(t, "backend-app-token", s.AppToken)
	require.NotEqual(t, "raw-identity-token", s.AppToken)
}

func TestRegister_Failures(t *testing.T) {
	tcs := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"duplicate", http.StatusConflict, `{"message":"User already exists"}`, autherr.ErrDuplicateAccount},
		{"rejected", http.StatusBadRequest, `{}`, autherr.ErrBackendRejected},
		{"no_user", http.StatusOK, `{"message":"ok"}`, autherr.ErrMalformedResponse},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			srv := backend(t, nil, func(w http.ResponseWriter, r *http.Request) {
				reply(w, tc.status, tc.body)
			})
			ex := NewExchanger(Config{BaseURL: srv.URL}, memory.New())

			_, err := ex.Register(context.Background(), identity.Token{Raw: "x", UID: "u"}, studentFields())
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegister_InvalidFieldsNeverCallBackend(t *testing.T) {
	var c capture
	srv := backend(t, &c, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{}`)
	})
	ex := NewExchanger(Config{BaseURL: srv.URL}, memory.New())

	f := teacherFields()
	f.Subject = " "
	_, err := ex.Register(context.Background(), identity.Token{Raw: "x", UID: "u"}, f)
	var verr *autherr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "subject", verr.Field)
	require.Zero(t, c.bodies)
}

func TestPersist_FailureLeavesPreviousSession(t *testing.T) {
	store := memory.New()
	ex := NewExchanger(Config{}, store)
	ctx := context.Background()

	require.NoError(t, ex.Persist(ctx, New("old", UserProfile{ID: "1", Email: "old@b.com"})))

	store.FailSave = errors.New("disk full")
	require.Error(t, ex.Persist(ctx, New("new", UserProfile{ID: "2", Email: "new@b.com"})))

	snap := store.Snapshot()
	require.Equal(t, "old", snap[storage.KeyToken])
	require.JSONEq(t, `{"id":1,"email":"old@b.com"}`, snap[storage.KeyUser])
}

func TestPersist_RejectsEmptyToken(t *testing.T) {
	store := memory.New()
	ex := NewExchanger(Config{}, store)

	err := ex.Persist(context.Background(), New("", UserProfile{Email: "a@b.com"}))
	require.ErrorIs(t, err, storage.ErrIncomplete)
	require.Empty(t, store.Snapshot())
}

func TestRegister_RoleIsNormalized(t *testing.T) {
	var c capture
	srv := backend(t, &c, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"token":"app-1","user":{"id":"u1","email":"ada@b.com"}}`)
	})
	ex := NewExchanger(Config{BaseURL: srv.URL}, memory.New())

	f := studentFields()
	f.Role = " Student"
	f.Subject = ""
	_, err := ex.Register(context.Background(), identity.Token{Raw: "id-1", UID: "uid-1"}, f)
	require.NoError(t, err)
	require.Equal(t, "student", c.body["role"])
	require.Equal(t, "555-0100", c.body["parentContact"])
	require.Equal(t, "10", c.body["standard"])
	require.NotContains(t, c.body, "subject")
}
