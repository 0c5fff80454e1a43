// Package session turns an identity token into a durable application
// session by calling the SmartLearn Hub backend and persisting the result.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/identity"
	"github.com/smartlearnhub/slh/internal/redact"
	"github.com/smartlearnhub/slh/internal/storage"
)

const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
)

// BackendError is a non-success response from the backend.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Config configures an Exchanger.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Exchanger mints and persists application sessions.
type Exchanger struct {
	base   string
	client *http.Client
	store  storage.Store
}

func NewExchanger(cfg Config, store storage.Store) *Exchanger {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Exchanger{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: client,
		store:  store,
	}
}

type loginRequest struct {
	IDToken string `json:"idToken"`
}

type sessionResponse struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Login exchanges tok for a backend-issued session. It does not persist.
func (e *Exchanger) Login(ctx context.Context, tok identity.Token) (Session, error) {
	var resp sessionResponse
	if err := e.post(ctx, LoginPath, "", loginRequest{IDToken: tok.Raw}, &resp); err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return Session{}, fmt.Errorf("login: %w: missing token", autherr.ErrMalformedResponse)
	}
	s, err := decodeSession(resp.Token, resp.User)
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	return s, nil
}

// Register creates the backend profile for tok. When the backend does not
// hand back an app token the same identity token is exchanged through
// Login, so the resulting session always carries a backend-issued token.
func (e *Exchanger) Register(ctx context.Context, tok identity.Token, fields RegistrationFields) (Session, error) {
	if fields.UID == "" {
		fields.UID = tok.UID
	}
	if err := fields.Validate(); err != nil {
		return Session{}, err
	}

	var resp sessionResponse
	if err := e.post(ctx, RegisterPath, tok.Raw, fields.payload(), &resp); err != nil {
		var be *BackendError
		if errors.As(err, &be) && be.Status == http.StatusConflict {
			return Session{}, fmt.Errorf("register: %w: %w", autherr.ErrDuplicateAccount, err)
		}
		return Session{}, fmt.Errorf("register: %w", err)
	}
	if _, err := decodeUser(resp.User); err != nil {
		return Session{}, fmt.Errorf("register: %w", err)
	}
	if resp.Token != "" {
		s, err := decodeSession(resp.Token, resp.User)
		if err != nil {
			return Session{}, fmt.Errorf("register: %w", err)
		}
		return s, nil
	}

	slog.Debug("register: no app token in response, exchanging identity token", "email", redact.Email(fields.Email))
	return e.Login(ctx, tok)
}

// Persist writes s, replacing any previous session. Both keys are written
// or neither is.
func (e *Exchanger) Persist(ctx context.Context, s Session) error {
	rec, err := s.Record()
	if err != nil {
		return err
	}
	if !rec.Valid() {
		return fmt.Errorf("persist: %w", storage.ErrIncomplete)
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	slog.Debug("session persisted", "token", redact.Token(s.AppToken), "email", redact.Email(s.User.Email))
	return nil
}

// Load returns the stored session or storage.ErrNotFound.
func (e *Exchanger) Load(ctx context.Context) (Session, error) {
	rec, err := e.store.Load(ctx)
	if err != nil {
		return Session{}, err
	}
	return FromRecord(rec)
}

// Clear removes the stored session.
func (e *Exchanger) Clear(ctx context.Context) error {
	return e.store.Clear(ctx)
}

func decodeUser(raw json.RawMessage) (UserProfile, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return UserProfile{}, fmt.Errorf("%w: missing user", autherr.ErrMalformedResponse)
	}
	var u UserProfile
	if err := json.Unmarshal(trimmed, &u); err != nil {
		return UserProfile{}, fmt.Errorf("%w: user: %w", autherr.ErrMalformedResponse, err)
	}
	return u, nil
}

func decodeSession(token string, raw json.RawMessage) (Session, error) {
	u, err := decodeUser(raw)
	if err != nil {
		return Session{}, err
	}
	return Session{AppToken: token, User: u, rawUser: bytes.TrimSpace(raw)}, nil
}

// post sends body as JSON and decodes a 2xx response into out. Transport
// failures wrap autherr.ErrNetwork; non-2xx responses wrap
// autherr.ErrBackendRejected and a *BackendError.
func (e *Exchanger) post(ctx context.Context, path, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", autherr.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", autherr.ErrNetwork, err)
	}
	slog.Debug("backend response", "path", path, "status", resp.StatusCode, "request_id", req.Header.Get("X-Request-Id"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %w", autherr.ErrBackendRejected, &BackendError{
			Status:  resp.StatusCode,
			Message: backendMessage(data),
		})
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", autherr.ErrMalformedResponse, err)
	}
	return nil
}

// backendMessage pulls a human message out of common error bodies.
func backendMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	if s, ok := body.Error.(string); ok {
		return s
	}
	return ""
}
