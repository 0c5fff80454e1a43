package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/smartlearnhub/slh/internal/autherr"
)

// CallbackPath is where the provider redirects the browser.
const CallbackPath = "/callback"

// callbackResult is what the browser delivered to the loopback server.
type callbackResult struct {
	code string
	err  error
}

// callbackServer receives exactly one authorization response.
type callbackServer struct {
	state   string
	mux     chi.Router
	srv     *http.Server
	lis     net.Listener
	results chan callbackResult
}

func newCallbackServer(addr, state string) (*callbackServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for callback: %w", err)
	}
	s := &callbackServer{
		state:   state,
		mux:     chi.NewRouter(),
		lis:     lis,
		results: make(chan callbackResult, 1),
	}
	s.routes()
	s.srv = &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	return s, nil
}

func (s *callbackServer) routes() {
	s.mux.Get(CallbackPath, s.handleCallback)
	s.mux.NotFound(http.NotFound)
}

// RedirectURL is the loopback URL registered with the provider.
func (s *callbackServer) RedirectURL() string {
	return "http://" + s.lis.Addr().String() + CallbackPath
}

// Run serves until Shutdown.
func (s *callbackServer) Run() {
	if err := s.srv.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("oauth callback server error", "error", err)
	}
}

func (s *callbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *callbackServer) deliver(r callbackResult) {
	select {
	case s.results <- r:
	default: // first response wins
	}
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("state") != s.state {
		// Not our request; keep waiting for the real redirect.
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		if errParam == "access_denied" {
			s.deliver(callbackResult{err: autherr.ErrUserCancelled})
			renderPage(w, http.StatusOK, "Sign-in cancelled", "You can close this window and return to the terminal.")
			return
		}
		s.deliver(callbackResult{err: fmt.Errorf("%w: %s %s", autherr.ErrProvider, errParam, q.Get("error_description"))})
		renderPage(w, http.StatusBadRequest, "Sign-in failed", "The provider returned an error. Return to the terminal for details.")
		return
	}

	code := q.Get("code")
	if code == "" {
		s.deliver(callbackResult{err: fmt.Errorf("%w: callback missing code", autherr.ErrProvider)})
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	s.deliver(callbackResult{code: code})
	renderPage(w, http.StatusOK, "Signed in", "You can close this window and return to the terminal.")
}

func renderPage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>SmartLearn Hub</title></head>
<body>
  <h1>%s</h1>
  <p>%s</p>
</body>
</html>`, title, body)
}
