// Package state is the explicit application-state container shared by the
// auth flow and the commands that render it.
package state

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/smartlearnhub/slh/internal/session"
)

// Phase is a step of the authentication hand-off.
type Phase string

const (
	Unauthenticated  Phase = "unauthenticated"
	Authenticating   Phase = "authenticating"
	TokenObtained    Phase = "token_obtained"
	Exchanging       Phase = "exchanging"
	SessionPersisted Phase = "session_persisted"
)

// edges lists the allowed forward transitions. Failure back to
// Unauthenticated is always allowed.
var edges = map[Phase]Phase{
	Authenticating: TokenObtained,
	TokenObtained:  Exchanging,
	Exchanging:     SessionPersisted,
}

// InFlight reports whether an attempt is between Begin and its outcome.
func (p Phase) InFlight() bool {
	return p == Authenticating || p == TokenObtained || p == Exchanging
}

// ErrBusy is returned by Begin while another attempt is in flight.
var ErrBusy = errors.New("an authentication attempt is already in progress")

// Theme names the colour scheme.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeBlue   Theme = "blue"
	ThemePurple Theme = "purple"
)

// Themes lists the supported themes in display order.
var Themes = []Theme{ThemeLight, ThemeDark, ThemeBlue, ThemePurple}

// ParseTheme accepts a theme name in any case. Empty means light.
func ParseTheme(s string) (Theme, error) {
	if s == "" {
		return ThemeLight, nil
	}
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Themes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// State is one snapshot of the application.
type State struct {
	Phase   Phase
	Session *session.Session
	Theme   Theme
	// Notice is the last user-visible message, cleared by Begin.
	Notice string
}

// Container holds the current State and fans updates out to subscribers.
type Container struct {
	mu     sync.Mutex
	cur    State
	subs   map[int]chan State
	nextID int
}

func NewContainer(initial State) *Container {
	if initial.Phase == "" {
		initial.Phase = Unauthenticated
	}
	if initial.Theme == "" {
		initial.Theme = ThemeLight
	}
	return &Container{cur: initial, subs: make(map[int]chan State)}
}

// Get returns a copy of the current state.
func (c *Container) Get() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Update applies fn to the state and notifies subscribers.
func (c *Container) Update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.cur)
	c.publishLocked()
	c.mu.Unlock()
}

// Subscribe returns a channel receiving every later state and an
// unsubscribe func. Slow subscribers miss intermediate states.
func (c *Container) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	ch := make(chan State, 16)
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
		c.mu.Unlock()
	}
}

func (c *Container) publishLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- c.cur:
		default: // drop if subscriber is slow
		}
	}
}

// Begin starts an attempt. It fails with ErrBusy when one is in flight.
func (c *Container) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur.Phase.InFlight() {
		return ErrBusy
	}
	c.cur.Phase = Authenticating
	c.cur.Notice = ""
	c.publishLocked()
	return nil
}

// Advance moves along the hand-off. Skipping or reversing steps is an error.
func (c *Container) Advance(to Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next, ok := edges[c.cur.Phase]; !ok || next != to {
		return fmt.Errorf("invalid transition %s -> %s", c.cur.Phase, to)
	}
	c.cur.Phase = to
	c.publishLocked()
	return nil
}

// Persisted records the session that was just written to storage.
func (c *Container) Persisted(s session.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur.Phase != Exchanging {
		return fmt.Errorf("invalid transition %s -> %s", c.cur.Phase, SessionPersisted)
	}
	c.cur.Phase = SessionPersisted
	c.cur.Session = &s
	c.publishLocked()
	return nil
}

// Fail abandons the attempt and returns to Unauthenticated. Any session
// held before the attempt is dropped from memory; storage is untouched.
func (c *Container) Fail(notice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.Phase = Unauthenticated
	c.cur.Session = nil
	c.cur.Notice = notice
	c.publishLocked()
}

// SignedOut clears the session.
func (c *Container) SignedOut() {
	c.Update(func(s *State) {
		s.Phase = Unauthenticated
		s.Session = nil
		s.Notice = ""
	})
}
