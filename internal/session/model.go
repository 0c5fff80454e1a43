package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/identity"
	"github.com/smartlearnhub/slh/internal/storage"
)

// Role is the account type chosen at registration.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// ParseRole accepts "student" or "teacher" in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleTeacher:
		return r, nil
	}
	return "", autherr.Invalid("role", fmt.Sprintf("role must be %q or %q", RoleStudent, RoleTeacher))
}

// ID is a backend identifier that may arrive as a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id != "" && json.Valid([]byte(id)) && (id[0] == '-' || (id[0] >= '0' && id[0] <= '9')) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UserProfile is the client's read-only copy of the backend user.
type UserProfile struct {
	ID            ID     `json:"id,omitempty"`
	MongoID       ID     `json:"_id,omitempty"`
	UID           string `json:"uid,omitempty"`
	FullName      string `json:"fullName,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          Role   `json:"role,omitempty"`
	School        string `json:"school,omitempty"`
	City          string `json:"city,omitempty"`
	ParentContact string `json:"parentContact,omitempty"`
	Standard      string `json:"standard,omitempty"`
	Subject       string `json:"subject,omitempty"`
}

// Key returns whichever identifier the backend populated.
func (u UserProfile) Key() string {
	switch {
	case u.ID != "":
		return string(u.ID)
	case u.MongoID != "":
		return string(u.MongoID)
	}
	return u.UID
}

// FirstName is the first word of FullName.
func (u UserProfile) FirstName() string {
	if f := strings.Fields(u.FullName); len(f) > 0 {
		return f[0]
	}
	return ""
}

// Session is the application's own authorization artifact.
type Session struct {
	AppToken string
	User     UserProfile

	// rawUser is the user object exactly as the backend sent it.
	rawUser json.RawMessage
}

// New builds a Session from a decoded profile.
func New(appToken string, user UserProfile) Session {
	return Session{AppToken: appToken, User: user}
}

// UserJSON is the serialized profile stored under the "user" key. The
// backend's own encoding is kept when available.
func (s Session) UserJSON() (string, error) {
	if len(s.rawUser) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, s.rawUser); err != nil {
			return "", fmt.Errorf("compacting user: %w", err)
		}
		return buf.String(), nil
	}
	b, err := json.Marshal(s.User)
	if err != nil {
		return "", fmt.Errorf("marshaling user: %w", err)
	}
	return string(b), nil
}

// Record converts s to its persisted form.
func (s Session) Record() (storage.Record, error) {
	user, err := s.UserJSON()
	if err != nil {
		return storage.Record{}, err
	}
	return storage.Record{Token: s.AppToken, User: user}, nil
}

// FromRecord rebuilds a Session from storage.
func FromRecord(rec storage.Record) (Session, error) {
	var user UserProfile
	if err := json.Unmarshal([]byte(rec.User), &user); err != nil {
		return Session{}, fmt.Errorf("decoding stored user: %w", err)
	}
	return Session{AppToken: rec.Token, User: user, rawUser: json.RawMessage(rec.User)}, nil
}

// RegistrationFields are the profile fields sent to /auth/register.
type RegistrationFields struct {
	UID           string
	FullName      string
	Email         string
	Role          Role
	School        string
	City          string
	ParentContact string
	Standard      string
	Subject       string
}

type requiredField struct{ field, label, value string }

// Validate checks the fields required for the chosen role.
func (f RegistrationFields) Validate() error {
	role, err := ParseRole(string(f.Role))
	if err != nil {
		return err
	}
	if err := identity.ValidateEmail(f.Email); err != nil {
		return err
	}
	required := []requiredField{
		{"fullName", "full name", f.FullName},
		{"school", "school", f.School},
		{"city", "city", f.City},
	}
	if role == RoleStudent {
		required = append(required,
			requiredField{"parentContact", "parent's contact", f.ParentContact},
			requiredField{"standard", "standard", f.Standard},
		)
	} else {
		required = append(required, requiredField{"subject", "subject", f.Subject})
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return autherr.Invalid(r.field, r.label+" is required")
		}
	}
	return nil
}

type registerPayload struct {
	UID           string `json:"uid"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	School        string `json:"school"`
	City          string `json:"city"`
	ParentContact string `json:"parentContact,omitempty"`
	Standard      string `json:"standard,omitempty"`
	Subject       string `json:"subject,omitempty"`
}

// payload drops the fields that belong to the other role. It expects f to
// have passed Validate.
func (f RegistrationFields) payload() registerPayload {
	role, _ := ParseRole(string(f.Role))
	p := registerPayload{
		UID:      f.UID,
		FullName: strings.TrimSpace(f.FullName),
		Email:    strings.TrimSpace(f.Email),
		Role:     role,
		School:   strings.TrimSpace(f.School),
		City:     strings.TrimSpace(f.City),
	}
	switch role {
	case RoleStudent:
		p.ParentContact = strings.TrimSpace(f.ParentContact)
		p.Standard = strings.TrimSpace(f.Standard)
	case RoleTeacher:
		p.Subject = strings.TrimSpace(f.Subject)
	}
	return p
}
