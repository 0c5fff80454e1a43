// Package autherr defines the failure taxonomy shared by the identity,
// session and ops packages. Every error is terminal for the attempt that
// produced it.
package autherr

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserCancelled      = errors.New("sign-in cancelled by user")
	ErrProvider           = errors.New("identity provider error")
	ErrNetwork            = errors.New("network error")
	ErrBackendRejected    = errors.New("backend rejected request")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrDuplicateAccount   = errors.New("account already registered")
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrWeakPassword       = errors.New("password too weak")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidCredentials, "InvalidCredentials"},
	{ErrUserCancelled, "UserCancelled"},
	{ErrProvider, "ProviderError"},
	{ErrNetwork, "NetworkError"},
	{ErrDuplicateAccount, "DuplicateAccount"},
	{ErrBackendRejected, "BackendRejected"},
	{ErrMalformedResponse, "MalformedResponse"},
	{ErrEmailAlreadyInUse, "EmailAlreadyInUse"},
	{ErrWeakPassword, "WeakPassword"},
}

// Kind returns the most specific taxonomy name of err, or "Unknown" when err wraps none
// of the sentinels.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}

// ValidationError rejects user input before any provider or backend call.
// It is not part of the taxonomy; its message is shown to the user as is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
