package autherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	tcs := []struct {
		name string
		in   error
		want string
	}{
		{"nil", nil, ""},
		{"plain", ErrWeakPassword, "WeakPassword"},
		{"wrapped", fmt.Errorf("signup: %w", ErrEmailAlreadyInUse), "EmailAlreadyInUse"},
		{"double_wrapped", fmt.Errorf("login: %w", fmt.Errorf("post: %w", ErrNetwork)), "NetworkError"},
		{"duplicate_over_rejected", fmt.Errorf("%w: %w", ErrDuplicateAccount, ErrBackendRejected), "DuplicateAccount"},
		{"unknown", errors.New("boom"), "Unknown"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Kind(tc.in))
		})
	}
}
