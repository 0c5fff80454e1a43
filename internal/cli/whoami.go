package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/smartlearnhub/slh/internal/session"
	"github.com/smartlearnhub/slh/internal/storage"
	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.auth.Current(cmd.Context())
			if errors.Is(err, storage.ErrNotFound) {
				return errNotSignedIn
			}
			if err != nil {
				return err
			}

			u := s.User
			out := cmd.OutOrStdout()
			row(out, "Name", u.FullName)
			row(out, "Email", u.Email)
			row(out, "Role", string(u.Role))
			row(out, "School", u.School)
			row(out, "City", u.City)
			switch u.Role {
			case session.RoleStudent:
				row(out, "Standard", u.Standard)
			case session.RoleTeacher:
				row(out, "Subject", u.Subject)
			}
			return nil
		},
	}
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-9s %s\n", label+":", orDash(value))
}

var errNotSignedIn = errors.New("not signed in; run `slh login` first")

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
