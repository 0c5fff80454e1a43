package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smartlearnhub/slh/internal/identity"
	"github.com/smartlearnhub/slh/internal/ops"
	"github.com/spf13/cobra"
)

type loginOptions struct {
	email    string
	provider string
}

func newLoginCmd() *cobra.Command {
	var o loginOptions
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password, or a federated provider",
		Example: `  slh login --email ada@example.com
  slh login --provider google`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.email, "email", "", "account email (prompted when omitted)")
	cmd.Flags().StringVar(&o.provider, "provider", "", "federated provider to sign in with (google)")
	return cmd
}

func runLogin(cmd *cobra.Command, o loginOptions) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	progress := printProgress(out)

	if p := strings.ToLower(strings.TrimSpace(o.provider)); p != "" {
		fmt.Fprintf(out, "Signing in with %s. Complete the consent in your browser.\n", identity.DisplayName(p))
		_, err = a.auth.LoginWithProvider(cmd.Context(), p, progress)
	} else {
		pr := newPrompter(cmd.InOrStdin(), out)
		var creds identity.Credentials
		if creds.Email, err = pr.Line("Email", strings.TrimSpace(o.email)); err != nil {
			return err
		}
		if creds.Password, err = pr.Secret("Password"); err != nil {
			return err
		}
		_, err = a.auth.LoginWithPassword(cmd.Context(), creds, progress)
	}
	if err != nil {
		return noticeError(err)
	}

	renderHome(out, a.auth.State().Get())
	return nil
}

// noticeError reduces err to the message the user should see.
func noticeError(err error) error {
	return errors.New(ops.NoticeOf(err))
}
