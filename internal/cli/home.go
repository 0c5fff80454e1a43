package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/smartlearnhub/slh/internal/ops"
	"github.com/smartlearnhub/slh/internal/state"
	"github.com/smartlearnhub/slh/internal/storage"
	"github.com/spf13/cobra"
)

var quickLinks = []struct{ title, desc string }{
	{"Notes", "Browse and create study notes"},
	{"Quizzes", "Take quizzes or review results"},
	{"AI Assistant", "Ask questions about your subjects"},
	{"Progress", "Track your learning over time"},
}

const footer = "© SmartLearn Hub. Learning made simple."

func runHome(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.auth.Current(cmd.Context()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("reading session: %w", err)
	}
	renderHome(cmd.OutOrStdout(), a.auth.State().Get())
	return nil
}

// renderHome prints the landing screen for st. Signed-out users are sent
// to login.
func renderHome(w io.Writer, st state.State) {
	fmt.Fprintln(w)
	if st.Session == nil {
		fmt.Fprintln(w, "=== SmartLearn Hub ===")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  You are not signed in.")
		fmt.Fprintln(w, "  Run `slh login` or `slh register` to get started.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, footer)
		return
	}

	name := st.Session.User.FirstName()
	if name == "" {
		name = st.Session.User.Email
	}
	fmt.Fprintf(w, "=== Welcome back, %s ===\n", name)
	fmt.Fprintln(w)
	for _, l := range quickLinks {
		fmt.Fprintf(w, "  %-13s %s\n", l.title, l.desc)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Theme: %s\n", st.Theme)
	fmt.Fprintln(w)
	fmt.Fprintln(w, footer)
}

// printProgress renders ops progress like "[1/3] Label ... OK".
func printProgress(w io.Writer) ops.ProgressFunc {
	return func(e ops.ProgressEvent) {
		switch e.Status {
		case "running":
			fmt.Fprintf(w, "[%d/%d] %s\n", e.Step, e.Total, e.Label)
		case "failed":
			fmt.Fprintln(w, "      FAILED")
		}
	}
}
