package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"github.com/smartlearnhub/slh/internal/autherr"
	"github.com/smartlearnhub/slh/internal/quiz"
	"github.com/smartlearnhub/slh/internal/storage"
	"github.com/spf13/cobra"
)

const noticeResults = "Failed to load results"

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <quiz-id>",
		Short: "Show the submissions for a quiz",
		Args:  cobra.ExactArgs(1),
		RunE:  runResults,
	}
}

func runResults(cmd *cobra.Command, args []string) error {
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

	results, err := quiz.NewClient(a.cfg.API.BaseURL, s.AppToken, a.http).GetResults(cmd.Context(), args[0])
	if err != nil {
		var verr *autherr.ValidationError
		if errors.As(err, &verr) {
			return err
		}
		slog.Error("loading quiz results", "quiz", args[0], "kind", autherr.Kind(err), "error", err)
		return errors.New(noticeResults)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Student\tScore\tSubmitted At")
	for _, r := range results {
		submitted := "—"
		if !r.CreatedAt.IsZero() {
			submitted = r.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.StudentName(), strconv.FormatFloat(r.Score, 'f', -1, 64), submitted)
	}
	return tw.Flush()
}
