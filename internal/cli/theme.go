package cli

import (
	"fmt"

	"github.com/smartlearnhub/slh/internal/config"
	"github.com/smartlearnhub/slh/internal/state"
	"github.com/spf13/cobra"
)

func newThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|blue|purple]",
		Short:     "Show or change the colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "blue", "purple"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				cur, err := state.ParseTheme(cfg.Theme)
				if err != nil {
					cur = state.ThemeLight
				}
				for _, t := range state.Themes {
					mark := " "
					if t == cur {
						mark = "*"
					}
					fmt.Fprintf(out, "  %s %s\n", mark, t)
				}
				return nil
			}

			t, err := state.ParseTheme(args[0])
			if err != nil {
				return err
			}
			file, err := config.LoadFile()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			file.Theme = string(t)
			if err := config.Save(file); err != nil {
				return err
			}
			fmt.Fprintf(out, "Theme set to %s.\n", t)
			return nil
		},
	}
}
