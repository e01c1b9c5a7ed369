package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed URL...",
		Short: "Add absolute URLs to the pending set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, raw := range args {
				added, err := a.Frontier().Seed(cmd.Context(), raw)
				if err != nil {
					return fmt.Errorf("seed %q: %w", raw, err)
				}
				status := "seeded"
				if !added {
					status = "skipped"
				}
				fmt.Fprintf(out, "%s\t%s\n", status, raw)
			}
			return nil
		},
	}
}
