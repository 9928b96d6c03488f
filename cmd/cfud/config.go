package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/j-veylop/cf-usage-dashboard/internal/services"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/settings"
)

func newConfigCmd(verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or import the dashboard settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored settings as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd.Context(), *verbose, func(mgr *services.Manager) error {
					s, err := mgr.Settings(cmd.Context())
					if errors.Is(err, settings.ErrNotConfigured) {
						return fmt.Errorf("%w: run cfud config import <file>", err)
					}
					if err != nil {
						return err
					}
					data, err := settings.Export(s)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Validate and store settings from a JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd.Context(), *verbose, func(mgr *services.Manager) error {
					s, err := mgr.ImportSettings(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported settings for %d account(s)\n", len(s.AccountIDs))
					return nil
				})
			},
		},
	)

	return cmd
}
