package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arven-dev/botfleet/internal/domain"
)

func newAccountsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage stored accounts",
	}

	cmd.AddCommand(
		newAccountsListCmd(app),
		newAccountsRemoveCmd(app),
	)

	return cmd
}

func newAccountsListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			delegated, err := app.store.List(cmd.Context(), domain.KindDelegated)
			if err != nil {
				return err
			}
			cookies, err := app.store.List(cmd.Context(), domain.KindCookieReplay)
			if err != nil {
				return err
			}

			if len(delegated) == 0 && len(cookies) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no accounts stored")
				return nil
			}

			for _, ref := range delegated {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ref.Kind, ref.File)
			}
			for _, ref := range cookies {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ref.Kind, ref.File)
			}
			return nil
		},
	}
}

func newAccountsRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <file>",
		Short: "Delete a stored account file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}
