package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arven-dev/botfleet/internal/domain"
)

func newLoginCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Add an account through the interactive consent flow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref := domain.AccountRef{
				File: "random-" + uuid.NewString() + ".json",
				Kind: domain.KindDelegated,
			}

			cred, err := app.auth.Acquire(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("interactive login: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", cred.Name, cred.IdentityID)
			return nil
		},
	}
}
