package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "botfleet",
		Short:         "botfleet: run and supervise a fleet of game-server bots",
		Long:          "botfleet supervises a fleet of bot connections to a single game server: it manages stored logins and cookie jars, leases validated proxies, keeps sessions alive across disconnects, and reports the live fleet over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(app),
		newLoginCmd(app),
		newAccountsCmd(app),
		newProxiesCmd(app),
	)

	return rootCmd
}
