package cli

import (
	"fmt"

	"github.com/dkeye/rendezvous/internal/client"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Ask the server for a session client id",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := client.New(serverURL).WhoAmI(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
