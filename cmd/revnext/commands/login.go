package commands

import (
	"fmt"

	"revnext-reports/internal/reports"

	"github.com/spf13/cobra"
)

var loginForce bool

func init() {
	loginCmd.Flags().BoolVarP(&loginForce, "force", "f", false, "log in again even if the saved session is still valid")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login [--force]",
	Short: "Logs in (or checks the saved session) and saves the session cookies.",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		var err error
		if loginForce {
			_, err = e.provider.Refresh(cmd.Context(), reports.PriceListServiceObject)
		} else {
			_, err = e.provider.GetOrCreate(cmd.Context(), reports.PriceListServiceObject)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session for %s saved at %s\n", e.config.BaseUrl, e.config.SessionPath)
		return nil
	}),
}
