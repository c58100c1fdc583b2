package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// healthCmd returns the health command
func healthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.Client.Health(cmd.Context())
			if err != nil {
				app.Logger.Error(cmd.Context(), "Health check failed", err, map[string]interface{}{"server": app.Client.BaseURL()})
				return err
			}
			fmt.Fprintf(app.Out, "%s %s at %s: %s (version %s, up %s, %s heap)\n",
				status.Service, status.Environment, app.Client.BaseURL(), status.Status, status.Version,
				time.Duration(status.Uptime)*time.Second, status.Memory.AllocHuman)
			return nil
		},
	}
}
