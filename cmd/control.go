package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flokli/display-profiled/ipc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active profile and connected outputs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd, ipc.Command{Kind: ipc.Status})
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the configuration and re-apply the matching profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd, ipc.Command{Kind: ipc.Reload})
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch [profile]",
	Short: "Apply a profile regardless of the connected outputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd, ipc.Command{Kind: ipc.Switch, Profile: args[0]})
	},
}

// send delivers c to the daemon and prints the response message. An error
// response is returned as error, so the process exits non-zero.
func send(cmd *cobra.Command, c ipc.Command) error {
	resp, err := ipc.Send(socketPath, c)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(switchCmd)
}
