package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flokli/display-profiled/ipc"
)

var (
	socketPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "display-profiled [command]",
	Short: "Apply display profiles when outputs change",
	Long: `display-profiled watches the outputs of a wlroots compositor, picks the
profile matching the connected set and applies it using wlr-randr and
arbitrary shell commands. The status, reload and switch commands talk to a
running daemon.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", ipc.SocketPath(), "path of the control socket")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
}
