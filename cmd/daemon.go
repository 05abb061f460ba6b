package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/flokli/display-profiled/config"
	"github.com/flokli/display-profiled/ipc"
	"github.com/flokli/display-profiled/mqtt"
	"github.com/flokli/display-profiled/outputs/randr"
	"github.com/flokli/display-profiled/outputs/wayland"
	"github.com/flokli/display-profiled/profile"
	"github.com/flokli/display-profiled/server"
)

var daemonOpts struct {
	configPath   string
	source       string
	display      string
	pollInterval time.Duration
	watchConfig  bool
	dryRun       bool
	shell        string
	mqttBroker   string
	mqttPrefix   string
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the daemon in the foreground",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
		defer stop()
		return runDaemon(ctx)
	},
}

func runDaemon(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(daemonOpts.configPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}
	log.WithFields(log.Fields{
		"path":     cfg.Path(),
		"profiles": len(cfg.Profiles),
	}).Info("configuration loaded")

	var source server.Source
	switch daemonOpts.source {
	case "wayland":
		source = wayland.New(daemonOpts.display)
	case "wlr-randr":
		source = randr.New(daemonOpts.pollInterval)
	default:
		return fmt.Errorf("unknown output source %q, expected wayland or wlr-randr", daemonOpts.source)
	}

	executor := &profile.ShellExecutor{
		Shell:  daemonOpts.shell,
		DryRun: daemonOpts.dryRun,
	}
	s := server.New(cfg, source, executor)

	if daemonOpts.mqttBroker != "" {
		machineID, err := mqtt.GetMachineID()
		if err != nil {
			return fmt.Errorf("unable to get machine id: %w", err)
		}
		client, err := mqtt.Connect(daemonOpts.mqttBroker, ipc.AppName+"-"+machineID,
			mqtt.OnlineTopic(daemonOpts.mqttPrefix, machineID))
		if err != nil {
			return fmt.Errorf("unable to connect to mqtt broker: %w", err)
		}

		publisher := mqtt.NewPublisher(client, daemonOpts.mqttPrefix, machineID)
		s.SetPublisher(publisher)

		published := make(chan struct{})
		go func() {
			publisher.Run(ctx)
			close(published)
		}()
		// let the publisher send the offline state before disconnecting
		defer func() {
			cancel()
			<-published
			client.Disconnect(250)
		}()
	}

	if daemonOpts.watchConfig {
		if err := s.WatchConfig(ctx); err != nil {
			return fmt.Errorf("unable to watch configuration: %w", err)
		}
	}

	listener, err := ipc.Listen(socketPath)
	if err != nil {
		return err
	}
	log.WithField("socket", listener.Path()).Info("control socket listening")

	return s.Run(ctx, listener)
}

func init() {
	f := daemonCmd.Flags()
	f.StringVarP(&daemonOpts.configPath, "config", "c", config.DefaultPath(), "profiles file (.toml, .yaml or .yml)")
	f.StringVar(&daemonOpts.source, "source", "wayland", "output source: wayland or wlr-randr")
	f.StringVar(&daemonOpts.display, "display", "", "wayland display to connect to, defaults to $WAYLAND_DISPLAY")
	f.DurationVar(&daemonOpts.pollInterval, "poll-interval", randr.DefaultInterval, "polling interval of the wlr-randr source")
	f.BoolVar(&daemonOpts.watchConfig, "watch-config", false, "reload the configuration when the file changes")
	f.BoolVar(&daemonOpts.dryRun, "dry-run", false, "log profile commands instead of executing them")
	f.StringVar(&daemonOpts.shell, "shell", "/bin/sh", "shell used to run profile commands")
	f.StringVar(&daemonOpts.mqttBroker, "mqtt-broker", "", "mirror the status to this MQTT broker, e.g. tcp://localhost:1883")
	f.StringVar(&daemonOpts.mqttPrefix, "mqtt-topic-prefix", ipc.AppName, "MQTT topic prefix")

	rootCmd.AddCommand(daemonCmd)
}
