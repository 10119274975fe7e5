package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/monorkin/nightscout-watch-monitor/internal/app"
	"github.com/monorkin/nightscout-watch-monitor/internal/globals"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "nightscout-watch-monitor",
	Short: "Nightscout watch face monitor",
	Long: `A headless companion for Nightscout glucose dashboards.

The monitor polls the configured Nightscout sites, decodes their watch face
payload, stores new readings and shares the latest entry over DBus, an optional
HTTP API and an optional AMQP broker.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := globals.Initialize(verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to initialize: %v\n", err)
			os.Exit(1)
		}
	},
	Run: runMonitor,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
}

func runMonitor(cmd *cobra.Command, args []string) {
	if len(globals.Settings.Sites) == 0 {
		fail("No sites configured, add one with: nightscout-watch-monitor site add <name> <url>", nil)
	}

	monitor, err := app.New(globals.Settings, globals.Store, globals.Logging)
	if err != nil {
		fail("Failed to start monitor", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := monitor.Run(ctx); err != nil {
		fail("Monitor stopped", err)
	}
}

// fail logs err, reports it on stderr and exits with status 1.
func fail(message string, err error) {
	if err == nil {
		globals.Logger.Error(message)
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	} else {
		globals.Logger.WithError(err).Error(message)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	}
	os.Exit(1)
}
