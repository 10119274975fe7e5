package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/monorkin/nightscout-watch-monitor/internal/globals"
	"github.com/monorkin/nightscout-watch-monitor/nightscout/api"
	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <site_name>",
	Short: "Fetch and decode the current watch entry of a site",
	Long: `Fetch the watch face payload of a configured site once and print the decoded
entry as JSON. Nothing is stored.`,
	Args: cobra.ExactArgs(1),
	Run:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) {
	siteSettings, ok := globals.Settings.FindSite(args[0])
	if !ok {
		fail(fmt.Sprintf("Site not found: %s", args[0]), nil)
	}

	epochUnit, err := globals.Settings.DecoderEpochUnit()
	if err != nil {
		fail("Invalid settings", err)
	}

	client := api.NewClientWithLogger(globals.Logging.Get("api"))
	client.SetDecoder(watch.NewDecoder(
		watch.WithEpochUnit(epochUnit),
		watch.WithLogger(globals.Logging.Get("decoder")),
	))

	site, err := client.AddSite(siteSettings.Name, siteSettings.URL, siteSettings.APISecret)
	if err != nil {
		fail("Invalid site", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*api.REQUEST_TIMEOUT)
	defer cancel()

	entry, err := site.FetchWatchEntry(ctx)
	if err != nil {
		fail("Failed to fetch watch entry", err)
	}

	if err := printJSON(os.Stdout, entry); err != nil {
		fail("Failed to encode entry", err)
	}
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
