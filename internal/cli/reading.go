package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/monorkin/nightscout-watch-monitor/internal/globals"
)

var readingCmd = &cobra.Command{
	Use:     "reading",
	Aliases: []string{"r", "readings"},
	Short:   "Get stored readings",
	Long:    `Commands for retrieving readings stored by the monitor.`,
}

var readingGetCmd = &cobra.Command{
	Use:   "get <site_id_name_or_url>",
	Short: "Get the latest stored watch entry for a site",
	Long: `Get the latest stored watch entry for a site specified by ID, name or URL.

Examples:
  nightscout-watch-monitor reading get 1
  nightscout-watch-monitor reading get home`,
	Args: cobra.ExactArgs(1),
	Run:  runReadingGet,
}

func runReadingGet(cmd *cobra.Command, args []string) {
	identifier := args[0]
	globals.Logger.WithField("identifier", identifier).Debug("Getting latest reading")

	site, err := globals.Store.FindSite(identifier)
	if err != nil {
		fail(fmt.Sprintf("Site not found: %s", identifier), err)
	}

	reading, err := globals.Store.LatestReading(site.ID)
	if err != nil {
		fail(fmt.Sprintf("No readings stored for %s", site.Name), err)
	}

	if err := printJSON(os.Stdout, reading.WatchEntry()); err != nil {
		fail("Failed to encode entry", err)
	}
}

func init() {
	rootCmd.AddCommand(readingCmd)
	readingCmd.AddCommand(readingGetCmd)
}
