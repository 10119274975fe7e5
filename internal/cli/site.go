package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/monorkin/nightscout-watch-monitor/internal/config"
	"github.com/monorkin/nightscout-watch-monitor/internal/globals"
	"github.com/monorkin/nightscout-watch-monitor/nightscout/api"
)

var siteAPISecret string

var siteCmd = &cobra.Command{
	Use:     "site",
	Aliases: []string{"s", "sites"},
	Short:   "Manage Nightscout sites",
	Long:    `Commands for listing, adding, removing and discovering Nightscout sites.`,
}

var siteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured sites",
	Long:    `List configured sites with their URL, stored units and when they were last seen.`,
	Args:    cobra.NoArgs,
	Run:     runSiteList,
}

var siteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a site",
	Long: `Add a Nightscout site to the settings file.

Examples:
  nightscout-watch-monitor site add home https://example.herokuapp.com
  nightscout-watch-monitor site add clinic https://ns.example.com --api-secret s3cret`,
	Args: cobra.ExactArgs(2),
	Run:  runSiteAdd,
}

var siteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a site",
	Args:    cobra.ExactArgs(1),
	Run:     runSiteRemove,
}

var siteDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find Nightscout servers on the local network",
	Long:  `Browse mDNS for HTTP services whose host name starts with "nightscout".`,
	Args:  cobra.NoArgs,
	Run:   runSiteDiscover,
}

func runSiteList(cmd *cobra.Command, args []string) {
	sites := globals.Settings.Sites
	if len(sites) == 0 {
		fmt.Println("No sites configured.")
		return
	}

	selected := globals.Settings.SelectedSiteName()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tURL\tUNITS\tLAST SEEN\tSELECTED")
	fmt.Fprintln(w, "----\t---\t-----\t---------\t--------")

	for _, site := range sites {
		units, lastSeen := "-", "never"
		if stored, err := globals.Store.FindSite(site.Name); err == nil {
			if stored.Units != "" {
				units = stored.Units
			}
			if !stored.LastSeen.IsZero() {
				lastSeen = stored.LastSeen.Format("2006-01-02T15:04:05Z07:00")
			}
		}

		marker := ""
		if site.Name == selected {
			marker = "*"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", site.Name, site.URL, units, lastSeen, marker)
	}

	globals.Logger.WithField("count", len(sites)).Debug("Site list completed")
}

func runSiteAdd(cmd *cobra.Command, args []string) {
	name := args[0]

	normalized, err := api.NormalizeSiteURL(args[1])
	if err != nil {
		fail("Invalid site URL", err)
	}

	site := config.SiteSettings{Name: name, URL: normalized, APISecret: siteAPISecret}
	if err := globals.Settings.AddSite(site); err != nil {
		fail("Failed to add site", err)
	}

	if err := globals.Settings.Save(); err != nil {
		fail("Failed to save settings", err)
	}

	fmt.Printf("Added site %s (%s)\n", name, normalized)
}

func runSiteRemove(cmd *cobra.Command, args []string) {
	name := args[0]

	if !globals.Settings.RemoveSite(name) {
		fail(fmt.Sprintf("Site not found: %s", name), nil)
	}

	if err := globals.Settings.Save(); err != nil {
		fail("Failed to save settings", err)
	}

	if stored, err := globals.Store.FindSite(name); err == nil {
		if err := globals.Store.DeleteSite(stored); err != nil {
			globals.Logger.WithError(err).Warn("Failed to delete stored readings")
		}
	}

	fmt.Printf("Removed site %s\n", name)
}

func runSiteDiscover(cmd *cobra.Command, args []string) {
	client := api.NewClientWithLogger(globals.Logging.Get("discovery"))

	fmt.Fprintf(os.Stderr, "Browsing for %s...\n", api.DISCOVERY_TIMEOUT)

	sites, err := client.DiscoverSites(context.Background())
	if err != nil {
		fail("Discovery failed", err)
	}

	if len(sites) == 0 {
		fmt.Println("No Nightscout servers found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "HOSTNAME\tURL")
	fmt.Fprintln(w, "--------\t---")
	for _, site := range sites {
		fmt.Fprintf(w, "%s\t%s\n", site.Hostname, site.URL)
	}
}

func init() {
	rootCmd.AddCommand(siteCmd)

	siteAddCmd.Flags().StringVar(&siteAPISecret, "api-secret", "", "Nightscout API secret, sent hashed")

	siteCmd.AddCommand(siteListCmd)
	siteCmd.AddCommand(siteAddCmd)
	siteCmd.AddCommand(siteRemoveCmd)
	siteCmd.AddCommand(siteDiscoverCmd)
}
