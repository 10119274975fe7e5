package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	NIGHTSCOUT_HOSTNAME_PREFIX = "nightscout"
	DISCOVERY_SERVICE          = "_http._tcp"
	DISCOVERY_DOMAIN           = "local."
	DISCOVERY_TIMEOUT          = 5 * time.Second
)

type DiscoveredSite struct {
	Hostname string
	IP       string
	Port     int
	URL      string
}

// DiscoverSites browses the local network for HTTP services whose host name
// starts with "nightscout". Browsing ends after DISCOVERY_TIMEOUT or when ctx
// is done.
func (client *Client) DiscoverSites(ctx context.Context) ([]DiscoveredSite, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize resolver")
	}

	browseContext, cancel := context.WithTimeout(ctx, DISCOVERY_TIMEOUT)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(browseContext, DISCOVERY_SERVICE, DISCOVERY_DOMAIN, entries); err != nil {
		return nil, errors.Wrap(err, "failed to browse for sites")
	}

	var sites []DiscoveredSite
	seen := make(map[string]struct{})

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return sites, nil
			}

			site, match := discoveredSiteFromEntry(entry)
			if !match {
				continue
			}

			if _, duplicate := seen[site.URL]; duplicate {
				continue
			}
			seen[site.URL] = struct{}{}

			client.log(logrus.DebugLevel, "Site discovered", logrus.Fields{"hostname": site.Hostname, "url": site.URL})
			sites = append(sites, site)
		case <-browseContext.Done():
			return sites, nil
		}
	}
}

func discoveredSiteFromEntry(entry *zeroconf.ServiceEntry) (DiscoveredSite, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return DiscoveredSite{}, false
	}

	hostname := entry.HostName
	if !strings.HasPrefix(strings.ToLower(hostname), NIGHTSCOUT_HOSTNAME_PREFIX) {
		return DiscoveredSite{}, false
	}

	ip := entry.AddrIPv4[0].String()

	return DiscoveredSite{
		Hostname: hostname,
		IP:       ip,
		Port:     entry.Port,
		URL:      fmt.Sprintf("http://%s:%d", ip, entry.Port),
	}, true
}
