package api

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	USER_AGENT           = "Nightscout Watch Monitor/1.0.0"
	REQUEST_TIMEOUT      = 10 * time.Second
	POLL_INTERVAL        = 240 * time.Second
	MIN_REFRESH_INTERVAL = 120 * time.Second
	STATUS_PATH          = "/api/v1/status.json"
	WATCH_PATH           = "/pebble"
	API_SECRET_HEADER    = "api-secret"
)

type Client struct {
	httpClient   http.Client
	decoder      *watch.Decoder
	pollContext  context.Context
	pollCancel   context.CancelFunc
	pollInterval time.Duration
	pollWait     sync.WaitGroup
	sites        map[string]*Site
	sitesMutex   sync.RWMutex
	onWatchEntry func(Site, watch.WatchEntry)
	clock        func() time.Time
	logger       *logrus.Entry
}

func NewClient() *Client {
	return NewClientWithLogger(nil)
}

func NewClientWithLogger(logger *logrus.Entry) *Client {
	client := &Client{
		httpClient: http.Client{
			Timeout: REQUEST_TIMEOUT,
		},
		pollInterval: POLL_INTERVAL,
		sites:        make(map[string]*Site),
		clock:        time.Now,
		logger:       logger,
	}

	if logger != nil {
		client.decoder = watch.NewDecoder(watch.WithLogger(logger))
	} else {
		client.decoder = watch.NewDecoder()
	}

	return client
}

func (client *Client) SetDecoder(decoder *watch.Decoder) {
	client.decoder = decoder
}

func (client *Client) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		client.pollInterval = interval
	}
}

func (client *Client) SetOnWatchEntry(callback func(Site, watch.WatchEntry)) {
	client.onWatchEntry = callback
}

func (client *Client) log(level logrus.Level, msg string, fields logrus.Fields) {
	if client.logger != nil {
		client.logger.WithFields(fields).Log(level, msg)
	}
}

// AddSite registers a site for polling. A site with the same URL replaces
// the previous one but keeps its last entry.
func (client *Client) AddSite(name, siteURL, apiSecret string) (*Site, error) {
	normalized, err := NormalizeSiteURL(siteURL)
	if err != nil {
		return nil, err
	}

	client.sitesMutex.Lock()
	defer client.sitesMutex.Unlock()

	site := &Site{
		Client:    client,
		Name:      name,
		URL:       normalized,
		APISecret: apiSecret,
	}

	if existing, exists := client.sites[normalized]; exists {
		site.Status = existing.Status
		site.LastEntry = existing.LastEntry
		site.LastUpdated = existing.LastUpdated
	}

	client.sites[normalized] = site

	return site, nil
}

func (client *Client) GetSites() []Site {
	client.sitesMutex.RLock()
	defer client.sitesMutex.RUnlock()

	sites := make([]Site, 0, len(client.sites))

	for _, site := range client.sites {
		sites = append(sites, *site)
	}

	return sites
}

func (client *Client) GetSite(name string) (Site, bool) {
	client.sitesMutex.RLock()
	defer client.sitesMutex.RUnlock()

	for _, site := range client.sites {
		if site.Name == name {
			return *site, true
		}
	}

	return Site{}, false
}

func (client *Client) StartPolling() {
	client.StopPolling()
	client.log(logrus.DebugLevel, "Initializing site polling", nil)

	client.pollContext, client.pollCancel = context.WithCancel(context.Background())
	ctx := client.pollContext

	client.pollWait.Add(1)
	go func() {
		defer client.pollWait.Done()

		client.log(logrus.InfoLevel, "Starting site polling", logrus.Fields{"interval": client.pollInterval})
		client.RefreshSites(ctx, false)

		ticker := time.NewTicker(client.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				client.RefreshSites(ctx, false)
			case <-ctx.Done():
				client.log(logrus.InfoLevel, "Site polling stopped", nil)
				return
			}
		}
	}()
}

func (client *Client) StopPolling() {
	if client.pollCancel != nil {
		client.log(logrus.DebugLevel, "Stopping site polling", nil)
		client.pollCancel()
		client.pollCancel = nil
		client.pollWait.Wait()
	}
}

// RefreshSites refreshes every registered site concurrently and returns the
// number of sites that produced a new watch entry.
func (client *Client) RefreshSites(ctx context.Context, force bool) int {
	client.sitesMutex.RLock()
	sites := make([]*Site, 0, len(client.sites))
	for _, site := range client.sites {
		sites = append(sites, site)
	}
	client.sitesMutex.RUnlock()

	var wg sync.WaitGroup
	var refreshedMutex sync.Mutex
	refreshed := 0

	for _, site := range sites {
		wg.Add(1)
		go func(site *Site) {
			defer wg.Done()

			updated, err := client.refreshSite(ctx, site, force)
			if err != nil {
				client.log(logrus.ErrorLevel, "Failed to refresh site", logrus.Fields{"site": site.Name, "error": err})
				return
			}

			if updated {
				refreshedMutex.Lock()
				refreshed++
				refreshedMutex.Unlock()
			}
		}(site)
	}

	wg.Wait()

	client.log(logrus.DebugLevel, "Site refresh completed", logrus.Fields{"sites_count": len(sites), "refreshed": refreshed})

	return refreshed
}

func (client *Client) refreshSite(ctx context.Context, site *Site, force bool) (bool, error) {
	client.sitesMutex.RLock()
	lastUpdated := site.LastUpdated
	client.sitesMutex.RUnlock()

	if !force && !lastUpdated.IsZero() && client.clock().Sub(lastUpdated) < MIN_REFRESH_INTERVAL {
		client.log(logrus.DebugLevel, "Skipping recently refreshed site", logrus.Fields{"site": site.Name, "last_updated": lastUpdated})
		return false, nil
	}

	status, err := client.FetchServerStatus(ctx, site)
	if err != nil {
		return false, err
	}

	entry, err := client.FetchWatchEntry(ctx, site)
	if err != nil {
		return false, err
	}

	client.sitesMutex.Lock()
	site.Status = status
	site.LastEntry = entry
	site.LastUpdated = client.clock()
	snapshot := *site
	client.sitesMutex.Unlock()

	client.log(logrus.DebugLevel, "Site refreshed", logrus.Fields{"site": site.Name, "has_sgv": entry.SensorGlucoseValue != nil})

	if client.onWatchEntry != nil {
		client.onWatchEntry(snapshot, *entry)
	}

	return true, nil
}

func (client *Client) FetchServerStatus(ctx context.Context, site *Site) (*ServerStatus, error) {
	var status ServerStatus
	if err := client.getJSON(ctx, site, STATUS_PATH, nil, &status, false); err != nil {
		return nil, errors.Wrap(err, "failed to fetch server status")
	}

	return &status, nil
}

// FetchWatchPayload returns the watch face payload exactly as the server
// sent it. Numbers are decoded as json.Number.
func (client *Client) FetchWatchPayload(ctx context.Context, site *Site) (map[string]interface{}, error) {
	query := url.Values{}
	query.Set("count", "1")

	var payload map[string]interface{}
	if err := client.getJSON(ctx, site, WATCH_PATH, query, &payload, true); err != nil {
		return nil, errors.Wrap(err, "failed to fetch watch payload")
	}

	client.log(logrus.DebugLevel, "Watch payload fetched", logrus.Fields{"site": site.Name, "groups": len(payload)})

	return payload, nil
}

func (client *Client) FetchWatchEntry(ctx context.Context, site *Site) (*watch.WatchEntry, error) {
	payload, err := client.FetchWatchPayload(ctx, site)
	if err != nil {
		return nil, err
	}

	entry := client.decoder.Decode(payload)

	return &entry, nil
}

func (client *Client) getJSON(ctx context.Context, site *Site, path string, query url.Values, target interface{}, useNumber bool) error {
	endpoint := site.URL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	request.Header.Set("User-Agent", USER_AGENT)
	request.Header.Set("Accept", "application/json")
	if site.APISecret != "" {
		request.Header.Set(API_SECRET_HEADER, HashAPISecret(site.APISecret))
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return errors.Wrapf(err, "request %s", path)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", response.Status)
	}

	decoder := json.NewDecoder(response.Body)
	if useNumber {
		decoder.UseNumber()
	}

	if err := decoder.Decode(target); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}

	return nil
}

// HashAPISecret returns the SHA-1 hex digest Nightscout expects in the
// api-secret header.
func HashAPISecret(secret string) string {
	sum := sha1.Sum([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// NormalizeSiteURL requires an absolute http(s) URL and strips trailing
// slashes so paths can be appended.
func NormalizeSiteURL(siteURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil {
		return "", errors.Wrap(err, "invalid site URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid site URL %q: scheme must be http or https", siteURL)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("invalid site URL %q: missing host", siteURL)
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	return strings.TrimRight(parsed.String(), "/"), nil
}
