package api

import (
	"context"
	"time"

	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
)

type Site struct {
	Client      *Client
	Name        string
	URL         string
	APISecret   string
	Status      *ServerStatus
	LastEntry   *watch.WatchEntry
	LastUpdated time.Time
}

// Refresh fetches the server status followed by the watch entry. Unless
// force is set, a site updated less than MIN_REFRESH_INTERVAL ago is left
// alone and false is returned.
func (site *Site) Refresh(ctx context.Context, force bool) (bool, error) {
	return site.Client.refreshSite(ctx, site, force)
}

func (site *Site) FetchWatchEntry(ctx context.Context) (*watch.WatchEntry, error) {
	return site.Client.FetchWatchEntry(ctx, site)
}

func (site *Site) DisplayName() string {
	if site.Status != nil && site.Status.Settings.CustomTitle != "" {
		return site.Status.Settings.CustomTitle
	}

	if site.Name != "" {
		return site.Name
	}

	return site.URL
}

type ServerStatus struct {
	Status     string         `json:"status"`
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	ServerTime string         `json:"serverTime"`
	APIEnabled bool           `json:"apiEnabled"`
	Settings   ServerSettings `json:"settings"`
}

type ServerSettings struct {
	Units       string     `json:"units"`
	CustomTitle string     `json:"customTitle"`
	TimeFormat  int        `json:"timeFormat"`
	Thresholds  Thresholds `json:"thresholds"`
}

type Thresholds struct {
	BGHigh         int `json:"bgHigh"`
	BGTargetTop    int `json:"bgTargetTop"`
	BGTargetBottom int `json:"bgTargetBottom"`
	BGLow          int `json:"bgLow"`
}
