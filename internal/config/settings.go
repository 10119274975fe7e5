package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	SETTINGS_FILE_NAME    = "settings.yaml"
	DEFAULT_POLL_INTERVAL = "4m"
	DEFAULT_LOG_LEVEL     = "info"
	DEFAULT_AMQP_EXCHANGE = "nightscout.watch"
)

type SiteSettings struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	APISecret string `yaml:"api_secret,omitempty"`
}

type Settings struct {
	Sites        []SiteSettings `yaml:"sites"`
	SelectedSite *string        `yaml:"selected_site,omitempty"`
	PollInterval string         `yaml:"poll_interval"`
	EpochUnit    string         `yaml:"epoch_unit"`
	LogLevel     string         `yaml:"log_level"`
	HTTPAddr     string         `yaml:"http_addr,omitempty"`
	AMQPURL      string         `yaml:"amqp_url,omitempty"`
	AMQPExchange string         `yaml:"amqp_exchange,omitempty"`
	DBusEnabled  bool           `yaml:"dbus_enabled"`

	// fileValues holds the values environment overrides replaced, keyed by
	// variable name, so that Save never persists them.
	fileValues map[string]string
}

func DefaultSettings() *Settings {
	return &Settings{
		Sites:        []SiteSettings{},
		PollInterval: DEFAULT_POLL_INTERVAL,
		EpochUnit:    string(watch.EpochSeconds),
		LogLevel:     DEFAULT_LOG_LEVEL,
		AMQPExchange: DEFAULT_AMQP_EXCHANGE,
		DBusEnabled:  true,
	}
}

func DefaultSettingsPath() string {
	return filepath.Join(ConfigDir(), SETTINGS_FILE_NAME)
}

func LoadOrInitializeSettingsFromDefaultLocation() (bool, *Settings, error) {
	return LoadOrInitializeSettings(DefaultSettingsPath())
}

// LoadOrInitializeSettings returns true together with default settings only
// when the file does not exist. A file that exists but can't be read, parsed
// or validated is an error and must be left untouched.
func LoadOrInitializeSettings(path string) (bool, *Settings, error) {
	settings, err := LoadSettings(path)
	if err == nil {
		return false, settings, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return true, DefaultSettings(), nil
	}

	return false, nil, err
}

func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read settings")
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, errors.Wrapf(err, "failed to parse settings %s", path)
	}

	if err := settings.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid settings %s", path)
	}

	return settings, nil
}

func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create settings directory")
	}

	data, err := yaml.Marshal(s.persisted())
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}

	// Site API secrets live in this file.
	return os.WriteFile(path, data, 0o600)
}

// persisted returns a copy with environment overrides swapped back for the
// values they replaced.
func (s *Settings) persisted() *Settings {
	persisted := *s
	persisted.fileValues = nil
	persisted.Sites = append([]SiteSettings{}, s.Sites...)

	fields := persisted.environmentFields()
	for variable, value := range s.fileValues {
		*fields[variable] = value
	}

	return &persisted
}

func (s *Settings) Validate() error {
	if _, err := s.PollDuration(); err != nil {
		return err
	}

	if _, err := s.DecoderEpochUnit(); err != nil {
		return err
	}

	return nil
}

func (s *Settings) PollDuration() (time.Duration, error) {
	if s.PollInterval == "" {
		return time.ParseDuration(DEFAULT_POLL_INTERVAL)
	}

	duration, err := time.ParseDuration(s.PollInterval)
	if err != nil {
		return 0, errors.Wrap(err, "invalid poll_interval")
	}

	if duration <= 0 {
		return 0, fmt.Errorf("invalid poll_interval %q: must be positive", s.PollInterval)
	}

	return duration, nil
}

func (s *Settings) DecoderEpochUnit() (watch.EpochUnit, error) {
	unit, err := watch.ParseEpochUnit(s.EpochUnit)
	if err != nil {
		return "", errors.Wrap(err, "invalid epoch_unit")
	}

	return unit, nil
}

// AddSite rejects a site whose name or URL is already configured.
func (s *Settings) AddSite(site SiteSettings) error {
	site.Name = strings.TrimSpace(site.Name)
	site.URL = strings.TrimSpace(site.URL)

	if site.Name == "" || site.URL == "" {
		return fmt.Errorf("site name and URL are required")
	}

	for _, existing := range s.Sites {
		if existing.Name == site.Name {
			return fmt.Errorf("site %q already exists", site.Name)
		}
		if strings.TrimRight(existing.URL, "/") == strings.TrimRight(site.URL, "/") {
			return fmt.Errorf("site URL %s is already configured as %q", site.URL, existing.Name)
		}
	}

	s.Sites = append(s.Sites, site)

	return nil
}

func (s *Settings) RemoveSite(name string) bool {
	for i, site := range s.Sites {
		if site.Name != name {
			continue
		}

		s.Sites = append(s.Sites[:i], s.Sites[i+1:]...)
		if s.SelectedSite != nil && *s.SelectedSite == name {
			s.SelectedSite = nil
		}

		return true
	}

	return false
}

func (s *Settings) FindSite(name string) (SiteSettings, bool) {
	for _, site := range s.Sites {
		if site.Name == name {
			return site, true
		}
	}

	return SiteSettings{}, false
}

// SelectedSiteName falls back to the first configured site.
func (s *Settings) SelectedSiteName() string {
	if s.SelectedSite != nil {
		return *s.SelectedSite
	}

	if len(s.Sites) > 0 {
		return s.Sites[0].Name
	}

	return ""
}
