package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Instrument is the static per-symbol venue configuration: the venue
// instrument id, its asset class, the default protective-stop distance and a
// long-window reference price used to disambiguate numeric tokens in alerts.
type Instrument struct {
	Uic            int     `yaml:"uic"`
	AssetType      string  `yaml:"asset_type"`
	StoplossPoints int     `yaml:"stoploss_points"`
	ReferencePrice float64 `yaml:"reference_price"`
}

// Environment describes one venue deployment (simulation or live).
type Environment struct {
	AuthEndpoint  string `yaml:"auth_endpoint"`
	TokenEndpoint string `yaml:"token_endpoint"`
	APIBaseURL    string `yaml:"api_base_url"`
	AppKey        string `yaml:"app_key"`
	AppSecret     string `yaml:"app_secret"` // usually injected via VENUE_APP_SECRET
	RedirectURL   string `yaml:"redirect_url"`
}

// Profile is one trading account: which environment it runs against, how big
// its stakes are per symbol and how entries should be placed.
type Profile struct {
	Environment     string             `yaml:"environment"`
	AccountKey      string             `yaml:"account_key"`
	TradeSize       map[string]float64 `yaml:"trade_size"`
	OrderPreference string             `yaml:"order_preference"` // Market | Limit
	SessionFile     string             `yaml:"session_file"`
	ProfitOnlyFlat  bool               `yaml:"profit_only_flat"`
}

type Feed struct {
	BaseURL        string `yaml:"base_url"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	TimeoutMs      int    `yaml:"timeout_ms"`
}

type Trading struct {
	MaxAlertAgeMinutes int `yaml:"max_alert_age_minutes"`
	CloseMaxAgeMinutes int `yaml:"close_max_age_minutes"`
	PostOrderPauseSec  int `yaml:"post_order_pause_seconds"`
	PostAlertPauseSec  int `yaml:"post_alert_pause_seconds"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type Notify struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"` // usually injected via PROWL_API_KEY
	AppName  string `yaml:"app_name"`
}

type Root struct {
	Logging      Logging                `yaml:"logging"`
	Feed         Feed                   `yaml:"feed"`
	Trading      Trading                `yaml:"trading"`
	Notify       Notify                 `yaml:"notify"`
	Instruments  map[string]Instrument  `yaml:"instruments"`
	TieBreak     []string               `yaml:"tie_break"` // disambiguation priority
	Profiles     map[string]Profile     `yaml:"profiles"`
	Environments map[string]Environment `yaml:"environments"`
	DenyList     []string               `yaml:"deny_list"`
	OutboxPath   string                 `yaml:"outbox_path"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	// Feed defaults
	if c.Feed.PollIntervalMs == 0 {
		c.Feed.PollIntervalMs = 5000
	}
	if c.Feed.TimeoutMs == 0 {
		c.Feed.TimeoutMs = 10000
	}

	// Trading pace defaults; the venue enforces hard rate limits, these keep
	// us well under them.
	if c.Trading.MaxAlertAgeMinutes == 0 {
		c.Trading.MaxAlertAgeMinutes = 20
	}
	if c.Trading.CloseMaxAgeMinutes == 0 {
		c.Trading.CloseMaxAgeMinutes = 60
	}
	if c.Trading.PostOrderPauseSec == 0 {
		c.Trading.PostOrderPauseSec = 2
	}
	if c.Trading.PostAlertPauseSec == 0 {
		c.Trading.PostAlertPauseSec = 15
	}

	if len(c.TieBreak) == 0 {
		c.TieBreak = []string{"DJIA", "NDX", "SPX"}
	}
	if c.OutboxPath == "" {
		c.OutboxPath = "data/orders.jsonl"
	}
	if c.Notify.Endpoint == "" {
		c.Notify.Endpoint = "https://api.prowlapp.com/publicapi/add"
	}
	if c.Notify.AppName == "" {
		c.Notify.AppName = "alerttrader"
	}

	for name, p := range c.Profiles {
		if p.OrderPreference == "" {
			p.OrderPreference = "Market"
		}
		if p.SessionFile == "" {
			p.SessionFile = fmt.Sprintf(".session-%s.json", name)
		}
		c.Profiles[name] = p
	}

	return c, nil
}
