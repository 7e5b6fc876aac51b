package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source describes one configured lead source. Kind selects the adapter
// (httpjson, board, csvfile); everything else is adapter- or pacing-config.
// The core never branches on Kind outside adapter construction.
type Source struct {
	ID      string `yaml:"id"`
	Kind    string `yaml:"kind"`
	Enabled bool   `yaml:"enabled"`

	URL     string `yaml:"url"`      // endpoint or board URL
	BaseURL string `yaml:"base_url"` // for resolving relative links
	Path    string `yaml:"path"`     // csvfile: local file path

	CadenceSeconds int     `yaml:"cadence_seconds"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	Burst          int     `yaml:"burst"`

	// Account names the downstream identity actions for this source run
	// under; actions sharing an account are strictly sequential.
	Account string `yaml:"account"`

	// Fields maps canonical field names to adapter-specific selectors:
	// gjson paths for httpjson, CSS selectors for board, column names
	// for csvfile.
	Fields map[string]string `yaml:"fields"`
}

type Filters struct {
	IncludeKeywords []string `yaml:"include_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
	LocationsAllow  []string `yaml:"locations_allow"`
	LocationsBlock  []string `yaml:"locations_block"`
	RemoteOK        bool     `yaml:"remote_ok"`
	MinScore        int      `yaml:"min_score"`
}

type Dedupe struct {
	FuzzyEnabled bool `yaml:"fuzzy_enabled"`
	// FuzzyThreshold and above merges; FlagThreshold up to FuzzyThreshold
	// flags possible_duplicate for manual review, never auto-merges.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	FlagThreshold  float64 `yaml:"flag_threshold"`
	Window         int     `yaml:"window"` // recent leads compared on the fuzzy path
}

type Actions struct {
	Workers            int `yaml:"workers"`
	MinDelaySeconds    int `yaml:"min_delay_seconds"`
	JitterSeconds      int `yaml:"jitter_seconds"`
	MaxAttempts        int `yaml:"max_attempts"`
	BackoffBaseSeconds int `yaml:"backoff_base_seconds"`
	BackoffMaxSeconds  int `yaml:"backoff_max_seconds"`
	DailyCap           int `yaml:"daily_cap"` // per channel, 0 = unlimited
	TimeoutSeconds     int `yaml:"timeout_seconds"`
}

type Mail struct {
	Enabled  bool   `yaml:"enabled"`
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Username string `yaml:"username"`
	From     string `yaml:"from"`
	ReplyTo  string `yaml:"reply_to"`
	Subject  string `yaml:"subject"`
	Body     string `yaml:"body"` // text/template source
}

type Bounce struct {
	Enabled         bool   `yaml:"enabled"`
	IMAPHost        string `yaml:"imap_host"`
	IMAPPort        int    `yaml:"imap_port"`
	Username        string `yaml:"username"`
	Mailbox         string `yaml:"mailbox"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	MaxMessages     int    `yaml:"max_messages"`
}

type Telegram struct {
	Enabled             bool  `yaml:"enabled"`
	FeedLimit           int   `yaml:"feed_limit"`
	FeedIntervalSeconds int   `yaml:"feed_interval_seconds"`
	OpsChatID           int64 `yaml:"ops_chat_id"` // manual-review notifications
}

type AMQP struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Plan is one sellable access tier. Amount is in minor units and must match
// the pre-checkout request exactly.
type Plan struct {
	Code         string `yaml:"code"`
	Title        string `yaml:"title"`
	Amount       int64  `yaml:"amount"`
	Currency     string `yaml:"currency"`
	DurationDays int    `yaml:"duration_days"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Sources  []Source `yaml:"sources"`
	Filters  Filters  `yaml:"filters"`
	Dedupe   Dedupe   `yaml:"dedupe"`
	Actions  Actions  `yaml:"actions"`
	Mail     Mail     `yaml:"mail"`
	Bounce   Bounce   `yaml:"bounce"`
	Telegram Telegram `yaml:"telegram"`
	AMQP     AMQP     `yaml:"amqp"`
	Plans    []Plan   `yaml:"plans"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (s Source) Cadence() time.Duration {
	if s.CadenceSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.CadenceSeconds) * time.Second
}

func (s Source) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (a Actions) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}
