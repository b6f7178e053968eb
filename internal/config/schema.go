package config

import "time"

// Config holds imgbot configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Firebase  FirebaseConfig  `mapstructure:"firebase" yaml:"firebase"`
	Fetch     FetchConfig     `mapstructure:"fetch" yaml:"fetch"`
	Extract   ExtractConfig   `mapstructure:"extract" yaml:"extract"`
	Upload    UploadConfig    `mapstructure:"upload" yaml:"upload"`
	Processor ProcessorConfig `mapstructure:"processor" yaml:"processor"`
	Checker   CheckerConfig   `mapstructure:"checker" yaml:"checker"`
	RunLog    RunLogConfig    `mapstructure:"runlog" yaml:"runlog"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// FirebaseConfig points at the realtime database holding chapter records.
type FirebaseConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`       // supports ${ENV_VAR} syntax
	Secret string `mapstructure:"secret" yaml:"secret"` // supports ${ENV_VAR} syntax
	// Timeout bounds a single REST call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// MaxRetries applies to transient read/write failures. Conditional writes never retry.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// FetchConfig controls page fetching through proxies.
type FetchConfig struct {
	Proxies          []string      `mapstructure:"proxies" yaml:"proxies"` // "" means direct
	UserAgents       []string      `mapstructure:"user_agents" yaml:"user_agents"`
	Referers         []string      `mapstructure:"referers" yaml:"referers"`
	Languages        []string      `mapstructure:"languages" yaml:"languages"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base" yaml:"retry_delay_base"`
	RetryJitter      time.Duration `mapstructure:"retry_jitter" yaml:"retry_jitter"`
	ProxyDelay       time.Duration `mapstructure:"proxy_delay" yaml:"proxy_delay"`
	PageTimeout      time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`
	ImageTimeout     time.Duration `mapstructure:"image_timeout" yaml:"image_timeout"`
	ImageProbeRounds int           `mapstructure:"image_probe_rounds" yaml:"image_probe_rounds"`
	ImageRoundDelay  time.Duration `mapstructure:"image_round_delay" yaml:"image_round_delay"`
	RateLimit        float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second per host
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`

	// LastChance sends one direct request with fixed headers after every proxy attempt fails.
	LastChance        bool   `mapstructure:"last_chance" yaml:"last_chance"`
	LastChanceReferer string `mapstructure:"last_chance_referer" yaml:"last_chance_referer"`
}

// ExtractConfig controls image extraction from chapter pages.
type ExtractConfig struct {
	Selectors  []string `mapstructure:"selectors" yaml:"selectors"`
	Attributes []string `mapstructure:"attributes" yaml:"attributes"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	BaseURL    string   `mapstructure:"base_url" yaml:"base_url"`
	MaxImages  int      `mapstructure:"max_images" yaml:"max_images"`
}

// UploadConfig configures the optional image re-upload host.
type UploadConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"` // empty disables uploads
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ProcessorConfig tunes per-chapter processing.
type ProcessorConfig struct {
	DelayBetweenImages  time.Duration `mapstructure:"delay_between_images" yaml:"delay_between_images"`
	ImageJitter         time.Duration `mapstructure:"image_jitter" yaml:"image_jitter"`
	MinHTMLLength       int           `mapstructure:"min_html_length" yaml:"min_html_length"`
	CompletionThreshold float64       `mapstructure:"completion_threshold" yaml:"completion_threshold"` // percent
}

// CheckerConfig tunes the continuous chapter checker.
type CheckerConfig struct {
	AutoStart            bool          `mapstructure:"auto_start" yaml:"auto_start"`
	StartDelay           time.Duration `mapstructure:"start_delay" yaml:"start_delay"`
	MaxChaptersPerCycle  int           `mapstructure:"max_chapters_per_cycle" yaml:"max_chapters_per_cycle"`
	MinPriority          float64       `mapstructure:"min_priority" yaml:"min_priority"`
	DelayBetweenChapters time.Duration `mapstructure:"delay_between_chapters" yaml:"delay_between_chapters"`
	ChapterJitter        time.Duration `mapstructure:"chapter_jitter" yaml:"chapter_jitter"`
	DelayBetweenGroups   time.Duration `mapstructure:"delay_between_groups" yaml:"delay_between_groups"`
	WaitHighErrors       time.Duration `mapstructure:"wait_high_errors" yaml:"wait_high_errors"`
	WaitIdle             time.Duration `mapstructure:"wait_idle" yaml:"wait_idle"`
	WaitLowSuccess       time.Duration `mapstructure:"wait_low_success" yaml:"wait_low_success"`
	WaitNormal           time.Duration `mapstructure:"wait_normal" yaml:"wait_normal"`
	WaitAfterError       time.Duration `mapstructure:"wait_after_error" yaml:"wait_after_error"`
}

// RunLogConfig locates the local run ledger.
type RunLogConfig struct {
	// Path defaults to {home}/runs.db when empty.
	Path string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Firebase: FirebaseConfig{
			URL:        "${FIREBASE_DB_URL}",
			Secret:     "${DATABASE_SECRETS}",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Fetch: FetchConfig{
			Proxies: []string{
				"",
				"https://corsproxy.io/?",
				"https://api.allorigins.win/raw?url=",
				"https://cors-anywhere.herokuapp.com/",
				"https://proxy.cors.sh/",
				"https://api.codetabs.com/v1/proxy?quest=",
			},
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
				"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
				"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
				"Mozilla/5.0 (Linux; Android 10; SM-G973F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			},
			Referers: []string{
				"https://www.google.com/",
				"https://www.bing.com/",
				"https://duckduckgo.com/",
				"https://azoramoon.com/",
				"https://mangakakalot.com/",
				"https://manganato.com/",
				"https://mangareader.to/",
				"https://mangadex.org/",
				"",
			},
			Languages: []string{
				"en-US,en;q=0.9",
				"ar,en;q=0.8",
				"fr,en;q=0.7",
				"es,en;q=0.6",
			},
			MaxRetries:       5,
			RetryDelayBase:   2 * time.Second,
			RetryJitter:      time.Second,
			ProxyDelay:       500 * time.Millisecond,
			PageTimeout:      25 * time.Second,
			ImageTimeout:     15 * time.Second,
			ImageProbeRounds: 2,
			ImageRoundDelay:  time.Second,
			RateLimit:        2,
			MaxBodyBytes:     10 << 20,

			LastChance:        true,
			LastChanceReferer: "https://azoramoon.com/",
		},
		Extract: ExtractConfig{
			Selectors: []string{
				".wp-manga-chapter-img",
				".reading-content img",
				".chapter-content img",
				".text-center img",
				`img[src*="manga"]`,
				"img[data-src]",
				"img[data-lazy-src]",
				".page-break img",
				".separator img",
			},
			Attributes: []string{"src", "data-src", "data-lazy-src", "data-original"},
			Extensions: []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp"},
			BaseURL:    "https://azoramoon.com",
			MaxImages:  100,
		},
		Upload: UploadConfig{
			Endpoint: "https://api.imgbb.com/1/upload",
			APIKey:   "${IMGBB_API_KEY}",
			Timeout:  60 * time.Second,
		},
		Processor: ProcessorConfig{
			DelayBetweenImages:  1500 * time.Millisecond,
			ImageJitter:         time.Second,
			MinHTMLLength:       100,
			CompletionThreshold: 70,
		},
		Checker: CheckerConfig{
			AutoStart:            true,
			StartDelay:           5 * time.Second,
			MaxChaptersPerCycle:  8,
			MinPriority:          30,
			DelayBetweenChapters: 3 * time.Second,
			ChapterJitter:        2 * time.Second,
			DelayBetweenGroups:   4 * time.Second,
			WaitHighErrors:       8 * time.Minute,
			WaitIdle:             6 * time.Minute,
			WaitLowSuccess:       7 * time.Minute,
			WaitNormal:           4 * time.Minute,
			WaitAfterError:       2 * time.Minute,
		},
	}
}

// ResolvedURL returns the database URL with ${ENV_VAR} references expanded.
func (f FirebaseConfig) ResolvedURL() string {
	return ResolveEnvVars(f.URL)
}

// ResolvedSecret returns the database secret with ${ENV_VAR} references expanded.
func (f FirebaseConfig) ResolvedSecret() string {
	return ResolveEnvVars(f.Secret)
}

// ResolvedKey returns the upload API key with ${ENV_VAR} references expanded.
func (u UploadConfig) ResolvedKey() string {
	return ResolveEnvVars(u.APIKey)
}
