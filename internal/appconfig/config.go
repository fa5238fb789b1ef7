package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int               `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string            `mapstructure:"state_dir" yaml:"state_dir"`
	Browser       BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Coordinator   CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
	Queue         QueueConfig       `mapstructure:"queue" yaml:"queue"`
	Settings      SettingsConfig    `mapstructure:"settings" yaml:"settings"`
	Store         StoreConfig       `mapstructure:"store" yaml:"store"`
	Notice        NoticeConfig      `mapstructure:"notice" yaml:"notice"`
	System        SystemConfig      `mapstructure:"system" yaml:"system"`
	HTTP          HTTPConfig        `mapstructure:"http" yaml:"http"`
	Logging       LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Browser connection modes.
const (
	BrowserModeLaunch = "launch"
	BrowserModeRemote = "remote"
)

// BrowserConfig selects how the chrome host attaches to a browser.
type BrowserConfig struct {
	Mode        string   `mapstructure:"mode" yaml:"mode"`
	RemoteURL   string   `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath    string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Headless    bool     `mapstructure:"headless" yaml:"headless"`
	Flags       []string `mapstructure:"flags" yaml:"flags"`
}

// CoordinatorConfig tunes coordinator timings.
type CoordinatorConfig struct {
	FocusDelayMillis         int `mapstructure:"focus_delay_ms" yaml:"focus_delay_ms"`
	SpawnedTabWindowSeconds  int `mapstructure:"spawned_tab_window_seconds" yaml:"spawned_tab_window_seconds"`
	SessionSaveDelayMillis   int `mapstructure:"session_save_delay_ms" yaml:"session_save_delay_ms"`
	AgentReplyTimeoutSeconds int `mapstructure:"agent_reply_timeout_seconds" yaml:"agent_reply_timeout_seconds"`
}

// QueueConfig throttles suspension work.
type QueueConfig struct {
	Concurrency       int     `mapstructure:"concurrency" yaml:"concurrency"`
	RatePerSecond     float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
	JobTimeoutSeconds int     `mapstructure:"job_timeout_seconds" yaml:"job_timeout_seconds"`
}

// SettingsConfig locates user option overrides.
type SettingsConfig struct {
	File        string `mapstructure:"file" yaml:"file"`
	Watch       bool   `mapstructure:"watch" yaml:"watch"`
	HotkeyLabel string `mapstructure:"hotkey_label" yaml:"hotkey_label"`
}

// StoreConfig locates the tab metadata database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// NoticeConfig configures the remote notice checker.
type NoticeConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	IntervalHours  int    `mapstructure:"interval_hours" yaml:"interval_hours"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// SystemConfig configures charging and connectivity probes.
type SystemConfig struct {
	PowerSupplyDir      string `mapstructure:"power_supply_dir" yaml:"power_supply_dir"`
	ConnectivityURL     string `mapstructure:"connectivity_url" yaml:"connectivity_url"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	root := filepath.Join(home, ".tabnap")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(root, "state"),
		Browser: BrowserConfig{
			Mode:        BrowserModeLaunch,
			RemoteURL:   "",
			ExecPath:    "",
			UserDataDir: filepath.Join(root, "profile"),
			Headless:    false,
			Flags:       []string{},
		},
		Coordinator: CoordinatorConfig{
			FocusDelayMillis:         500,
			SpawnedTabWindowSeconds:  300,
			SessionSaveDelayMillis:   1000,
			AgentReplyTimeoutSeconds: 5,
		},
		Queue: QueueConfig{
			Concurrency:       3,
			RatePerSecond:     4,
			Burst:             2,
			JobTimeoutSeconds: 60,
		},
		Settings: SettingsConfig{
			File:        filepath.Join(root, "settings.json"),
			Watch:       true,
			HotkeyLabel: "",
		},
		Store: StoreConfig{
			Path: filepath.Join(root, "state", "tabnap.db"),
		},
		Notice: NoticeConfig{
			URL:            "",
			IntervalHours:  12,
			TimeoutSeconds: 4,
		},
		System: SystemConfig{
			PowerSupplyDir:      "/sys/class/power_supply",
			ConnectivityURL:     "",
			PollIntervalSeconds: 30,
		},
		HTTP: HTTPConfig{
			Addr:    "127.0.0.1:27490",
			BaseURL: "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tabnap", "config.yaml"), nil
}
