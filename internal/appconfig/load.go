package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("browser.mode", cfg.Browser.Mode)
	v.SetDefault("browser.remote_url", cfg.Browser.RemoteURL)
	v.SetDefault("browser.exec_path", cfg.Browser.ExecPath)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.flags", cfg.Browser.Flags)
	v.SetDefault("coordinator.focus_delay_ms", cfg.Coordinator.FocusDelayMillis)
	v.SetDefault("coordinator.spawned_tab_window_seconds", cfg.Coordinator.SpawnedTabWindowSeconds)
	v.SetDefault("coordinator.session_save_delay_ms", cfg.Coordinator.SessionSaveDelayMillis)
	v.SetDefault("coordinator.agent_reply_timeout_seconds", cfg.Coordinator.AgentReplyTimeoutSeconds)
	v.SetDefault("queue.concurrency", cfg.Queue.Concurrency)
	v.SetDefault("queue.rate_per_second", cfg.Queue.RatePerSecond)
	v.SetDefault("queue.burst", cfg.Queue.Burst)
	v.SetDefault("queue.job_timeout_seconds", cfg.Queue.JobTimeoutSeconds)
	v.SetDefault("settings.file", cfg.Settings.File)
	v.SetDefault("settings.watch", cfg.Settings.Watch)
	v.SetDefault("settings.hotkey_label", cfg.Settings.HotkeyLabel)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("notice.url", cfg.Notice.URL)
	v.SetDefault("notice.interval_hours", cfg.Notice.IntervalHours)
	v.SetDefault("notice.timeout_seconds", cfg.Notice.TimeoutSeconds)
	v.SetDefault("system.power_supply_dir", cfg.System.PowerSupplyDir)
	v.SetDefault("system.connectivity_url", cfg.System.ConnectivityURL)
	v.SetDefault("system.poll_interval_seconds", cfg.System.PollIntervalSeconds)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateBrowserConfig(cfg.Browser); err != nil {
		return Config{}, err
	}
	if err := validateQueueConfig(cfg.Queue); err != nil {
		return Config{}, err
	}
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateBrowserConfig(cfg BrowserConfig) error {
	switch cfg.Mode {
	case BrowserModeLaunch:
	case BrowserModeRemote:
		if strings.TrimSpace(cfg.RemoteURL) == "" {
			return fmt.Errorf("browser.remote_url is required when browser.mode is %q", BrowserModeRemote)
		}
	default:
		return fmt.Errorf("unsupported browser.mode %q", cfg.Mode)
	}
	return nil
}

func validateQueueConfig(cfg QueueConfig) error {
	if cfg.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be at least 1")
	}
	if cfg.RatePerSecond <= 0 {
		return fmt.Errorf("queue.rate_per_second must be positive")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.base_url must include scheme and host (e.g. http://127.0.0.1:27490)")
		}
		if parsed.RawQuery != "" || parsed.Fragment != "" {
			return fmt.Errorf("http.base_url must not include query or fragment")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Browser.ExecPath = expandEnv(cfg.Browser.ExecPath)
	cfg.Browser.UserDataDir = expandEnv(cfg.Browser.UserDataDir)
	cfg.Browser.RemoteURL = expandEnv(cfg.Browser.RemoteURL)
	cfg.Settings.File = expandEnv(cfg.Settings.File)
	cfg.Store.Path = expandEnv(cfg.Store.Path)
	cfg.System.PowerSupplyDir = expandEnv(cfg.System.PowerSupplyDir)
	cfg.Logging.File = expandEnv(cfg.Logging.File)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = home + value[1:]
		}
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

const configHeader = "# tabnap configuration. Paths accept ~ and $VAR expansion.\n"

// WriteDefault writes the default config to path, or the default path when
// empty, and returns the path written.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.WriteString(configHeader); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
