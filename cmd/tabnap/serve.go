package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabnap"
	"pkt.systems/tabnap/httpapi"
	"pkt.systems/tabnap/internal/appconfig"
	"pkt.systems/tabnap/internal/chromehost"
	"pkt.systems/tabnap/internal/suspendqueue"
	"pkt.systems/tabnap/internal/sysstate"
	"pkt.systems/tabnap/schema"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var remoteURL string
	var headless bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Attach to the browser and start suspending idle tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if remoteURL != "" {
				cfg.Browser.Mode = appconfig.BrowserModeRemote
				cfg.Browser.RemoteURL = remoteURL
			}
			if headless {
				cfg.Browser.Headless = true
			}
			logger, logFile := newServeLogger(cfg.Logging)
			if logFile != nil {
				defer func() { _ = logFile.Close() }()
			}
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			server, err := tabnap.New(toServerConfig(cfg), tabnap.ServerDeps{Logger: logger},
				tabnap.WithHTTP(), tabnap.WithNotice(), tabnap.WithSystemState())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", cfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				_ = server.Stop(context.Background())
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&remoteURL, "remote", "", "attach to a running browser at this devtools url")
	cmd.Flags().BoolVar(&headless, "headless", false, "launch the browser headless")
	return cmd
}

func toServerConfig(cfg appconfig.Config) tabnap.ServerConfig {
	return tabnap.ServerConfig{
		Coordinator: schema.CoordinatorConfig{
			FocusDelay:       time.Duration(cfg.Coordinator.FocusDelayMillis) * time.Millisecond,
			SpawnedTabWindow: time.Duration(cfg.Coordinator.SpawnedTabWindowSeconds) * time.Second,
			SessionSaveDelay: time.Duration(cfg.Coordinator.SessionSaveDelayMillis) * time.Millisecond,
		},
		Browser: chromehost.BrowserOptions{
			Mode:        cfg.Browser.Mode,
			RemoteURL:   cfg.Browser.RemoteURL,
			ExecPath:    cfg.Browser.ExecPath,
			UserDataDir: cfg.Browser.UserDataDir,
			Headless:    cfg.Browser.Headless,
			Flags:       cfg.Browser.Flags,
		},
		HTTP: httpapi.Config{
			Addr:    cfg.HTTP.Addr,
			BaseURL: cfg.HTTP.BaseURL,
		},
		Queue: suspendqueue.Options{
			Concurrency:   cfg.Queue.Concurrency,
			RatePerSecond: cfg.Queue.RatePerSecond,
			Burst:         cfg.Queue.Burst,
			JobTimeout:    time.Duration(cfg.Queue.JobTimeoutSeconds) * time.Second,
		},
		Settings: tabnap.SettingsConfig{
			File:        cfg.Settings.File,
			Watch:       cfg.Settings.Watch,
			HotkeyLabel: cfg.Settings.HotkeyLabel,
		},
		StorePath:         cfg.Store.Path,
		AgentReplyTimeout: time.Duration(cfg.Coordinator.AgentReplyTimeoutSeconds) * time.Second,
		Notice: tabnap.NoticeConfig{
			URL:      cfg.Notice.URL,
			Interval: time.Duration(cfg.Notice.IntervalHours) * time.Hour,
			Timeout:  time.Duration(cfg.Notice.TimeoutSeconds) * time.Second,
		},
		System: sysstate.Options{
			PowerSupplyDir:  cfg.System.PowerSupplyDir,
			ConnectivityURL: cfg.System.ConnectivityURL,
			Interval:        time.Duration(cfg.System.PollIntervalSeconds) * time.Second,
		},
	}
}
