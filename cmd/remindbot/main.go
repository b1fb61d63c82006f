package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"remindbot/internal/compose"
	"remindbot/internal/config"
	"remindbot/internal/daemon"
	"remindbot/internal/notify"
	"remindbot/internal/remind"
	"remindbot/internal/store"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/telegram"
	"remindbot/pkg/logx"
)

func main() {
	var cfgPath string
	var daemonMode bool
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.BoolVar(&daemonMode, "daemon", false, "run on the internal schedule instead of once")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, cfgPath, daemonMode))
}

// run returns the process exit code: 0 for a completed check (a rejected
// dispatch is reported, not fatal), 1 for faults in bootstrap or in the
// load/save sequencing.
func run(ctx context.Context, cfgPath string, daemonMode bool) int {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: config:", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal: config:", err)
		return 1
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleOn(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer func() { _ = log.Close() }()

	sender, chatID := buildSender(cfg, log)

	blob, err := store.OpenBlob(cfg.Store, log.With(logx.String("comp", "store")))
	if err != nil {
		log.Error("store bootstrap failed", logx.Err(err))
		return 1
	}
	defer func() { _ = blob.Close() }()

	st := store.New(blob, log.With(logx.String("comp", "store")))
	comp := compose.New(compose.ForName(cfg.Render), cfg.Telegram.MaxMessageLength)
	disp := notify.New(notify.Config{
		Target:     kit.ChatTarget{ChatID: chatID},
		RatePerSec: cfg.Telegram.RatePerSec,
	}, sender, log.With(logx.String("comp", "notify")))

	eng := remind.New(remind.Config{
		OffsetMinutes: cfg.OffsetMinutes(),
		Heartbeat:     cfg.HeartbeatOn(),
	}, st, comp, disp, log.With(logx.String("comp", "remind")))

	if daemonMode || (cfg.Daemon != nil && cfg.Daemon.Enabled) {
		return runDaemon(ctx, cfg, eng, log)
	}

	if _, err := eng.Run(ctx); err != nil {
		log.Error("run aborted", logx.Err(err))
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if os.IsNotExist(err) {
		// No config file is a supported deployment (CI with env secrets
		// only); everything has a default.
		return config.Default(), nil
	}
	return nil, err
}

// buildSender resolves credentials and connects the channel adapter.
// Any failure here degrades dispatch to a reported no-op; it never aborts
// the run, which must still load, select and save.
func buildSender(cfg *config.Config, log logx.Logger) (kit.Sender, int64) {
	secrets, err := cfg.LoadSecrets()
	if err != nil {
		log.Error("credentials unreadable, notifications disabled",
			logx.String("kind", "channel_unavailable"), logx.Err(err))
		return nil, 0
	}
	if !secrets.Complete() {
		log.Warn("credentials missing, notifications disabled",
			logx.String("kind", "channel_unavailable"),
			logx.String("token_env", cfg.Telegram.TokenEnv),
			logx.String("chat_id_env", cfg.Telegram.ChatIDEnv))
		return nil, 0
	}

	ad, err := telegram.New(telegram.Config{Token: secrets.Token},
		log.With(logx.String("comp", "telegram")))
	if err != nil {
		log.Error("telegram bootstrap failed, notifications disabled",
			logx.String("kind", "channel_unavailable"), logx.Err(err))
		return nil, 0
	}
	return ad, secrets.ChatID
}

func runDaemon(ctx context.Context, cfg *config.Config, eng *remind.Engine, log logx.Logger) int {
	schedule := config.DefaultSchedule
	watchPath := ""
	if cfg.Daemon != nil {
		schedule = cfg.Daemon.Schedule
		if cfg.Daemon.Watch && cfg.Store.Driver == "file" {
			watchPath = cfg.Store.Path
		}
	}

	svc := daemon.New(daemon.Config{
		Schedule:      schedule,
		OffsetMinutes: cfg.OffsetMinutes(),
		WatchPath:     watchPath,
	}, func(ctx context.Context) {
		if _, err := eng.Run(ctx); err != nil {
			log.Error("scheduled run aborted", logx.Err(err))
		}
	}, log.With(logx.String("comp", "daemon")))

	if err := svc.Start(ctx); err != nil {
		log.Error("daemon failed", logx.Err(err))
		return 1
	}
	return 0
}
