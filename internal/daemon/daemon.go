// Package daemon runs the reminder check on an internal cron schedule
// instead of an external trigger. The core stays run-at-a-time: triggers
// are serialized through one channel so two checks never overlap in
// process (overlapping *processes* remain an operational concern).
package daemon

import (
	"context"
	"path/filepath"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"remindbot/pkg/logx"
)

type Config struct {
	// Schedule is a 5-field cron spec, evaluated at the fixed offset.
	Schedule string

	// OffsetMinutes fixes the cron evaluation timezone, matching the civil
	// timezone of the scheduling core.
	OffsetMinutes int

	// WatchPath, when non-empty, re-triggers a check shortly after the
	// reminders file is edited externally (the web editor commits straight
	// to it).
	WatchPath string
}

type Service struct {
	cfg Config
	log logx.Logger
	run func(ctx context.Context)

	trigger chan string
}

func New(cfg Config, run func(ctx context.Context), log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log, run: run, trigger: make(chan string, 1)}
}

// Start blocks until ctx is cancelled. It fires one check immediately on
// startup so a restart never silently skips a day.
func (s *Service) Start(ctx context.Context) error {
	loc := time.FixedZone("schedule", s.cfg.OffsetMinutes*60)
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.fire("cron") }); err != nil {
		return err
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	if s.cfg.WatchPath != "" {
		stop, err := s.watch(ctx)
		if err != nil {
			// A broken watcher degrades to schedule-only operation.
			s.log.Warn("store watch unavailable", logx.Err(err))
		} else {
			defer stop()
		}
	}

	if sent, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		s.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		s.log.Debug("sd_notify ready")
	}

	s.log.Info("daemon started",
		logx.String("schedule", s.cfg.Schedule),
		logx.Int("offset_minutes", s.cfg.OffsetMinutes))

	s.fire("startup")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("daemon stopped")
			return nil
		case cause := <-s.trigger:
			s.log.Info("check triggered", logx.String("cause", cause))
			s.run(ctx)
		}
	}
}

// fire requests a check. Non-blocking: a pending trigger absorbs new ones.
func (s *Service) fire(cause string) {
	select {
	case s.trigger <- cause:
	default:
	}
}

// watch observes the directory of the store file (editors replace files by
// rename, so watching the file itself would go stale) and debounces bursts
// of write events into one trigger.
func (s *Service) watch(ctx context.Context) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(s.cfg.WatchPath)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	base := filepath.Base(s.cfg.WatchPath)

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(2*time.Second, func() { s.fire("store edited") })
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("watch error", logx.Err(err))
			}
		}
	}()

	s.log.Info("watching store file", logx.String("path", s.cfg.WatchPath))
	return func() { _ = w.Close() }, nil
}
