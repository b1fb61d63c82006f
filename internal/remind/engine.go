// Package remind implements the scheduling core: resolve "today" in the
// fixed civil timezone, select the due set, hand it to the composer and
// dispatcher, and advance schedules only after confirmed delivery.
package remind

import (
	"context"
	"time"

	"remindbot/internal/compose"
	"remindbot/internal/dates"
	"remindbot/internal/notify"
	"remindbot/internal/store"
	"remindbot/pkg/logx"
)

// Stats summarizes one invocation; reporting only.
type Stats struct {
	Today     string
	Total     int
	Due       int
	Sent      int
	Updated   int
	Heartbeat bool
}

type Config struct {
	// OffsetMinutes fixes the civil timezone in which "today" is resolved.
	OffsetMinutes int

	// Heartbeat enables the at-most-once-per-day "nothing due" message.
	Heartbeat bool
}

type Engine struct {
	cfg   Config
	log   logx.Logger
	store *store.Store
	comp  *compose.Composer
	disp  *notify.Dispatcher

	// now is injectable so tests can pin the instant.
	now func() time.Time
}

func New(cfg Config, st *store.Store, comp *compose.Composer, disp *notify.Dispatcher, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{cfg: cfg, log: log, store: st, comp: comp, disp: disp, now: time.Now}
}

// SetNow overrides the clock; tests only.
func (e *Engine) SetNow(fn func() time.Time) { e.now = fn }

// Run executes one complete check: load → select → compose → dispatch →
// advance → save. It returns an error only for faults in the top-level
// load/save sequencing; a rejected dispatch is reported through the stats
// and leaves all state untouched so the next run retries.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	now := e.now()
	today := dates.Today(now, e.cfg.OffsetMinutes)
	stats := Stats{Today: today.String()}

	e.log.Info("run started", logx.String("today", today.String()))

	if err := e.store.Load(ctx, today); err != nil {
		return stats, err
	}

	if e.store.Len() == 0 {
		// Fresh deployment: seed one example record so the first run
		// produces a visible store. Business data is seeded here by the
		// caller of Load, never invented inside the store.
		e.log.Info("store empty, seeding example reminder")
		e.store.SetRecords([]store.Record{store.SeedRecord(today.String(), now)}, today)
		if err := e.store.Save(ctx, today); err != nil {
			return stats, err
		}
	}

	stats.Total = e.store.Len()
	due := e.selectDue(today)
	stats.Due = len(due)

	if len(due) > 0 {
		e.runDue(ctx, due, today, now, &stats)
	} else {
		e.runHeartbeat(ctx, today, now, &stats)
	}

	e.log.Info("run summary",
		logx.String("today", stats.Today),
		logx.Int("total", stats.Total),
		logx.Int("due", stats.Due),
		logx.Int("sent", stats.Sent),
		logx.Int("updated", stats.Updated),
		logx.Bool("heartbeat", stats.Heartbeat))
	return stats, nil
}

func (e *Engine) runDue(ctx context.Context, due []int, today dates.CivilDate, now time.Time, stats *Stats) {
	entries := e.entries(due, today)
	text := e.comp.Due(entries, today, now)

	if !e.disp.Dispatch(ctx, text, e.comp.ParseMode()) {
		// Failed delivery leaves every record untouched; the next
		// invocation reattempts the same notification.
		e.log.Warn("due reminders not delivered, schedules left unchanged",
			logx.Int("due", len(due)))
		return
	}
	stats.Sent = len(due)

	e.advance(due, today, now)
	stats.Updated = len(due)

	if err := e.store.Save(ctx, today); err != nil {
		// Delivery already happened, so the run still counts as clean.
		// The stale schedule will re-fire next run: the accepted
		// duplicate-notification window.
		e.log.Error("save after delivery failed; next run will re-notify",
			logx.String("kind", "persistence_failed"), logx.Err(err))
	}
}

func (e *Engine) runHeartbeat(ctx context.Context, today dates.CivilDate, now time.Time, stats *Stats) {
	if !e.cfg.Heartbeat {
		return
	}
	if e.store.HeartbeatSentToday(today) {
		e.log.Debug("heartbeat already sent today")
		return
	}

	text := e.comp.Heartbeat(e.store.Len(), today, now)
	if !e.disp.Dispatch(ctx, text, e.comp.ParseMode()) {
		return
	}
	stats.Heartbeat = true

	if err := e.store.MarkHeartbeat(ctx, today); err != nil {
		e.log.Error("heartbeat marker not persisted; tomorrow may double-send",
			logx.String("kind", "persistence_failed"), logx.Err(err))
	}
}

// selectDue filters the collection for today's due set. The filter is
// stable: result order is collection order, which is user-visible in the
// composed message.
func (e *Engine) selectDue(today dates.CivilDate) []int {
	var due []int
	for i := 0; i < e.store.Len(); i++ {
		if !e.store.Schedulable(i) {
			continue
		}
		r := e.store.At(i)
		if !r.On() || r.Notified {
			continue
		}
		next, err := dates.Parse(r.NextReminder)
		if err != nil {
			continue // normalize guarantees this, but never trust it with a crash
		}
		if dates.IsDue(next, today) {
			due = append(due, i)
		}
	}
	return due
}

func (e *Engine) entries(due []int, today dates.CivilDate) []compose.Entry {
	entries := make([]compose.Entry, 0, len(due))
	for _, i := range due {
		r := e.store.At(i)
		lastLabel := r.LastUpdated
		if d, err := dates.Parse(r.LastUpdated); err == nil {
			lastLabel = dates.DisplayLabel(d, today)
		}
		entries = append(entries, compose.Entry{
			Name:              r.Name,
			LastUpdatedLabel:  lastLabel,
			IntervalDays:      r.IntervalDays,
			NextReminderLabel: dates.DisplayLabel(dates.AddDays(today, r.IntervalDays), today),
		})
	}
	return entries
}

// advance moves every delivered record one interval forward. Runs only
// after the channel confirmed delivery, as a unit over the whole due set.
func (e *Engine) advance(due []int, today dates.CivilDate, now time.Time) {
	for _, i := range due {
		r := e.store.At(i)
		r.LastUpdated = today.String()
		r.NextReminder = dates.AddDays(today, r.IntervalDays).String()
		r.Notified = true
		r.LastNotified = now.Format(time.RFC3339)
	}
}
