// Package notify dispatches one composed message per run through the chat
// channel and reports whether the channel accepted it.
package notify

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	kit "remindbot/internal/transport"
	"remindbot/pkg/logx"
)

var ErrUnavailable = errors.New("notification channel unavailable")

type Config struct {
	Target kit.ChatTarget

	// RatePerSec paces sends across runs in daemon mode. A run-once
	// process never waits on it.
	RatePerSec int
}

// Dispatcher makes at most one delivery attempt per invocation. Failure is
// terminal for the run; the caller leaves its state untouched so the next
// run retries the same notification (at-least-once delivery).
type Dispatcher struct {
	log     logx.Logger
	sender  kit.Sender // nil when credentials are missing
	target  kit.ChatTarget
	limiter *rate.Limiter
}

// New builds a dispatcher. A nil sender is legal and degrades every
// dispatch to a reported failure — missing credentials must never crash
// the run.
func New(cfg Config, sender kit.Sender, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 3
	}
	return &Dispatcher{
		log:     log,
		sender:  sender,
		target:  cfg.Target,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Dispatch sends the text with the given format hint and reports acceptance.
// No retries: duplicate suppression after a crash relies on persisted state,
// not on delivery bookkeeping here.
func (d *Dispatcher) Dispatch(ctx context.Context, text, parseMode string) bool {
	if d.sender == nil {
		d.log.Error("dispatch skipped: channel credentials missing",
			logx.String("kind", "channel_unavailable"))
		return false
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.log.Warn("dispatch cancelled while rate limited",
			logx.String("kind", "channel_unavailable"), logx.Err(err))
		return false
	}

	opts := &kit.SendOptions{ParseMode: parseMode, DisablePreview: true}
	ref, err := d.sender.SendText(ctx, d.target, text, opts)
	if err != nil {
		d.log.Error("channel rejected message",
			logx.String("kind", "channel_unavailable"),
			logx.Int64("chat_id", d.target.ChatID), logx.Err(err))
		return false
	}
	d.log.Info("message delivered",
		logx.Int64("chat_id", d.target.ChatID), logx.Int("message_id", ref.MessageID))
	return true
}
