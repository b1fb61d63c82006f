// Package telegram adapts the Telegram Bot API (via telebot) to the
// transport.Sender contract. Send-only: this bot never polls for updates.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "remindbot/internal/transport"
	"remindbot/pkg/logx"
)

type Config struct {
	Token string

	// Timeout bounds each API call. Default 30s, matching the channel's
	// own long-request cutoff.
	Timeout time.Duration
}

type Adapter struct {
	log logx.Logger
	bot *tele.Bot
}

// New validates the token against the API (getMe) and returns a send-only
// adapter. A bad or revoked token surfaces here, before any run starts.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log.Debug("telegram bot verified", logx.String("username", b.Me.Username))
	return &Adapter{log: log, bot: b}, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return kit.MessageRef{}, ctx.Err()
		default:
		}
	}

	sendOpts := &tele.SendOptions{ThreadID: to.ThreadID}
	if opt != nil {
		sendOpts.ParseMode = opt.ParseMode
		sendOpts.DisableWebPagePreview = opt.DisablePreview
	}

	msg, err := a.bot.Send(tele.ChatID(to.ChatID), text, sendOpts)
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}
