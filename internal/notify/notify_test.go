package notify

import (
	"context"
	"errors"
	"testing"

	kit "remindbot/internal/transport"
	"remindbot/pkg/logx"
)

type recordingSender struct {
	err   error
	calls int

	lastText string
	lastTo   kit.ChatTarget
	lastOpt  *kit.SendOptions
}

func (r *recordingSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	r.calls++
	r.lastText, r.lastTo, r.lastOpt = text, to, opt
	if r.err != nil {
		return kit.MessageRef{}, r.err
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: r.calls}, nil
}

func TestDispatchDelivers(t *testing.T) {
	s := &recordingSender{}
	d := New(Config{Target: kit.ChatTarget{ChatID: 42}}, s, logx.Nop())

	if !d.Dispatch(context.Background(), "hello", "Markdown") {
		t.Fatal("accepted send must report true")
	}
	if s.calls != 1 || s.lastText != "hello" || s.lastTo.ChatID != 42 {
		t.Fatalf("unexpected send: calls=%d text=%q to=%+v", s.calls, s.lastText, s.lastTo)
	}
	if s.lastOpt == nil || s.lastOpt.ParseMode != "Markdown" || !s.lastOpt.DisablePreview {
		t.Fatalf("send options not forwarded: %+v", s.lastOpt)
	}
}

func TestDispatchNilSenderFails(t *testing.T) {
	d := New(Config{Target: kit.ChatTarget{ChatID: 42}}, nil, logx.Nop())
	if d.Dispatch(context.Background(), "hello", "") {
		t.Fatal("a dispatcher without credentials must report failure")
	}
}

func TestDispatchSingleAttempt(t *testing.T) {
	s := &recordingSender{err: errors.New("502 bad gateway")}
	d := New(Config{Target: kit.ChatTarget{ChatID: 42}}, s, logx.Nop())

	if d.Dispatch(context.Background(), "hello", "") {
		t.Fatal("rejected send must report false")
	}
	if s.calls != 1 {
		t.Fatalf("dispatch must not retry, got %d attempts", s.calls)
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	s := &recordingSender{}
	// Burst 1 so the second dispatch has to wait on the limiter, where the
	// cancelled context is observed.
	d := New(Config{Target: kit.ChatTarget{ChatID: 42}, RatePerSec: 1}, s, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	if !d.Dispatch(ctx, "first", "") {
		t.Fatal("first dispatch should pass the limiter immediately")
	}
	cancel()
	if d.Dispatch(ctx, "second", "") {
		t.Fatal("dispatch under a cancelled context must fail")
	}
	if s.calls != 1 {
		t.Fatalf("cancelled dispatch must not reach the channel, calls=%d", s.calls)
	}
}
