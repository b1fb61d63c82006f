package transport

import "context"

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// SendOptions selects the lightweight markup subset the channel should
// apply. ParseMode "" means plain text.
type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender is the outbound half of a chat channel. The reminder core only
// ever pushes one composed message per run, so this is the whole contract.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
