package config

// Config is the full runtime configuration.
//
// The file may be YAML or JSON; YAML is coerced to JSON and decoded strictly
// (unknown keys are rejected) so typos surface immediately instead of
// silently falling back to defaults.
//
// Secrets (bot token, chat id) never live in this file. They are read from
// the environment; see Secrets.
type Config struct {
	Store    StoreConfig    `json:"store"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Heartbeat controls the "nothing due today" status message.
	Heartbeat HeartbeatConfig `json:"heartbeat"`

	// Render selects the message rendering strategy: "markdown" or "plain".
	Render string `json:"render,omitempty"`

	// TimezoneOffsetMinutes fixes the civil timezone in which "today" is
	// resolved, independent of the host zone. Default 480 (UTC+8).
	TimezoneOffsetMinutes *int `json:"timezone_offset_minutes,omitempty"`

	// Daemon enables self-scheduled mode. When omitted, the process runs
	// one check and exits (external cron trigger).
	Daemon *DaemonConfig `json:"daemon,omitempty"`
}

type StoreConfig struct {
	// Driver: "file" (default) or "sqlite" (requires the sqlite build tag).
	Driver string `json:"driver,omitempty"`

	// Path of the primary store. The file driver derives sibling paths from
	// it (state file, default backup dir).
	Path string `json:"path"`

	// MirrorPath receives a byte-identical copy of every successful save.
	// Empty disables the mirror.
	MirrorPath string `json:"mirror_path,omitempty"`

	// BackupDir holds the one-per-day dated backups. Defaults to a
	// "backups" directory next to Path.
	BackupDir string `json:"backup_dir,omitempty"`

	// BackupEnabled defaults to true.
	BackupEnabled *bool `json:"backup_enabled,omitempty"`
}

type TelegramConfig struct {
	// TokenEnv / ChatIDEnv name the environment variables holding the bot
	// token and destination chat id.
	TokenEnv  string `json:"token_env,omitempty"`
	ChatIDEnv string `json:"chat_id_env,omitempty"`

	// MaxMessageLength is the channel-side message size cap the composer
	// must respect. Default 4096.
	MaxMessageLength int `json:"max_message_length,omitempty"`

	// RatePerSec bounds outgoing sends in daemon mode. Default 3.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type HeartbeatConfig struct {
	// Enabled defaults to true.
	Enabled *bool `json:"enabled,omitempty"`
}

type DaemonConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule is a standard 5-field cron spec evaluated in the configured
	// fixed-offset timezone. Default "0 11 * * *".
	Schedule string `json:"schedule,omitempty"`

	// Watch re-checks immediately when the primary store file is edited
	// externally.
	Watch bool `json:"watch"`
}

const (
	DefaultTokenEnv         = "TELEGRAM_BOT_TOKEN"
	DefaultChatIDEnv        = "TELEGRAM_CHAT_ID"
	DefaultMaxMessageLength = 4096
	DefaultRatePerSec       = 3
	DefaultOffsetMinutes    = 480 // UTC+8, the zone the schedule was authored in
	DefaultSchedule         = "0 11 * * *"
)

// BackupOn reports whether dated backups are enabled (default true).
func (s StoreConfig) BackupOn() bool {
	return s.BackupEnabled == nil || *s.BackupEnabled
}

// HeartbeatOn reports whether the daily heartbeat is enabled (default true).
func (c Config) HeartbeatOn() bool {
	return c.Heartbeat.Enabled == nil || *c.Heartbeat.Enabled
}

// ConsoleOn reports whether console logging is enabled (default true).
func (l LoggingConfig) ConsoleOn() bool {
	return l.Console == nil || *l.Console
}

// OffsetMinutes returns the configured civil timezone offset.
func (c Config) OffsetMinutes() int {
	if c.TimezoneOffsetMinutes == nil {
		return DefaultOffsetMinutes
	}
	return *c.TimezoneOffsetMinutes
}
