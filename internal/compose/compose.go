// Package compose renders a due set (or the daily heartbeat) into a single
// bounded-length chat message.
//
// Rendering is a pluggable strategy so the same due set can go out as
// Telegram markdown or as plain text; the choice is presentation only and
// never affects scheduling.
package compose

import (
	"fmt"
	"strings"
	"time"

	"remindbot/internal/dates"
)

// Entry is one due reminder, already reduced to display values.
type Entry struct {
	Name              string
	LastUpdatedLabel  string
	IntervalDays      int
	NextReminderLabel string
}

type Renderer interface {
	// ParseMode is the format hint handed to the channel ("" = plain).
	ParseMode() string
	RenderDue(entries []Entry, today dates.CivilDate, now time.Time) string
	RenderHeartbeat(total int, today dates.CivilDate, now time.Time) string
}

// ForName maps a config value to a renderer. Unknown names fall back to
// plain text rather than failing the run.
func ForName(name string) Renderer {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown", "":
		return Markdown{}
	default:
		return Plain{}
	}
}

const truncationNotice = "\n\n… message truncated, see the full list in the reminder store."

type Composer struct {
	r      Renderer
	maxLen int
}

func New(r Renderer, maxLen int) *Composer {
	if maxLen <= 0 {
		maxLen = 4096
	}
	return &Composer{r: r, maxLen: maxLen}
}

func (c *Composer) ParseMode() string { return c.r.ParseMode() }

// Due renders the due-set message, entry order preserved.
func (c *Composer) Due(entries []Entry, today dates.CivilDate, now time.Time) string {
	return c.cap(c.r.RenderDue(entries, today, now))
}

// Heartbeat renders the "alive, nothing due" message.
func (c *Composer) Heartbeat(total int, today dates.CivilDate, now time.Time) string {
	return c.cap(c.r.RenderHeartbeat(total, today, now))
}

// cap enforces the channel's maximum message size: truncate the body and
// append a fixed notice rather than fail.
func (c *Composer) cap(text string) string {
	runes := []rune(text)
	if len(runes) <= c.maxLen {
		return text
	}
	notice := []rune(truncationNotice)
	keep := c.maxLen - len(notice)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + truncationNotice
}

// ---- Markdown ----

// Markdown renders with Telegram's legacy Markdown subset (bold + breaks).
type Markdown struct{}

func (Markdown) ParseMode() string { return "Markdown" }

func (Markdown) RenderDue(entries []Entry, today dates.CivilDate, now time.Time) string {
	var b strings.Builder
	b.WriteString("🔔 *Update reminders*\n\n")
	fmt.Fprintf(&b, "📅 %s\n\n", today)
	fmt.Fprintf(&b, "*Due today (%d):*\n\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, e.Name)
		fmt.Fprintf(&b, "   • last updated: %s\n", e.LastUpdatedLabel)
		fmt.Fprintf(&b, "   • every %d days\n", e.IntervalDays)
		fmt.Fprintf(&b, "   • next: %s\n\n", e.NextReminderLabel)
	}
	fmt.Fprintf(&b, "⏰ sent at %s", now.Format("15:04:05"))
	return b.String()
}

func (Markdown) RenderHeartbeat(total int, today dates.CivilDate, now time.Time) string {
	var b strings.Builder
	b.WriteString("✅ *Daily check complete*\n")
	fmt.Fprintf(&b, "📅 %s\n", today)
	fmt.Fprintf(&b, "📊 tracked: %d\n", total)
	b.WriteString("🔔 due today: 0\n\n")
	fmt.Fprintf(&b, "⏰ checked at %s", now.Format("15:04:05"))
	return b.String()
}

// ---- Plain ----

type Plain struct{}

func (Plain) ParseMode() string { return "" }

func (Plain) RenderDue(entries []Entry, today dates.CivilDate, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Update reminders — %s\n\n", today)
	fmt.Fprintf(&b, "Due today (%d):\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s (last updated %s, every %d days, next %s)\n",
			i+1, e.Name, e.LastUpdatedLabel, e.IntervalDays, e.NextReminderLabel)
	}
	fmt.Fprintf(&b, "\nsent at %s", now.Format("15:04:05"))
	return b.String()
}

func (Plain) RenderHeartbeat(total int, today dates.CivilDate, now time.Time) string {
	return fmt.Sprintf("Daily check complete — %s\ntracked: %d, due today: 0\nchecked at %s",
		today, total, now.Format("15:04:05"))
}
