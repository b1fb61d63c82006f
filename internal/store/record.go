package store

import "time"

// Record is one tracked recurring obligation, in the shape external editors
// write. Date fields stay strings on purpose: malformed input must survive
// a load/save round trip unchanged instead of failing the whole decode.
type Record struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	LastUpdated  string `json:"lastUpdated"`
	NextReminder string `json:"nextReminder,omitempty"`
	IntervalDays int    `json:"days"`
	Enabled      *bool  `json:"enabled,omitempty"`
	Notified     bool   `json:"notified,omitempty"`
	LastNotified string `json:"lastNotified,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// On reports the enablement flag; missing means enabled.
func (r *Record) On() bool { return r.Enabled == nil || *r.Enabled }

func (r *Record) setEnabled(v bool) { r.Enabled = &v }

// State is collection-level scheduling state, persisted separately from the
// record array.
type State struct {
	// LastHeartbeatDate is the civil date (YYYY-MM-DD) of the last
	// "nothing due" status message. At most one heartbeat fires per day.
	LastHeartbeatDate string `json:"lastHeartbeatDate,omitempty"`
}

// SeedRecord returns the single example record written when the store is
// empty, so a fresh deployment produces visible output on its first run.
func SeedRecord(today string, now time.Time) Record {
	enabled := true
	return Record{
		ID:           1,
		Name:         "Example reminder",
		LastUpdated:  today,
		IntervalDays: 3,
		Enabled:      &enabled,
		CreatedAt:    now.Format(time.RFC3339),
	}
}
