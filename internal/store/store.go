package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"remindbot/internal/dates"
	"remindbot/pkg/logx"
)

var ErrPersistence = errors.New("persistence failed")

// Exclusion reasons; a record carrying one is retained in storage unchanged
// but never scheduled.
const (
	ReasonInvalidDate = "invalid_date"
	ReasonValidation  = "validation_failed"
)

// Store owns the in-memory reminder collection between Load and Save.
// It is not safe for concurrent use; each run works on a fresh load.
type Store struct {
	log  logx.Logger
	blob Blob

	records []Record
	skip    []string // parallel to records; "" means schedulable
	state   State
}

func New(blob Blob, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{log: log, blob: blob}
}

// Load fetches the raw collection and normalizes it for the given civil day.
// An absent collection yields an empty store (callers seed business data,
// the store never invents it). Corrupt data is logged and treated as empty;
// corruption must never crash the run.
func (s *Store) Load(ctx context.Context, today dates.CivilDate) error {
	s.records = nil
	s.skip = nil
	s.state = State{}

	raw, ok, err := s.blob.Load(ctx)
	if err != nil {
		return fmt.Errorf("load reminders: %w", err)
	}
	if ok {
		var recs []Record
		if err := json.Unmarshal(raw, &recs); err != nil {
			s.log.Error("stored collection is not a reminder array, starting empty",
				logx.String("kind", "storage_corrupt"), logx.Err(err))
		} else {
			s.records = recs
		}
	}

	if rawState, ok, err := s.blob.LoadState(ctx); err != nil {
		s.log.Warn("state blob unreadable", logx.String("kind", "storage_corrupt"), logx.Err(err))
	} else if ok {
		if err := json.Unmarshal(rawState, &s.state); err != nil {
			s.log.Warn("state blob corrupt, ignoring",
				logx.String("kind", "storage_corrupt"), logx.Err(err))
			s.state = State{}
		}
	}

	s.normalize(today)
	return nil
}

// normalize cleans every record once per load so downstream logic can assume
// clean dates: time components stripped, missing nextReminder back-filled,
// missing enabled defaulted to true, a notified flag left over from a
// previous day cleared. Records that fail validation are flagged, not
// dropped. The whole pass is idempotent.
func (s *Store) normalize(today dates.CivilDate) {
	s.skip = make([]string, len(s.records))
	seen := make(map[int64]int, len(s.records))

	for i := range s.records {
		r := &s.records[i]

		if prev, dup := seen[r.ID]; dup {
			s.skip[i] = ReasonValidation
			s.log.Warn("duplicate reminder id, excluded from scheduling",
				logx.String("kind", ReasonValidation),
				logx.Int64("id", r.ID), logx.Int("first_index", prev))
			continue
		}
		seen[r.ID] = i

		s.skip[i] = s.normalizeRecord(r, today)
		if s.skip[i] != "" {
			s.log.Warn("reminder excluded from scheduling",
				logx.String("kind", s.skip[i]),
				logx.Int64("id", r.ID), logx.String("name", r.Name))
		}
	}
}

func (s *Store) normalizeRecord(r *Record, today dates.CivilDate) string {
	if r.Name == "" || r.LastUpdated == "" {
		return ReasonValidation
	}
	if r.IntervalDays < 1 {
		return ReasonValidation
	}

	last, err := dates.Normalize(r.LastUpdated)
	if err != nil {
		return ReasonInvalidDate
	}
	r.LastUpdated = last.String()

	if r.NextReminder == "" {
		r.NextReminder = dates.AddDays(last, r.IntervalDays).String()
	} else {
		next, err := dates.Normalize(r.NextReminder)
		if err != nil {
			return ReasonInvalidDate
		}
		r.NextReminder = next.String()
	}

	if r.Enabled == nil {
		r.setEnabled(true)
	}

	// The notified flag only guards "already fired today". A flag persisted
	// on an earlier day is stale and must not suppress the next cycle.
	if r.Notified {
		ln, err := dates.Normalize(r.LastNotified)
		if err != nil || ln != today {
			r.Notified = false
		}
	}
	return ""
}

func (s *Store) Len() int             { return len(s.records) }
func (s *Store) At(i int) *Record     { return &s.records[i] }
func (s *Store) Schedulable(i int) bool { return s.skip[i] == "" }

// Records returns the live backing slice. Mutations through it are
// persisted by the next Save.
func (s *Store) Records() []Record { return s.records }

// SetRecords replaces the collection wholesale (seeding an empty store).
func (s *Store) SetRecords(recs []Record, today dates.CivilDate) {
	s.records = recs
	s.normalize(today)
}

// Save writes the whole collection back. The primary and the mirror are one
// logical write; a mirror-only failure is reported as partial persistence
// and does not fail the save.
func (s *Store) Save(ctx context.Context, today dates.CivilDate) error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	data = append(data, '\n')

	if err := s.blob.Save(ctx, data, today); err != nil {
		if errors.Is(err, ErrMirrorWrite) {
			s.log.Error("primary saved but mirror copy failed",
				logx.String("kind", "persistence_partial"), logx.Err(err))
			return nil
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.log.Info("collection saved", logx.Int("records", len(s.records)))
	return nil
}

// HeartbeatSentToday reports whether the daily "nothing due" message has
// already gone out.
func (s *Store) HeartbeatSentToday(today dates.CivilDate) bool {
	return s.state.LastHeartbeatDate == today.String()
}

// MarkHeartbeat records a successful heartbeat for today and persists the
// marker immediately.
func (s *Store) MarkHeartbeat(ctx context.Context, today dates.CivilDate) error {
	s.state.LastHeartbeatDate = today.String()
	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", ErrPersistence, err)
	}
	if err := s.blob.SaveState(ctx, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
