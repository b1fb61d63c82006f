package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/dates"
	"remindbot/pkg/logx"
)

func testDate(t *testing.T, s string) dates.CivilDate {
	t.Helper()
	d, err := dates.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func newFileStore(t *testing.T, dir string) (*Store, config.StoreConfig) {
	t.Helper()
	cfg := config.StoreConfig{
		Driver:    "file",
		Path:      filepath.Join(dir, "reminders.json"),
		BackupDir: filepath.Join(dir, "backups"),
	}
	blob, err := OpenBlob(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("OpenBlob: %v", err)
	}
	t.Cleanup(func() { _ = blob.Close() })
	return New(blob, logx.Nop()), cfg
}

func testTime() time.Time {
	return time.Date(2026, 2, 13, 11, 0, 0, 0, time.UTC)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAbsentYieldsEmpty(t *testing.T) {
	st, _ := newFileStore(t, t.TempDir())
	if err := st.Load(context.Background(), testDate(t, "2026-02-13")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Len() != 0 {
		t.Fatalf("expected empty store, got %d records", st.Len())
	}
}

func TestLoadCorruptDataRecoversEmpty(t *testing.T) {
	for _, corrupt := range []string{`{"not":"an array"}`, `{{{`, `"just a string"`} {
		dir := t.TempDir()
		st, cfg := newFileStore(t, dir)
		writeFile(t, cfg.Path, corrupt)

		if err := st.Load(context.Background(), testDate(t, "2026-02-13")); err != nil {
			t.Fatalf("Load(%q) must not fail: %v", corrupt, err)
		}
		if st.Len() != 0 {
			t.Fatalf("corrupt input %q produced %d records", corrupt, st.Len())
		}
	}
}

func TestNormalizeCleansRecords(t *testing.T) {
	dir := t.TempDir()
	st, cfg := newFileStore(t, dir)
	writeFile(t, cfg.Path, `[
	  {"id":1,"name":"A","lastUpdated":"2026-02-10T08:00:00Z","days":3},
	  {"id":2,"name":"B","lastUpdated":"2026-02-01","nextReminder":"2026-02-20T23:00:00+08:00","days":19}
	]`)

	if err := st.Load(context.Background(), testDate(t, "2026-02-13")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	a := st.At(0)
	if a.LastUpdated != "2026-02-10" {
		t.Fatalf("time component not stripped: %q", a.LastUpdated)
	}
	if a.NextReminder != "2026-02-13" {
		t.Fatalf("missing nextReminder not back-filled: %q", a.NextReminder)
	}
	if !a.On() {
		t.Fatal("missing enabled must default to true")
	}
	b := st.At(1)
	if b.NextReminder != "2026-02-20" {
		t.Fatalf("timestamped nextReminder not normalized: %q", b.NextReminder)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	st, cfg := newFileStore(t, dir)
	writeFile(t, cfg.Path, `[{"id":1,"name":"A","lastUpdated":"2026-02-10T08:00:00Z","days":3}]`)

	today := testDate(t, "2026-02-13")
	if err := st.Load(context.Background(), today); err != nil {
		t.Fatalf("Load: %v", err)
	}
	once := *st.At(0)
	st.normalize(today)
	if twice := *st.At(0); twice != once {
		t.Fatalf("normalize not idempotent: %+v vs %+v", once, twice)
	}
}

func TestValidationExcludesButRetains(t *testing.T) {
	dir := t.TempDir()
	st, cfg := newFileStore(t, dir)
	writeFile(t, cfg.Path, `[
	  {"id":1,"name":"ok","lastUpdated":"2026-02-10","days":3},
	  {"id":2,"name":"zero interval","lastUpdated":"2026-02-10","days":0},
	  {"id":3,"name":"","lastUpdated":"2026-02-10","days":3},
	  {"id":4,"name":"bad date","lastUpdated":"snarf","days":3},
	  {"id":1,"name":"duplicate id","lastUpdated":"2026-02-10","days":5}
	]`)

	if err := st.Load(context.Background(), testDate(t, "2026-02-13")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Len() != 5 {
		t.Fatalf("invalid records must be retained, got %d", st.Len())
	}
	want := []bool{true, false, false, false, false}
	for i, w := range want {
		if st.Schedulable(i) != w {
			t.Fatalf("Schedulable(%d) = %v, want %v", i, st.Schedulable(i), w)
		}
	}
	// Invalid records keep their raw values untouched.
	if st.At(3).LastUpdated != "snarf" {
		t.Fatalf("invalid record was mutated: %q", st.At(3).LastUpdated)
	}
}

func TestStaleNotifiedFlagIsCleared(t *testing.T) {
	dir := t.TempDir()
	st, cfg := newFileStore(t, dir)
	writeFile(t, cfg.Path, `[
	  {"id":1,"name":"stale","lastUpdated":"2026-02-10","days":3,"notified":true,"lastNotified":"2026-02-10T11:00:00Z"},
	  {"id":2,"name":"fresh","lastUpdated":"2026-02-13","days":3,"notified":true,"lastNotified":"2026-02-13T11:00:00Z"}
	]`)

	if err := st.Load(context.Background(), testDate(t, "2026-02-13")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.At(0).Notified {
		t.Fatal("notified flag from an earlier day must be cleared")
	}
	if !st.At(1).Notified {
		t.Fatal("notified flag from today must survive")
	}
}

func TestSaveBackupAtMostOncePerDay(t *testing.T) {
	dir := t.TempDir()
	st, cfg := newFileStore(t, dir)
	writeFile(t, cfg.Path, `[{"id":1,"name":"A","lastUpdated":"2026-02-10","days":3}]`)
	original, err := os.ReadFile(cfg.Path)
	if err != nil {
		t.Fatalf("read primary: %v", err)
	}

	today := testDate(t, "2026-02-13")
	if err := st.Load(context.Background(), today); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := st.Save(context.Background(), today); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Save(context.Background(), today); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	entries, err := os.ReadDir(cfg.BackupDir)
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one backup, got %d", len(entries))
	}
	if entries[0].Name() != "reminders-2026-02-13.json" {
		t.Fatalf("unexpected backup name %q", entries[0].Name())
	}
	backup, err := os.ReadFile(filepath.Join(cfg.BackupDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	// The first save backs up the pre-save contents.
	if !bytes.Equal(backup, original) {
		t.Fatal("backup must capture the pre-save primary contents")
	}
}

func TestSaveMirrorIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StoreConfig{
		Driver:     "file",
		Path:       filepath.Join(dir, "reminders.json"),
		BackupDir:  filepath.Join(dir, "backups"),
		MirrorPath: filepath.Join(dir, "public", "reminders.json"),
	}
	blob, err := OpenBlob(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("OpenBlob: %v", err)
	}
	st := New(blob, logx.Nop())

	today := testDate(t, "2026-02-13")
	writeFile(t, cfg.Path, `[{"id":1,"name":"A","lastUpdated":"2026-02-10","days":3}]`)
	if err := st.Load(context.Background(), today); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := st.Save(context.Background(), today); err != nil {
		t.Fatalf("Save: %v", err)
	}

	primary, err := os.ReadFile(cfg.Path)
	if err != nil {
		t.Fatalf("read primary: %v", err)
	}
	mirror, err := os.ReadFile(cfg.MirrorPath)
	if err != nil {
		t.Fatalf("read mirror: %v", err)
	}
	if !bytes.Equal(primary, mirror) {
		t.Fatal("mirror must match primary byte-for-byte")
	}
}

func TestSaveMirrorFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the mirror's parent directory should be makes
	// every mirror write fail while the primary still succeeds.
	blocker := filepath.Join(dir, "public")
	writeFile(t, blocker, "not a directory")

	cfg := config.StoreConfig{
		Driver:     "file",
		Path:       filepath.Join(dir, "reminders.json"),
		BackupDir:  filepath.Join(dir, "backups"),
		MirrorPath: filepath.Join(blocker, "reminders.json"),
	}
	blob, err := OpenBlob(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("OpenBlob: %v", err)
	}
	st := New(blob, logx.Nop())

	today := testDate(t, "2026-02-13")
	if err := st.Load(context.Background(), today); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st.SetRecords([]Record{SeedRecord("2026-02-13", testTime())}, today)

	if err := st.Save(context.Background(), today); err != nil {
		t.Fatalf("mirror-only failure must not fail the save: %v", err)
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		t.Fatalf("primary must still be written: %v", err)
	}
}

func TestHeartbeatMarkerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, cfg := newFileStore(t, dir)
	today := testDate(t, "2026-02-13")

	if err := st.Load(context.Background(), today); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.HeartbeatSentToday(today) {
		t.Fatal("fresh store must not report a heartbeat")
	}
	if err := st.MarkHeartbeat(context.Background(), today); err != nil {
		t.Fatalf("MarkHeartbeat: %v", err)
	}

	// A second invocation (fresh Store over the same files) sees the marker.
	blob, err := OpenBlob(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("OpenBlob: %v", err)
	}
	st2 := New(blob, logx.Nop())
	if err := st2.Load(context.Background(), today); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !st2.HeartbeatSentToday(today) {
		t.Fatal("heartbeat marker must survive a reload")
	}
	if st2.HeartbeatSentToday(testDate(t, "2026-02-14")) {
		t.Fatal("marker must only match its own day")
	}
}
