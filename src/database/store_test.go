package database

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *UsageStore {
	t.Helper()

	store, err := NewUsageStore(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewUsageStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndSummary(t *testing.T) {
	store := newTestStore(t)

	records := []*RequestRecord{
		{RequestID: "r1", Persona: "aria", PromptChars: 12, Fragments: 3, BytesOut: 30, Status: StatusOK, DurationMS: 120},
		{RequestID: "r2", Persona: "aria", PromptChars: 40, Fragments: 0, BytesOut: 0, Status: StatusRejected, DurationMS: 1},
		{RequestID: "r3", Persona: "raven", PromptChars: 8, Fragments: 0, BytesOut: 0, Status: StatusUpstreamError, DurationMS: 15},
	}
	for _, rec := range records {
		if err := store.Record(rec); err != nil {
			t.Fatalf("Record(%s) failed: %v", rec.RequestID, err)
		}
		if rec.ID == 0 {
			t.Errorf("Record(%s) did not assign an ID", rec.RequestID)
		}
	}

	summary, err := store.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	if summary.Total != 3 {
		t.Errorf("Total = %d, want 3", summary.Total)
	}
	if summary.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", summary.Succeeded)
	}
	if summary.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", summary.Rejected)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if summary.TotalBytes != 30 {
		t.Errorf("TotalBytes = %d, want 30", summary.TotalBytes)
	}
}

func TestSummaryEmptyStore(t *testing.T) {
	store := newTestStore(t)

	summary, err := store.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Total != 0 || summary.TotalBytes != 0 {
		t.Errorf("empty store summary = %+v, want zeros", summary)
	}
}

func TestRecentOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"first", "second", "third"} {
		if err := store.Record(&RequestRecord{RequestID: id, Status: StatusOK}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d records, want 2", len(recent))
	}
	if recent[0].RequestID != "third" || recent[1].RequestID != "second" {
		t.Errorf("Recent order = [%s %s], want [third second]",
			recent[0].RequestID, recent[1].RequestID)
	}
}
