package logging

import "testing"

func TestRecentLogsReturnsMostRecentWithinCount(t *testing.T) {
	h := New("debug")
	for i := 0; i < 5; i++ {
		h.Info(TagStrategy, "entry")
	}
	got := h.RecentLogs(2, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
}

func TestRecentLogsFiltersByTag(t *testing.T) {
	h := New("debug")
	h.Info(TagStrategy, "strategy entry")
	h.Info(TagRisk, "risk entry")
	h.Info(TagStrategy, "another strategy entry")

	tag := TagRisk
	got := h.RecentLogs(10, &tag)
	if len(got) != 1 {
		t.Fatalf("expected one risk entry, got %d", len(got))
	}
	if got[0].Message != "risk entry" {
		t.Fatalf("unexpected message: %s", got[0].Message)
	}
}

func TestRingBufferBoundedByMaxLogs(t *testing.T) {
	h := New("debug", WithMaxLogs(3))
	for i := 0; i < 10; i++ {
		h.Info(TagDebug, "entry")
	}
	if h.Stats().TotalLogs != 3 {
		t.Fatalf("expected ring bounded to 3, got %d", h.Stats().TotalLogs)
	}
}

func TestStatsAggregatesByLevelAndTag(t *testing.T) {
	h := New("debug")
	h.Info(TagStrategy, "a")
	h.Warn(TagStrategy, "b")
	h.Error(TagRisk, "c", nil)

	stats := h.Stats()
	if stats.TotalLogs != 3 {
		t.Fatalf("expected 3 total logs, got %d", stats.TotalLogs)
	}
	if stats.ByLevel["info"] != 1 || stats.ByLevel["warn"] != 1 || stats.ByLevel["error"] != 1 {
		t.Fatalf("unexpected level breakdown: %+v", stats.ByLevel)
	}
	if stats.ByTag[string(TagStrategy)] != 2 || stats.ByTag[string(TagRisk)] != 1 {
		t.Fatalf("unexpected tag breakdown: %+v", stats.ByTag)
	}
}

func TestErrorAppendsErrMessage(t *testing.T) {
	h := New("debug")
	h.Error(TagRisk, "failed to place order", errTest("order rejected"))
	entries := h.RecentLogs(1, nil)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	want := "failed to place order: order rejected"
	if entries[0].Message != want {
		t.Fatalf("expected %q, got %q", want, entries[0].Message)
	}
}

func TestClearEmptiesRingBuffer(t *testing.T) {
	h := New("debug")
	h.Info(TagDebug, "entry")
	h.Clear()
	if h.Stats().TotalLogs != 0 {
		t.Fatal("expected ring buffer to be empty after Clear")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
