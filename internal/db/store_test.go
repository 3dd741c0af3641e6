package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "aris.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// deterministic, strictly increasing clock
	base := time.Unix(1700000000, 0)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return store
}

func TestStartSessionAndLatest(t *testing.T) {
	store := openTestStore(t)

	if sess, err := store.LatestSession(); err != nil || sess != nil {
		t.Fatalf("latest on empty db = %+v, %v", sess, err)
	}

	first, err := store.StartSession("ws://a/ws")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, _ := store.StartSession("ws://b/ws")
	if first.ID == second.ID {
		t.Error("session ids collide")
	}

	latest, err := store.LatestSession()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("latest = %q, want %q", latest.ID, second.ID)
	}
	if latest.ServerURL != "ws://b/ws" {
		t.Errorf("serverUrl = %q, want %q", latest.ServerURL, "ws://b/ws")
	}
	if latest.EndedAt != nil {
		t.Error("endedAt should be nil")
	}

	if err := store.EndSession(second.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	latest, _ = store.LatestSession()
	if latest.EndedAt == nil {
		t.Error("endedAt not set")
	}
}

func TestEndUnknownSession(t *testing.T) {
	store := openTestStore(t)
	if err := store.EndSession("missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestAppendMessageSequence(t *testing.T) {
	store := openTestStore(t)
	sess, _ := store.StartSession("ws://a/ws")

	m1, err := store.AppendMessage(sess.ID, SenderUser, "hello")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	m2, _ := store.AppendMessage(sess.ID, SenderAssistant, "Hel")
	if m1.SequenceNumber != 1 || m2.SequenceNumber != 2 {
		t.Errorf("sequence = %d, %d, want 1, 2", m1.SequenceNumber, m2.SequenceNumber)
	}

	if err := store.AppendText(m2.ID, "lo"); err != nil {
		t.Fatalf("append text: %v", err)
	}

	msgs, err := store.RecentMessages(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Sender != SenderUser || msgs[0].Text != "hello" {
		t.Errorf("msg 0 = %+v", msgs[0])
	}
	if msgs[1].Sender != SenderAssistant || msgs[1].Text != "Hello" {
		t.Errorf("msg 1 text = %q, want %q", msgs[1].Text, "Hello")
	}
}

func TestAppendTextUnknownMessage(t *testing.T) {
	store := openTestStore(t)
	if err := store.AppendText("missing", "x"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestRecentMessagesLimitAcrossSessions(t *testing.T) {
	store := openTestStore(t)
	old, _ := store.StartSession("ws://a/ws")
	store.AppendMessage(old.ID, SenderUser, "old 1")
	store.AppendMessage(old.ID, SenderAssistant, "old 2")

	cur, _ := store.StartSession("ws://a/ws")
	store.AppendMessage(cur.ID, SenderUser, "new 1")
	store.AppendMessage(cur.ID, SenderAssistant, "new 2")

	msgs, err := store.RecentMessages(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	want := []string{"old 2", "new 1", "new 2"}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %d, want %d", len(msgs), len(want))
	}
	for i, w := range want {
		if msgs[i].Text != w {
			t.Errorf("msg %d = %q, want %q", i, msgs[i].Text, w)
		}
	}

	if msgs, _ := store.RecentMessages(0); msgs != nil {
		t.Errorf("limit 0 returned %d messages", len(msgs))
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aris.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sess, _ := store.StartSession("ws://a/ws")
	store.AppendMessage(sess.ID, SenderUser, "persisted")
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	msgs, _ := store.RecentMessages(10)
	if len(msgs) != 1 || msgs[0].Text != "persisted" {
		t.Errorf("messages after reopen = %+v", msgs)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Unix(1700000000, 500000000)
	got := timeFromUnix(unixFromTime(ts))
	if d := got.Sub(ts); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("round trip drift = %v", d)
	}
}
