package db

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestRecorderMergesAssistantChunks(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, "ws://a/ws", zaptest.NewLogger(t))

	rec.User("what's the weather")
	rec.Assistant("It is ", false)
	rec.Assistant("sunny.", true)
	rec.User("thanks")
	rec.Assistant("Any time.", false)
	rec.Close()

	msgs, err := store.RecentMessages(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	want := []struct {
		sender Sender
		text   string
	}{
		{SenderUser, "what's the weather"},
		{SenderAssistant, "It is sunny."},
		{SenderUser, "thanks"},
		{SenderAssistant, "Any time."},
	}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %d, want %d", len(msgs), len(want))
	}
	for i, w := range want {
		if msgs[i].Sender != w.sender || msgs[i].Text != w.text {
			t.Errorf("msg %d = %s %q, want %s %q", i, msgs[i].Sender, msgs[i].Text, w.sender, w.text)
		}
	}

	sess, _ := store.LatestSession()
	if sess == nil || sess.EndedAt == nil {
		t.Error("session not ended on close")
	}
}

func TestRecorderExtendWithoutOpenMessage(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, "ws://a/ws", nil)
	rec.Assistant("orphan", true)
	rec.Close()

	msgs, _ := store.RecentMessages(10)
	if len(msgs) != 1 || msgs[0].Text != "orphan" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestRecorderCloseIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, "ws://a/ws", nil)
	rec.Close()
	rec.Close()
	rec.User("after close")
}

func TestRecorderBreakStartsNewAssistantMessage(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, "ws://a/ws", zaptest.NewLogger(t))

	rec.Assistant("first reply.", false)
	rec.Break()
	rec.Assistant("after reconnect", true)
	rec.Assistant(" continues", true)
	rec.Close()

	msgs, err := store.RecentMessages(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2: %+v", len(msgs), msgs)
	}
	if msgs[0].Text != "first reply." {
		t.Errorf("msg 0 = %q, want %q", msgs[0].Text, "first reply.")
	}
	if msgs[1].Text != "after reconnect continues" {
		t.Errorf("msg 1 = %q, want %q", msgs[1].Text, "after reconnect continues")
	}
}
