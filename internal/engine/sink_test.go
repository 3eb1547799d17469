package engine

import (
	"strconv"
	"testing"
)

func TestPushLatestNeverBlocksWithoutConsumer(t *testing.T) {
	out := make(chan GenerationSnapshot, 1)
	// No consumer at all: every push must return immediately, keeping only
	// the newest snapshot buffered.
	for i := 0; i < 1000; i++ {
		pushLatest(out, GenerationSnapshot{Text: strconv.Itoa(i)})
	}
	select {
	case snap := <-out:
		if snap.Text != "999" {
			t.Fatalf("buffered snapshot=%q, want newest", snap.Text)
		}
	default:
		t.Fatal("no snapshot buffered")
	}
}

func TestPushLatestDeliversCumulativeState(t *testing.T) {
	out := make(chan GenerationSnapshot, 1)
	done := make(chan string)
	go func() {
		var last string
		for snap := range out {
			// Snapshots are cumulative; every observed one must extend the
			// previous.
			if len(snap.Text) < len(last) || snap.Text[:len(last)] != last {
				done <- "snapshot " + snap.Text + " does not extend " + last
				return
			}
			last = snap.Text
		}
		done <- last
	}()

	text := ""
	for i := 0; i < 100; i++ {
		text += "a"
		pushLatest(out, GenerationSnapshot{Text: text})
	}
	// The final snapshot is delivered with a blocking send, like the
	// generation worker does once the model call has returned.
	out <- GenerationSnapshot{Text: text + "!"}
	close(out)

	if got := <-done; got != text+"!" {
		t.Fatalf("consumer ended with %q", got)
	}
}
