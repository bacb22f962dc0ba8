package http

import (
	"testing"
	"time"
)

func TestOutboxPushStopsWhenWriterGone(t *testing.T) {
	out := newOutbox(1)
	if !out.push(outboundMessage[any]{Type: "ready"}) {
		t.Fatalf("expected first push to be buffered")
	}

	// Writer exits on a write error with the buffer still full.
	close(out.done)

	pushed := make(chan bool, 1)
	go func() {
		pushed <- out.push(outboundMessage[any]{Type: "ack"})
	}()
	select {
	case ok := <-pushed:
		if ok {
			t.Fatalf("expected push to report the writer as gone")
		}
	case <-time.After(time.Second):
		t.Fatalf("push blocked after the writer exited")
	}
}

func TestOutboxCloseWaitsForWriter(t *testing.T) {
	out := newOutbox(4)
	var written []string
	go func() {
		defer close(out.done)
		for msg := range out.send {
			written = append(written, msg.Type)
		}
	}()
	out.push(outboundMessage[any]{Type: "ready"})
	out.push(outboundMessage[any]{Type: "ack"})
	out.close()
	if len(written) != 2 || written[0] != "ready" || written[1] != "ack" {
		t.Fatalf("expected writer to drain in order, got %v", written)
	}
}
