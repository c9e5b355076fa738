package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// stallingProvider streams one delta and then hangs until the client
// gives up, the behavior of a provider that stops producing tokens.
func stallingProvider(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatalf("response writer does not support flushing")
		}
		fmt.Fprintf(w, "data: %s\n\n", `{"id":"1","object":"chat.completion.chunk","created":1,"model":"test","choices":[{"index":0,"delta":{"content":"par"}}]}`)
		flusher.Flush()
		<-r.Context().Done()
	}))
}

func TestStreamTimeoutDeliversErrorChunk(t *testing.T) {
	srv := stallingProvider(t)
	defer srv.Close()

	c := NewOpenAI("test-key", srv.URL+"/v1", "", "", 16, 0.5, 150*time.Millisecond)

	// The timeout expiring while the consumer is between reads must not
	// swallow the terminal chunk, so run the scenario several times.
	for i := 0; i < 10; i++ {
		chunks, err := c.Stream(context.Background(), "test-model", []Message{{Role: "user", Content: "hello"}})
		if err != nil {
			t.Fatalf("iteration %d: open stream: %v", i, err)
		}
		var sawErr bool
		for ch := range chunks {
			if ch.Finished {
				t.Fatalf("iteration %d: finished chunk on a timed-out stream", i)
			}
			if ch.Err != nil {
				sawErr = true
			}
		}
		if !sawErr {
			t.Fatalf("iteration %d: stream closed without a terminal error chunk", i)
		}
	}
}

func TestStreamCancelledCallerStopsDelivery(t *testing.T) {
	srv := stallingProvider(t)
	defer srv.Close()

	c := NewOpenAI("test-key", srv.URL+"/v1", "", "", 16, 0.5, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := c.Stream(ctx, "test-model", []Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-chunks:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("stream did not close after caller cancellation")
		}
	}
}
