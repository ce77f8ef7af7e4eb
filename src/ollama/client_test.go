package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kaiwa/src/config"
	apperrors "kaiwa/src/errors"
	"kaiwa/src/relay"
)

func newTestClient(url string) *Client {
	return NewClient(&config.OllamaConfig{
		URL:        url,
		Model:      "mistral",
		BufferSize: 8,
	}, nil)
}

func testRequest() ChatRequest {
	return ChatRequest{
		Model:    "mistral",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		Stream:   true,
	}
}

// ndjsonHandler streams the given lines and flushes after each one.
func ndjsonHandler(lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}
}

func collect(t *testing.T, pipe *relay.Pipe) []relay.Message {
	t.Helper()

	var msgs []relay.Message
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-pipe.Messages():
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		case <-timeout:
			t.Fatal("timed out draining pipe")
		}
	}
}

func TestChatStreamsFragmentsInOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(ndjsonHandler([]string{
		`{"model":"mistral","created_at":"t0","message":{"role":"assistant","content":"A"},"done":false}`,
		`{"model":"mistral","created_at":"t1","message":{"role":"assistant","content":"B"},"done":false}`,
		`{"model":"mistral","created_at":"t2","message":{"role":"assistant","content":"C"},"done":false}`,
		`{"model":"mistral","created_at":"t3","done":true}`,
	}))
	defer srv.Close()

	pipe := newTestClient(srv.URL).Chat(context.Background(), testRequest(), nil)
	msgs := collect(t, pipe)

	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4: %+v", len(msgs), msgs)
	}
	for i, want := range []string{"A", "B", "C"} {
		if msgs[i].Kind != relay.KindData || msgs[i].Fragment != want {
			t.Errorf("message %d = %+v, want data %q", i, msgs[i], want)
		}
	}
	if msgs[3].Kind != relay.KindEnd {
		t.Errorf("final message = %+v, want end", msgs[3])
	}
}

func TestChatAppliesTransform(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(ndjsonHandler([]string{
		`{"message":{"role":"assistant","content":"keep"},"done":false}`,
		`{"message":{"role":"assistant","content":"drop"},"done":false}`,
		`{"done":true}`,
	}))
	defer srv.Close()

	transform := func(s string) string {
		if s == "drop" {
			return ""
		}
		return strings.ToUpper(s)
	}

	pipe := newTestClient(srv.URL).Chat(context.Background(), testRequest(), transform)
	msgs := collect(t, pipe)

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(msgs), msgs)
	}
	if msgs[0].Fragment != "KEEP" {
		t.Errorf("fragment = %q, want KEEP", msgs[0].Fragment)
	}
}

func TestChatDropsUndecodableChunks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(ndjsonHandler([]string{
		`this is not json`,
		`{"message":{"role":"assistant","content":"A"},"done":false}`,
		`{"truncated":`,
		`{"message":{"role":"assistant","content":"B"},"done":false}`,
		`{"done":true}`,
	}))
	defer srv.Close()

	pipe := newTestClient(srv.URL).Chat(context.Background(), testRequest(), nil)
	msgs := collect(t, pipe)

	var fragments []string
	for _, msg := range msgs {
		if msg.Kind == relay.KindData {
			fragments = append(fragments, msg.Fragment)
		}
	}
	if len(fragments) != 2 || fragments[0] != "A" || fragments[1] != "B" {
		t.Errorf("fragments = %v, want [A B]", fragments)
	}
}

func TestChatStopsReadingAfterDone(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(ndjsonHandler([]string{
		`{"message":{"role":"assistant","content":"A"},"done":false}`,
		`{"done":true}`,
		`{"message":{"role":"assistant","content":"ghost"},"done":false}`,
	}))
	defer srv.Close()

	pipe := newTestClient(srv.URL).Chat(context.Background(), testRequest(), nil)
	msgs := collect(t, pipe)

	for _, msg := range msgs {
		if msg.Kind == relay.KindData && msg.Fragment == "ghost" {
			t.Error("fragment emitted after completion envelope")
		}
	}
	if msgs[len(msgs)-1].Kind != relay.KindEnd {
		t.Errorf("final message = %+v, want end", msgs[len(msgs)-1])
	}
}

func TestChatConnectRefused(t *testing.T) {
	t.Parallel()

	// Grab a port that refuses connections.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	pipe := newTestClient(url).Chat(context.Background(), testRequest(), nil)
	msgs := collect(t, pipe)

	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want exactly 1 error: %+v", len(msgs), msgs)
	}
	if msgs[0].Kind != relay.KindError || msgs[0].Err == nil {
		t.Errorf("message = %+v, want error", msgs[0])
	}
}

func TestChatNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	pipe := newTestClient(srv.URL).Chat(context.Background(), testRequest(), nil)
	msgs := collect(t, pipe)

	if len(msgs) != 1 || msgs[0].Kind != relay.KindError {
		t.Fatalf("messages = %+v, want exactly 1 error", msgs)
	}

	var upstreamErr *apperrors.UpstreamError
	if !errors.As(msgs[0].Err, &upstreamErr) {
		t.Fatalf("err = %v, want *UpstreamError", msgs[0].Err)
	}
	if upstreamErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", upstreamErr.StatusCode)
	}
}

func TestChatMidStreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"A"},"done":false}`)
		flusher.Flush()
		// Drop the connection without a terminal chunk.
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	pipe := newTestClient(srv.URL).Chat(context.Background(), testRequest(), nil)
	msgs := collect(t, pipe)

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want data then error: %+v", len(msgs), msgs)
	}
	if msgs[0].Kind != relay.KindData || msgs[0].Fragment != "A" {
		t.Errorf("first message = %+v, want data A", msgs[0])
	}
	if msgs[1].Kind != relay.KindError {
		t.Errorf("second message = %+v, want terminal error", msgs[1])
	}
}

func TestChatIdleTimeout(t *testing.T) {
	t.Parallel()

	stall := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"A"},"done":false}`)
		flusher.Flush()
		<-stall
	}))
	defer srv.Close()
	defer close(stall)

	client := NewClient(&config.OllamaConfig{
		URL:                srv.URL,
		Model:              "mistral",
		BufferSize:         8,
		ReadTimeoutSeconds: 1,
	}, nil)

	pipe := client.Chat(context.Background(), testRequest(), nil)
	msgs := collect(t, pipe)

	if len(msgs) != 2 || msgs[1].Kind != relay.KindError {
		t.Fatalf("messages = %+v, want data then timeout error", msgs)
	}
	if !errors.Is(msgs[1].Err, apperrors.ErrUpstreamTimeout) {
		t.Errorf("err = %v, want ErrUpstreamTimeout", msgs[1].Err)
	}
}

func TestChatStopsWhenConsumerDisconnects(t *testing.T) {
	t.Parallel()

	requestDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(requestDone)
		flusher := w.(http.Flusher)
		for i := 0; ; i++ {
			if _, err := fmt.Fprintf(w, `{"message":{"role":"assistant","content":"f%d"},"done":false}`+"\n", i); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pipe := newTestClient(srv.URL).Chat(ctx, testRequest(), nil)

	// Read one fragment, then walk away like a closed client connection.
	<-pipe.Messages()
	pipe.Disconnect()
	cancel()

	select {
	case <-requestDone:
	case <-time.After(5 * time.Second):
		t.Fatal("producer kept the upstream connection open after disconnect")
	}
}

func TestHealthy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if !client.Healthy(context.Background()) {
		t.Error("Healthy = false against live upstream")
	}

	down := newTestClient("http://127.0.0.1:1")
	if down.Healthy(context.Background()) {
		t.Error("Healthy = true against unreachable upstream")
	}
}
