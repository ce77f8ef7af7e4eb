// Package ollama streams chat generations from a local Ollama instance.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"kaiwa/src/config"
	apperrors "kaiwa/src/errors"
	"kaiwa/src/relay"
)

// ChatRequest is the upstream request envelope. It is built once per client
// request and immutable for the duration of the call.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatStreamResponse is one decoded unit of the newline-delimited JSON
// stream. Message is absent on keepalive and final envelopes.
type ChatStreamResponse struct {
	Model     string       `json:"model"`
	CreatedAt string       `json:"created_at"`
	Message   *ChatMessage `json:"message"`
	Done      bool         `json:"done"`
}

// TransformFunc rewrites a fragment before it enters the relay pipe.
// Returning "" drops the fragment.
type TransformFunc func(string) string

const scannerBufferSize = 1024 * 1024

type Client struct {
	baseURL     string
	model       string
	bufferSize  int
	readTimeout time.Duration

	// client has no overall timeout: generations stream for as long as the
	// model keeps producing. probeClient is for short health checks only.
	client      *http.Client
	probeClient *http.Client

	logger *zap.Logger
}

func NewClient(cfg *config.OllamaConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     cfg.URL,
		model:       cfg.Model,
		bufferSize:  cfg.BufferSize,
		readTimeout: time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		client:      &http.Client{},
		probeClient: &http.Client{Timeout: 5 * time.Second},
		logger:      logger,
	}
}

// Model returns the configured generation model.
func (c *Client) Model() string {
	return c.model
}

// Chat opens the streaming generation request and returns the relay pipe the
// decode loop feeds. On connect failure the pipe yields exactly one error
// message and closes; after a successful connect it yields data fragments in
// upstream order followed by a single end or error marker. The caller must
// call Disconnect on the pipe when it stops reading.
func (c *Client) Chat(ctx context.Context, req ChatRequest, transform TransformFunc) *relay.Pipe {
	pipe := relay.NewPipe(c.bufferSize)
	go c.stream(ctx, req, transform, pipe)
	return pipe
}

func (c *Client) stream(ctx context.Context, req ChatRequest, transform TransformFunc, pipe *relay.Pipe) {
	defer pipe.Close()

	body, err := json.Marshal(req)
	if err != nil {
		pipe.Send(relay.Fail(&apperrors.UpstreamError{Op: "chat", Model: req.Model, Err: err}))
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		pipe.Send(relay.Fail(&apperrors.UpstreamError{Op: "chat", Model: req.Model, Err: err}))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		pipe.Send(relay.Fail(&apperrors.UpstreamError{Op: "chat", Model: req.Model, Err: err}))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		pipe.Send(relay.Fail(&apperrors.UpstreamError{
			Op:         "chat",
			Model:      req.Model,
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(msg)),
		}))
		return
	}

	var reader io.Reader = resp.Body
	var watchdog *idleWatchdog
	if c.readTimeout > 0 {
		watchdog = newIdleWatchdog(c.readTimeout, cancel)
		defer watchdog.Stop()
		reader = watchdog.Wrap(resp.Body)
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBufferSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var envelope ChatStreamResponse
		if err := json.Unmarshal(line, &envelope); err != nil {
			// Chunk boundaries are not guaranteed to align with JSON
			// documents; an undecodable unit is dropped, not fatal.
			c.logger.Debug("dropping undecodable chunk", zap.Int("bytes", len(line)))
			continue
		}

		if envelope.Message != nil {
			fragment := envelope.Message.Content
			if transform != nil {
				fragment = transform(fragment)
			}
			if fragment != "" {
				if err := pipe.Send(relay.Data(fragment)); err != nil {
					// Consumer disconnected; stop reading and release the
					// upstream connection.
					return
				}
			}
		}

		if envelope.Done {
			pipe.Send(relay.End())
			return
		}
	}

	if err := scanner.Err(); err != nil {
		switch {
		case watchdog != nil && watchdog.Fired():
			pipe.Send(relay.Fail(&apperrors.UpstreamError{
				Op: "stream", Model: req.Model, Err: apperrors.ErrUpstreamTimeout,
			}))
		case ctx.Err() != nil:
			// Caller went away; nobody is reading the pipe.
		default:
			pipe.Send(relay.Fail(&apperrors.UpstreamError{Op: "stream", Model: req.Model, Err: err}))
		}
		return
	}

	// Upstream closed the stream without a completion envelope.
	pipe.Send(relay.End())
}

// Healthy probes the upstream tags endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode == http.StatusOK
}

// idleWatchdog cancels the stream context when no bytes arrive for the
// configured duration.
type idleWatchdog struct {
	timer *time.Timer
	d     time.Duration
	fired atomic.Bool
}

func newIdleWatchdog(d time.Duration, cancel context.CancelFunc) *idleWatchdog {
	w := &idleWatchdog{d: d}
	w.timer = time.AfterFunc(d, func() {
		w.fired.Store(true)
		cancel()
	})
	return w
}

func (w *idleWatchdog) Wrap(r io.Reader) io.Reader {
	return watchdogReader{r: r, w: w}
}

func (w *idleWatchdog) Stop() {
	w.timer.Stop()
}

func (w *idleWatchdog) Fired() bool {
	return w.fired.Load()
}

type watchdogReader struct {
	r io.Reader
	w *idleWatchdog
}

func (r watchdogReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.w.timer.Reset(r.w.d)
	}
	return n, err
}
