package ws

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// reconnectDelay is advertised to EventSource clients in the ready frame.
const reconnectDelay = 3 * time.Second

// SSEClient streams Server-Sent Events over an HTTP response writer.
type SSEClient struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	log     *slog.Logger
	closed  bool
	seq     uint64
	last    time.Time
}

// NewSSEClient builds an SSE client instance.
func NewSSEClient(writer io.Writer, flusher http.Flusher, logger *slog.Logger) *SSEClient {
	return &SSEClient{writer: writer, flusher: flusher, log: logger, last: time.Now().UTC()}
}

// Ready writes the initial event naming the subscribed table along with the reconnect hint.
func (c *SSEClient) Ready(table string) error {
	data, err := json.Marshal(map[string]string{"table": table})
	if err != nil {
		return err
	}
	return c.write(fmt.Sprintf("retry: %d\nevent: ready\ndata: %s\n\n", reconnectDelay.Milliseconds(), data), "ready")
}

// Send emits a change event. Every change carries an increasing id.
func (c *SSEClient) Send(payload []byte) error {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.mu.Unlock()
	return c.write(fmt.Sprintf("event: change\nid: %d\n%s\n", id, dataLines(payload)), "change")
}

// Heartbeat emits a comment frame to keep proxies from closing the connection.
func (c *SSEClient) Heartbeat() error {
	return c.write(": ping\n\n", "heartbeat")
}

func (c *SSEClient) write(frame, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if _, err := io.WriteString(c.writer, frame); err != nil {
		c.closed = true
		c.log.Warn("sse write failed", "kind", kind, "error", err)
		return err
	}
	c.flusher.Flush()
	c.last = time.Now().UTC()
	return nil
}

// dataLines splits payload so embedded newlines stay inside the event.
func dataLines(payload []byte) string {
	var b strings.Builder
	for _, line := range strings.Split(string(payload), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Close marks the stream as closed.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Closed reports whether the stream stopped accepting writes.
func (c *SSEClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LastActivity reports the timestamp of the most recent successful write.
func (c *SSEClient) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
