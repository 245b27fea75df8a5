package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"streamCastAPI/internal/types/event"
)

const (
	streamInitialBackoff = time.Second
	streamMaxBackoff     = 30 * time.Second
)

// StreamReader consumes the server's SSE feed and republishes each event
// onto a Bus. A dropped connection reconnects with capped exponential
// backoff; the stream is best effort, so missed events are not replayed.
type StreamReader struct {
	url        string
	bus        *Bus
	httpClient *http.Client
}

func NewStreamReader(url string, bus *Bus) *StreamReader {
	return &StreamReader{
		url: url,
		bus: bus,
		// No overall timeout; the SSE response body stays open for the
		// lifetime of the connection.
		httpClient: &http.Client{},
	}
}

// Run blocks, consuming the feed until ctx is cancelled.
func (s *StreamReader) Run(ctx context.Context) {
	backoff := streamInitialBackoff
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("Event stream disconnected: %v, reconnecting in %s", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > streamMaxBackoff {
			backoff = streamMaxBackoff
		}
	}
}

func (s *StreamReader) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			// Blank line terminates one SSE message.
			if eventName != "" || data.Len() > 0 {
				s.republish(eventName, data.String())
			}
			eventName = ""
			data.Reset()

		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Comment lines (":...") and unknown fields are ignored.
	}
	return scanner.Err()
}

func (s *StreamReader) republish(eventName, data string) {
	var ev event.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		log.Printf("Dropping malformed %s event: %v", eventName, err)
		return
	}
	if ev.Type == "" {
		ev.Type = eventName
	}
	s.bus.Emit(ev)
}
