// Package tracing ships nested trace/span events to Langfuse over its public
// batch ingestion API. Every entry point is nil-safe and every transport
// failure is logged and swallowed: tracing must never change the functional
// result of a request.
package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ingestionPath = "/api/public/ingestion"

type Config struct {
	Host          string
	PublicKey     string
	SecretKey     string
	FlushAt       int
	FlushInterval time.Duration
}

type event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Body      map[string]any `json:"body"`
}

type batchPayload struct {
	Batch []event `json:"batch"`
}

// Tracer batches events and posts them from a background goroutine. A nil
// *Tracer is valid and disables tracing entirely.
type Tracer struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, logger *zap.Logger) *Tracer {
	if cfg.FlushAt <= 0 {
		cfg.FlushAt = 10
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	t := &Tracer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		events:     make(chan event, 1000),
		done:       make(chan struct{}),
	}

	t.wg.Add(1)
	go t.flushLoop()

	return t
}

// Enabled reports whether events will actually be shipped.
func (t *Tracer) Enabled() bool {
	return t != nil
}

// Close drains pending events and stops the flush goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.done)
	t.wg.Wait()
}

func (t *Tracer) flushLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]event, 0, t.cfg.FlushAt)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		t.send(batch)
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-t.events:
			batch = append(batch, ev)
			if len(batch) >= t.cfg.FlushAt {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-t.done:
			// Drain whatever is still queued before the final flush.
			for {
				select {
				case ev := <-t.events:
					batch = append(batch, ev)
					if len(batch) >= t.cfg.FlushAt {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (t *Tracer) send(batch []event) {
	payload, err := json.Marshal(batchPayload{Batch: batch})
	if err != nil {
		t.logger.Warn("failed to marshal trace batch", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Host+ingestionPath, bytes.NewReader(payload))
	if err != nil {
		t.logger.Warn("failed to build trace request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(t.cfg.PublicKey, t.cfg.SecretKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("failed to ship trace batch", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		t.logger.Warn("trace ingestion rejected",
			zap.Int("status", resp.StatusCode),
			zap.Int("events", len(batch)))
	}
}

func (t *Tracer) enqueue(eventType string, body map[string]any) {
	if t == nil {
		return
	}
	ev := event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Body:      body,
	}
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("trace queue full, dropping event", zap.String("type", eventType))
	}
}

// Trace is the root of one request's span tree.
type Trace struct {
	tracer *Tracer
	id     string
}

// StartTrace opens a new trace. Returns nil (safe everywhere) when the
// tracer is disabled.
func (t *Tracer) StartTrace(name, sessionID, input string, metadata map[string]any, tags []string) *Trace {
	if t == nil {
		return nil
	}
	tr := &Trace{tracer: t, id: uuid.NewString()}
	t.enqueue("trace-create", map[string]any{
		"id":        tr.id,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"name":      name,
		"sessionId": sessionID,
		"input":     input,
		"metadata":  metadata,
		"tags":      tags,
	})
	return tr
}

func (tr *Trace) ID() string {
	if tr == nil {
		return ""
	}
	return tr.id
}

// Update records the trace's final output and metadata.
func (tr *Trace) Update(output string, metadata map[string]any) {
	if tr == nil {
		return
	}
	tr.tracer.enqueue("trace-create", map[string]any{
		"id":       tr.id,
		"output":   output,
		"metadata": metadata,
	})
}

// Span opens a root-level span under this trace.
func (tr *Trace) Span(name, input string) *Span {
	if tr == nil {
		return nil
	}
	return newSpan(tr.tracer, tr.id, "", name, input)
}

// Span is one traced unit of work. Spans nest to mirror the call graph.
type Span struct {
	tracer   *Tracer
	traceID  string
	parentID string
	id       string
}

func newSpan(t *Tracer, traceID, parentID, name, input string) *Span {
	s := &Span{tracer: t, traceID: traceID, parentID: parentID, id: uuid.NewString()}
	body := map[string]any{
		"id":        s.id,
		"traceId":   traceID,
		"name":      name,
		"startTime": time.Now().UTC().Format(time.RFC3339Nano),
		"input":     input,
	}
	if parentID != "" {
		body["parentObservationId"] = parentID
	}
	t.enqueue("span-create", body)
	return s
}

// Child opens a nested span. Safe on a nil receiver.
func (s *Span) Child(name, input string) *Span {
	if s == nil {
		return nil
	}
	return newSpan(s.tracer, s.traceID, s.id, name, input)
}

// End closes the span with its output snapshot and metadata.
func (s *Span) End(output string, metadata map[string]any) {
	if s == nil {
		return
	}
	s.tracer.enqueue("span-update", map[string]any{
		"id":       s.id,
		"traceId":  s.traceID,
		"endTime":  time.Now().UTC().Format(time.RFC3339Nano),
		"output":   output,
		"metadata": metadata,
	})
}

// String implements fmt.Stringer for debug logging.
func (s *Span) String() string {
	if s == nil {
		return "span(disabled)"
	}
	return fmt.Sprintf("span(%s)", s.id)
}
