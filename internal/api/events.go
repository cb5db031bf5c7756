package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainInsight "kpiscout/domain/insight"
)

// Run event types
const (
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// RunEvent announces the outcome of an analysis run
type RunEvent struct {
	Type        string    `json:"event_type"`
	Source      string    `json:"source"`
	RunID       string    `json:"run_id,omitempty"`
	DatasetName string    `json:"dataset_name"`
	Cards       int       `json:"cards"`
	Warnings    int       `json:"warnings"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// CompletedEvent describes a finished run
func CompletedEvent(source string, results *domainInsight.Results) RunEvent {
	return RunEvent{
		Type:        EventRunCompleted,
		Source:      source,
		RunID:       results.RunID.String(),
		DatasetName: results.DatasetName,
		Cards:       len(results.Insights.Cards),
		Warnings:    len(results.Warnings),
		Timestamp:   time.Now(),
	}
}

// FailedEvent describes a run that could not complete
func FailedEvent(source, dataset string, err error) RunEvent {
	return RunEvent{
		Type:        EventRunFailed,
		Source:      source,
		DatasetName: dataset,
		Error:       err.Error(),
		Timestamp:   time.Now(),
	}
}

// EventHub fans run events out to Server-Sent Events subscribers
type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan RunEvent]struct{}
	keepAlive time.Duration
	logger    *zap.Logger
}

// NewEventHub creates a hub
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		clients:   make(map[chan RunEvent]struct{}),
		keepAlive: 30 * time.Second,
		logger:    logger,
	}
}

// Subscribe registers a client; the returned func unregisters it
func (h *EventHub) Subscribe() (<-chan RunEvent, func()) {
	ch := make(chan RunEvent, 10)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends an event to every client. Slow clients miss events rather
// than block the publisher.
func (h *EventHub) Publish(event RunEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.logger.Warn("event client channel full, skipping event", zap.String("event", event.Type))
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleSSE streams run events until the client disconnects
func (h *EventHub) HandleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal run event", zap.Error(err))
				continue
			}
			c.SSEvent(event.Type, string(payload))
		case <-ticker.C:
			c.SSEvent("ping", `{"status":"alive"}`)
		case <-ctx.Done():
			return
		}
		c.Writer.Flush()
	}
}
