package main

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// progressEvent is published once per simulated year (single-trial runs)
// or once per completed trial (Monte Carlo runs).
type progressEvent struct {
	Scenario  string    `json:"scenario"`
	Fraction  float64   `json:"fraction"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// progressPublisher publishes progressEvent messages to NATS subject
// "kigalisim.progress.<scenario>", following the teacher's plain
// nats.Conn.Publish usage in internal/events/nats.go (minus JetStream,
// which a fire-and-forget progress stream doesn't need). A nil
// connection makes publish a no-op.
type progressPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func newProgressPublisher(url string, logger *slog.Logger) *progressPublisher {
	if url == "" {
		return &progressPublisher{}
	}

	nc, err := nats.Connect(url, nats.MaxReconnects(3))
	if err != nil {
		logger.Error("nats connect failed, progress publishing disabled", "error", err)
		return &progressPublisher{}
	}
	return &progressPublisher{nc: nc, logger: logger}
}

func (p *progressPublisher) publish(scenario string, fraction float64, completed, total int) {
	if p.nc == nil {
		return
	}

	payload, err := json.Marshal(progressEvent{
		Scenario:  scenario,
		Fraction:  fraction,
		Completed: completed,
		Total:     total,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	if err := p.nc.Publish("kigalisim.progress."+scenario, payload); err != nil {
		p.logger.Error("nats publish failed", "error", err)
	}
}

func (p *progressPublisher) close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
