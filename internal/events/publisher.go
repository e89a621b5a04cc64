package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/crabcut/shortener/internal/model"
)

// Publisher emits click telemetry to the message bus. Delivery is best-effort
// and at-most-once: failures are logged and dropped, never retried, and a
// publish never blocks on broker acknowledgement.
type Publisher interface {
	Publish(event model.ClickEvent)
	Close()
}

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = (*NopPublisher)(nil)
)

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

type NATSConfig struct {
	URL     string
	Subject string // subject prefix, events go to <subject>.<shortCode>
}

func NewNATSPublisher(cfg NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("shortener-click-publisher"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{
		conn:    conn,
		subject: cfg.Subject,
		logger:  logger,
	}, nil
}

// Publish serializes the event and hands it to NATS keyed by short code, so
// the downstream consumer can partition per alias.
func (p *NATSPublisher) Publish(event model.ClickEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal click event",
			zap.String("short_code", event.ShortCode),
			zap.Error(err))
		return
	}

	subject := p.EventSubject(event.ShortCode)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish click event",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

// EventSubject returns the bus subject for one short code.
func (p *NATSPublisher) EventSubject(shortCode string) string {
	return p.subject + "." + shortCode
}

func (p *NATSPublisher) Close() {
	// Flush pending publishes before dropping the connection.
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn("failed to flush NATS connection", zap.Error(err))
	}
	p.conn.Close()
}

// NopPublisher serves when no bus is configured; analytics is supplementary,
// so the service runs without it.
type NopPublisher struct{}

func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

func (n *NopPublisher) Publish(event model.ClickEvent) {}

func (n *NopPublisher) Close() {}
