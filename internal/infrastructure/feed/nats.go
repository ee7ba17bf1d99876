package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/event"
)

// NATSConfig holds the change feed connection settings
type NATSConfig struct {
	URL     string
	Subject string
	Name    string
}

// natsConn is the subset of *nats.Conn the publisher needs
type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
	IsClosed() bool
}

// NATSPublisher publishes change feed events as JSON on <subject>.<event type>
type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  *zap.Logger
}

// ConnectNATS dials the server and returns a publisher. Reconnects are handled by the client.
func ConnectNATS(cfg NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	name := cfg.Name
	if name == "" {
		name = "grc-approval"
	}

	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info("NATS change feed connected", zap.String("url", nc.ConnectedUrl()), zap.String("subject", cfg.Subject))
	return newNATSPublisher(nc, cfg.Subject, logger), nil
}

func newNATSPublisher(conn natsConn, subject string, logger *zap.Logger) *NATSPublisher {
	if subject == "" {
		subject = "grc.workflow"
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

// SubjectFor returns the subject an event type is published on
func (p *NATSPublisher) SubjectFor(t event.Type) string {
	return p.subject + "." + t.String()
}

// Publish encodes evt and hands it to the client's outbound buffer
func (p *NATSPublisher) Publish(ctx context.Context, evt *event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", evt.ID, err)
	}

	subj := p.SubjectFor(evt.Type)
	if err := p.conn.Publish(subj, data); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", subj, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

var _ port.EventPublisher = (*NATSPublisher)(nil)
