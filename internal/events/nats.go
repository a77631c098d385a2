package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// MsgPublisher is the subset of *nats.Conn used by NATSPublisher.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes checkout events as JSON on NATS subjects named
// <prefix>.<event type>, e.g. "shop.checkout.completed".
type NATSPublisher struct {
	conn    MsgPublisher
	prefix  string
	logger  *slog.Logger
	marshal func(any) ([]byte, error)
}

// NewNATSPublisher constructs a publisher on an established connection.
func NewNATSPublisher(conn MsgPublisher, prefix string, logger *slog.Logger) (*NATSPublisher, error) {
	if conn == nil {
		return nil, errors.New("nats publisher: connection is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{
		conn:    conn,
		prefix:  strings.Trim(strings.TrimSpace(prefix), "."),
		logger:  logger,
		marshal: json.Marshal,
	}, nil
}

// Connect dials NATS with reconnect settings suited to a long-running worker.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(t Type) string {
	if p.prefix == "" {
		return string(t)
	}
	return p.prefix + "." + string(t)
}

// Publish implements Publisher. The event ID doubles as the Nats-Msg-Id
// header so JetStream-backed consumers can deduplicate.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	data, err := p.marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}

	msg := nats.NewMsg(p.Subject(e.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, e.ID)
	msg.Header.Set("Checkout-Session", e.SessionID)
	if id := domain.RequestIDFromContext(ctx); id != "" {
		msg.Header.Set("Checkout-Request-Id", id)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}

	p.logger.Debug("checkout event published", "subject", msg.Subject, "event_id", e.ID, "session_id", e.SessionID)
	return nil
}
