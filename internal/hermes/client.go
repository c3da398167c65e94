// Package hermes publishes quill's domain events on NATS and subscribes to
// the swarm subjects quill reacts to.
package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/quill/internal/metrics"
)

const (
	// HeaderEventID carries a unique id per published message. It doubles as
	// the JetStream de-duplication key when the subject is stream-backed.
	HeaderEventID = nats.MsgIdHdr
	HeaderSource  = "Quill-Source"
)

// msgPublisher is the slice of *nats.Conn used for publishing.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

type Client struct {
	conn   *nats.Conn
	pub    msgPublisher
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("quill"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats async error", "subject", subject, "error", err)
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, pub: nc, logger: logger}, nil
}

// Emit publishes an event on its own subject.
func (c *Client) Emit(e Event) error {
	return c.Publish(e.Subject(), e)
}

// Publish sends data as JSON with an event id header.
func (c *Client) Publish(subject string, data any) error {
	msg, err := newMsg(subject, data)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		return err
	}
	if err := c.pub.PublishMsg(msg); err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
	return nil
}

func newMsg(subject string, data any) (*nats.Msg, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(HeaderEventID, uuid.NewString())
	msg.Header.Set(HeaderSource, "quill")
	return msg, nil
}

// Subscribe registers handler on subject. A panicking handler is logged and
// the subscription keeps running.
func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		c.dispatch(handler, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) dispatch(handler func(subject string, data []byte), msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EventsHandled.WithLabelValues(msg.Subject, "panic").Inc()
			c.logger.Error("event handler panicked", "subject", msg.Subject, "panic", r)
		}
	}()
	handler(msg.Subject, msg.Data)
	metrics.EventsHandled.WithLabelValues(msg.Subject, "ok").Inc()
}

// Close drains subscriptions so in-flight handlers finish, then closes.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("nats drain failed", "error", err)
		c.conn.Close()
	}
}
