package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectSMS   = "gotogether.notify.sms"
	SubjectEmail = "gotogether.notify.email"
)

type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes delivery jobs to NATS subjects consumed by the
// SMS and mail workers.
type NATSNotifier struct {
	conn publisher
}

// Connect dials url and returns a notifier plus the underlying connection,
// which the caller must drain on shutdown.
func Connect(url string, opts ...nats.Option) (*NATSNotifier, *nats.Conn, error) {
	opts = append([]nats.Option{nats.Name("gotogether-auth"), nats.MaxReconnects(-1)}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewNATSNotifier(nc), nc, nil
}

func NewNATSNotifier(conn publisher) *NATSNotifier {
	return &NATSNotifier{conn: conn}
}

func (n *NATSNotifier) SendOTP(ctx context.Context, phone, code string, expiresAt time.Time) error {
	return n.publish(ctx, SubjectSMS, Message{Kind: KindSMS, To: phone, Code: code, ExpiresAt: expiresAt})
}

func (n *NATSNotifier) SendEmailVerification(ctx context.Context, email, link string, expiresAt time.Time) error {
	return n.publish(ctx, SubjectEmail, Message{Kind: KindEmail, To: email, Link: link, ExpiresAt: expiresAt})
}

// publish flushes after every message so a dead connection surfaces as a
// delivery error instead of a silently buffered job.
func (n *NATSNotifier) publish(ctx context.Context, subject string, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}
