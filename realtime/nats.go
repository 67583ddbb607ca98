// Package realtime is the push channel: message inserts fan out over
// NATS on per-group subjects, and clients subscribe filtered to their
// active group.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"groupmeet/contract"
	"groupmeet/domain"
	"groupmeet/errors"
)

const (
	messageSubjectPrefix = "groupmeet.messages."

	defaultMaxReconnects = 10
	defaultReconnectWait = 2 * time.Second
)

// MessageSubject returns the per-group subject. Subscribing to a single
// subject is the server-side filter: a client only ever receives events
// for the group it asked for.
func MessageSubject(groupID string) string {
	return messageSubjectPrefix + groupID
}

// wireMessage is the on-the-wire message encoding.
type wireMessage struct {
	ID        uuid.UUID `json:"id"`
	GroupID   string    `json:"group_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Channel struct {
	log  *slog.Logger
	conn *nats.Conn
}

// Connect dials the NATS server with reconnection enabled.
func Connect(log *slog.Logger, url, clientName string) (*Channel, error) {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(defaultMaxReconnects),
		nats.ReconnectWait(defaultReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("Push channel disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Push channel reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting push channel: %w", err)
	}
	return &Channel{log: log, conn: conn}, nil
}

// PublishMessage broadcasts a committed message to its group's subject.
func (c *Channel) PublishMessage(_ context.Context, message domain.Message) error {
	data, err := json.Marshal(wireMessage{
		ID:        message.ID,
		GroupID:   message.GroupID,
		Sender:    message.Sender,
		Text:      message.Text,
		CreatedAt: message.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if err := c.conn.Publish(MessageSubject(message.GroupID), data); err != nil {
		return errors.Transient(err)
	}
	return nil
}

// SubscribeMessages opens the single live subscription for groupID.
// Undecodable payloads are logged and skipped, never delivered.
func (c *Channel) SubscribeMessages(_ context.Context, groupID string,
	handler func(domain.Message)) (contract.ISubscription, error) {
	sub, err := c.conn.Subscribe(MessageSubject(groupID), func(msg *nats.Msg) {
		var wire wireMessage
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.log.Warn("Dropping undecodable push event", "subject", msg.Subject, "err", err)
			return
		}
		handler(domain.Message{
			ID:        wire.ID,
			GroupID:   wire.GroupID,
			Sender:    wire.Sender,
			Text:      wire.Text,
			CreatedAt: wire.CreatedAt,
		})
	})
	if err != nil {
		return nil, errors.Transient(err)
	}
	return natsSubscription{sub: sub}, nil
}

// Probe reports whether the push-channel connection is currently up.
// The retry layer uses it between attempts to refresh connectivity state.
func (c *Channel) Probe() contract.IConnectivityProbe {
	return probe{conn: c.conn}
}

func (c *Channel) Close() {
	c.conn.Close()
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

type probe struct {
	conn *nats.Conn
}

func (p probe) Check(_ context.Context) bool {
	return p.conn.Status() == nats.CONNECTED
}
