package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"groupmeet/contract"
	"groupmeet/domain"
)

type MessageRepository struct {
	db        *badger.DB
	log       *slog.Logger
	publisher contract.IMessagePublisher // optional push-channel fanout
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, publisher contract.IMessagePublisher) MessageRepository {
	return MessageRepository{db: db, log: log, publisher: publisher}
}

type diskMessage struct {
	ID        uuid.UUID `json:"id"`
	GroupID   string    `json:"group_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// messageKey formats "msg:{group}:{timestamp_padded}:{uuid}" so a forward
// prefix scan yields messages in CreatedAt ascending order. The 19-digit
// zero padding keeps lexicographic and chronological order aligned; the
// uuid disambiguates two messages landing on the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.GroupID, m.CreatedAt.UnixNano(), m.ID))
}

// Insert assigns server-side id and timestamp when absent, persists the
// message, and fans it out on the push channel after commit. Publish
// failures are logged, not surfaced: the row is durable either way and
// subscribers recover on their next snapshot.
func (r MessageRepository) Insert(ctx context.Context, message domain.Message) (domain.Message, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), data)
	})
	if err != nil {
		return domain.Message{}, classify(err)
	}

	if r.publisher != nil {
		if err := r.publisher.PublishMessage(ctx, message); err != nil {
			r.log.Warn("Push-channel publish failed", "message", message.ID, "err", err)
		}
	}
	return message, nil
}

// ListForGroup returns the full snapshot for a group ordered by CreatedAt
// ascending. No pagination cursor in this design.
func (r MessageRepository) ListForGroup(_ context.Context, groupID string) ([]domain.Message, error) {
	prefix := []byte("msg:" + groupID + ":")
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			messages = append(messages, toMessage(disk))
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return messages, nil
}

func fromMessage(m domain.Message) diskMessage {
	return diskMessage{
		ID:        m.ID,
		GroupID:   m.GroupID,
		Sender:    m.Sender,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}

func toMessage(d diskMessage) domain.Message {
	return domain.Message{
		ID:        d.ID,
		GroupID:   d.GroupID,
		Sender:    d.Sender,
		Text:      d.Text,
		CreatedAt: d.CreatedAt,
	}
}
