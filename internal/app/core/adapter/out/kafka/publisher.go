package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
)

const (
	DefaultTopic = "ledger.transaction_committed"

	// EventTypeHeader 訊息 header，供下游依事件種類分流
	EventTypeHeader = "event_type"
	eventType       = "transaction_committed"
)

// Config Kafka 事件發布設定，Brokers 為空表示不發布
type Config struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// messageWriter *kafka.Writer 的子集
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 把 TransactionCommitted 寫到 Kafka
//
// 以帳戶 ID 當 key，同一帳戶的事件落在同一個 partition，維持提交順序。
type Publisher struct {
	writer messageWriter
}

func NewPublisher(cfg Config) *Publisher {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           batchTimeout,
			WriteTimeout:           time.Second,
			MaxAttempts:            3,
			AllowAutoTopicCreation: true,
		},
	}
}

// payload 事件的 wire 格式，金額固定兩位小數
type payload struct {
	TransactionID uint64    `json:"transaction_id"`
	RefID         string    `json:"ref_id"`
	AccountID     int64     `json:"account_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	NewBalance    string    `json:"new_balance"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func newMessage(event domain.TransactionCommitted) (kafka.Message, error) {
	value, err := json.Marshal(payload{
		TransactionID: event.TransactionID,
		RefID:         event.RefID.String(),
		AccountID:     event.AccountID,
		Type:          event.Type.String(),
		Amount:        domain.FormatAmount(event.Amount),
		NewBalance:    domain.FormatAmount(event.NewBalance),
		OccurredAt:    event.OccurredAt.UTC(),
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AccountID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(eventType)},
		},
		Time: event.OccurredAt,
	}, nil
}

func (p *Publisher) PublishTransactionCommitted(ctx context.Context, event domain.TransactionCommitted) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ usecase.EventPublisher = (*Publisher)(nil)
