// Package events publishes ledger facts to a RabbitMQ topic exchange for
// downstream consumers (notifications, statements). Publishing happens after
// commit and never affects the ledger.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/observability"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	DefaultExchange = "ledger.events"

	RoutingTransactionCompleted = "transaction.completed"
)

// TransactionCompleted is the payload of RoutingTransactionCompleted.
type TransactionCompleted struct {
	EventID        string          `json:"event_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	TransactionID  int64           `json:"transaction_id"`
	Type           domain.TxType   `json:"type"`
	Subkind        domain.Subkind  `json:"subkind"`
	FromAccountID  *int64          `json:"from_account_id"`
	ToAccountID    *int64          `json:"to_account_id"`
	Amount         domain.Amount   `json:"amount"`
	Fee            domain.Amount   `json:"fee"`
	Currency       domain.Currency `json:"currency"`
	Credited       domain.Amount   `json:"credited"`
	CreditCurrency domain.Currency `json:"credit_currency,omitempty"`
	InitiatedBy    int64           `json:"initiated_by"`
}

func NewTransactionCompleted(t domain.Transaction) TransactionCompleted {
	return TransactionCompleted{
		EventID:        uuid.NewString(),
		OccurredAt:     t.CreatedAt,
		TransactionID:  t.ID,
		Type:           t.Type,
		Subkind:        t.Subkind,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		Amount:         t.Amount,
		Fee:            t.Fee,
		Currency:       t.Currency,
		Credited:       t.Credited,
		CreditCurrency: t.CreditCurrency,
		InitiatedBy:    t.InitiatedBy,
	}
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// Noop drops every event. It is used when no broker is configured or the
// broker is unreachable at start-up.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close()                                     {}

// AMQPPublisher publishes JSON messages to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Connect returns an AMQP publisher, or Noop when amqpURL is empty or the
// broker cannot be reached.
func Connect(amqpURL, exchange string) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		zap.L().Info("event publishing disabled: no AMQP_URL")
		return Noop{}
	}
	p, err := NewAMQPPublisher(amqpURL, exchange)
	if err != nil {
		zap.L().Warn("event publishing disabled: broker unavailable", zap.Error(err))
		return Noop{}
	}
	return p
}

// Emitter publishes committed transactions on a best-effort basis.
type Emitter struct {
	pub     Publisher
	timeout time.Duration
}

func NewEmitter(pub Publisher) *Emitter {
	if pub == nil {
		pub = Noop{}
	}
	return &Emitter{pub: pub, timeout: 2 * time.Second}
}

// TransactionCompleted is called after commit. Failures are logged only.
func (e *Emitter) TransactionCompleted(ctx context.Context, t domain.Transaction) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	if err := e.pub.Publish(ctx, RoutingTransactionCompleted, NewTransactionCompleted(t)); err != nil {
		observability.IncrementEventPublish("failed")
		zap.L().Warn("publish transaction event failed", zap.Int64("transaction_id", t.ID), zap.Error(err))
		return
	}
	observability.IncrementEventPublish("published")
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
