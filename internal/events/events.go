// Package events publishes campaign execution outcomes to a message broker.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/model"
)

// Event types double as routing keys.
const (
	TypeExecutionCompleted = "execution.completed"
	TypeExecutionFailed    = "execution.failed"
	TypeExecutionCancelled = "execution.cancelled"
)

// Event is the message body published for a finished execution.
type Event struct {
	Type           string    `json:"type"`
	ExecutionID    string    `json:"execution_id"`
	CampaignID     string    `json:"campaign_id"`
	ClientID       string    `json:"client_id"`
	Status         string    `json:"status"`
	LeadsGenerated int       `json:"leads_generated"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ExecutionEvent builds the event for a finished execution.
func ExecutionEvent(clientID string, e *model.CampaignExecution) Event {
	typ := TypeExecutionCompleted
	switch e.Status {
	case model.ExecutionFailed:
		typ = TypeExecutionFailed
	case model.ExecutionCancelled:
		typ = TypeExecutionCancelled
	}
	at := time.Now().UTC()
	if e.CompletedAt != nil {
		at = *e.CompletedAt
	}
	return Event{
		Type:           typ,
		ExecutionID:    e.ID,
		CampaignID:     e.CampaignID,
		ClientID:       clientID,
		Status:         string(e.Status),
		LeadsGenerated: e.LeadsGenerated,
		Error:          e.ErrorMessage,
		OccurredAt:     at,
	}
}

// Publisher delivers events. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes events to a durable topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// New returns a RabbitPublisher when an AMQP URL is configured and Nop
// otherwise.
func New(cfg config.EventsConfig) (Publisher, error) {
	if cfg.AMQPURL == "" {
		return Nop{}, nil
	}
	return Dial(cfg.AMQPURL, cfg.Exchange)
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, eris.Wrap(err, "events: dial broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "events: open channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "events: declare exchange %s", exchange)
	}
	p := newRabbitPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func newRabbitPublisher(ch channel, exchange string) *RabbitPublisher {
	return &RabbitPublisher{ch: ch, exchange: exchange}
}

// Publish sends ev as a persistent JSON message routed by its type.
func (p *RabbitPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "events: marshal event")
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ExecutionID,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		return eris.Wrapf(err, "events: publish %s", ev.Type)
	}
	zap.L().Debug("events: published",
		zap.String("type", ev.Type),
		zap.String("execution_id", ev.ExecutionID),
	)
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ch != nil {
		firstErr = p.ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return eris.Wrap(firstErr, "events: close")
}
