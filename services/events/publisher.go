package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/logger"
	"github.com/mailcat/mailcat/internal/models"
	"github.com/mailcat/mailcat/internal/tracing"
)

const (
	ExchangeMailcatDirect = "mailcat-direct"

	QueueReceiveEmail = "receive-email"

	RoutingKeyReceiveEmail = "mailcat-receive-email"

	DefaultMessageTTL     = 24 * time.Hour
	DefaultPublishTimeout = 5 * time.Second
)

// EmailReceivedEvent is the wire payload for email.received.
type EmailReceivedEvent struct {
	EmailID    string    `json:"emailId"`
	MailboxID  string    `json:"mailboxId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	HasCode    bool      `json:"hasCode"`
	LinkCount  int       `json:"linkCount"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// RabbitMQPublisher publishes inbound-mail events on a direct exchange.
type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
}

func NewRabbitMQPublisher(rabbitmqURL string, log logger.Logger) (interfaces.EventsPublisher, error) {
	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: log,
	}

	if err := publisher.connect(); err != nil {
		return nil, err
	}

	return publisher, nil
}

func (r *RabbitMQPublisher) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	conn, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to open channel")
	}

	if err := channel.ExchangeDeclare(ExchangeMailcatDirect, "direct", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return errors.Wrap(err, "failed to declare exchange")
	}

	queueArgs := amqp091.Table{"x-message-ttl": DefaultMessageTTL.Milliseconds()}
	if _, err := channel.QueueDeclare(QueueReceiveEmail, true, false, false, false, queueArgs); err != nil {
		channel.Close()
		conn.Close()
		return errors.Wrap(err, "failed to declare queue")
	}

	if err := channel.QueueBind(QueueReceiveEmail, RoutingKeyReceiveEmail, ExchangeMailcatDirect, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return errors.Wrap(err, "failed to bind queue")
	}

	r.connection = conn
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) PublishEmailReceived(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishEmailReceived")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEmailID(span, email.ID)

	event := EmailReceivedEvent{
		EmailID:    email.ID,
		MailboxID:  email.MailboxID,
		From:       email.FromAddress,
		To:         email.ToAddress,
		Subject:    email.Subject,
		HasCode:    email.Code != "",
		LinkCount:  len(email.Links),
		ReceivedAt: email.ReceivedAt,
	}

	body, err := json.Marshal(event)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal event")
	}

	publishCtx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
	defer cancel()

	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	err = r.publishChannel.PublishWithContext(
		publishCtx,
		ExchangeMailcatDirect,
		RoutingKeyReceiveEmail,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    email.ID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		tracing.TraceErr(span, err)
		// One reconnect attempt before giving up; the broker restarting
		// should not drop the event.
		if reconnectErr := r.connect(); reconnectErr != nil {
			return errors.Wrap(err, "publish failed and reconnect failed")
		}
		return r.publishChannel.PublishWithContext(
			publishCtx,
			ExchangeMailcatDirect,
			RoutingKeyReceiveEmail,
			false,
			false,
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				MessageId:    email.ID,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
	}

	return nil
}

func (r *RabbitMQPublisher) Close() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	if r.publishChannel != nil {
		r.publishChannel.Close()
	}
	if r.connection != nil {
		return r.connection.Close()
	}
	return nil
}
