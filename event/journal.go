package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chat-service/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const journalActionHeader string = "x-action"

// JournalEntry is the record mirrored to the backoffice queue for every
// auth/contact lifecycle change.
type JournalEntry struct {
	Time    int64  `json:"time"`
	Service string `json:"service"`
	Action  string `json:"action"`
	Data    string `json:"data"`
}

// Journal mirrors selected state changes onto RabbitMQ queues consumed by
// out-of-process services (backoffice, audit). It is write-only from this
// service's point of view and never on the request critical path: a publish
// failure is logged, the triggering action already committed.
type Journal struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queues  map[string]amqp.Queue
	log     *zap.Logger
}

func NewJournal(queues []string, log *zap.Logger) *Journal {
	conn, err := amqp.Dial(fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		config.Config("RABBITMQ_USER"),
		config.Config("RABBITMQ_PASSWORD"),
		config.Config("RABBITMQ_HOST"),
		config.Config("RABBITMQ_PORT"),
	))
	if err != nil {
		panic("failed to connect to RabbitMQ")
	}
	log.Info("connection opened to RabbitMQ server")

	channel, err := conn.Channel()
	if err != nil {
		panic("failed to open a RabbitMQ channel")
	}

	j := &Journal{
		conn:    conn,
		channel: channel,
		queues:  make(map[string]amqp.Queue),
		log:     log,
	}

	// Declare a queues
	for _, name := range queues {
		queue, err := channel.QueueDeclare(
			name,  // name
			false, // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			panic("failed to declare a RabbitMQ queue")
		}
		j.queues[name] = queue
		log.Info("declared a RabbitMQ queue", zap.String("queue", name))
	}

	return j
}

// Record publishes one journal entry. Errors are logged and swallowed; a nil
// journal records nothing.
func (j *Journal) Record(service string, action string, data any) {
	if j == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, err := json.Marshal(JournalEntry{
		Time:    time.Now().UnixMicro(),
		Service: service,
		Action:  action,
		Data:    mustString(data),
	})
	if err != nil {
		j.log.Warn("journal: marshal failed", zap.Error(err))
		return
	}

	err = j.channel.PublishWithContext(
		ctx,
		"",      // exchange
		service, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers: amqp.Table{
				journalActionHeader: action,
			},
			Body: body,
		},
	)
	if err != nil {
		j.log.Warn("journal: publish failed",
			zap.String("service", service),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func (j *Journal) Close() {
	j.channel.Close()
	j.conn.Close()
}

func mustString(data any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(raw)
}
