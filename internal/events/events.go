// Package events publishes session-lifecycle and admission-decision events
// to Kafka for downstream analytics. It is strictly observational: nothing
// in the dispatch or session packages waits on a publish, and a publisher
// that falls behind drops events rather than applying backpressure to a
// charge point session.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/ocpp-central/station/internal/metrics"
)

// Kind enumerates the events this server emits. It is deliberately small:
// only the events a downstream analytics consumer needs to reconstruct
// session and admission history.
type Kind string

const (
	KindSessionConnected         Kind = "session.connected"
	KindSessionDisconnected      Kind = "session.disconnected"
	KindBootNotificationAccepted Kind = "boot_notification.accepted"
	KindBootNotificationRejected Kind = "boot_notification.rejected"
)

// Event is the wire format published to Kafka: one JSON object per message.
type Event struct {
	Kind      Kind                   `json:"kind"`
	StationID string                 `json:"stationId"`
	Timestamp time.Time              `json:"timestamp"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// Publisher is anything that can accept lifecycle events. Dispatch and
// session code depend on this interface, never on sarama directly, so tests
// can substitute NopPublisher.
type Publisher interface {
	Publish(ev Event)
	Close() error
}

// NopPublisher discards every event. It is the default when KAFKA_BROKERS is
// unset, per §9: the event publisher is additive and must never be required
// for the server to run.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
func (NopPublisher) Close() error  { return nil }

// KafkaPublisher publishes events asynchronously via sarama, partitioned by
// station id so a single station's events stay in order.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
}

// NewKafkaPublisher dials brokers and starts background goroutines that
// drain the producer's success/error channels.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create kafka producer: %w", err)
	}

	p := &KafkaPublisher{producer: producer, topic: topic}
	go p.drainSuccesses()
	go p.drainErrors()
	return p, nil
}

// Publish encodes ev and hands it to the producer's input channel without
// blocking: if the channel is full the event is dropped and counted, since
// no session may ever wait on Kafka.
func (p *KafkaPublisher) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("events: failed to marshal event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic:    p.topic,
		Key:      sarama.StringEncoder(ev.StationID),
		Value:    sarama.ByteEncoder(data),
		Metadata: ev.Kind,
	}

	select {
	case p.producer.Input() <- msg:
	default:
		metrics.EventsDropped.WithLabelValues(string(ev.Kind)).Inc()
		log.Warn().Str("kind", string(ev.Kind)).Str("stationId", ev.StationID).Msg("events: producer backed up, dropping event")
	}
}

// Close flushes and closes the underlying producer.
func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("events: close kafka producer: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) drainSuccesses() {
	for msg := range p.producer.Successes() {
		kind, _ := msg.Metadata.(Kind)
		metrics.EventsPublished.WithLabelValues(string(kind)).Inc()
	}
}

func (p *KafkaPublisher) drainErrors() {
	for err := range p.producer.Errors() {
		log.Warn().Err(err.Err).Str("topic", p.topic).Msg("events: failed to publish")
	}
}
