package recordevents

import (
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/geoclient/internal/core/observability"
)

type Publisher struct {
	log     *slog.Logger
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errDone chan struct{}
}

func NewPublisher(logger *slog.Logger, brokers []string, topic string, queueSize int) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("recordevents: create async producer: %w", err)
	}
	return NewPublisherWithProducer(logger, prod, topic, queueSize), nil
}

// NewPublisherWithProducer publishes through an existing producer; Close
// closes it.
func NewPublisherWithProducer(logger *slog.Logger, prod sarama.AsyncProducer, topic string, queueSize int) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Publisher{
		log:     logger,
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("record event marshal", "err", err)
				observability.IncRecordEvent(string(ev.Op), err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Layer + "/" + ev.ID),
				Value: sarama.ByteEncoder(b),
			}
			observability.IncRecordEvent(string(ev.Op), nil)
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Error("record event producer", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev; it never blocks and drops the event when the queue is
// full.
func (p *Publisher) Publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.log.Warn("record event dropped, queue full", "layer", ev.Layer, "id", ev.ID)
		observability.IncRecordEvent(string(ev.Op), errQueueFull)
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("recordevents: close producer: %w", err)
	}
	<-p.errDone
	return nil
}

var errQueueFull = fmt.Errorf("queue full")
