// Package accessevents publishes one event per served overlay document to
// Kafka.
package accessevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/superoverlay/internal/core/observability"
)

type Event struct {
	Source string    `json:"source,omitempty"`
	Kind   string    `json:"kind"`
	Z      *int      `json:"z,omitempty"`
	X      *int      `json:"x,omitempty"`
	Y      *int      `json:"y,omitempty"`
	Links  int       `json:"links"`
	TS     time.Time `json:"ts"`
}

// Tile sets the tile address of a children event.
func (e Event) Tile(z, x, y int) Event {
	e.Z, e.X, e.Y = &z, &x, &y
	return e
}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	stopped chan struct{}
	errsWG  sync.WaitGroup
	once    sync.Once
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("accessevents: create async producer: %w", err)
	}
	return newPublisher(prod, topic, queueSize, logger), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		logger:  logger,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("accessevents: marshal", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Value: sarama.ByteEncoder(b),
			}
			if ev.Source != "" {
				msg.Key = sarama.StringEncoder(ev.Source)
			}
			p.prod.Input() <- msg
		}
	}()

	p.errsWG.Add(1)
	go func() {
		defer p.errsWG.Done()
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("accessevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish never blocks the request path; a full queue drops the event.
func (p *Publisher) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	select {
	case p.events <- ev:
	default:
		observability.IncAccessEventDropped()
	}
}

func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.events)
		<-p.stopped
		if cerr := p.prod.Close(); cerr != nil {
			err = fmt.Errorf("accessevents: close producer: %w", cerr)
		}
		p.errsWG.Wait()
	})
	return err
}
