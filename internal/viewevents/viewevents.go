// Package viewevents publishes one Kafka event per resolved viewport.
package viewevents

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/region-resolver/internal/core/model"
	"github.com/mohammed-shakir/region-resolver/internal/core/observability"
)

type Event struct {
	TS            time.Time `json:"ts"`
	MinLon        float64   `json:"min_lon"`
	MinLat        float64   `json:"min_lat"`
	MaxLon        float64   `json:"max_lon"`
	MaxLat        float64   `json:"max_lat"`
	Cell          string    `json:"cell,omitempty"`
	Cells         []string  `json:"cells,omitempty"`
	HighPrecision bool      `json:"high_precision"`
	Countries     []string  `json:"countries"`
	RequestID     string    `json:"request_id,omitempty"`
}

// NewEvent describes a resolve. Cell is the H3 cell at res containing the
// viewport centre; it stays empty when res is out of range. Cells lists the
// cover of small viewports.
func NewEvent(ts time.Time, viewport model.BBox, highPrecision bool, countries []string, requestID string, res int) Event {
	ev := Event{
		TS:            ts.UTC(),
		MinLon:        viewport.MinLon,
		MinLat:        viewport.MinLat,
		MaxLon:        viewport.MaxLon,
		MaxLat:        viewport.MaxLat,
		HighPrecision: highPrecision,
		Countries:     countries,
		RequestID:     requestID,
	}
	if ev.Countries == nil {
		ev.Countries = []string{}
	}
	if c, err := centreCell(viewport, res); err == nil {
		ev.Cell = c
	}
	if cells, err := coverCells(viewport, res, maxCoverCells); err == nil {
		ev.Cells = cells
	}
	return ev
}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	stopped chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("viewevents: create async producer: %w", err)
	}
	return newWithProducer(prod, topic, queueSize, logger), nil
}

func newWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
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
				p.logger.Warn("viewevents: marshal error", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Cell),
				Value: sarama.ByteEncoder(b),
			}
			p.prod.Input() <- msg
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("viewevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev without blocking. Events are dropped when the queue
// is full or the publisher is closed.
func (p *Publisher) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop()
		return
	}
	select {
	case p.events <- ev:
	default:
		p.drop()
	}
}

func (p *Publisher) drop() {
	p.dropped.Add(1)
	observability.IncEventsDropped()
}

// Dropped reports how many events were discarded.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("viewevents: close producer: %w", err)
	}
	return nil
}

var global *Publisher

func InitGlobal(p *Publisher) {
	global = p
}

func Publish(ev Event) {
	if global == nil {
		return
	}
	global.Publish(ev)
}

func CloseGlobal() error {
	if global == nil {
		return nil
	}
	return global.Close()
}
