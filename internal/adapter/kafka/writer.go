package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/flight-recon/internal/config"
	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per flight comparison to a Kafka topic.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured comparison topic.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes and writes all comparisons for a run in a single
// WriteMessages call. Messages are keyed by flight so every revision of one
// flight lands on the same partition.
func (p *Publisher) Publish(ctx context.Context, runID string, cmps []domain.Comparison) error {
	if len(cmps) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(cmps))
	for i := range cmps {
		msg, err := serializeToMessage(runID, cmps[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish comparisons: %w", err)
	}
	p.logger.Debug("comparisons published", "run_id", runID, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// comparisonMessage is the wire form of a domain.Comparison.
type comparisonMessage struct {
	FlightKey       string         `json:"flight_key"`
	Date            string         `json:"date"`
	Callsign        string         `json:"callsign"`
	DepAirport      string         `json:"dep_airport"`
	ArrAirport      string         `json:"arr_airport"`
	Overall         string         `json:"overall"`
	Cancelled       bool           `json:"cancelled"`
	PlanLeadSeconds *int64         `json:"plan_lead_seconds"`
	Fields          []fieldMessage `json:"fields"`
}

type fieldMessage struct {
	Field   string `json:"field"`
	Verdict string `json:"verdict"`
	Plan    string `json:"plan,omitempty"`
	Dyn     string `json:"dyn,omitempty"`
}

func toMessage(c domain.Comparison) comparisonMessage {
	m := comparisonMessage{
		FlightKey:       c.Key.String(),
		Date:            c.Key.ExecDate,
		Callsign:        c.Key.Callsign,
		DepAirport:      c.Key.DepAirport,
		ArrAirport:      c.Key.ArrAirport,
		Overall:         string(c.Overall),
		Cancelled:       c.Cancelled,
		PlanLeadSeconds: c.PlanLeadSeconds,
		Fields:          make([]fieldMessage, len(c.Fields)),
	}
	for i, f := range c.Fields {
		m.Fields[i] = fieldMessage{Field: f.Field, Verdict: string(f.Verdict), Plan: f.PlanValue, Dyn: f.DynValue}
	}
	return m
}

// serializeToMessage marshals a Comparison into a Kafka message.
func serializeToMessage(runID string, c domain.Comparison) (kafkago.Message, error) {
	data, err := json.Marshal(toMessage(c))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize comparison %s: %w", c.Key, err)
	}
	return kafkago.Message{
		Key:   []byte(c.Key.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "overall", Value: []byte(c.Overall)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
