package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Producer publishes generated records to a Kafka topic, one message per
// record, keyed by tx_id.
type Producer struct {
	topic string
	sp    sarama.SyncProducer
}

// NewProducer connects a synchronous producer with full-ack reliability
// settings. Messages are not considered sent until the broker confirms.
func NewProducer(brokersCSV, topic string) (*Producer, error) {
	if topic == "" {
		return nil, errors.New("topic empty")
	}
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("no brokers")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{topic: topic, sp: sp}, nil
}

func (p *Producer) Close() error {
	if p.sp != nil {
		return p.sp.Close()
	}
	return nil
}

// Send publishes one record and waits for the broker ack.
func (p *Producer) Send(ctx context.Context, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, _, err = p.sp.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(r.TxID),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}
