package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mbd888/walletrisk/internal/metrics"
	"github.com/mbd888/walletrisk/internal/tx"
)

// Consumer pulls transaction events from a Kafka topic and feeds the
// batch writer. Offset/partition tracking is owned by the consumer group;
// multiple instances in the same group are partition-disjoint.
type Consumer struct {
	group         sarama.ConsumerGroup
	topic         string
	writer        *Writer
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewConsumer joins the consumer group. Offsets are committed manually
// after each successful batch write.
func NewConsumer(brokersCSV, groupID, topic string, writer *Writer, batchSize int, flushInterval time.Duration, logger *slog.Logger) (*Consumer, error) {
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = false // commit after DB write
	cfg.Consumer.Return.Errors = true

	cg, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("join consumer group: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 500
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}

	return &Consumer{
		group:         cg,
		topic:         topic,
		writer:        writer,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
	}, nil
}

// Run consumes until ctx is cancelled. Consume returns on every group
// rebalance and must be re-entered.
func (c *Consumer) Run(ctx context.Context) error {
	h := &handler{
		writer:        c.writer,
		batchSize:     c.batchSize,
		flushInterval: c.flushInterval,
		logger:        c.logger,
	}

	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn("consumer group error", "error", err)
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			c.logger.Warn("consume session ended", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error { return c.group.Close() }

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}

// handler buffers claimed messages and flushes them in batches. Messages
// are marked and committed only after their batch commits to the store; a
// failed flush keeps the buffer and tries again on the next tick, so a
// crash mid-batch never double-counts on redelivery.
type handler struct {
	writer        *Writer
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

var _ sarama.ConsumerGroupHandler = (*handler)(nil)

func (h *handler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info("consumer session established", "claims", sess.Claims())
	return nil
}

func (h *handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	var pending []*sarama.ConsumerMessage

	flush := func() {
		if len(pending) == 0 {
			return
		}
		raws := make([]tx.RawRecord, 0, len(pending))
		for _, msg := range pending {
			var r tx.RawRecord
			if err := json.Unmarshal(msg.Value, &r); err != nil {
				metrics.IngestedRecordsTotal.WithLabelValues("rejected").Inc()
				h.logger.Debug("undecodable message",
					"partition", msg.Partition, "offset", msg.Offset, "error", err)
				continue
			}
			raws = append(raws, r)
		}

		if _, err := h.writer.Flush(sess.Context(), raws); err != nil {
			// Keep pending; offsets stay uncommitted and the batch is
			// retried on the next trigger.
			h.logger.Error("batch flush failed, will retry", "records", len(pending), "error", err)
			return
		}

		for _, msg := range pending {
			sess.MarkMessage(msg, "")
		}
		sess.Commit()
		pending = pending[:0]
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			pending = append(pending, msg)
			if len(pending) >= h.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-sess.Context().Done():
			flush()
			return nil
		}
	}
}
