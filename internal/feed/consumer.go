// Package feed consumes order-source records from Kafka and applies
// them to the roster. The upstream order system owns the records; the
// consumer only ever reads.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/domain"
)

// RosterWriter applies order-source records to the roster.
type RosterWriter interface {
	ApplyOrder(ctx context.Context, rec domain.OrderRecord) (*domain.RosterEntry, bool, error)
}

// Consumer consumes order records from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	writer        RosterWriter
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, writer RosterWriter, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		writer:        writer,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting order feed consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("order feed consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping order feed consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var rec domain.OrderRecord
			if err := json.Unmarshal(message.Value, &rec); err != nil {
				h.consumer.logger.Warn("failed to unmarshal order record",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if rec.OrderID == 0 || rec.OrderItemID == 0 {
				h.consumer.logger.Warn("invalid order record",
					"order_id", rec.OrderID,
					"order_item_id", rec.OrderItemID,
					"offset", message.Offset,
				)
				session.MarkMessage(message, "")
				continue
			}

			h.apply(rec)
			session.MarkMessage(message, "")
		}
	}
}

// apply writes one record through, retrying transient store failures.
// Validation failures never succeed on retry, so they only get logged.
func (h *consumerGroupHandler) apply(rec domain.OrderRecord) {
	cfg := h.consumer.config
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		entry, created, err := h.consumer.writer.ApplyOrder(ctx, rec)
		cancel()

		if err == nil {
			h.consumer.logger.Debug("order record applied",
				"key", rec.Key(), "created", created, "entry_id", entry.ID)
			return
		}
		lastErr = err

		if _, ok := domain.AsValidationError(err); ok {
			h.consumer.logger.Warn("order record rejected",
				"key", rec.Key(), "error", err)
			return
		}

		if attempt < attempts {
			time.Sleep(cfg.RetryDelay)
		}
	}

	h.consumer.logger.Error("order record failed",
		"key", rec.Key(), "error", lastErr, "attempts", attempts)
}
