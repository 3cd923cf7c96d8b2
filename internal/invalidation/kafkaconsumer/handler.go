package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process messageProcessor
	logger  *slog.Logger
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

// ConsumeClaim marks a message only after it was applied. Malformed messages
// are marked and skipped so they cannot wedge the partition.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				if !errors.Is(err, ErrMalformed) {
					return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
						msg.Topic, msg.Partition, msg.Offset, err)
				}
				if h.logger != nil {
					h.logger.Warn("skipping malformed invalidation event",
						"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
				}
			}
			sess.MarkMessage(msg, "")
		}
	}
}
