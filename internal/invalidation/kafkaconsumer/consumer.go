// Package kafkaconsumer applies meeting change events from Kafka to the
// response cache.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	obs "github.com/mohammed-shakir/bmlt-go/internal/core/observability"
	"github.com/mohammed-shakir/bmlt-go/internal/invalidation"
	mylog "github.com/mohammed-shakir/bmlt-go/internal/logger"
	"github.com/mohammed-shakir/bmlt-go/internal/mapper"
)

// ErrMalformed wraps decode and validation failures. Such messages are
// skipped rather than retried.
var ErrMalformed = errors.New("malformed invalidation event")

type CellDropper interface {
	Drop(ctx context.Context, res int, cell string) (int, error)
}

type HotnessResetter interface {
	Reset(keys ...string)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	zlog   *zerolog.Logger
	index  CellDropper
	mapper mapper.Interface
	hot    HotnessResetter
	seen   *tsDedupe

	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// New wires a consumer. zlog may be nil; hot may be nil.
func New(cfg Config, logger *slog.Logger, zlog *zerolog.Logger, index CellDropper, m mapper.Interface, hot HotnessResetter) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if zlog == nil {
		nop := zerolog.Nop()
		zlog = &nop
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		zlog:   zlog,
		index:  index,
		mapper: m,
		hot:    hot,
		seen:   newTSDedupe(cfg.DedupeSize),
		assign: map[int32]struct{}{},
	}
}

// Start joins the consumer group and consumes in the background until ctx
// ends or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.index == nil || c.mapper == nil {
		return errors.New("kafkaconsumer: missing dependencies (cell index/mapper)")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" {
		return errors.New("kafkaconsumer: brokers and topic are required")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("create consumer group: %w", err)
	}

	h := &groupHandler{
		setup:   c.onAssign,
		cleanup: c.onRevoke,
		process: c.ProcessOne,
		logger:  c.logger,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.logger.Error("kafka consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil {
				c.logger.Error("kafka consume error", "err", err)
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			c.logger.Error("kafka group error", "err", err)
		}
	}()

	c.logger.Info("kafka invalidation consumer started",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)
	return nil
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("kafka invalidation consumer stopped")
}

func (c *Consumer) onAssign(sess sarama.ConsumerGroupSession) {
	c.assignMu.Lock()
	defer c.assignMu.Unlock()
	c.assign = map[int32]struct{}{}
	for _, parts := range sess.Claims() {
		for _, p := range parts {
			c.assign[p] = struct{}{}
		}
	}
	c.assigned.Store(true)
}

func (c *Consumer) onRevoke(sarama.ConsumerGroupSession) {
	c.assignMu.Lock()
	defer c.assignMu.Unlock()
	c.assigned.Store(false)
	c.assign = map[int32]struct{}{}
}

// Readiness reports whether the group has assigned partitions to us.
func (c *Consumer) Readiness() (bool, []int32) {
	if !c.assigned.Load() {
		return false, nil
	}
	c.assignMu.RLock()
	defer c.assignMu.RUnlock()
	parts := make([]int32, 0, len(c.assign))
	for p := range c.assign {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
	return true, parts
}

// ProcessOne applies a single message. A nil error means the offset may be
// committed.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	log := mylog.FromContext(mylog.WithComponent(ctx, "kafka_consumer"), c.zlog)

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.ObserveInvalidation("unknown", "error", 0)
		log.Error().
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return fmt.Errorf("%w: json decode: %v", ErrMalformed, err)
	}
	if err := ev.Validate(); err != nil {
		obs.ObserveInvalidation(opLabel(ev.Op), "error", 0)
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if c.seen.stale(ev.MeetingID, ev.TS) {
		obs.ObserveInvalidation(ev.Op, "duplicate", 0)
		c.logger.Debug("skipping stale meeting change", "meeting_id", ev.MeetingID, "ts", ev.TS)
		return nil
	}

	cells, err := c.cellsForEvent(ev)
	if err != nil {
		obs.ObserveInvalidation(ev.Op, "error", 0)
		return fmt.Errorf("%w: derive cells: %v", ErrMalformed, err)
	}

	deleted := 0
	for _, cell := range cells {
		n, err := c.index.Drop(ctx, c.cfg.Res, cell)
		if err != nil {
			obs.ObserveInvalidation(ev.Op, "error", deleted)
			log.Error().
				Str("kind", "cache_del").
				Str("topic", msg.Topic).
				Int32("partition", msg.Partition).
				Str("cell", cell).
				Msg("kafka error")
			return fmt.Errorf("drop cell %s: %w", cell, err)
		}
		deleted += n
	}

	if c.hot != nil {
		c.hot.Reset(cells...)
	}
	c.seen.record(ev.MeetingID, ev.TS)

	obs.ObserveInvalidation(ev.Op, "ok", deleted)
	log.Info().
		Str("event", "invalidation").
		Str("op", ev.Op).
		Int64("meeting_id", ev.MeetingID).
		Int("cells", len(cells)).
		Int("keys", deleted).
		Dur("dur", time.Since(start)).
		Msg("invalidated keys")
	return nil
}

// cellsForEvent returns every touched cell plus its ring-1 neighbours, since
// a proximity search snapped to a neighbouring cell can still reach the
// meeting.
func (c *Consumer) cellsForEvent(ev invalidation.Event) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range ev.Points() {
		cell, err := c.mapper.Cell(p.Lat, p.Lng, c.cfg.Res)
		if err != nil {
			return nil, fmt.Errorf("cell for %g,%g: %w", p.Lat, p.Lng, err)
		}
		disk, err := c.mapper.Disk(cell, 1)
		if err != nil {
			return nil, fmt.Errorf("disk around %s: %w", cell, err)
		}
		for _, d := range disk {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				out = append(out, d)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func opLabel(op string) string {
	switch op {
	case "insert", "update", "delete":
		return op
	}
	return "unknown"
}
