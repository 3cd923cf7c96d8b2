// Command bmlt-publish sends one meeting change event to the invalidation
// topic, for wiring checks and manual cache purges.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/bmlt-go/internal/invalidation"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type options struct {
	op        string
	meetingID int64
	body      int64
	lat, lng  float64
	prev      string
}

func buildEvent(o options, now time.Time) (invalidation.Event, error) {
	ev := invalidation.Event{
		Version:       1,
		Op:            o.op,
		MeetingID:     o.meetingID,
		ServiceBodyID: o.body,
		Latitude:      &o.lat,
		Longitude:     &o.lng,
		TS:            now.UTC(),
	}
	if o.prev != "" {
		var plat, plng float64
		if _, err := fmt.Sscanf(strings.TrimSpace(o.prev), "%g,%g", &plat, &plng); err != nil {
			return invalidation.Event{}, fmt.Errorf("prev wants lat,lng: %w", err)
		}
		ev.PrevLatitude, ev.PrevLongitude = &plat, &plng
	}
	if err := ev.Validate(); err != nil {
		return invalidation.Event{}, err
	}
	return ev, nil
}

func publish(brokers []string, topic string, ev invalidation.Event) (int32, int64, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Version = sarama.V3_6_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return 0, 0, fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("encode event: %w", err)
	}
	part, off, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(fmt.Sprint(ev.MeetingID)),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("send message: %w", err)
	}
	return part, off, nil
}

func main() {
	var o options
	brokers := flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma separated brokers")
	topic := flag.String("topic", getenv("KAFKA_TOPIC", "bmlt-meeting-changes"), "topic")
	flag.StringVar(&o.op, "op", "update", "insert|update|delete")
	flag.Int64Var(&o.meetingID, "meeting", 0, "meeting id")
	flag.Int64Var(&o.body, "service-body", 0, "service body id")
	flag.Float64Var(&o.lat, "lat", 0, "meeting latitude")
	flag.Float64Var(&o.lng, "long", 0, "meeting longitude")
	flag.StringVar(&o.prev, "prev", "", "previous location lat,lng for a moved meeting")
	flag.Parse()

	ev, err := buildEvent(o, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid event:", err)
		os.Exit(2)
	}
	part, off, err := publish(strings.Split(*brokers, ","), *topic, ev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kafka error:", err)
		os.Exit(1)
	}
	fmt.Printf("published meeting %d %s to %s[%d]@%d\n", ev.MeetingID, ev.Op, *topic, part, off)
}
