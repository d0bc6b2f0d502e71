package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Client holds the parsed broker list. An empty list means messaging is
// switched off and every producer/consumer becomes a no-op at the call site.
type Client struct {
	brokers []string
}

// NewClient parses a comma-separated broker list, for example
// "localhost:9092,localhost:9093". Blank entries are dropped.
func NewClient(brokersCSV string) *Client {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{brokers: brokers}
}

func (c *Client) Enabled() bool { return len(c.brokers) > 0 }

// NewWriter builds a producer tuned for the outbox drain: small batches
// flushed quickly, keyed partitioning so events for one order stay ordered.
func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewReader builds a group consumer starting from the first retained offset,
// so a freshly deployed consumer replays the existing stream.
func (c *Client) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		Topic:          topic,
		GroupID:        groupID,
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}
