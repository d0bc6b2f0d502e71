package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oneonone97/Ecom-sub000/internal/modules/events"
	"github.com/oneonone97/Ecom-sub000/internal/modules/orders"
	"github.com/oneonone97/Ecom-sub000/pkg/kafka"
)

// Tails the order lifecycle topic and prints each event, one line per
// delivery. Useful to watch the outbox publisher while driving checkouts.
//
//	lifecycletail -group lifecycletail-local
func main() {
	_ = godotenv.Load()

	brokers := flag.String("brokers", os.Getenv("KAFKA_BROKERS"), "Comma-separated broker list")
	group := flag.String("group", "lifecycletail", "Consumer group id")
	flag.Parse()

	client := kafka.NewClient(*brokers)
	if !client.Enabled() {
		log.Fatal("No brokers configured: set -brokers or KAFKA_BROKERS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := client.NewReader(events.TopicOrderLifecycle, *group)
	defer r.Close()

	fmt.Printf("tailing %s as group %s\n", events.TopicOrderLifecycle, *group)
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Fatalf("Read failed: %v", err)
		}

		var ev orders.LifecycleEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			fmt.Printf("offset=%d key=%s (undecodable: %v)\n", msg.Offset, msg.Key, err)
			continue
		}
		fmt.Printf("offset=%d %-16s order=%s user=%s gateway=%s amount=%d %s\n",
			msg.Offset, ev.Type, ev.OrderID, ev.UserID, ev.Gateway, ev.AmountPaise, ev.Currency)
	}
}
