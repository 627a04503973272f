// Command kafka-producer feeds the venue's order topic with synthetic
// traffic for local testing: it funds a set of accounts, then streams
// random bids and asks around a base price.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/diznq/core-se/internal/usecase/orderreader"
	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		brokers   = flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
		topic     = flag.String("topic", "venue.orders", "order topic name")
		base      = flag.String("base", "gold", "base asset")
		quote     = flag.String("quote", "usd", "quote asset")
		accounts  = flag.Int("accounts", 10, "number of trading accounts")
		count     = flag.Int("count", 1000, "number of orders to send")
		delay     = flag.Duration("delay", 100*time.Millisecond, "delay between orders")
		basePrice = flag.Int64("base-price", 100, "price the random walk centers on")
		spread    = flag.Int64("spread", 20, "maximum distance from the base price")
		maxVolume = flag.Int64("max-volume", 10, "maximum order volume")
		ttlEvery  = flag.Int("ttl-every", 10, "give every n-th order a ttl (0 disables)")
		seed      = flag.Int64("seed", 0, "random seed (0 means time-based)")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))
	log.Printf("seed: %d", *seed)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	ctx := context.Background()

	send := func(request orderreader.Request) error {
		value, err := json.Marshal(request)
		if err != nil {
			return err
		}
		return writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(request.Account),
			Value: value,
			Time:  time.Now(),
		})
	}

	// Fund every account in both assets so any random order can be
	// admitted.
	for i := 0; i < *accounts; i++ {
		account := fmt.Sprintf("trader-%d", i)
		deposits := map[string]int64{
			*base:  *maxVolume * int64(*count),
			*quote: *basePrice * *maxVolume * int64(*count),
		}
		for asset, amount := range deposits {
			if err := send(orderreader.Request{
				Action:  orderreader.ActionDeposit,
				Account: account,
				Asset:   asset,
				Amount:  amount,
			}); err != nil {
				log.Fatalf("failed to send deposit for %s: %v", account, err)
			}
		}
	}
	log.Printf("funded %d accounts on %s/%s", *accounts, *base, *quote)

	var bids, asks int
	for i := 0; i < *count; i++ {
		request := orderreader.Request{
			Action:  orderreader.ActionPlace,
			Account: fmt.Sprintf("trader-%d", rng.Intn(*accounts)),
			Base:    *base,
			Quote:   *quote,
			Price:   *basePrice + rng.Int63n(2**spread+1) - *spread,
			Volume:  1 + rng.Int63n(*maxVolume),
		}
		if rng.Intn(2) == 0 {
			request.Side = "bid"
			bids++
		} else {
			request.Side = "ask"
			asks++
		}
		if request.Price < 1 {
			request.Price = 1
		}
		if *ttlEvery > 0 && i%*ttlEvery == 0 {
			request.TTL = int64(i + 30)
		}

		if err := send(request); err != nil {
			log.Printf("failed to send order %d: %v", i+1, err)
			continue
		}

		if (i+1)%100 == 0 || i == *count-1 {
			log.Printf("sent %d/%d: %s %s %d@%d", i+1, *count,
				request.Account, request.Side, request.Volume, request.Price)
		}

		if i < *count-1 {
			time.Sleep(*delay)
		}
	}

	log.Printf("done: %d orders (%d bids, %d asks)", *count, bids, asks)
}
