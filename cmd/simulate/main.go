// Command simulate generates a synthetic transaction stream and either
// writes it to a CSV file or publishes it to Kafka.
//
// Usage:
//
//	go run ./cmd/simulate -out data/transactions.csv
//	go run ./cmd/simulate -kafka -topic transactions
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbd888/walletrisk/internal/config"
	"github.com/mbd888/walletrisk/internal/logging"
	"github.com/mbd888/walletrisk/internal/simulator"
)

func main() {
	var (
		wallets = flag.Int("wallets", 200, "number of distinct wallets")
		txs     = flag.Int("txs", 2000, "number of transactions to generate")
		days    = flag.Int("days", 30, "spread timestamps over this many days back")
		seed    = flag.Int64("seed", 42, "generator seed")
		out     = flag.String("out", "", "write CSV to this path instead of publishing")
		kafka   = flag.Bool("kafka", false, "publish to the configured Kafka topic")
	)
	flag.Parse()

	logger := logging.New("info", "text")

	records := simulator.Generate(simulator.Params{
		Wallets:  *wallets,
		Txs:      *txs,
		DaysBack: *days,
		Seed:     *seed,
	})

	switch {
	case *out != "":
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("failed to create output file", "error", err)
			os.Exit(1)
		}
		if err := simulator.WriteCSV(f, records); err != nil {
			_ = f.Close()
			logger.Error("failed to write CSV", "error", err)
			os.Exit(1)
		}
		if err := f.Close(); err != nil {
			logger.Error("failed to close output file", "error", err)
			os.Exit(1)
		}
		logger.Info("wrote transactions", "count", len(records), "path", *out)

	case *kafka:
		cfg, err := config.Load()
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}

		producer, err := simulator.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Error("failed to create producer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = producer.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sent := 0
		for _, r := range records {
			if err := producer.Send(ctx, r); err != nil {
				logger.Error("publish failed", "error", err, "sent", sent)
				os.Exit(1)
			}
			sent++
		}
		logger.Info("published transactions", "count", sent, "topic", cfg.KafkaTopic)

	default:
		logger.Error("either -out or -kafka is required")
		flag.Usage()
		os.Exit(1)
	}
}
