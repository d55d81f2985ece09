package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attackflow/internal/attackflowcore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := attackflowcore.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Starting Attack Flow Consumer")

	store, err := attackflowcore.NewFlowStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open flow store: %v", err)
	}
	defer store.Close()

	index, err := attackflowcore.OpenFlowIndex(cfg.IndexPath)
	if err != nil {
		log.Fatalf("Failed to open flow index: %v", err)
	}
	defer index.Close()

	ingester := attackflowcore.NewFlowIngester(cfg.Kafka, store, index)
	defer ingester.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		log.Println("Shutting down...")
		cancel()
	}()

	ingester.Run(ctx)
}
