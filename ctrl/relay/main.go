package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/celskeggs/sensorwatch/config"
	"github.com/celskeggs/sensorwatch/ctrl/util"
	"github.com/celskeggs/sensorwatch/relay"
)

func main() {
	if util.HasArg("--help") {
		fmt.Printf("Usage: relay [--config <file.yaml>] [--listen <host:port>]\n")
		return
	}
	cfg, err := config.Load(util.ArgValue("--config", os.Getenv("SENSORWATCH_CONFIG")))
	if err != nil {
		log.Fatal(err)
	}
	logs := util.SetupLogging("relay", cfg.LogFile)
	defer logs.Close()

	r, err := relay.Start(relay.Options{
		ListenAddress: util.ArgValue("--listen", cfg.Relay.ListenAddress),
		Topic:         cfg.Topic,
	})
	if err != nil {
		log.Fatal(err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down relay...")
	if err := r.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
