package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/celskeggs/sensorwatch/config"
	"github.com/celskeggs/sensorwatch/ctrl/util"
	"github.com/celskeggs/sensorwatch/sensor"
)

func main() {
	if util.HasArg("--help") {
		fmt.Printf("Usage: sensor [--config <file.yaml>]\n")
		return
	}
	cfg, err := config.Load(util.ArgValue("--config", os.Getenv("SENSORWATCH_CONFIG")))
	if err != nil {
		log.Fatal(err)
	}
	logs := util.SetupLogging("sensor", cfg.LogFile)
	defer logs.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pub, err := sensor.Dial(ctx, cfg.ServerAddress, fmt.Sprintf("sensor-%d", os.Getpid()), cfg.Topic)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", cfg.ServerAddress, err)
	}
	defer pub.Close()

	gen := sensor.NewGenerator(cfg.Sensor.InitialValue, cfg.Sensor.Step, time.Now().UnixNano())
	if err := pub.Run(ctx, gen, cfg.SensorInterval()); err != nil {
		log.Printf("Sensor stopped: %v", err)
	}
}
