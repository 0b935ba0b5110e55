package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/celskeggs/sensorwatch/config"
	"github.com/celskeggs/sensorwatch/ctrl/util"
	"github.com/celskeggs/sensorwatch/monitor"
	"github.com/celskeggs/sensorwatch/plotview"
	"github.com/celskeggs/sensorwatch/plotview/gioview"
	"github.com/celskeggs/sensorwatch/source"
)

func run(ctx context.Context, loop *monitor.Loop) (code int) {
	if err := loop.Run(ctx); err != nil {
		log.Printf("Monitor stopped: %v", err)
		return 1
	}
	log.Printf("Monitor stopped")
	return 0
}

func exit(code int, logs io.Closer) {
	_ = logs.Close()
	os.Exit(code)
}

func main() {
	if util.HasArg("--help") {
		fmt.Printf("Usage: monitor [--config <file.yaml>] [--output <file.png|file.svg>]\n")
		return
	}
	cfg, err := config.Load(util.ArgValue("--config", os.Getenv("SENSORWATCH_CONFIG")))
	if err != nil {
		log.Fatal(err)
	}
	cfg.Output = util.ArgValue("--output", cfg.Output)
	logs := util.SetupLogging("monitor", cfg.LogFile)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("monitor-%d", os.Getpid())
	}
	src := &source.MQTTSource{
		Address:  cfg.ServerAddress,
		Topic:    cfg.Topic,
		ClientID: clientID,
	}
	opts := monitor.Options{
		Capacity:        cfg.WindowCapacity,
		TickInterval:    cfg.TickInterval(),
		QueueSize:       cfg.QueueSize,
		MaxDrainPerTick: cfg.MaxDrainPerTick,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("Connecting to %s (topic %q)...", cfg.ServerAddress, cfg.Topic)
	if cfg.Output != "" {
		surface, err := plotview.NewFileSurface(cfg.Output)
		if err != nil {
			log.Fatal(err)
		}
		code := run(ctx, monitor.New(src, surface, opts))
		cancel()
		exit(code, logs)
	}

	win := gioview.New("Sensor Monitor", cfg.ExportDir)
	go win.Run(cancel)
	go func() {
		code := run(ctx, monitor.New(src, win, opts))
		win.Close()
		exit(code, logs)
	}()
	gioview.Main()
}
