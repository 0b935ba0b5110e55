package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/celskeggs/sensorwatch/config"
	"github.com/celskeggs/sensorwatch/ctrl/util"
)

// Launches a relay, a simulated sensor, and a monitor against each other on this machine.
func main() {
	if util.HasArg("--help") {
		fmt.Printf("Usage: go run ./ctrl [--config <file.yaml>] [--output <file.png>]\n")
		return
	}
	configPath := util.ArgValue("--config", os.Getenv("SENSORWATCH_CONFIG"))
	if configPath != "" && !util.Exists(configPath) {
		log.Fatalf("Config file %q does not exist", configPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	var common []string
	if configPath != "" {
		common = append(common, "--config", configPath)
	}

	p := util.Processes{}
	fmt.Printf("Launching applications...\n")
	p.Launch("relay", "go", append([]string{"run", "./ctrl/relay"}, common...)...)
	if !util.WaitForListener(cfg.ServerAddress, 100, time.Millisecond*100) {
		p.Interrupt()
		p.WaitAll()
		log.Fatalf("Relay did not come up on %s", cfg.ServerAddress)
	}
	p.Launch("sensor", "go", append([]string{"run", "./ctrl/sensor"}, common...)...)

	monitorArgs := append([]string{"run", "./ctrl/monitor"}, common...)
	if output := util.ArgValue("--output", ""); output != "" {
		monitorArgs = append(monitorArgs, "--output", output)
	}
	waitMonitor := p.Launch("monitor", "go", monitorArgs...)
	waitMonitor()

	fmt.Printf("Interrupting all...\n")
	p.Interrupt()
	fmt.Printf("Waiting for all to terminate...\n")
	p.WaitAll()
}
