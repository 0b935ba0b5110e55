// Package config loads the settings shared by the monitor, relay, and sensor programs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every recognised option. YAML keys match the option names used in documentation.
type Config struct {
	ServerAddress      string `yaml:"serverAddress"`
	Topic              string `yaml:"topic"`
	ClientID           string `yaml:"clientId"`
	WindowCapacity     int    `yaml:"windowCapacity"`
	TickIntervalMillis int    `yaml:"tickIntervalMillis"`
	QueueSize          int    `yaml:"queueSize"`
	MaxDrainPerTick    int    `yaml:"maxDrainPerTick"`
	// Output is empty for a live window, or the path of an image file rewritten on every update.
	Output    string `yaml:"output"`
	ExportDir string `yaml:"exportDir"`
	LogFile   string `yaml:"logFile"`

	Relay  RelayConfig  `yaml:"relay"`
	Sensor SensorConfig `yaml:"sensor"`
}

type RelayConfig struct {
	ListenAddress string `yaml:"listenAddress"`
}

type SensorConfig struct {
	IntervalMillis int     `yaml:"intervalMillis"`
	InitialValue   float64 `yaml:"initialValue"`
	Step           float64 `yaml:"step"`
}

func Default() *Config {
	return &Config{
		ServerAddress:      "localhost:1883",
		Topic:              "sensors/temperature",
		WindowCapacity:     60,
		TickIntervalMillis: 100,
		QueueSize:          256,
		MaxDrainPerTick:    0,
		ExportDir:          ".",
		Relay: RelayConfig{
			ListenAddress: ":1883",
		},
		Sensor: SensorConfig{
			IntervalMillis: 1000,
			InitialValue:   20.0,
			Step:           0.1,
		},
	}
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMillis) * time.Millisecond
}

func (c *Config) SensorInterval() time.Duration {
	return time.Duration(c.Sensor.IntervalMillis) * time.Millisecond
}

// Load builds the configuration from defaults, then a .env file in the working directory (if any), then the YAML
// file at path (if non-empty), then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	stringVars := map[string]*string{
		"SERVER_ADDRESS":       &cfg.ServerAddress,
		"SENSOR_TOPIC":         &cfg.Topic,
		"CLIENT_ID":            &cfg.ClientID,
		"MONITOR_OUTPUT":       &cfg.Output,
		"EXPORT_DIR":           &cfg.ExportDir,
		"LOG_FILE":             &cfg.LogFile,
		"RELAY_LISTEN_ADDRESS": &cfg.Relay.ListenAddress,
	}
	for name, field := range stringVars {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}

	intVars := map[string]*int{
		"WINDOW_CAPACITY":    &cfg.WindowCapacity,
		"TICK_INTERVAL_MS":   &cfg.TickIntervalMillis,
		"QUEUE_SIZE":         &cfg.QueueSize,
		"MAX_DRAIN_PER_TICK": &cfg.MaxDrainPerTick,
		"SENSOR_INTERVAL_MS": &cfg.Sensor.IntervalMillis,
	}
	for name, field := range intVars {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s=%q: %w", name, v, err)
			}
			*field = n
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return errors.New("serverAddress must be set")
	}
	if c.Topic == "" {
		return errors.New("topic must be set")
	}
	if c.WindowCapacity < 1 {
		return fmt.Errorf("windowCapacity must be at least 1, got %d", c.WindowCapacity)
	}
	if c.TickIntervalMillis < 1 {
		return fmt.Errorf("tickIntervalMillis must be positive, got %d", c.TickIntervalMillis)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queueSize must be at least 1, got %d", c.QueueSize)
	}
	if c.MaxDrainPerTick < 0 {
		return fmt.Errorf("maxDrainPerTick must not be negative, got %d", c.MaxDrainPerTick)
	}
	if c.Sensor.IntervalMillis < 1 {
		return fmt.Errorf("sensor.intervalMillis must be positive, got %d", c.Sensor.IntervalMillis)
	}
	if c.Sensor.Step < 0 {
		return fmt.Errorf("sensor.step must not be negative, got %v", c.Sensor.Step)
	}
	return nil
}
