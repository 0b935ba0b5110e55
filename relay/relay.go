// Package relay runs the sensor service: an embedded MQTT broker that forwards readings published by sensors to
// every subscribed monitor.
package relay

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/celskeggs/sensorwatch/source"
	"github.com/hashicorp/go-multierror"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

const (
	DefaultListenAddress = ":1883"
	DefaultCloseGrace    = 200 * time.Millisecond

	inlineSubscriptionID = 1
)

type Options struct {
	ListenAddress string
	Topic         string
	// CloseGrace is how long Close waits after publishing the end-of-stream marker before disconnecting clients.
	CloseGrace time.Duration
}

type Relay struct {
	server   *mqtt.Server
	listener *listeners.TCP
	topic    string
	grace    time.Duration

	forwarded atomic.Int64
	rejected  atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// Start binds the listener and begins serving. Any client may publish or subscribe.
func Start(opts Options) (*Relay, error) {
	if opts.ListenAddress == "" {
		opts.ListenAddress = DefaultListenAddress
	}
	if opts.Topic == "" {
		opts.Topic = source.DefaultTopic
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = DefaultCloseGrace
	}

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}
	tcp := listeners.NewTCP(listeners.Config{
		ID:      "relay",
		Address: opts.ListenAddress,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("listen on %s: %w", opts.ListenAddress, err)
	}

	r := &Relay{
		server:   server,
		listener: tcp,
		topic:    opts.Topic,
		grace:    opts.CloseGrace,
	}
	if err := server.Subscribe(opts.Topic, inlineSubscriptionID, r.onReading); err != nil {
		_ = server.Close()
		return nil, err
	}
	if err := server.Serve(); err != nil {
		_ = server.Close()
		return nil, err
	}
	log.Printf("Relay serving %q on %s", r.topic, tcp.Address())
	return r, nil
}

func (r *Relay) onReading(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
	reading, err := source.Decode(pk.Payload)
	if errors.Is(err, source.ErrEndMarker) {
		return
	}
	if err != nil {
		r.rejected.Add(1)
		log.Printf("Relay received malformed reading: %v", err)
		return
	}
	r.forwarded.Add(1)
	log.Printf("Relay received %.2f C (time: %s)", reading.Value, reading.Timestamp.Format(time.ANSIC))
}

func (r *Relay) Address() string {
	return r.listener.Address()
}

func (r *Relay) Topic() string {
	return r.topic
}

// Forwarded counts well-formed readings seen on the topic.
func (r *Relay) Forwarded() int64 {
	return r.forwarded.Load()
}

func (r *Relay) Rejected() int64 {
	return r.rejected.Load()
}

// Close tells subscribers that the stream has ended, waits for the marker to go out, and shuts the broker down.
func (r *Relay) Close() error {
	r.closeOnce.Do(func() {
		var result error
		if err := r.server.Publish(r.topic, source.EndMarker(), false, 1); err != nil {
			result = multierror.Append(result, fmt.Errorf("publish end-of-stream marker: %w", err))
		}
		time.Sleep(r.grace)
		if err := r.server.Unsubscribe(r.topic, inlineSubscriptionID); err != nil {
			result = multierror.Append(result, err)
		}
		if err := r.server.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		r.closeErr = result
		log.Printf("Relay stopped after forwarding %d readings", r.Forwarded())
	})
	return r.closeErr
}
