// Package sensor simulates a temperature sensor that publishes one reading per interval.
package sensor

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/celskeggs/sensorwatch/model"
	"github.com/celskeggs/sensorwatch/source"
	"github.com/eclipse/paho.golang/paho"
)

const (
	DefaultInitialValue   = 20.0
	DefaultStep           = 0.1
	DefaultInterval       = time.Second
	DefaultPublishTimeout = time.Second
)

// Generator produces a random walk: every value is within ±step of the previous one.
type Generator struct {
	current float64
	step    float64
	rand    *rand.Rand
}

func NewGenerator(initial, step float64, seed int64) *Generator {
	return &Generator{
		current: initial,
		step:    step,
		rand:    rand.New(rand.NewSource(seed)),
	}
}

func (g *Generator) Next() float64 {
	g.current += (g.rand.Float64()*2 - 1) * g.step
	return g.current
}

type client interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Disconnect(d *paho.Disconnect) error
}

type Publisher struct {
	client  client
	topic   string
	timeout time.Duration
	now     func() time.Time
}

// Dial connects a publisher to the relay at address.
func Dial(ctx context.Context, address, clientID, topic string) (*Publisher, error) {
	c, err := source.ConnectMQTT(ctx, source.ClientOptions{
		Address:  address,
		ClientID: clientID,
		OnClientError: func(err error) {
			log.Printf("Sensor connection error: %v", err)
		},
	})
	if err != nil {
		return nil, err
	}
	return NewPublisher(c, topic), nil
}

func NewPublisher(c client, topic string) *Publisher {
	if topic == "" {
		topic = source.DefaultTopic
	}
	return &Publisher{
		client:  c,
		topic:   topic,
		timeout: DefaultPublishTimeout,
		now:     time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, r model.Reading) error {
	payload, err := source.Encode(r)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := p.client.Publish(ctx, &paho.Publish{
		Topic:   p.topic,
		QoS:     1,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	if resp != nil && resp.ReasonCode >= 0x80 {
		return fmt.Errorf("publish rejected: reason 0x%02x", resp.ReasonCode)
	}
	return nil
}

// Run publishes a new value from gen every interval until ctx is cancelled. Failed publishes are logged and the
// next interval is tried regardless.
func (p *Publisher) Run(ctx context.Context, gen *Generator, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r := model.Reading{
				Value:     gen.Next(),
				Timestamp: p.now(),
			}
			if err := p.Publish(ctx, r); err != nil {
				log.Printf("Sensor failed to publish: %v", err)
			} else {
				log.Printf("Sensor published %.2f C", r.Value)
			}
		}
	}
}

func (p *Publisher) Close() error {
	return p.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
