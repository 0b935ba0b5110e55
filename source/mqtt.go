package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/celskeggs/sensorwatch/model"
	"github.com/eclipse/paho.golang/paho"
)

const (
	DefaultTopic     = "sensors/temperature"
	DefaultKeepAlive = 30 * time.Second

	reasonNormalDisconnection = 0x00
	reasonServerShuttingDown  = 0x8B
)

// ClientOptions describes how to reach the MQTT broker that relays sensor readings.
type ClientOptions struct {
	Address   string
	ClientID  string
	KeepAlive time.Duration

	OnPublishReceived  func(paho.PublishReceived) (bool, error)
	OnServerDisconnect func(*paho.Disconnect)
	OnClientError      func(error)
}

// ConnectMQTT dials the broker and completes the MQTT v5 handshake.
func ConnectMQTT(ctx context.Context, opts ClientOptions) (*paho.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, err
	}
	config := paho.ClientConfig{
		ClientID:           opts.ClientID,
		Conn:               conn,
		OnServerDisconnect: opts.OnServerDisconnect,
		OnClientError:      opts.OnClientError,
	}
	if opts.OnPublishReceived != nil {
		config.OnPublishReceived = []func(paho.PublishReceived) (bool, error){opts.OnPublishReceived}
	}
	client := paho.NewClient(config)

	keepAlive := opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ca, err := client.Connect(ctx, &paho.Connect{
		ClientID:   opts.ClientID,
		KeepAlive:  uint16(keepAlive.Seconds()),
		CleanStart: true,
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if ca.ReasonCode != 0 {
		_ = conn.Close()
		return nil, fmt.Errorf("connection refused: reason 0x%02x", ca.ReasonCode)
	}
	return client, nil
}

// MQTTSource subscribes to a topic on which every message is one encoded reading.
type MQTTSource struct {
	Address   string
	Topic     string
	ClientID  string
	KeepAlive time.Duration
	// Buffer is how many decoded readings may wait for Recv before the client stops reading from the network.
	Buffer int
}

var _ Source = &MQTTSource{}

func (s *MQTTSource) Open(ctx context.Context) (Stream, error) {
	topic := s.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	buffer := s.Buffer
	if buffer <= 0 {
		buffer = 16
	}
	st := &mqttStream{
		topic:    topic,
		readings: make(chan model.Reading, buffer),
		done:     make(chan struct{}),
	}
	client, err := ConnectMQTT(ctx, ClientOptions{
		Address:            s.Address,
		ClientID:           s.ClientID,
		KeepAlive:          s.KeepAlive,
		OnPublishReceived:  st.onPublish,
		OnServerDisconnect: st.onServerDisconnect,
		OnClientError:      st.onClientError,
	})
	if err != nil {
		return nil, err
	}
	st.client = client

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topic, QoS: 1},
		},
	}); err != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: reasonNormalDisconnection})
		return nil, fmt.Errorf("subscribe to %q: %w", topic, err)
	}
	return st, nil
}

type mqttStream struct {
	topic    string
	client   *paho.Client
	readings chan model.Reading

	once   sync.Once
	done   chan struct{}
	err    error
	remote bool

	closeOnce sync.Once
	closeErr  error
}

// finish records the terminal condition of the stream; only the first call has any effect.
func (s *mqttStream) finish(err error, remote bool) {
	s.once.Do(func() {
		s.err = err
		s.remote = remote
		close(s.done)
	})
}

func (s *mqttStream) onPublish(pr paho.PublishReceived) (bool, error) {
	if pr.Packet.Topic != s.topic {
		return false, nil
	}
	r, err := Decode(pr.Packet.Payload)
	if errors.Is(err, ErrEndMarker) {
		s.finish(io.EOF, true)
		return true, nil
	}
	if err != nil {
		log.Printf("Dropping malformed reading on %q: %v", s.topic, err)
		return true, nil
	}
	select {
	case s.readings <- r:
	case <-s.done:
	}
	return true, nil
}

func (s *mqttStream) onServerDisconnect(d *paho.Disconnect) {
	switch d.ReasonCode {
	case reasonNormalDisconnection, reasonServerShuttingDown:
		s.finish(io.EOF, true)
	default:
		reason := ""
		if d.Properties != nil {
			reason = d.Properties.ReasonString
		}
		s.finish(fmt.Errorf("server disconnected: reason 0x%02x %s", d.ReasonCode, reason), true)
	}
}

func (s *mqttStream) onClientError(err error) {
	s.finish(fmt.Errorf("connection lost: %w", err), true)
}

func (s *mqttStream) Recv() (model.Reading, error) {
	select {
	case r := <-s.readings:
		return r, nil
	default:
	}
	select {
	case r := <-s.readings:
		return r, nil
	case <-s.done:
		// readings queued before the terminal condition are still delivered in order
		select {
		case r := <-s.readings:
			return r, nil
		default:
		}
		return model.Reading{}, s.err
	}
}

func (s *mqttStream) Close() error {
	s.closeOnce.Do(func() {
		s.finish(ErrStreamClosed, false)
		err := s.client.Disconnect(&paho.Disconnect{ReasonCode: reasonNormalDisconnection})
		if err != nil && !s.remote {
			s.closeErr = err
		}
	})
	return s.closeErr
}
