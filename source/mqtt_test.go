package source

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/celskeggs/sensorwatch/model"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddress(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func startBroker(t *testing.T) (server *mqtt.Server, addr string, stop func()) {
	addr = freeAddress(t)
	server = mqtt.New(&mqtt.Options{InlineClient: true})
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{ID: "test", Address: addr})))
	require.NoError(t, server.Serve())
	var once sync.Once
	stop = func() {
		once.Do(func() { _ = server.Close() })
	}
	t.Cleanup(stop)
	return server, addr, stop
}

type recvResult struct {
	reading model.Reading
	err     error
}

func recvAsync(stream Stream) <-chan recvResult {
	out := make(chan recvResult, 1)
	go func() {
		r, err := stream.Recv()
		out <- recvResult{r, err}
	}()
	return out
}

func recvWithin(t *testing.T, stream Stream) (model.Reading, error) {
	select {
	case res := <-recvAsync(stream):
		return res.reading, res.err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a reading")
		return model.Reading{}, nil
	}
}

func TestMQTTSourceDeliversReadingsThenEOF(t *testing.T) {
	server, addr, _ := startBroker(t)
	src := &MQTTSource{Address: addr, Topic: "test/readings", ClientID: "monitor-test"}
	stream, err := src.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		payload, err := Encode(model.Reading{Value: float64(i), Timestamp: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
		require.NoError(t, server.Publish("test/readings", payload, false, 1))
	}
	require.NoError(t, server.Publish("test/readings", []byte("garbage"), false, 1))
	require.NoError(t, server.Publish("test/readings", EndMarker(), false, 1))

	for i := 0; i < 5; i++ {
		r, err := recvWithin(t, stream)
		require.NoError(t, err)
		assert.Equal(t, float64(i), r.Value)
		assert.True(t, base.Add(time.Duration(i)*time.Second).Equal(r.Timestamp))
	}
	_, err = recvWithin(t, stream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMQTTSourceCloseUnblocksRecv(t *testing.T) {
	_, addr, _ := startBroker(t)
	stream, err := (&MQTTSource{Address: addr, ClientID: "monitor-close"}).Open(context.Background())
	require.NoError(t, err)

	pending := recvAsync(stream)
	require.NoError(t, stream.Close())
	select {
	case res := <-pending:
		assert.ErrorIs(t, res.err, ErrStreamClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Recv still blocked after Close")
	}
}

func TestMQTTSourceBrokerShutdownEndsStream(t *testing.T) {
	_, addr, stop := startBroker(t)
	stream, err := (&MQTTSource{Address: addr, ClientID: "monitor-shutdown"}).Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	pending := recvAsync(stream)
	stop()
	select {
	case res := <-pending:
		assert.Error(t, res.err)
	case <-time.After(5 * time.Second):
		t.Fatal("Recv still blocked after broker shutdown")
	}
}

func TestMQTTSourceConnectionRefused(t *testing.T) {
	addr := freeAddress(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := (&MQTTSource{Address: addr, ClientID: "monitor-refused"}).Open(ctx)
	assert.Error(t, err)
}
