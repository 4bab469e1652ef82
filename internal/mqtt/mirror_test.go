package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/linjuya-lu/device_s2a_go/internal/router"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload []byte
}

type fakeBus struct {
	mu           sync.Mutex
	published    []published
	handlers     map[string]func([]byte)
	publishErr   error
	disconnected bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: map[string]func([]byte){}}
}

func (b *fakeBus) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, published{topic, payload})
	return nil
}

func (b *fakeBus) Subscribe(topic string, handler func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) Disconnect(uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = true
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *fakeBus) last() published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[len(b.published)-1]
}

type fakeBridge struct {
	mu        sync.Mutex
	report    string
	submitted []string
}

func (f *fakeBridge) Submit(path string) router.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, path)
	if path == "led/1" {
		return router.Result{Accepted: true, Body: router.Okay}
	}
	return router.Result{Body: "unknown command: " + path}
}

func (f *fakeBridge) Render() string { return f.report }

var testMQTT = config.MQTT{
	Broker:            "tcp://127.0.0.1:1883",
	ReportTopic:       "s2a/report",
	CommandTopic:      "s2a/command",
	ResponseTopic:     "s2a/response",
	PublishIntervalMs: 5,
}

func decode(t *testing.T, raw []byte, payload interface{}) EdgexMessage {
	t.Helper()
	var msg EdgexMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.NoError(t, json.Unmarshal(msg.Payload, payload))
	return msg
}

func TestPublishReport(t *testing.T) {
	bus := newFakeBus()
	m := NewMirror(logger.NewMockClient(), bus, &fakeBridge{report: "led_state 1\n"}, testMQTT, "arduino")

	require.NoError(t, m.PublishReport())
	require.Equal(t, 1, bus.count())

	p := bus.last()
	assert.Equal(t, "s2a/report", p.topic)
	var rp ReportPayload
	msg := decode(t, p.payload, &rp)
	assert.Equal(t, apiVersion, msg.ApiVersion)
	assert.Equal(t, jsonContentType, msg.ContentType)
	assert.NotEmpty(t, msg.CorrelationID)
	assert.NotEmpty(t, msg.RequestID)
	assert.Equal(t, "arduino", rp.Device)
	assert.Equal(t, "led_state 1\n", rp.Report)
}

func TestPublishReportSkipsEmpty(t *testing.T) {
	bus := newFakeBus()
	m := NewMirror(logger.NewMockClient(), bus, &fakeBridge{report: router.NothingToReport}, testMQTT, "arduino")

	require.NoError(t, m.PublishReport())
	assert.Zero(t, bus.count())
}

func TestHandleCommandPlainPath(t *testing.T) {
	bus := newFakeBus()
	bridge := &fakeBridge{}
	m := NewMirror(logger.NewMockClient(), bus, bridge, testMQTT, "arduino")

	m.HandleCommand([]byte("/led/1\n"))
	assert.Equal(t, []string{"led/1"}, bridge.submitted)

	var reply CommandReply
	decode(t, bus.last().payload, &reply)
	assert.Equal(t, CommandReply{Path: "led/1", Accepted: true, Body: router.Okay}, reply)
}

func TestHandleCommandEnvelope(t *testing.T) {
	bus := newFakeBus()
	bridge := &fakeBridge{}
	m := NewMirror(logger.NewMockClient(), bus, bridge, testMQTT, "arduino")

	in, err := json.Marshal(EdgexMessage{
		ApiVersion:    apiVersion,
		CorrelationID: "req-123",
		Payload:       json.RawMessage(`{"path":"fly/1"}`),
	})
	require.NoError(t, err)
	m.HandleCommand(in)

	p := bus.last()
	assert.Equal(t, "s2a/response", p.topic)
	var reply CommandReply
	msg := decode(t, p.payload, &reply)
	assert.Equal(t, "req-123", msg.CorrelationID)
	assert.False(t, reply.Accepted)
	assert.Equal(t, "unknown command: fly/1", reply.Body)
}

func TestStartSubscribesAndPublishes(t *testing.T) {
	bus := newFakeBus()
	bridge := &fakeBridge{report: "pot 3\n"}
	m := NewMirror(logger.NewMockClient(), bus, bridge, testMQTT, "arduino")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))

	require.Contains(t, bus.handlers, "s2a/command")
	bus.handlers["s2a/command"]([]byte("led/1"))
	assert.Equal(t, []string{"led/1"}, bridge.submitted)

	require.Eventually(t, func() bool { return bus.count() >= 3 }, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.True(t, bus.disconnected)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	bus := newFakeBus()
	bus.publishErr = errors.New("broker gone")
	m := NewMirror(logger.NewMockClient(), bus, &fakeBridge{report: "pot 3\n"}, testMQTT, "arduino")

	for i := uint32(0); i < breakerMaxFailures; i++ {
		assert.EqualError(t, m.PublishReport(), "broker gone")
	}
	assert.ErrorIs(t, m.PublishReport(), gobreaker.ErrOpenState)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.MQTT{
		Broker:            "tcp://broker:1883",
		ClientID:          "s2a",
		KeepAliveSec:      30,
		ConnectTimeoutSec: 5,
		Qos:               1,
	})
	assert.Equal(t, 30*time.Second, opts.KeepAlive)
	assert.Equal(t, 5*time.Second, opts.ConnectTimeout)
	assert.Equal(t, byte(1), opts.Qos)

	po := opts.pahoOptions()
	require.Len(t, po.Servers, 1)
	assert.Equal(t, "tcp://broker:1883", po.Servers[0].String())
	assert.Equal(t, "s2a", po.ClientID)
	assert.Equal(t, int64(30), po.KeepAlive)
	assert.True(t, po.AutoReconnect)
}
