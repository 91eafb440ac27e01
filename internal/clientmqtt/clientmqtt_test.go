package clientmqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmxport/internal/config"
	"dmxport/internal/logger"
)

// fakeMessage satisfies mqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func testClient(t *testing.T, offsets map[string]int) (*ClientMQTT, chan Update) {
	t.Helper()
	log, err := logger.NewLogger(config.LogConf{Level: "panic"})
	require.NoError(t, err)

	c := NewClient(log, MQTTConf{}, offsets)
	c.ctx = context.Background()
	updates := make(chan Update, 1)
	c.updates = updates
	return c, updates
}

func TestForward(t *testing.T) {
	c, updates := testClient(t, map[string]int{"light/stage": 8})

	c.forward(&fakeMessage{
		topic:   "light/stage",
		payload: []byte(`[{"channel":0,"value":255},{"channel":3,"value":128}]`),
	})

	select {
	case u := <-updates:
		assert.Equal(t, 8, u.Offset)
		require.Len(t, u.Commands, 2)
		assert.Equal(t, Command{Channel: 0, Value: 255}, u.Commands[0])
		assert.Equal(t, Command{Channel: 3, Value: 128}, u.Commands[1])
	case <-time.After(time.Second):
		t.Fatal("no update forwarded")
	}
}

func TestForwardDropsUnconfiguredTopic(t *testing.T) {
	c, updates := testClient(t, map[string]int{"light/stage": 0})

	c.forward(&fakeMessage{topic: "light/other", payload: []byte(`[]`)})
	assert.Empty(t, updates)
}

func TestForwardDropsBadPayload(t *testing.T) {
	c, updates := testClient(t, map[string]int{"light/stage": 0})

	c.forward(&fakeMessage{topic: "light/stage", payload: []byte(`{"nope":`)})
	assert.Empty(t, updates)
}

func TestForwardHonorsCanceledContext(t *testing.T) {
	c, _ := testClient(t, map[string]int{"light/stage": 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.ctx = ctx
	c.updates = make(chan Update) // unbuffered, nobody reading

	done := make(chan struct{})
	go func() {
		c.forward(&fakeMessage{topic: "light/stage", payload: []byte(`[{"channel":0,"value":1}]`)})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward blocked on a canceled context")
	}
}
