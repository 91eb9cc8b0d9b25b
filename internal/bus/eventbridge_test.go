package bus

import (
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kolosalai/agentruntime/internal/agentdata"
)

type fakeToken struct{ err error }

func (f *fakeToken) Wait() bool                     { return true }
func (f *fakeToken) WaitTimeout(time.Duration) bool  { return true }
func (f *fakeToken) Done() <-chan struct{}           { ch := make(chan struct{}); close(ch); return ch }
func (f *fakeToken) Error() error                    { return f.err }

type fakeMQTTClient struct {
	connected bool
	published []string
}

func (f *fakeMQTTClient) Connect() mqtt.Token           { f.connected = true; return &fakeToken{} }
func (f *fakeMQTTClient) Disconnect(uint)                { f.connected = false }
func (f *fakeMQTTClient) IsConnected() bool              { return f.connected }
func (f *fakeMQTTClient) Publish(topic string, _ byte, _ bool, _ any) mqtt.Token {
	f.published = append(f.published, topic)
	return &fakeToken{}
}

func TestMQTTEventBridgePublishesToDirectTopic(t *testing.T) {
	client := &fakeMQTTClient{connected: true}
	bridge := NewMQTTEventBridge(client, nil)

	bridge.Publish(NewMessage("a", "b", "ping", agentdata.Data{"x": agentdata.Int(1)}))

	if len(client.published) != 1 || client.published[0] != "agentruntime/agents/b/messages" {
		t.Fatalf("unexpected publish topics: %v", client.published)
	}
}

func TestMQTTEventBridgePublishesToBroadcastTopic(t *testing.T) {
	client := &fakeMQTTClient{connected: true}
	bridge := NewMQTTEventBridge(client, nil)

	bridge.Publish(NewMessage("a", Broadcast, "announce", nil))

	if len(client.published) != 1 || client.published[0] != broadcastTopic {
		t.Fatalf("unexpected publish topics: %v", client.published)
	}
}

func TestMQTTEventBridgeSkipsWhenDisconnected(t *testing.T) {
	client := &fakeMQTTClient{connected: false}
	bridge := NewMQTTEventBridge(client, nil)

	bridge.Publish(NewMessage("a", "b", "ping", nil))

	if len(client.published) != 0 {
		t.Fatal("expected no publish attempt while disconnected")
	}
}

func TestRouterWithEventSinkForwardsDispatchedMessages(t *testing.T) {
	client := &fakeMQTTClient{connected: true}
	bridge := NewMQTTEventBridge(client, nil)

	r := NewRouter(nil)
	r.SetEventSink(bridge)
	r.Start()
	defer r.Stop(time.Second)

	done := make(chan struct{})
	r.Register("a", func(Message) { close(done) })
	r.Route(NewMessage("x", "a", "t", nil))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected message delivery")
	}

	waitFor(t, func() bool { return len(client.published) == 1 })
}
