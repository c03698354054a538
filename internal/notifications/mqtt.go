package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const mqttQoS = 1

// publisher is the slice of an MQTT client the notifier uses.
type publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type mqttNotifier struct {
	topic string
	pub   publisher
}

func newMQTTNotifier(broker, topic, clientID string, timeout time.Duration) *mqttNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &mqttNotifier{
		topic: topic,
		pub:   &pahoPublisher{broker: broker, clientID: clientID, timeout: timeout},
	}
}

func (m *mqttNotifier) name() string { return "mqtt" }

func (m *mqttNotifier) send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mqtt message: %w", err)
	}
	return m.pub.Publish(ctx, m.topic+"/"+string(msg.Event), payload)
}

// pahoPublisher connects on first use and reconnects after a lost connection.
type pahoPublisher struct {
	broker   string
	clientID string
	timeout  time.Duration

	mu     sync.Mutex
	client paho.Client
}

func (p *pahoPublisher) connect() (paho.Client, error) {
	if p.client != nil && p.client.IsConnected() {
		return p.client, nil
	}
	opts := paho.NewClientOptions().
		AddBroker(p.broker).
		SetClientID(p.clientID).
		SetConnectTimeout(p.timeout).
		SetAutoReconnect(false).
		SetKeepAlive(30 * time.Second)
	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return nil, errors.New("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", p.broker, err)
	}
	p.client = client
	return client, nil
}

func (p *pahoPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := p.connect()
	if err != nil {
		return err
	}
	token := client.Publish(topic, mqttQoS, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("mqtt publish timeout: %s", topic)
	}
}
