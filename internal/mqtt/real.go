package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/logic"
)

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	outbox *outbox
}

// ClientID returns a client id unique to this process.
func ClientID() string {
	return "garage-controller-" + uuid.NewString()[:8]
}

// NewRealPublisher creates a publisher for the given broker. Connection is
// attempted in the background and retried until it succeeds.
func NewRealPublisher(broker string) *RealPublisher {
	p := &RealPublisher{outbox: newOutbox(BufferCapacity)}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "CONNECTION_LOST",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	n, err := p.outbox.flush(func(m bufferedMsg) error {
		return wait(c.Publish(m.topic, m.qos, m.retained, m.payload))
	})
	ev := log.Info().Int("replayed", n)
	if err != nil {
		ev = log.Warn().Err(err).Int("replayed", n)
	}
	ev.Msg("mqtt connected")
}

func wait(token paho.Token) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}
	if !p.client.IsConnectionOpen() {
		p.outbox.hold(msg)
		return nil
	}
	if err := wait(p.client.Publish(topic, qos, retained, payload)); err != nil {
		p.outbox.hold(msg)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishDoor sends a door transition (QoS 1, not retained).
func (p *RealPublisher) PublishDoor(event logic.Event) error {
	payload, err := FormatDoorPayload(event)
	if err != nil {
		return fmt.Errorf("format door payload: %w", err)
	}
	return p.publish(TopicDoor, 1, false, payload)
}

// PublishCommand sends a command audit record (QoS 0).
func (p *RealPublisher) PublishCommand(event CommandEvent) error {
	payload, err := FormatCommandPayload(event)
	if err != nil {
		return fmt.Errorf("format command payload: %w", err)
	}
	return p.publish(TopicCommands, 0, false, payload)
}

// PublishLevel sends a cistern reading, retained so new subscribers see the last level.
func (p *RealPublisher) PublishLevel(snap cistern.Snapshot) error {
	payload, err := FormatLevelPayload(snap)
	if err != nil {
		return fmt.Errorf("format level payload: %w", err)
	}
	return p.publish(TopicLevel, 0, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.outbox.len(); n > 0 {
		log.Warn().Int("dropped", n).Msg("mqtt closing with undelivered messages")
	}
	p.client.Disconnect(1000)
	return nil
}
