package relay

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
)

// Event topic suffixes, appended to the configured event topic.
const (
	TopicContinuous    = "/continuous"
	TopicHighestLowest = "/highestlowest"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// MQTT publishes events to a broker and, when a command handler is given,
// subscribes to the remote command topic.
type MQTT struct {
	client paho.Client
	broker string
	topic  string
}

// NewMQTT connects to the broker. onCommand receives the payload of every
// message on the command topic; nil disables the subscription. The
// subscription is renewed on every reconnect.
func NewMQTT(cfg config.MQTTConfig, clientID string, onCommand func(payload []byte)) (*MQTT, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(c paho.Client) {
		log.WithField("broker", cfg.Broker).Info("Connected to MQTT broker")
		if onCommand == nil {
			return
		}
		token := c.Subscribe(cfg.CommandTopic, 1, func(_ paho.Client, msg paho.Message) {
			onCommand(msg.Payload())
		})
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			log.WithError(token.Error()).Errorf("Failed to subscribe to %s", cfg.CommandTopic)
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, err)
	}

	return &MQTT{
		client: client,
		broker: cfg.Broker,
		topic:  cfg.EventTopic,
	}, nil
}

// Reading publishes a reading on <event topic>/continuous.
func (m *MQTT) Reading(r cycle.Reading) error {
	payload, err := FormatReading(r)
	if err != nil {
		return fmt.Errorf("format reading: %w", err)
	}
	return m.publish(m.topic+TopicContinuous, 0, payload)
}

// Cycle publishes a cycle record on <event topic>/highestlowest.
func (m *MQTT) Cycle(rec cycle.Record) error {
	payload, err := FormatCycle(rec)
	if err != nil {
		return fmt.Errorf("format cycle: %w", err)
	}
	// QoS 1, one message per cycle
	return m.publish(m.topic+TopicHighestLowest, 1, payload)
}

func (m *MQTT) publish(topic string, qos byte, payload []byte) error {
	token := m.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return &ConnectivityError{Endpoint: m.broker, Err: fmt.Errorf("publish %s: timeout", topic)}
	}
	if err := token.Error(); err != nil {
		return &ConnectivityError{Endpoint: m.broker, Err: fmt.Errorf("publish %s: %w", topic, err)}
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (m *MQTT) IsConnected() bool {
	return m.client.IsConnected()
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(1000)
	return nil
}
