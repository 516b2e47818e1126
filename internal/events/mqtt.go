package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// publishTimeout bounds how long a single MQTT publish may wait for the broker.
const publishTimeout = 5 * time.Second

// MQTTClient is the part of the paho client the sink needs.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink forwards events to an MQTT broker as JSON, one topic per event type.
type MQTTSink struct {
	client MQTTClient
	prefix string
	logger log.FieldLogger
}

// NewMQTTSink creates a sink publishing under "<prefix>/<event type>".
func NewMQTTSink(client MQTTClient, prefix string, logger log.FieldLogger) *MQTTSink {
	return &MQTTSink{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		logger: logger,
	}
}

// Topic returns the topic an event type is published on.
func (s *MQTTSink) Topic(t Type) string {
	return s.prefix + "/" + string(t)
}

// Handle publishes e. Failures are logged, never returned: the change the
// event describes is already stored.
func (s *MQTTSink) Handle(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.WithError(err).WithField("event", e.Type).Error("Failed to encode event")
		return
	}

	topic := s.Topic(e.Type)
	token := s.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		s.logger.WithField("topic", topic).Warn("Timed out publishing event")
		return
	}
	if err := token.Error(); err != nil {
		s.logger.WithError(err).WithField("topic", topic).Warn("Failed to publish event")
	}
}

// ConnectMQTT connects to the broker and returns the client.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}
