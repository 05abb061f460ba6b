// Package mqtt mirrors the daemon status to an MQTT broker.
package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	timeout = 10 * time.Second
)

// Connect connects to the broker at serverURL. If willTopic is set, the
// broker publishes a retained "false" there once the connection is lost.
func Connect(serverURL, clientID, willTopic string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(serverURL).
		SetClientID(clientID).
		SetAutoReconnect(true)
	if willTopic != "" {
		opts.SetWill(willTopic, "false", 1, true)
	}
	client := mqtt.NewClient(opts)

	token := client.Connect()
	completed := token.WaitTimeout(timeout)
	if !completed {
		return nil, fmt.Errorf("timeout connecting to mqtt")
	} else {
		return client, token.Error()
	}
}

// Publishes a given value to the the broker at the given topic.
// Non-strings are converted to their string representations.
func Publish(mqttClient mqtt.Client, topic string, qos byte, retained bool, value interface{}) error {
	payload := fmt.Sprintf("%v", value)

	l := log.WithFields(log.Fields{
		"topic":    topic,
		"qos":      qos,
		"retained": retained,
		"payload":  payload,
	})

	token := mqttClient.Publish(topic, qos, retained, payload)
	completed := token.WaitTimeout(timeout)

	if !completed {
		return fmt.Errorf("timeout publishing to mqtt")
	} else {
		if token.Error() == nil {
			l.Trace("published message")
		}
		return token.Error()
	}
}
