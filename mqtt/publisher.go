package mqtt

import (
	"context"
	"encoding/json"
	"path"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/server"
)

// Publisher publishes the daemon status, retained, to
// <prefix>/<machine-id>/status. Updates arriving faster than the broker
// accepts them are coalesced, only the latest one is sent.
type Publisher struct {
	client  mqtt.Client
	prefix  string
	updates chan []byte
}

func NewPublisher(client mqtt.Client, topicPrefix, machineID string) *Publisher {
	return &Publisher{
		client:  client,
		prefix:  path.Join(topicPrefix, machineID),
		updates: make(chan []byte, 1),
	}
}

// OnlineTopic carries a retained "true" while the daemon is connected.
func OnlineTopic(topicPrefix, machineID string) string {
	return path.Join(topicPrefix, machineID, "online")
}

func (p *Publisher) OnlineTopic() string {
	return path.Join(p.prefix, "online")
}

// StatusTopic carries the retained status JSON.
func (p *Publisher) StatusTopic() string {
	return path.Join(p.prefix, "status")
}

// PublishStatus implements server.StatePublisher. It never blocks.
func (p *Publisher) PublishStatus(s server.Status) {
	data, err := json.Marshal(s)
	if err != nil {
		log.WithError(err).Error("unable to encode status")
		return
	}
	for {
		select {
		case p.updates <- data:
			return
		default:
		}
		// drop the stale update
		select {
		case <-p.updates:
		default:
		}
	}
}

// Run sends queued updates until ctx is cancelled, then marks the daemon
// offline.
func (p *Publisher) Run(ctx context.Context) {
	if err := Publish(p.client, p.OnlineTopic(), 1, true, true); err != nil {
		log.WithError(err).Warn("unable to publish online state")
	}

	for {
		select {
		case <-ctx.Done():
			if err := Publish(p.client, p.OnlineTopic(), 1, true, false); err != nil {
				log.WithError(err).Warn("unable to publish offline state")
			}
			return
		case data := <-p.updates:
			if err := Publish(p.client, p.StatusTopic(), 1, true, string(data)); err != nil {
				log.WithError(err).Warn("unable to publish status")
			}
		}
	}
}
