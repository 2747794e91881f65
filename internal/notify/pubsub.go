package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/formwatch/formwatch/internal/config"
)

// publisher is the subset of the Pub/Sub topic API the channel needs,
// swappable in tests.
type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSub streams change events onto a Google Cloud Pub/Sub topic as JSON so
// downstream consumers can react without polling the store.
type PubSub struct {
	cfg   config.PubSubConfig
	topic publisher
}

// NewPubSub creates the Pub/Sub channel. The client is only dialed when the
// channel is enabled; a disabled channel carries no connection at all.
func NewPubSub(ctx context.Context, cfg config.PubSubConfig) (*PubSub, error) {
	ch := &PubSub{cfg: cfg}
	if !cfg.Enabled {
		return ch, nil
	}
	if cfg.ProjectID == "" || cfg.TopicName == "" {
		return ch, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	ch.topic = client.Topic(cfg.TopicName)
	return ch, nil
}

func (p *PubSub) Name() string { return "pubsub" }

func (p *PubSub) Enabled() bool { return p.cfg.Enabled }

func (p *PubSub) Send(ctx context.Context, msg Message) error {
	if p.topic == nil {
		return fmt.Errorf("%w: pubsub project and topic are required", ErrConfigMissing)
	}

	data, err := json.Marshal(map[string]any{
		"resource_id":   msg.ResourceID,
		"resource_name": msg.ResourceName,
		"agency_name":   msg.AgencyName,
		"severity":      string(msg.Severity),
		"description":   msg.Description,
		"url":           msg.URL,
		"detected_at":   msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encoding change event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"severity":    string(msg.Severity),
			"resource_id": msg.ResourceID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing change event: %w", err)
	}
	return nil
}
