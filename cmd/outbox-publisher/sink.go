package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

// topicSink sends to the orders topic and waits for the server ack.
type topicSink struct {
	client *pubsub.Client
}

func (s topicSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s topicSink) Send(ctx context.Context, msg *gcppubsub.Message) error {
	pub := s.client.OrdersPublisher()
	if pub == nil {
		return errors.New("orders publisher unavailable")
	}
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return err
}
