package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errNoProject    = errors.New("gcp project id is required")
	errNoTopic      = errors.New("pubsub orders topic is required")
	errNotConnected = errors.New("pubsub client not connected")
)

// Client publishes order lifecycle events. The orders publisher is created
// once and flushed on Close. PUBSUB_EMULATOR_HOST is honored by the SDK.
type Client struct {
	client      *pubsub.Client
	ordersTopic string
	settings    pubsub.PublishSettings

	once   sync.Once
	orders *pubsub.Publisher
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errNoProject
	}
	topic := topicResourceName(project, cfg.OrdersTopic)
	if topic == "" {
		return nil, errNoTopic
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	sdk, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	settings := pubsub.DefaultPublishSettings
	if cfg.PublishDelay > 0 {
		settings.DelayThreshold = cfg.PublishDelay
	}
	c := &Client{client: sdk, ordersTopic: topic, settings: settings}

	if err := c.ensureTopic(ctx, cfg.CreateTopic); err != nil {
		_ = sdk.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client ready")
	}
	return c, nil
}

// ensureTopic fails on a missing topic unless create is set, which local
// and emulator setups use.
func (c *Client) ensureTopic(ctx context.Context, create bool) error {
	admin := c.client.TopicAdminClient
	_, err := admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.ordersTopic})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("get topic %s: %w", c.ordersTopic, err)
	}
	if !create {
		return fmt.Errorf("topic %s does not exist", c.ordersTopic)
	}

	_, err = admin.CreateTopic(ctx, &pubsubpb.Topic{Name: c.ordersTopic})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("create topic %s: %w", c.ordersTopic, err)
	}
	return nil
}

// OrdersPublisher returns the shared publisher for the orders topic.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	c.once.Do(func() {
		c.orders = c.client.Publisher(c.ordersTopic)
		c.orders.PublishSettings = c.settings
	})
	return c.orders
}

// Ping checks the orders topic is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotConnected
	}
	return c.ensureTopic(ctx, false)
}

// Close flushes pending publishes before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.orders != nil {
		c.orders.Stop()
	}
	return c.client.Close()
}

// topicResourceName expands a short topic ID to its full resource name.
func topicResourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	project = strings.TrimSpace(project)
	if topic == "" || project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
