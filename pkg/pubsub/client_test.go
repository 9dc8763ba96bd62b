package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"shop", "orders", "projects/shop/topics/orders"},
		{"shop", " orders ", "projects/shop/topics/orders"},
		{"shop", "projects/other/topics/orders", "projects/other/topics/orders"},
		{"", "projects/other/topics/orders", "projects/other/topics/orders"},
		{"", "orders", ""},
		{"shop", "", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, topicResourceName(tc.project, tc.name), "%s/%s", tc.project, tc.name)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "orders"}, nil)
	require.ErrorIs(t, err, errNoProject)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "shop"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoTopic)
}

func TestDisconnectedClient(t *testing.T) {
	var c *Client
	require.Nil(t, c.OrdersPublisher())
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Ping(context.Background()), errNotConnected)
}
