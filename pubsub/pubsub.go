package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type Client struct {
	client      *pubsub.Client
	tradesTopic *pubsub.Topic
}

// NewClient connects to the project and makes sure the trades topic
// exists, creating it when missing.
func NewClient(
	ctx context.Context,
	projectID,
	tradesTopicID string,
	opts ...option.ClientOption,
) (*Client, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}

	topic := client.Topic(tradesTopicID)

	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf(
			"could not check topic [%v]: [%v]",
			tradesTopicID,
			err,
		)
	}

	if !exists {
		topic, err = client.CreateTopic(ctx, tradesTopicID)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf(
				"could not create topic [%v]: [%v]",
				tradesTopicID,
				err,
			)
		}
	}

	return &Client{
		client:      client,
		tradesTopic: topic,
	}, nil
}

func (c *Client) Close() error {
	c.tradesTopic.Stop()
	return c.client.Close()
}
