package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/lukasz-zimnoch/sanad/trading"
)

const tradeExecutedEventType = "TradeExecuted"

type EventService struct {
	client *Client
	logger trading.Logger
}

func NewEventService(client *Client, logger trading.Logger) *EventService {
	return &EventService{client, logger.WithField("topic", "trades")}
}

// Publish blocks until the server acknowledges the message so that the
// caller may mark the event as delivered.
func (es *EventService) Publish(
	ctx context.Context,
	event *trading.TradeExecutedEvent,
) error {
	messageData, err := json.Marshal(newTradeMessage(event))
	if err != nil {
		return fmt.Errorf("could not marshal trade event: [%v]", err)
	}

	result := es.client.tradesTopic.Publish(ctx, &pubsub.Message{
		Data: messageData,
		Attributes: map[string]string{
			"event_type": tradeExecutedEventType,
			"event_id":   event.ID.String(),
			"account":    event.Account.String(),
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("could not publish trade event [%v]: [%v]", event.ID, err)
	}

	es.logger.Debugf(
		"published trade event [%v] with message ID: [%v]",
		event.ID,
		id,
	)

	return nil
}

type tradeMessage struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Account   string `json:"account"`
	Amount    uint64 `json:"amount"`
	FeeAmount uint64 `json:"fee_amount"`
	NetAmount uint64 `json:"net_amount"`
	Timestamp int64  `json:"timestamp"`
}

func newTradeMessage(event *trading.TradeExecutedEvent) *tradeMessage {
	return &tradeMessage{
		ID:        event.ID.String(),
		User:      event.User.String(),
		Account:   event.Account.String(),
		Amount:    event.Amount,
		FeeAmount: event.FeeAmount,
		NetAmount: event.NetAmount,
		Timestamp: event.Timestamp,
	}
}
