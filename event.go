package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// TradeExecutedEvent is the durable record emitted by every executed trade.
type TradeExecutedEvent struct {
	ID        ID
	User      solana.PublicKey
	Account   solana.PublicKey
	Amount    uint64
	FeeAmount uint64
	NetAmount uint64
	Timestamp int64
}

func (e *TradeExecutedEvent) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

func (e *TradeExecutedEvent) String() string {
	return fmt.Sprintf(
		"Trade has been executed:\n"+
			"- ID: %v\n"+
			"- User: %v\n"+
			"- Account: %v\n"+
			"- Amount: %v\n"+
			"- Fee: %v\n"+
			"- Net amount: %v\n"+
			"- Time: %v",
		e.ID,
		e.User,
		e.Account,
		e.Amount,
		e.FeeAmount,
		e.NetAmount,
		e.Time().Format(time.RFC3339),
	)
}

type EventRepository interface {
	AppendEvent(event *TradeExecutedEvent) error
}

// EventLog is the read side of the durable event log.
type EventLog interface {
	// Events returns the newest events of the user first.
	Events(
		ctx context.Context,
		user solana.PublicKey,
		limit int,
	) ([]*TradeExecutedEvent, error)

	// PendingEvents returns the oldest events not yet marked published.
	PendingEvents(ctx context.Context, limit int) ([]*TradeExecutedEvent, error)

	MarkEventsPublished(ctx context.Context, ids ...ID) error
}

type EventService interface {
	Publish(ctx context.Context, event *TradeExecutedEvent) error
}

// EventServices publishes every event to all services in order.
type EventServices []EventService

func (es EventServices) Publish(
	ctx context.Context,
	event *TradeExecutedEvent,
) error {
	var errs []error

	for _, service := range es {
		if err := service.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
