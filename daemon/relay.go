package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/lukasz-zimnoch/sanad/trading"
)

const (
	DefaultRelayInterval  = 5 * time.Second
	DefaultRelayBatchSize = 100
)

// EventRelay forwards trade events from the durable event log to the
// publisher and marks them published once the publisher accepted them.
// Delivery is at least once: an event whose marking fails is sent again.
type EventRelay struct {
	logger    trading.Logger
	eventLog  trading.EventLog
	publisher trading.EventService
	interval  time.Duration
	batchSize int
	done      chan struct{}
}

func RunEventRelay(
	ctx context.Context,
	logger trading.Logger,
	eventLog trading.EventLog,
	publisher trading.EventService,
	interval time.Duration,
	batchSize int,
) *EventRelay {
	relay := NewEventRelay(logger, eventLog, publisher, interval, batchSize)

	go relay.loop(ctx)

	return relay
}

func NewEventRelay(
	logger trading.Logger,
	eventLog trading.EventLog,
	publisher trading.EventService,
	interval time.Duration,
	batchSize int,
) *EventRelay {
	if interval <= 0 {
		interval = DefaultRelayInterval
	}

	if batchSize <= 0 {
		batchSize = DefaultRelayBatchSize
	}

	return &EventRelay{
		logger:    logger.WithField("component", "event-relay"),
		eventLog:  eventLog,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		done:      make(chan struct{}),
	}
}

func (er *EventRelay) loop(ctx context.Context) {
	defer close(er.done)

	ticker := time.NewTicker(er.interval)
	defer ticker.Stop()

	er.logger.Infof("running event relay with interval [%v]", er.interval)

	for {
		select {
		case <-ticker.C:
			// drain the backlog before waiting for the next tick
			for {
				relayed, err := er.RelayPending(ctx)
				if err != nil {
					er.logger.Errorf("could not relay events: [%v]", err)
					break
				}

				if relayed < er.batchSize {
					break
				}
			}
		case <-ctx.Done():
			er.logger.Infof("event relay context is done")
			return
		}
	}
}

// RelayPending publishes one batch of pending events in log order and
// returns how many of them were published. It stops at the first event the
// publisher rejects so that the rest keep their order for the next attempt.
func (er *EventRelay) RelayPending(ctx context.Context) (int, error) {
	events, err := er.eventLog.PendingEvents(ctx, er.batchSize)
	if err != nil {
		return 0, fmt.Errorf("could not get pending events: [%v]", err)
	}

	published := make([]trading.ID, 0, len(events))

	var publishErr error
	for _, event := range events {
		if err := er.publisher.Publish(ctx, event); err != nil {
			publishErr = fmt.Errorf(
				"could not publish event [%v]: [%v]",
				event.ID,
				err,
			)
			break
		}

		published = append(published, event.ID)
	}

	if len(published) > 0 {
		if err := er.eventLog.MarkEventsPublished(ctx, published...); err != nil {
			return 0, fmt.Errorf("could not mark events published: [%v]", err)
		}

		er.logger.Debugf("relayed [%v] events", len(published))
	}

	return len(published), publishErr
}

// Done is closed when the relay loop exits.
func (er *EventRelay) Done() <-chan struct{} {
	return er.done
}
