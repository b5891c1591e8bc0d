package mail

import (
	"context"
	"fmt"

	"github.com/lukasz-zimnoch/sanad/trading"
	"gopkg.in/mail.v2"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Sender delivers composed messages; *mail.Dialer is the production one.
type Sender interface {
	DialAndSend(messages ...*mail.Message) error
}

// EventService mails a notification about every executed trade to the
// configured recipients.
type EventService struct {
	config *Config
	sender Sender
	logger trading.Logger
}

func NewEventService(config *Config, logger trading.Logger) *EventService {
	dialer := mail.NewDialer(
		config.Host,
		config.Port,
		config.Username,
		config.Password,
	)

	return NewEventServiceWithSender(config, dialer, logger)
}

func NewEventServiceWithSender(
	config *Config,
	sender Sender,
	logger trading.Logger,
) *EventService {
	return &EventService{
		config: config,
		sender: sender,
		logger: logger.WithField("component", "mail"),
	}
}

func (es *EventService) Publish(
	ctx context.Context,
	event *trading.TradeExecutedEvent,
) error {
	if len(es.config.To) == 0 {
		return nil
	}

	from := es.config.From
	if len(from) == 0 {
		from = es.config.Username
	}

	message := mail.NewMessage()
	message.SetHeader("From", from)
	message.SetHeader("To", es.config.To...)
	message.SetHeader("Subject", fmt.Sprintf("Trade executed on %v", event.Account))
	message.SetBody("text/plain", event.String())

	if err := es.sender.DialAndSend(message); err != nil {
		return fmt.Errorf("could not send email: [%v]", err)
	}

	es.logger.Debugf("mailed trade event [%v]", event.ID)

	return nil
}
