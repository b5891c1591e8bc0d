package uuid

import (
	"github.com/google/uuid"
	"github.com/lukasz-zimnoch/sanad/trading"
)

// IDService issues random (version 4) UUIDs for trade events.
type IDService struct{}

func (ids *IDService) NewID() trading.ID {
	return uuid.New()
}

func (ids *IDService) NewIDFromString(id string) (trading.ID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}

	return parsed, nil
}
