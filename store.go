package trading

import (
	"context"
	"time"
)

// Transaction exposes the records touched by a single operation. Changes
// made through it become visible only if the enclosing Atomically call
// succeeds.
type Transaction interface {
	AccountRepository
	TokenAccountRepository
	BalanceRepository
	EventRepository
	SignatureRepository
}

type Store interface {
	EventLog

	// Atomically runs fn in a serializable transaction. It commits when fn
	// returns nil and discards every staged change otherwise.
	Atomically(ctx context.Context, fn func(tx Transaction) error) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
