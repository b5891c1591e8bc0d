package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// SignatureRepository remembers the signatures of processed transactions
// until the transactions expire. Once expired, a transaction is rejected on
// its expiry alone, so its signature record may be dropped.
type SignatureRepository interface {
	// ConsumeSignature records the signature as used until expiresAt. It
	// returns ErrSignatureConsumed if the signature is recorded and still
	// valid at now.
	ConsumeSignature(signature solana.Signature, expiresAt, now time.Time) error
}

// ConsumeSignature records the signature in its own committed transaction,
// so it stays consumed whatever happens to the instruction it signs.
func ConsumeSignature(
	ctx context.Context,
	store Store,
	signature solana.Signature,
	expiresAt time.Time,
	now time.Time,
) error {
	err := store.Atomically(ctx, func(tx Transaction) error {
		return tx.ConsumeSignature(signature, expiresAt, now)
	})
	if err != nil {
		return fmt.Errorf("could not consume signature [%v]: [%w]", signature, err)
	}

	return nil
}
