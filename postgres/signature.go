package postgres

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
)

// ConsumeSignature prunes expired signatures and records the new one. The
// primary key makes concurrent consumers of one signature on different
// replicas wait for each other; only one of them inserts the row.
func (t *transaction) ConsumeSignature(
	signature solana.Signature,
	expiresAt time.Time,
	now time.Time,
) error {
	_, err := t.tx.ExecContext(
		t.ctx,
		`DELETE FROM consumed_signature WHERE expires_at <= $1`,
		now.UTC(),
	)
	if err != nil {
		return fmt.Errorf(
			"could not prune consumed signatures: [%w]",
			translateError(err),
		)
	}

	result, err := t.tx.ExecContext(
		t.ctx,
		`INSERT INTO consumed_signature (signature, expires_at) VALUES ($1, $2) 
		ON CONFLICT (signature) DO NOTHING`,
		signature.String(),
		expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf(
			"could not record signature [%v]: [%w]",
			signature,
			translateError(err),
		)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not record signature [%v]: [%v]", signature, err)
	}

	if affected == 0 {
		return fmt.Errorf("signature [%v]: [%w]", signature, trading.ErrSignatureConsumed)
	}

	return nil
}
