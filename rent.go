package trading

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	accountStorageOverhead  = 128
	lamportsPerByteYear     = 3480
	exemptionThresholdYears = 2
)

// MinimumDeposit returns the lamports a record of the given data size must
// hold to stay rent exempt.
func MinimumDeposit(dataSize uint64) uint64 {
	return (accountStorageOverhead + dataSize) *
		lamportsPerByteYear *
		exemptionThresholdYears
}

type BalanceRepository interface {
	// Lamports returns zero for principals that never held a balance.
	Lamports(owner solana.PublicKey) (uint64, error)

	SetLamports(owner solana.PublicKey, lamports uint64) error
}

func debitLamports(
	tx Transaction,
	owner solana.PublicKey,
	lamports uint64,
) error {
	balance, err := tx.Lamports(owner)
	if err != nil {
		return fmt.Errorf("could not get balance of [%v]: [%w]", owner, err)
	}

	if balance < lamports {
		return fmt.Errorf(
			"[%v] holds [%v] lamports, needs [%v]: [%w]",
			owner,
			balance,
			lamports,
			ErrInsufficientFunds,
		)
	}

	return tx.SetLamports(owner, balance-lamports)
}

func creditLamports(
	tx Transaction,
	owner solana.PublicKey,
	lamports uint64,
) error {
	balance, err := tx.Lamports(owner)
	if err != nil {
		return fmt.Errorf("could not get balance of [%v]: [%w]", owner, err)
	}

	credited, err := checkedAdd(balance, lamports)
	if err != nil {
		return fmt.Errorf("could not credit [%v]: [%w]", owner, err)
	}

	return tx.SetLamports(owner, credited)
}

// Airdrop credits native lamports to the owner.
func Airdrop(tx Transaction, owner solana.PublicKey, lamports uint64) error {
	return creditLamports(tx, owner, lamports)
}
