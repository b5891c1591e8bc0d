package trading

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// AccountSeed is the namespace tag mixed with the owner key when deriving
// a trading account address.
const AccountSeed = "trading"

// AccountDataSize is the serialized size of a trading account record,
// discriminator included.
const AccountDataSize = 8 + 32 + 32 + 8 + 2 + 8 + 8 + 1 + 1

// DefaultProgramID is the program id used for address derivation when the
// configuration does not provide one.
var DefaultProgramID = solana.MustPublicKeyFromBase58(
	"Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
)

type AccountRepository interface {
	// Account returns ErrAccountNotFound if there is no account
	// at the given address.
	Account(address solana.PublicKey) (*Account, error)

	// CreateAccount returns ErrAccountAlreadyExists if the address is taken.
	CreateAccount(account *Account) error

	UpdateAccount(account *Account) error

	DeleteAccount(address solana.PublicKey) error
}

type Account struct {
	Address   solana.PublicKey
	Owner     solana.PublicKey
	Authority solana.PublicKey

	MaxTradeAmount uint64
	FeePercentage  uint16

	TotalTrades   uint64
	TotalFeesPaid uint64

	IsActive bool
	Bump     uint8

	// Lamports is the storage deposit paid by the owner at initialization.
	Lamports uint64
}

func (a *Account) State() AccountState {
	if a.IsActive {
		return StateActive
	}

	return StateInactive
}

func (a *Account) String() string {
	return fmt.Sprintf(
		"address: %v, owner: %v, state: %v, trades: %v, fees: %v",
		a.Address,
		a.Owner,
		a.State(),
		a.TotalTrades,
		a.TotalFeesPaid,
	)
}

type AccountState int

const (
	StateActive AccountState = iota
	StateInactive
)

func (as AccountState) String() string {
	switch as {
	case StateActive:
		return "ACTIVE"
	case StateInactive:
		return "INACTIVE"
	default:
		panic("unknown account state")
	}
}

// SettingsUpdate carries the optional fields of an update; nil fields
// leave the stored value untouched.
type SettingsUpdate struct {
	MaxTradeAmount *uint64
	IsActive       *bool
}

// DeriveAccountAddress returns the trading account address of the owner
// together with the bump that makes it a valid program address.
func DeriveAccountAddress(
	programID solana.PublicKey,
	owner solana.PublicKey,
) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(accountSeeds(owner), programID)
}

// VerifyAccountAddress checks that the stored bump reproduces the
// account address from the owner seeds.
func VerifyAccountAddress(programID solana.PublicKey, account *Account) error {
	address, err := solana.CreateProgramAddress(
		append(accountSeeds(account.Owner), []byte{account.Bump}),
		programID,
	)
	if err != nil {
		return fmt.Errorf(
			"could not recreate address of account [%v]: [%w]",
			account.Address,
			ErrAddressMismatch,
		)
	}

	if !address.Equals(account.Address) {
		return fmt.Errorf(
			"expected [%v], got [%v]: [%w]",
			address,
			account.Address,
			ErrAddressMismatch,
		)
	}

	return nil
}

func accountSeeds(owner solana.PublicKey) [][]byte {
	return [][]byte{[]byte(AccountSeed), owner.Bytes()}
}
