package trading

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type TokenAccountRepository interface {
	// TokenAccount returns ErrTokenAccountNotFound if there is no token
	// account at the given address.
	TokenAccount(address solana.PublicKey) (*TokenAccount, error)

	// CreateTokenAccount returns ErrTokenAccountAlreadyExists if the
	// address is taken.
	CreateTokenAccount(account *TokenAccount) error

	UpdateTokenAccount(account *TokenAccount) error
}

type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
}

func (ta *TokenAccount) String() string {
	return fmt.Sprintf(
		"address: %v, mint: %v, owner: %v, amount: %v",
		ta.Address,
		ta.Mint,
		ta.Owner,
		ta.Amount,
	)
}

// TokenTransferService moves token amounts between token accounts inside
// a store transaction.
type TokenTransferService interface {
	Transfer(
		tx Transaction,
		from, to, authority solana.PublicKey,
		amount uint64,
	) error
}

// TokenProgram keeps token balances with the rules of the SPL token program:
// transfers must be signed by the source owner and stay within one mint.
type TokenProgram struct{}

func (tp *TokenProgram) Transfer(
	tx Transaction,
	from, to, authority solana.PublicKey,
	amount uint64,
) error {
	source, err := tx.TokenAccount(from)
	if err != nil {
		return fmt.Errorf("could not get source account [%v]: [%w]", from, err)
	}

	destination, err := tx.TokenAccount(to)
	if err != nil {
		return fmt.Errorf("could not get destination account [%v]: [%w]", to, err)
	}

	if !source.Owner.Equals(authority) {
		return fmt.Errorf(
			"source account [%v] is owned by [%v], not [%v]: [%w]",
			from,
			source.Owner,
			authority,
			ErrTokenOwnerMismatch,
		)
	}

	if !source.Mint.Equals(destination.Mint) {
		return fmt.Errorf(
			"source mint [%v], destination mint [%v]: [%w]",
			source.Mint,
			destination.Mint,
			ErrMintMismatch,
		)
	}

	if source.Amount < amount {
		return fmt.Errorf(
			"source account [%v] holds [%v], transfer needs [%v]: [%w]",
			from,
			source.Amount,
			amount,
			ErrInsufficientFunds,
		)
	}

	if amount == 0 || from.Equals(to) {
		return nil
	}

	credited, err := checkedAdd(destination.Amount, amount)
	if err != nil {
		return fmt.Errorf("could not credit account [%v]: [%w]", to, err)
	}

	source.Amount -= amount
	destination.Amount = credited

	if err := tx.UpdateTokenAccount(source); err != nil {
		return fmt.Errorf("could not update account [%v]: [%w]", from, err)
	}

	if err := tx.UpdateTokenAccount(destination); err != nil {
		return fmt.Errorf("could not update account [%v]: [%w]", to, err)
	}

	return nil
}

// CreateAccount opens the associated token account of the owner for the
// given mint.
func (tp *TokenProgram) CreateAccount(
	tx Transaction,
	owner, mint solana.PublicKey,
) (*TokenAccount, error) {
	address, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf(
			"could not derive token address for owner [%v]: [%v]",
			owner,
			err,
		)
	}

	account := &TokenAccount{
		Address: address,
		Mint:    mint,
		Owner:   owner,
	}

	if err := tx.CreateTokenAccount(account); err != nil {
		return nil, fmt.Errorf(
			"could not create token account [%v]: [%w]",
			address,
			err,
		)
	}

	return account, nil
}

func (tp *TokenProgram) MintTo(
	tx Transaction,
	address solana.PublicKey,
	amount uint64,
) (*TokenAccount, error) {
	account, err := tx.TokenAccount(address)
	if err != nil {
		return nil, fmt.Errorf("could not get token account [%v]: [%w]", address, err)
	}

	minted, err := checkedAdd(account.Amount, amount)
	if err != nil {
		return nil, fmt.Errorf("could not mint to [%v]: [%w]", address, err)
	}

	account.Amount = minted

	if err := tx.UpdateTokenAccount(account); err != nil {
		return nil, fmt.Errorf("could not update token account [%v]: [%w]", address, err)
	}

	return account, nil
}

// LoadTokenAccount reads the token account at the address.
func LoadTokenAccount(
	ctx context.Context,
	store Store,
	address solana.PublicKey,
) (*TokenAccount, error) {
	var account *TokenAccount

	err := store.Atomically(ctx, func(tx Transaction) error {
		var err error
		account, err = tx.TokenAccount(address)
		return err
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}
