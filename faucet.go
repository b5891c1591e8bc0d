package trading

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Faucet funds principals on development deployments: native lamports for
// storage deposits and tokens for trading.
type Faucet struct {
	store        Store
	tokenProgram *TokenProgram
	logger       Logger
}

func NewFaucet(store Store, tokenProgram *TokenProgram, logger Logger) *Faucet {
	return &Faucet{
		store:        store,
		tokenProgram: tokenProgram,
		logger:       logger.WithField("component", "faucet"),
	}
}

func (f *Faucet) Airdrop(
	ctx context.Context,
	owner solana.PublicKey,
	lamports uint64,
) (uint64, error) {
	var balance uint64

	err := f.store.Atomically(ctx, func(tx Transaction) error {
		if err := Airdrop(tx, owner, lamports); err != nil {
			return err
		}

		var err error
		balance, err = tx.Lamports(owner)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("could not airdrop to [%v]: [%w]", owner, err)
	}

	f.logger.Infof("airdropped [%v] lamports to [%v]", lamports, owner)

	return balance, nil
}

func (f *Faucet) CreateTokenAccount(
	ctx context.Context,
	owner, mint solana.PublicKey,
) (*TokenAccount, error) {
	var account *TokenAccount

	err := f.store.Atomically(ctx, func(tx Transaction) error {
		var err error
		account, err = f.tokenProgram.CreateAccount(tx, owner, mint)
		return err
	})
	if err != nil {
		return nil, err
	}

	f.logger.Infof("created token account [%v]", account.Address)

	return account, nil
}

func (f *Faucet) MintTo(
	ctx context.Context,
	address solana.PublicKey,
	amount uint64,
) (*TokenAccount, error) {
	var account *TokenAccount

	err := f.store.Atomically(ctx, func(tx Transaction) error {
		var err error
		account, err = f.tokenProgram.MintTo(tx, address, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	f.logger.Infof("minted [%v] tokens to [%v]", amount, address)

	return account, nil
}

func (f *Faucet) TokenAccount(
	ctx context.Context,
	address solana.PublicKey,
) (*TokenAccount, error) {
	return LoadTokenAccount(ctx, f.store, address)
}

func (f *Faucet) Lamports(
	ctx context.Context,
	owner solana.PublicKey,
) (uint64, error) {
	var balance uint64

	err := f.store.Atomically(ctx, func(tx Transaction) error {
		var err error
		balance, err = tx.Lamports(owner)
		return err
	})

	return balance, err
}
