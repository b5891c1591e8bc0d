package postgres

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgtype"
	"github.com/lukasz-zimnoch/sanad/trading"
)

func (t *transaction) TokenAccount(
	address solana.PublicKey,
) (*trading.TokenAccount, error) {
	var row tokenAccountRow

	found, err := t.getForUpdate(
		&row,
		`SELECT * FROM token_account WHERE address = $1`,
		address.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("could not get token account [%v]: [%v]", address, err)
	}

	if !found {
		return nil, fmt.Errorf(
			"no token account at [%v]: [%w]",
			address,
			trading.ErrTokenAccountNotFound,
		)
	}

	return row.unwrap()
}

func (t *transaction) CreateTokenAccount(account *trading.TokenAccount) error {
	query := `INSERT INTO token_account (address, mint, owner, amount) 
		VALUES (:address, :mint, :owner, :amount)`

	row, err := new(tokenAccountRow).wrap(account)
	if err != nil {
		return fmt.Errorf(
			"could not convert token account [%v] to pg row: [%v]",
			account.Address,
			err,
		)
	}

	if _, err := t.namedExec(query, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf(
				"address [%v] is taken: [%w]",
				account.Address,
				trading.ErrTokenAccountAlreadyExists,
			)
		}

		return fmt.Errorf(
			"could not execute command for token account [%v]: [%w]",
			account.Address,
			err,
		)
	}

	return nil
}

func (t *transaction) UpdateTokenAccount(account *trading.TokenAccount) error {
	query := `UPDATE token_account SET amount = :amount WHERE address = :address`

	row, err := new(tokenAccountRow).wrap(account)
	if err != nil {
		return fmt.Errorf(
			"could not convert token account [%v] to pg row: [%v]",
			account.Address,
			err,
		)
	}

	affected, err := t.namedExec(query, row)
	if err != nil {
		return fmt.Errorf(
			"could not execute command for token account [%v]: [%w]",
			account.Address,
			err,
		)
	}

	if affected == 0 {
		return fmt.Errorf(
			"no token account at [%v]: [%w]",
			account.Address,
			trading.ErrTokenAccountNotFound,
		)
	}

	return nil
}

// Lamports locks the balance row of the owner. Principals without a row
// have a zero balance; their row is created by SetLamports.
func (t *transaction) Lamports(owner solana.PublicKey) (uint64, error) {
	var lamports pgtype.Numeric

	found, err := t.getForUpdate(
		&lamports,
		`SELECT lamports FROM native_balance WHERE owner = $1`,
		owner.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("could not get balance of [%v]: [%v]", owner, err)
	}

	if !found {
		return 0, nil
	}

	return numericToUint64(lamports)
}

func (t *transaction) SetLamports(owner solana.PublicKey, lamports uint64) error {
	value, err := uint64ToNumeric(lamports)
	if err != nil {
		return fmt.Errorf("could not convert lamports [%v]: [%v]", lamports, err)
	}

	_, err = t.tx.ExecContext(
		t.ctx,
		`INSERT INTO native_balance (owner, lamports) VALUES ($1, $2) 
		ON CONFLICT (owner) DO UPDATE SET lamports = EXCLUDED.lamports`,
		owner.String(),
		value,
	)
	if err != nil {
		return fmt.Errorf(
			"could not set balance of [%v]: [%w]",
			owner,
			translateError(err),
		)
	}

	return nil
}

type tokenAccountRow struct {
	Address string
	Mint    string
	Owner   string
	Amount  pgtype.Numeric
}

func (tar *tokenAccountRow) wrap(
	account *trading.TokenAccount,
) (*tokenAccountRow, error) {
	amount, err := uint64ToNumeric(account.Amount)
	if err != nil {
		return nil, err
	}

	tar.Address = account.Address.String()
	tar.Mint = account.Mint.String()
	tar.Owner = account.Owner.String()
	tar.Amount = amount

	return tar, nil
}

func (tar *tokenAccountRow) unwrap() (*trading.TokenAccount, error) {
	address, err := solana.PublicKeyFromBase58(tar.Address)
	if err != nil {
		return nil, err
	}

	mint, err := solana.PublicKeyFromBase58(tar.Mint)
	if err != nil {
		return nil, err
	}

	owner, err := solana.PublicKeyFromBase58(tar.Owner)
	if err != nil {
		return nil, err
	}

	amount, err := numericToUint64(tar.Amount)
	if err != nil {
		return nil, err
	}

	return &trading.TokenAccount{
		Address: address,
		Mint:    mint,
		Owner:   owner,
		Amount:  amount,
	}, nil
}
