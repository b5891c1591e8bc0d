package postgres

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgtype"
	"github.com/lukasz-zimnoch/sanad/trading"
)

func (t *transaction) Account(address solana.PublicKey) (*trading.Account, error) {
	var row accountRow

	found, err := t.getForUpdate(
		&row,
		`SELECT * FROM trading_account WHERE address = $1`,
		address.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("could not get account [%v]: [%v]", address, err)
	}

	if !found {
		return nil, fmt.Errorf("no account at [%v]: [%w]", address, trading.ErrAccountNotFound)
	}

	return row.unwrap()
}

func (t *transaction) CreateAccount(account *trading.Account) error {
	query := `INSERT INTO 
		trading_account (address, owner, authority, max_trade_amount, 
		                 fee_percentage, total_trades, total_fees_paid, 
		                 is_active, bump, lamports) 
		VALUES (:address, :owner, :authority, :max_trade_amount, 
		        :fee_percentage, :total_trades, :total_fees_paid, 
		        :is_active, :bump, :lamports)`

	row, err := new(accountRow).wrap(account)
	if err != nil {
		return fmt.Errorf(
			"could not convert account [%v] to pg row: [%v]",
			account.Address,
			err,
		)
	}

	if _, err := t.namedExec(query, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf(
				"address [%v] is taken: [%w]",
				account.Address,
				trading.ErrAccountAlreadyExists,
			)
		}

		return fmt.Errorf(
			"could not execute command for account [%v]: [%w]",
			account.Address,
			err,
		)
	}

	return nil
}

func (t *transaction) UpdateAccount(account *trading.Account) error {
	query := `UPDATE trading_account SET 
		max_trade_amount = :max_trade_amount, 
		total_trades = :total_trades, 
		total_fees_paid = :total_fees_paid, 
		is_active = :is_active 
		WHERE address = :address`

	row, err := new(accountRow).wrap(account)
	if err != nil {
		return fmt.Errorf(
			"could not convert account [%v] to pg row: [%v]",
			account.Address,
			err,
		)
	}

	affected, err := t.namedExec(query, row)
	if err != nil {
		return fmt.Errorf(
			"could not execute command for account [%v]: [%w]",
			account.Address,
			err,
		)
	}

	if affected == 0 {
		return fmt.Errorf(
			"no account at [%v]: [%w]",
			account.Address,
			trading.ErrAccountNotFound,
		)
	}

	return nil
}

func (t *transaction) DeleteAccount(address solana.PublicKey) error {
	result, err := t.tx.ExecContext(
		t.ctx,
		`DELETE FROM trading_account WHERE address = $1`,
		address.String(),
	)
	if err != nil {
		return fmt.Errorf(
			"could not execute command for account [%v]: [%w]",
			address,
			translateError(err),
		)
	}

	if affected, err := result.RowsAffected(); err != nil || affected == 0 {
		return fmt.Errorf("no account at [%v]: [%w]", address, trading.ErrAccountNotFound)
	}

	return nil
}

type accountRow struct {
	Address        string
	Owner          string
	Authority      string
	MaxTradeAmount pgtype.Numeric `db:"max_trade_amount"`
	FeePercentage  int            `db:"fee_percentage"`
	TotalTrades    pgtype.Numeric `db:"total_trades"`
	TotalFeesPaid  pgtype.Numeric `db:"total_fees_paid"`
	IsActive       bool           `db:"is_active"`
	Bump           int
	Lamports       pgtype.Numeric
}

func (ar *accountRow) wrap(account *trading.Account) (*accountRow, error) {
	maxTradeAmount, err := uint64ToNumeric(account.MaxTradeAmount)
	if err != nil {
		return nil, err
	}

	totalTrades, err := uint64ToNumeric(account.TotalTrades)
	if err != nil {
		return nil, err
	}

	totalFeesPaid, err := uint64ToNumeric(account.TotalFeesPaid)
	if err != nil {
		return nil, err
	}

	lamports, err := uint64ToNumeric(account.Lamports)
	if err != nil {
		return nil, err
	}

	ar.Address = account.Address.String()
	ar.Owner = account.Owner.String()
	ar.Authority = account.Authority.String()
	ar.MaxTradeAmount = maxTradeAmount
	ar.FeePercentage = int(account.FeePercentage)
	ar.TotalTrades = totalTrades
	ar.TotalFeesPaid = totalFeesPaid
	ar.IsActive = account.IsActive
	ar.Bump = int(account.Bump)
	ar.Lamports = lamports

	return ar, nil
}

func (ar *accountRow) unwrap() (*trading.Account, error) {
	address, err := solana.PublicKeyFromBase58(ar.Address)
	if err != nil {
		return nil, err
	}

	owner, err := solana.PublicKeyFromBase58(ar.Owner)
	if err != nil {
		return nil, err
	}

	authority, err := solana.PublicKeyFromBase58(ar.Authority)
	if err != nil {
		return nil, err
	}

	maxTradeAmount, err := numericToUint64(ar.MaxTradeAmount)
	if err != nil {
		return nil, err
	}

	totalTrades, err := numericToUint64(ar.TotalTrades)
	if err != nil {
		return nil, err
	}

	totalFeesPaid, err := numericToUint64(ar.TotalFeesPaid)
	if err != nil {
		return nil, err
	}

	lamports, err := numericToUint64(ar.Lamports)
	if err != nil {
		return nil, err
	}

	return &trading.Account{
		Address:        address,
		Owner:          owner,
		Authority:      authority,
		MaxTradeAmount: maxTradeAmount,
		FeePercentage:  uint16(ar.FeePercentage),
		TotalTrades:    totalTrades,
		TotalFeesPaid:  totalFeesPaid,
		IsActive:       ar.IsActive,
		Bump:           uint8(ar.Bump),
		Lamports:       lamports,
	}, nil
}
