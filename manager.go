package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// TradeRequest names the accounts taking part in a trade. Signer is the
// principal whose signature authorizes the call.
type TradeRequest struct {
	Signer           solana.PublicKey
	TradingAccount   solana.PublicKey
	UserTokenAccount solana.PublicKey
	FeeTokenAccount  solana.PublicKey
	Amount           uint64
}

type TradeReceipt struct {
	Account   *Account
	Event     *TradeExecutedEvent
	FeeAmount uint64
	NetAmount uint64
}

// AccountManager runs the trading account operations. Every operation is a
// single store transaction; a failing check leaves no trace in the store.
type AccountManager struct {
	programID     solana.PublicKey
	store         Store
	tokenTransfer TokenTransferService
	clock         Clock
	idService     IDService
	logger        Logger
}

func NewAccountManager(
	programID solana.PublicKey,
	store Store,
	tokenTransfer TokenTransferService,
	clock Clock,
	idService IDService,
	logger Logger,
) *AccountManager {
	return &AccountManager{
		programID:     programID,
		store:         store,
		tokenTransfer: tokenTransfer,
		clock:         clock,
		idService:     idService,
		logger:        logger.WithField("component", "account-manager"),
	}
}

func (am *AccountManager) ProgramID() solana.PublicKey {
	return am.programID
}

// ConsumeSignature marks the transaction signature as used until the
// transaction expires.
func (am *AccountManager) ConsumeSignature(
	ctx context.Context,
	signature solana.Signature,
	expiresAt time.Time,
) error {
	return ConsumeSignature(ctx, am.store, signature, expiresAt, am.clock.Now())
}

func (am *AccountManager) AccountAddress(
	owner solana.PublicKey,
) (solana.PublicKey, uint8, error) {
	return DeriveAccountAddress(am.programID, owner)
}

// InitializeAccount creates the trading account of the owner. The owner
// signs and pays the storage deposit.
func (am *AccountManager) InitializeAccount(
	ctx context.Context,
	owner solana.PublicKey,
	authority solana.PublicKey,
	maxTradeAmount uint64,
	feePercentage uint16,
) (*Account, error) {
	address, bump, err := am.AccountAddress(owner)
	if err != nil {
		return nil, fmt.Errorf(
			"could not derive account address for owner [%v]: [%v]",
			owner,
			err,
		)
	}

	account := &Account{
		Address:        address,
		Owner:          owner,
		Authority:      authority,
		MaxTradeAmount: maxTradeAmount,
		FeePercentage:  feePercentage,
		TotalTrades:    0,
		TotalFeesPaid:  0,
		IsActive:       true,
		Bump:           bump,
		Lamports:       MinimumDeposit(AccountDataSize),
	}

	err = am.store.Atomically(ctx, func(tx Transaction) error {
		if err := tx.CreateAccount(account); err != nil {
			return fmt.Errorf("could not create account: [%w]", err)
		}

		if err := debitLamports(tx, owner, account.Lamports); err != nil {
			return fmt.Errorf("could not fund storage deposit: [%w]", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf(
			"could not initialize account [%v]: [%w]",
			address,
			err,
		)
	}

	am.logger.WithFields(map[string]interface{}{
		"account": address.String(),
		"owner":   owner.String(),
	}).Infof(
		"account initialized with max trade amount [%v] and fee [%v]",
		maxTradeAmount,
		feePercentage,
	)

	return account, nil
}

// ExecuteTrade charges the fee of the trade amount, moves it from the user
// token account to the fee token account and records the trade. The net
// amount is reported but not moved.
func (am *AccountManager) ExecuteTrade(
	ctx context.Context,
	request *TradeRequest,
) (*TradeReceipt, error) {
	var receipt *TradeReceipt

	err := am.store.Atomically(ctx, func(tx Transaction) error {
		account, err := am.ownedAccount(
			tx,
			request.Signer,
			request.TradingAccount,
		)
		if err != nil {
			return err
		}

		if !account.IsActive {
			return ErrAccountNotActive
		}

		if request.Amount > account.MaxTradeAmount {
			return fmt.Errorf(
				"amount [%v] above limit [%v]: [%w]",
				request.Amount,
				account.MaxTradeAmount,
				ErrAmountExceedsLimit,
			)
		}

		feeAmount, netAmount, err := CalculateFee(
			request.Amount,
			account.FeePercentage,
		)
		if err != nil {
			return fmt.Errorf("could not calculate fee: [%w]", err)
		}

		err = am.tokenTransfer.Transfer(
			tx,
			request.UserTokenAccount,
			request.FeeTokenAccount,
			request.Signer,
			feeAmount,
		)
		if err != nil {
			return fmt.Errorf("could not transfer fee: [%w]", err)
		}

		account.TotalTrades, err = checkedAdd(account.TotalTrades, 1)
		if err != nil {
			return fmt.Errorf("could not count trade: [%w]", err)
		}

		account.TotalFeesPaid, err = checkedAdd(account.TotalFeesPaid, feeAmount)
		if err != nil {
			return fmt.Errorf("could not accumulate fees: [%w]", err)
		}

		if err := tx.UpdateAccount(account); err != nil {
			return fmt.Errorf("could not update account: [%w]", err)
		}

		event := &TradeExecutedEvent{
			ID:        am.idService.NewID(),
			User:      request.Signer,
			Account:   account.Address,
			Amount:    request.Amount,
			FeeAmount: feeAmount,
			NetAmount: netAmount,
			Timestamp: am.clock.Now().Unix(),
		}

		if err := tx.AppendEvent(event); err != nil {
			return fmt.Errorf("could not record trade event: [%w]", err)
		}

		receipt = &TradeReceipt{
			Account:   account,
			Event:     event,
			FeeAmount: feeAmount,
			NetAmount: netAmount,
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf(
			"could not execute trade on account [%v]: [%w]",
			request.TradingAccount,
			err,
		)
	}

	am.logger.WithField("account", request.TradingAccount.String()).Infof(
		"trade [%v] executed with amount [%v], fee [%v], net [%v]",
		receipt.Event.ID,
		request.Amount,
		receipt.FeeAmount,
		receipt.NetAmount,
	)

	return receipt, nil
}

func (am *AccountManager) UpdateSettings(
	ctx context.Context,
	signer solana.PublicKey,
	address solana.PublicKey,
	update SettingsUpdate,
) (*Account, error) {
	var account *Account

	err := am.store.Atomically(ctx, func(tx Transaction) error {
		var err error
		account, err = am.ownedAccount(tx, signer, address)
		if err != nil {
			return err
		}

		if update.MaxTradeAmount != nil {
			account.MaxTradeAmount = *update.MaxTradeAmount
		}

		if update.IsActive != nil {
			account.IsActive = *update.IsActive
		}

		return tx.UpdateAccount(account)
	})
	if err != nil {
		return nil, fmt.Errorf(
			"could not update settings of account [%v]: [%w]",
			address,
			err,
		)
	}

	am.logger.WithField("account", address.String()).Infof(
		"settings updated; max trade amount [%v], state [%v]",
		account.MaxTradeAmount,
		account.State(),
	)

	return account, nil
}

// CloseAccount destroys the trading account and returns its storage
// deposit to the owner.
func (am *AccountManager) CloseAccount(
	ctx context.Context,
	signer solana.PublicKey,
	address solana.PublicKey,
) error {
	err := am.store.Atomically(ctx, func(tx Transaction) error {
		account, err := am.ownedAccount(tx, signer, address)
		if err != nil {
			return err
		}

		if err := tx.DeleteAccount(address); err != nil {
			return fmt.Errorf("could not delete account: [%w]", err)
		}

		if err := creditLamports(tx, account.Owner, account.Lamports); err != nil {
			return fmt.Errorf("could not refund storage deposit: [%w]", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("could not close account [%v]: [%w]", address, err)
	}

	am.logger.WithField("account", address.String()).Infof("account closed")

	return nil
}

func (am *AccountManager) Account(
	ctx context.Context,
	address solana.PublicKey,
) (*Account, error) {
	var account *Account

	err := am.store.Atomically(ctx, func(tx Transaction) error {
		var err error
		account, err = tx.Account(address)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not get account [%v]: [%w]", address, err)
	}

	return account, nil
}

// AccountOf returns the trading account derived from the owner key.
func (am *AccountManager) AccountOf(
	ctx context.Context,
	owner solana.PublicKey,
) (*Account, error) {
	address, _, err := am.AccountAddress(owner)
	if err != nil {
		return nil, fmt.Errorf(
			"could not derive account address for owner [%v]: [%v]",
			owner,
			err,
		)
	}

	return am.Account(ctx, address)
}

// ownedAccount loads the account and enforces that the signer owns it and
// that the address still matches the owner seeds and the stored bump.
func (am *AccountManager) ownedAccount(
	tx Transaction,
	signer solana.PublicKey,
	address solana.PublicKey,
) (*Account, error) {
	account, err := tx.Account(address)
	if err != nil {
		return nil, fmt.Errorf("could not get account: [%w]", err)
	}

	if !account.Owner.Equals(signer) {
		return nil, fmt.Errorf(
			"signer [%v] does not own the account: [%w]",
			signer,
			ErrUnauthorized,
		)
	}

	if err := VerifyAccountAddress(am.programID, account); err != nil {
		return nil, err
	}

	return account, nil
}
