package instruction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
)

const DefaultMaxTransactionTTL = 2 * time.Minute

// Result reports the outcome of a processed transaction. Account is nil
// after a close; Receipt is set only for trades.
type Result struct {
	Instruction string
	Address     solana.PublicKey
	Account     *trading.Account
	Receipt     *trading.TradeReceipt
}

// Processor verifies signed transactions and runs their instructions
// against the account manager.
type Processor struct {
	manager *trading.AccountManager
	clock   trading.Clock
	maxTTL  time.Duration
	logger  trading.Logger
}

func NewProcessor(
	manager *trading.AccountManager,
	clock trading.Clock,
	maxTTL time.Duration,
	logger trading.Logger,
) *Processor {
	if maxTTL <= 0 {
		maxTTL = DefaultMaxTransactionTTL
	}

	return &Processor{
		manager: manager,
		clock:   clock,
		maxTTL:  maxTTL,
		logger:  logger.WithField("component", "processor"),
	}
}

// Process verifies the signature over the message, rejects expired and
// replayed transactions and dispatches the instruction. Signatures are
// consumed in the store before dispatch, so a signature is spent even when
// its instruction fails, and stays spent across restarts and replicas.
func (p *Processor) Process(
	ctx context.Context,
	message []byte,
	signature solana.Signature,
) (*Result, error) {
	transaction, err := ParseMessage(message)
	if err != nil {
		return nil, err
	}

	if !signature.Verify(transaction.Signer, message) {
		return nil, fmt.Errorf(
			"signature does not match signer [%v]: [%w]",
			transaction.Signer,
			ErrInvalidSignature,
		)
	}

	now := p.clock.Now()
	expiresAt := transaction.ExpirationTime()

	if !expiresAt.After(now) {
		return nil, fmt.Errorf(
			"expired at [%v]: [%w]",
			expiresAt.UTC().Format(time.RFC3339),
			ErrExpiredTransaction,
		)
	}

	if expiresAt.Sub(now) > p.maxTTL {
		return nil, fmt.Errorf(
			"expiry [%v] is more than [%v] ahead: [%w]",
			expiresAt.UTC().Format(time.RFC3339),
			p.maxTTL,
			ErrMalformed,
		)
	}

	instruction, err := transaction.Instruction()
	if err != nil {
		return nil, err
	}

	if len(transaction.Accounts) < instruction.AccountsLen() {
		return nil, fmt.Errorf(
			"[%v] expects [%v] accounts, got [%v]: [%w]",
			instruction.Name(),
			instruction.AccountsLen(),
			len(transaction.Accounts),
			ErrMissingAccounts,
		)
	}

	err = p.manager.ConsumeSignature(ctx, signature, expiresAt)
	if errors.Is(err, trading.ErrSignatureConsumed) {
		return nil, fmt.Errorf(
			"signature [%v]: [%w]",
			signature,
			ErrReplayedTransaction,
		)
	}
	if err != nil {
		return nil, err
	}

	p.logger.WithField("signer", transaction.Signer.String()).Debugf(
		"processing [%v]",
		instruction.Name(),
	)

	return p.dispatch(ctx, transaction, instruction)
}

func (p *Processor) dispatch(
	ctx context.Context,
	transaction *Transaction,
	instruction Instruction,
) (*Result, error) {
	signer := transaction.Signer
	accounts := transaction.Accounts
	result := &Result{Instruction: instruction.Name(), Address: accounts[0]}

	switch ix := instruction.(type) {
	case *InitializeTradingAccount:
		address, _, err := p.manager.AccountAddress(signer)
		if err != nil {
			return nil, err
		}

		if !address.Equals(accounts[0]) {
			return nil, fmt.Errorf(
				"account [%v] is not derived from signer [%v]: [%w]",
				accounts[0],
				signer,
				trading.ErrAddressMismatch,
			)
		}

		result.Account, err = p.manager.InitializeAccount(
			ctx,
			signer,
			accounts[1],
			ix.MaxTradeAmount,
			ix.FeePercentage,
		)
		if err != nil {
			return nil, err
		}
	case *ExecuteTrade:
		receipt, err := p.manager.ExecuteTrade(ctx, &trading.TradeRequest{
			Signer:           signer,
			TradingAccount:   accounts[0],
			UserTokenAccount: accounts[1],
			FeeTokenAccount:  accounts[2],
			Amount:           ix.Amount,
		})
		if err != nil {
			return nil, err
		}

		result.Account = receipt.Account
		result.Receipt = receipt
	case *UpdateTradingSettings:
		var err error
		result.Account, err = p.manager.UpdateSettings(
			ctx,
			signer,
			accounts[0],
			trading.SettingsUpdate{
				MaxTradeAmount: ix.MaxTradeAmount,
				IsActive:       ix.IsActive,
			},
		)
		if err != nil {
			return nil, err
		}
	case *CloseTradingAccount:
		if err := p.manager.CloseAccount(ctx, signer, accounts[0]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf(
			"no handler for [%v]: [%w]",
			instruction.Name(),
			ErrUnknownInstruction,
		)
	}

	return result, nil
}
