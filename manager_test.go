package trading_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
	"github.com/lukasz-zimnoch/sanad/trading/inmem"
	"github.com/lukasz-zimnoch/sanad/trading/logrus"
	"github.com/lukasz-zimnoch/sanad/trading/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	initialTokens   = 1_000_000_000
	initialLamports = 10_000_000
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time {
	return now
}

type fixture struct {
	store   *inmem.Store
	manager *trading.AccountManager
	faucet  *trading.Faucet

	owner     solana.PublicKey
	authority solana.PublicKey
	userToken solana.PublicKey
	feeToken  solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()

	store := inmem.NewStore()
	tokenProgram := &trading.TokenProgram{}
	logger := logrus.Discard()

	f := &fixture{
		store: store,
		manager: trading.NewAccountManager(
			trading.DefaultProgramID,
			store,
			tokenProgram,
			fixedClock{},
			&uuid.IDService{},
			logger,
		),
		faucet:    trading.NewFaucet(store, tokenProgram, logger),
		owner:     solana.NewWallet().PublicKey(),
		authority: solana.NewWallet().PublicKey(),
	}

	mint := solana.NewWallet().PublicKey()
	feeCollector := solana.NewWallet().PublicKey()

	_, err := f.faucet.Airdrop(ctx, f.owner, initialLamports)
	require.NoError(t, err)

	userToken, err := f.faucet.CreateTokenAccount(ctx, f.owner, mint)
	require.NoError(t, err)
	_, err = f.faucet.MintTo(ctx, userToken.Address, initialTokens)
	require.NoError(t, err)

	feeToken, err := f.faucet.CreateTokenAccount(ctx, feeCollector, mint)
	require.NoError(t, err)

	f.userToken = userToken.Address
	f.feeToken = feeToken.Address

	return f
}

func (f *fixture) initialize(
	t *testing.T,
	maxTradeAmount uint64,
	feePercentage uint16,
) *trading.Account {
	account, err := f.manager.InitializeAccount(
		context.Background(),
		f.owner,
		f.authority,
		maxTradeAmount,
		feePercentage,
	)
	require.NoError(t, err)

	return account
}

func (f *fixture) trade(
	account *trading.Account,
	amount uint64,
) (*trading.TradeReceipt, error) {
	return f.manager.ExecuteTrade(context.Background(), f.request(account, amount))
}

func (f *fixture) tokens(t *testing.T, address solana.PublicKey) uint64 {
	account, err := f.faucet.TokenAccount(context.Background(), address)
	require.NoError(t, err)

	return account.Amount
}

func (f *fixture) account(t *testing.T, address solana.PublicKey) *trading.Account {
	account, err := f.manager.Account(context.Background(), address)
	require.NoError(t, err)

	return account
}

func TestAccountManager_InitializeAccount(t *testing.T) {
	f := newFixture(t)

	account := f.initialize(t, 1_000_000, 300)

	expectedAddress, expectedBump, err := trading.DeriveAccountAddress(
		trading.DefaultProgramID,
		f.owner,
	)
	require.NoError(t, err)

	stored := f.account(t, expectedAddress)
	assert.Equal(t, account, stored)
	assert.Equal(t, expectedBump, stored.Bump)
	assert.Equal(t, f.owner, stored.Owner)
	assert.Equal(t, f.authority, stored.Authority)
	assert.Equal(t, uint64(1_000_000), stored.MaxTradeAmount)
	assert.Equal(t, uint16(300), stored.FeePercentage)
	assert.Zero(t, stored.TotalTrades)
	assert.Zero(t, stored.TotalFeesPaid)
	assert.True(t, stored.IsActive)
	assert.Equal(t, trading.StateActive, stored.State())

	deposit := trading.MinimumDeposit(trading.AccountDataSize)
	assert.Equal(t, uint64(1_586_880), deposit)
	assert.Equal(t, deposit, stored.Lamports)

	balance, err := f.faucet.Lamports(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(initialLamports)-deposit, balance)
}

func TestAccountManager_InitializeAccount_Twice(t *testing.T) {
	f := newFixture(t)

	f.initialize(t, 1_000_000, 300)

	_, err := f.manager.InitializeAccount(
		context.Background(),
		f.owner,
		f.authority,
		5,
		5,
	)
	require.ErrorIs(t, err, trading.ErrAccountAlreadyExists)

	account, err := f.manager.AccountOf(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), account.MaxTradeAmount)
}

func TestAccountManager_InitializeAccount_NoDeposit(t *testing.T) {
	f := newFixture(t)

	poorOwner := solana.NewWallet().PublicKey()

	_, err := f.manager.InitializeAccount(
		context.Background(),
		poorOwner,
		f.authority,
		1_000_000,
		300,
	)
	require.ErrorIs(t, err, trading.ErrInsufficientFunds)

	_, err = f.manager.AccountOf(context.Background(), poorOwner)
	require.ErrorIs(t, err, trading.ErrAccountNotFound)
}

func TestAccountManager_InitializeAccount_NoValidation(t *testing.T) {
	f := newFixture(t)

	account := f.initialize(t, math.MaxUint64, math.MaxUint16)

	assert.Equal(t, uint64(math.MaxUint64), account.MaxTradeAmount)
	assert.Equal(t, uint16(math.MaxUint16), account.FeePercentage)
}

func TestAccountManager_ExecuteTrade(t *testing.T) {
	f := newFixture(t)

	account := f.initialize(t, 1_000_000, 300)

	receipt, err := f.trade(account, 100_000)
	require.NoError(t, err)

	assert.Equal(t, uint64(3_000), receipt.FeeAmount)
	assert.Equal(t, uint64(97_000), receipt.NetAmount)

	assert.Equal(t, f.owner, receipt.Event.User)
	assert.Equal(t, account.Address, receipt.Event.Account)
	assert.Equal(t, uint64(100_000), receipt.Event.Amount)
	assert.Equal(t, uint64(3_000), receipt.Event.FeeAmount)
	assert.Equal(t, uint64(97_000), receipt.Event.NetAmount)
	assert.Equal(t, now.Unix(), receipt.Event.Timestamp)

	stored := f.account(t, account.Address)
	assert.Equal(t, uint64(1), stored.TotalTrades)
	assert.Equal(t, uint64(3_000), stored.TotalFeesPaid)

	// Only the fee moves; the net amount stays with the user.
	assert.Equal(t, uint64(initialTokens-3_000), f.tokens(t, f.userToken))
	assert.Equal(t, uint64(3_000), f.tokens(t, f.feeToken))

	events, err := f.store.Events(context.Background(), f.owner, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, receipt.Event.ID.String(), events[0].ID.String())
}

func TestAccountManager_ExecuteTrade_Accumulates(t *testing.T) {
	f := newFixture(t)

	account := f.initialize(t, 1_000_000, 250)

	amounts := []uint64{100_000, 1, 4_000, 999_999, 0, 1_000_000}

	var expectedFees uint64
	for _, amount := range amounts {
		receipt, err := f.trade(account, amount)
		require.NoError(t, err)

		expectedFees += amount * 250 / 10000
		assert.Equal(t, amount*250/10000, receipt.FeeAmount)
	}

	stored := f.account(t, account.Address)
	assert.Equal(t, uint64(len(amounts)), stored.TotalTrades)
	assert.Equal(t, expectedFees, stored.TotalFeesPaid)
	assert.Equal(t, expectedFees, f.tokens(t, f.feeToken))

	events, err := f.store.Events(context.Background(), f.owner, 100)
	require.NoError(t, err)
	require.Len(t, events, len(amounts))
	// newest first
	assert.Equal(t, uint64(1_000_000), events[0].Amount)
	assert.Equal(t, uint64(100_000), events[len(events)-1].Amount)
}

func TestAccountManager_ExecuteTrade_Rejected(t *testing.T) {
	var tests = map[string]struct {
		prepare     func(t *testing.T, f *fixture, account *trading.Account)
		request     func(f *fixture, account *trading.Account) *trading.TradeRequest
		expectedErr error
	}{
		"inactive account": {
			prepare: func(t *testing.T, f *fixture, account *trading.Account) {
				inactive := false
				_, err := f.manager.UpdateSettings(
					context.Background(),
					f.owner,
					account.Address,
					trading.SettingsUpdate{IsActive: &inactive},
				)
				require.NoError(t, err)
			},
			request: func(f *fixture, account *trading.Account) *trading.TradeRequest {
				return f.request(account, 100_000)
			},
			expectedErr: trading.ErrAccountNotActive,
		},
		"amount above limit": {
			request: func(f *fixture, account *trading.Account) *trading.TradeRequest {
				return f.request(account, 1_000_001)
			},
			expectedErr: trading.ErrAmountExceedsLimit,
		},
		"non-owner signer": {
			request: func(f *fixture, account *trading.Account) *trading.TradeRequest {
				request := f.request(account, 100_000)
				request.Signer = solana.NewWallet().PublicKey()
				return request
			},
			expectedErr: trading.ErrUnauthorized,
		},
		"unknown account": {
			request: func(f *fixture, account *trading.Account) *trading.TradeRequest {
				request := f.request(account, 100_000)
				request.TradingAccount = solana.NewWallet().PublicKey()
				return request
			},
			expectedErr: trading.ErrAccountNotFound,
		},
		"insufficient tokens": {
			prepare: func(t *testing.T, f *fixture, account *trading.Account) {
				// Raise the limit and fee so that the fee exceeds the balance.
				limit := uint64(math.MaxUint64)
				_, err := f.manager.UpdateSettings(
					context.Background(),
					f.owner,
					account.Address,
					trading.SettingsUpdate{MaxTradeAmount: &limit},
				)
				require.NoError(t, err)
			},
			request: func(f *fixture, account *trading.Account) *trading.TradeRequest {
				return f.request(account, initialTokens*1000)
			},
			expectedErr: trading.ErrInsufficientFunds,
		},
		"fee account of another mint": {
			prepare: func(t *testing.T, f *fixture, account *trading.Account) {
				other, err := f.faucet.CreateTokenAccount(
					context.Background(),
					solana.NewWallet().PublicKey(),
					solana.NewWallet().PublicKey(),
				)
				require.NoError(t, err)
				f.feeToken = other.Address
			},
			request: func(f *fixture, account *trading.Account) *trading.TradeRequest {
				return f.request(account, 100_000)
			},
			expectedErr: trading.ErrMintMismatch,
		},
		"token account of someone else": {
			prepare: func(t *testing.T, f *fixture, account *trading.Account) {
				f.userToken = f.feeToken
			},
			request: func(f *fixture, account *trading.Account) *trading.TradeRequest {
				return f.request(account, 100_000)
			},
			expectedErr: trading.ErrTokenOwnerMismatch,
		},
	}

	for testName, test := range tests {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			account := f.initialize(t, 1_000_000, 300)

			if test.prepare != nil {
				test.prepare(t, f, account)
			}

			before := f.account(t, account.Address)
			userTokensBefore := f.tokens(t, f.userToken)
			feeTokensBefore := f.tokens(t, f.feeToken)

			_, err := f.manager.ExecuteTrade(
				context.Background(),
				test.request(f, account),
			)
			require.ErrorIs(t, err, test.expectedErr)

			assert.Equal(t, before, f.account(t, account.Address))
			assert.Equal(t, userTokensBefore, f.tokens(t, f.userToken))
			assert.Equal(t, feeTokensBefore, f.tokens(t, f.feeToken))

			events, err := f.store.Events(context.Background(), f.owner, 10)
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestAccountManager_ExecuteTrade_CounterOverflowRollsBackTransfer(t *testing.T) {
	f := newFixture(t)

	account := f.initialize(t, 1_000_000, 300)

	err := f.store.Atomically(
		context.Background(),
		func(tx trading.Transaction) error {
			stored, err := tx.Account(account.Address)
			if err != nil {
				return err
			}

			stored.TotalFeesPaid = math.MaxUint64 - 1
			return tx.UpdateAccount(stored)
		},
	)
	require.NoError(t, err)

	_, err = f.trade(account, 100_000)
	require.ErrorIs(t, err, trading.ErrArithmeticOverflow)

	stored := f.account(t, account.Address)
	assert.Zero(t, stored.TotalTrades)
	assert.Equal(t, uint64(math.MaxUint64-1), stored.TotalFeesPaid)
	assert.Equal(t, uint64(initialTokens), f.tokens(t, f.userToken))
	assert.Zero(t, f.tokens(t, f.feeToken))
}

func TestAccountManager_UpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.initialize(t, 1_000_000, 300)

	inactive, active := false, true

	_, err := f.manager.UpdateSettings(
		ctx,
		f.owner,
		account.Address,
		trading.SettingsUpdate{IsActive: &inactive},
	)
	require.NoError(t, err)

	_, err = f.trade(account, 100_000)
	require.ErrorIs(t, err, trading.ErrAccountNotActive)

	updated, err := f.manager.UpdateSettings(
		ctx,
		f.owner,
		account.Address,
		trading.SettingsUpdate{IsActive: &active},
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), updated.MaxTradeAmount)

	_, err = f.trade(account, 100_000)
	require.NoError(t, err)

	limit := uint64(50)
	updated, err = f.manager.UpdateSettings(
		ctx,
		f.owner,
		account.Address,
		trading.SettingsUpdate{MaxTradeAmount: &limit},
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), updated.MaxTradeAmount)
	assert.True(t, updated.IsActive)
	assert.Equal(t, uint64(1), updated.TotalTrades)

	_, err = f.trade(account, 51)
	require.ErrorIs(t, err, trading.ErrAmountExceedsLimit)

	_, err = f.manager.UpdateSettings(
		ctx,
		solana.NewWallet().PublicKey(),
		account.Address,
		trading.SettingsUpdate{IsActive: &inactive},
	)
	require.ErrorIs(t, err, trading.ErrUnauthorized)
	assert.True(t, f.account(t, account.Address).IsActive)
}

func TestAccountManager_CloseAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.initialize(t, 1_000_000, 300)

	err := f.manager.CloseAccount(ctx, solana.NewWallet().PublicKey(), account.Address)
	require.ErrorIs(t, err, trading.ErrUnauthorized)

	err = f.manager.CloseAccount(ctx, f.owner, account.Address)
	require.NoError(t, err)

	balance, err := f.faucet.Lamports(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(initialLamports), balance)

	_, err = f.trade(account, 100_000)
	require.ErrorIs(t, err, trading.ErrAccountNotFound)

	err = f.manager.CloseAccount(ctx, f.owner, account.Address)
	require.ErrorIs(t, err, trading.ErrAccountNotFound)

	// The owner may open a new account at the same address after closing.
	reopened := f.initialize(t, 10, 10)
	assert.Equal(t, account.Address, reopened.Address)
	assert.Zero(t, reopened.TotalTrades)
}

func (f *fixture) request(
	account *trading.Account,
	amount uint64,
) *trading.TradeRequest {
	return &trading.TradeRequest{
		Signer:           f.owner,
		TradingAccount:   account.Address,
		UserTokenAccount: f.userToken,
		FeeTokenAccount:  f.feeToken,
		Amount:           amount,
	}
}
