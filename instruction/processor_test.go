package instruction

import (
	"context"
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

type manualClock struct {
	now time.Time
}

func (mc *manualClock) Now() time.Time {
	return mc.now
}

type processorFixture struct {
	store     *inmem.Store
	clock     *manualClock
	processor *Processor
	manager   *trading.AccountManager
	faucet    *trading.Faucet

	owner     solana.PrivateKey
	account   solana.PublicKey
	userToken solana.PublicKey
	feeToken  solana.PublicKey
	nonce     uint64
}

func newProcessorFixture(t *testing.T) *processorFixture {
	ctx := context.Background()
	logger := logrus.Discard()
	store := inmem.NewStore()
	tokenProgram := &trading.TokenProgram{}
	clock := &manualClock{time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	manager := trading.NewAccountManager(
		trading.DefaultProgramID,
		store,
		tokenProgram,
		clock,
		&uuid.IDService{},
		logger,
	)
	faucet := trading.NewFaucet(store, tokenProgram, logger)

	owner := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PublicKey()

	_, err := faucet.Airdrop(ctx, owner.PublicKey(), 5_000_000)
	require.NoError(t, err)

	userToken, err := faucet.CreateTokenAccount(ctx, owner.PublicKey(), mint)
	require.NoError(t, err)
	_, err = faucet.MintTo(ctx, userToken.Address, 1_000_000)
	require.NoError(t, err)

	feeToken, err := faucet.CreateTokenAccount(ctx, solana.NewWallet().PublicKey(), mint)
	require.NoError(t, err)

	account, _, err := manager.AccountAddress(owner.PublicKey())
	require.NoError(t, err)

	return &processorFixture{
		store:     store,
		clock:     clock,
		processor: NewProcessor(manager, clock, time.Minute, logger),
		manager:   manager,
		faucet:    faucet,
		owner:     owner,
		account:   account,
		userToken: userToken.Address,
		feeToken:  feeToken.Address,
	}
}

func (f *processorFixture) sign(
	t *testing.T,
	key solana.PrivateKey,
	instruction Instruction,
	accounts ...solana.PublicKey,
) ([]byte, solana.Signature) {
	f.nonce++

	transaction, err := NewTransaction(
		key.PublicKey(),
		instruction,
		accounts,
		f.nonce,
		f.clock.now.Add(30*time.Second),
	)
	require.NoError(t, err)

	message, err := transaction.Message()
	require.NoError(t, err)

	signature, err := transaction.Sign(key)
	require.NoError(t, err)

	return message, signature
}

func (f *processorFixture) process(
	t *testing.T,
	instruction Instruction,
	accounts ...solana.PublicKey,
) (*Result, error) {
	message, signature := f.sign(t, f.owner, instruction, accounts...)
	return f.processor.Process(context.Background(), message, signature)
}

func TestProcessor_Lifecycle(t *testing.T) {
	f := newProcessorFixture(t)
	authority := solana.NewWallet().PublicKey()

	result, err := f.process(
		t,
		&InitializeTradingAccount{MaxTradeAmount: 1_000_000, FeePercentage: 300},
		f.account,
		authority,
	)
	require.NoError(t, err)
	assert.Equal(t, InitializeTradingAccountName, result.Instruction)
	assert.Equal(t, authority, result.Account.Authority)

	result, err = f.process(
		t,
		&ExecuteTrade{Amount: 100_000},
		f.account,
		f.userToken,
		f.feeToken,
	)
	require.NoError(t, err)
	require.NotNil(t, result.Receipt)
	assert.Equal(t, uint64(3_000), result.Receipt.FeeAmount)
	assert.Equal(t, uint64(97_000), result.Receipt.NetAmount)
	assert.Equal(t, f.clock.now.Unix(), result.Receipt.Event.Timestamp)

	inactive := false
	result, err = f.process(
		t,
		&UpdateTradingSettings{IsActive: &inactive},
		f.account,
	)
	require.NoError(t, err)
	assert.False(t, result.Account.IsActive)
	assert.Equal(t, uint64(1_000_000), result.Account.MaxTradeAmount)

	_, err = f.process(
		t,
		&ExecuteTrade{Amount: 100_000},
		f.account,
		f.userToken,
		f.feeToken,
	)
	require.ErrorIs(t, err, trading.ErrAccountNotActive)

	result, err = f.process(t, &CloseTradingAccount{}, f.account)
	require.NoError(t, err)
	assert.Nil(t, result.Account)
	assert.Equal(t, f.account, result.Address)

	_, err = f.manager.Account(context.Background(), f.account)
	require.ErrorIs(t, err, trading.ErrAccountNotFound)
}

func TestProcessor_InitializeForeignAddress(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.process(
		t,
		&InitializeTradingAccount{MaxTradeAmount: 10, FeePercentage: 10},
		solana.NewWallet().PublicKey(),
		f.owner.PublicKey(),
	)
	require.ErrorIs(t, err, trading.ErrAddressMismatch)
}

func TestProcessor_NonOwner(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.process(
		t,
		&InitializeTradingAccount{MaxTradeAmount: 1_000_000, FeePercentage: 300},
		f.account,
		f.owner.PublicKey(),
	)
	require.NoError(t, err)

	intruder := solana.NewWallet().PrivateKey
	message, signature := f.sign(
		t,
		intruder,
		&ExecuteTrade{Amount: 100},
		f.account,
		f.userToken,
		f.feeToken,
	)

	_, err = f.processor.Process(context.Background(), message, signature)
	require.ErrorIs(t, err, trading.ErrUnauthorized)
}

func TestProcessor_Rejected(t *testing.T) {
	var tests = map[string]struct {
		prepare     func(t *testing.T, f *processorFixture) ([]byte, solana.Signature)
		expectedErr error
	}{
		"invalid signature": {
			prepare: func(t *testing.T, f *processorFixture) ([]byte, solana.Signature) {
				message, _ := f.sign(t, f.owner, &CloseTradingAccount{}, f.account)
				_, otherSignature := f.sign(t, f.owner, &CloseTradingAccount{}, f.account)
				return message, otherSignature
			},
			expectedErr: ErrInvalidSignature,
		},
		"tampered message": {
			prepare: func(t *testing.T, f *processorFixture) ([]byte, solana.Signature) {
				message, signature := f.sign(t, f.owner, &ExecuteTrade{Amount: 1}, f.account, f.userToken, f.feeToken)
				message[len(message)-20] ^= 0xff
				return message, signature
			},
			expectedErr: ErrInvalidSignature,
		},
		"expired": {
			prepare: func(t *testing.T, f *processorFixture) ([]byte, solana.Signature) {
				message, signature := f.sign(t, f.owner, &CloseTradingAccount{}, f.account)
				f.clock.now = f.clock.now.Add(time.Minute)
				return message, signature
			},
			expectedErr: ErrExpiredTransaction,
		},
		"expiry too far ahead": {
			prepare: func(t *testing.T, f *processorFixture) ([]byte, solana.Signature) {
				transaction, err := NewTransaction(
					f.owner.PublicKey(),
					&CloseTradingAccount{},
					[]solana.PublicKey{f.account},
					1,
					f.clock.now.Add(time.Hour),
				)
				require.NoError(t, err)

				message, err := transaction.Message()
				require.NoError(t, err)

				signature, err := transaction.Sign(f.owner)
				require.NoError(t, err)

				return message, signature
			},
			expectedErr: ErrMalformed,
		},
		"missing accounts": {
			prepare: func(t *testing.T, f *processorFixture) ([]byte, solana.Signature) {
				return f.sign(t, f.owner, &ExecuteTrade{Amount: 1}, f.account)
			},
			expectedErr: ErrMissingAccounts,
		},
		"garbage message": {
			prepare: func(t *testing.T, f *processorFixture) ([]byte, solana.Signature) {
				return []byte{1, 2, 3}, solana.Signature{}
			},
			expectedErr: ErrMalformed,
		},
	}

	for testName, test := range tests {
		t.Run(testName, func(t *testing.T) {
			f := newProcessorFixture(t)

			message, signature := test.prepare(t, f)

			_, err := f.processor.Process(context.Background(), message, signature)
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestProcessor_Replay(t *testing.T) {
	f := newProcessorFixture(t)

	message, signature := f.sign(
		t,
		f.owner,
		&InitializeTradingAccount{MaxTradeAmount: 1_000_000, FeePercentage: 300},
		f.account,
		f.owner.PublicKey(),
	)

	_, err := f.processor.Process(context.Background(), message, signature)
	require.NoError(t, err)

	_, err = f.processor.Process(context.Background(), message, signature)
	require.ErrorIs(t, err, ErrReplayedTransaction)

	// Failed transactions consume their signature as well.
	message, signature = f.sign(t, f.owner, &ExecuteTrade{Amount: 2_000_000}, f.account, f.userToken, f.feeToken)

	_, err = f.processor.Process(context.Background(), message, signature)
	require.ErrorIs(t, err, trading.ErrAmountExceedsLimit)

	_, err = f.processor.Process(context.Background(), message, signature)
	require.ErrorIs(t, err, ErrReplayedTransaction)

	// Signatures are forgotten once their transactions expire.
	f.clock.now = f.clock.now.Add(time.Minute)
	_, err = f.process(t, &CloseTradingAccount{}, f.account)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.SignatureCount())
}

func TestProcessor_ReplayAcrossProcessors(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.process(
		t,
		&InitializeTradingAccount{MaxTradeAmount: 1_000_000, FeePercentage: 300},
		f.account,
		f.owner.PublicKey(),
	)
	require.NoError(t, err)

	message, signature := f.sign(t, f.owner, &ExecuteTrade{Amount: 100_000}, f.account, f.userToken, f.feeToken)

	_, err = f.processor.Process(context.Background(), message, signature)
	require.NoError(t, err)

	// A restarted instance or a second replica shares only the store.
	other := NewProcessor(f.manager, f.clock, time.Minute, logrus.Discard())

	_, err = other.Process(context.Background(), message, signature)
	require.ErrorIs(t, err, ErrReplayedTransaction)

	account, err := f.manager.Account(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), account.TotalTrades)
	assert.Equal(t, uint64(3_000), account.TotalFeesPaid)

	feeToken, err := f.faucet.TokenAccount(context.Background(), f.feeToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000), feeToken.Amount)
}
