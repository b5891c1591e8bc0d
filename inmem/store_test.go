package inmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
	"github.com/lukasz-zimnoch/sanad/trading/uuid"
)

func TestStore_AtomicallyRollsBack(t *testing.T) {
	store := NewStore()
	owner := solana.NewWallet().PublicKey()
	account := &trading.Account{
		Address:  solana.NewWallet().PublicKey(),
		Owner:    owner,
		IsActive: true,
	}

	failure := errors.New("failure")

	err := store.Atomically(context.Background(), func(tx trading.Transaction) error {
		if err := tx.CreateAccount(account); err != nil {
			return err
		}

		if err := tx.SetLamports(owner, 100); err != nil {
			return err
		}

		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf(
			"unexpected error\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			failure,
			err,
		)
	}

	err = store.Atomically(context.Background(), func(tx trading.Transaction) error {
		if _, err := tx.Account(account.Address); !errors.Is(err, trading.ErrAccountNotFound) {
			t.Errorf("account survived the rollback: [%v]", err)
		}

		lamports, err := tx.Lamports(owner)
		if err != nil {
			return err
		}

		if lamports != 0 {
			t.Errorf(
				"unexpected lamports\n"+
					"expected: [%v]\n"+
					"actual:   [%v]",
				0,
				lamports,
			)
		}

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewStore()
	account := &trading.Account{
		Address:        solana.NewWallet().PublicKey(),
		Owner:          solana.NewWallet().PublicKey(),
		MaxTradeAmount: 10,
	}

	err := store.Atomically(context.Background(), func(tx trading.Transaction) error {
		if err := tx.CreateAccount(account); err != nil {
			return err
		}

		loaded, err := tx.Account(account.Address)
		if err != nil {
			return err
		}

		loaded.MaxTradeAmount = 20

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	account.MaxTradeAmount = 30

	snapshot := store.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("unexpected accounts count: [%v]", len(snapshot))
	}

	if snapshot[0].MaxTradeAmount != 10 {
		t.Errorf(
			"unexpected max trade amount\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			10,
			snapshot[0].MaxTradeAmount,
		)
	}
}

func TestStore_AtomicallyCanceledContext(t *testing.T) {
	store := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Atomically(ctx, func(tx trading.Transaction) error {
		called = true
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error: [%v]", err)
	}

	if called {
		t.Errorf("transaction ran on a canceled context")
	}
}

func TestStore_Events(t *testing.T) {
	store := NewStore()
	idService := &uuid.IDService{}

	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	users := []solana.PublicKey{alice, bob, alice, alice, bob}
	events := make([]*trading.TradeExecutedEvent, len(users))

	for i, user := range users {
		events[i] = &trading.TradeExecutedEvent{
			ID:        idService.NewID(),
			User:      user,
			Amount:    uint64(i),
			Timestamp: int64(i),
		}

		err := store.Atomically(context.Background(), func(tx trading.Transaction) error {
			return tx.AppendEvent(events[i])
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	aliceEvents, err := store.Events(context.Background(), alice, 2)
	if err != nil {
		t.Fatal(err)
	}

	assertAmounts(t, []uint64{3, 2}, aliceEvents)

	pending, err := store.PendingEvents(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}

	assertAmounts(t, []uint64{0, 1, 2, 3, 4}, pending)

	err = store.MarkEventsPublished(context.Background(), events[0].ID, events[2].ID)
	if err != nil {
		t.Fatal(err)
	}

	pending, err = store.PendingEvents(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}

	assertAmounts(t, []uint64{1, 3}, pending)

	// published events stay readable
	bobEvents, err := store.Events(context.Background(), bob, 10)
	if err != nil {
		t.Fatal(err)
	}

	assertAmounts(t, []uint64{4, 1}, bobEvents)
}

func assertAmounts(
	t *testing.T,
	expected []uint64,
	events []*trading.TradeExecutedEvent,
) {
	actual := make([]uint64, len(events))
	for i, event := range events {
		actual[i] = event.Amount
	}

	if len(expected) != len(actual) {
		t.Fatalf(
			"unexpected events count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			expected,
			actual,
		)
	}

	for i := range expected {
		if expected[i] != actual[i] {
			t.Errorf(
				"unexpected event amounts\n"+
					"expected: [%v]\n"+
					"actual:   [%v]",
				expected,
				actual,
			)
			return
		}
	}
}

func TestStore_ConsumeSignature(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	signature, err := solana.NewWallet().PrivateKey.Sign([]byte("message"))
	if err != nil {
		t.Fatal(err)
	}

	err = trading.ConsumeSignature(ctx, store, signature, now.Add(time.Minute), now)
	if err != nil {
		t.Fatal(err)
	}

	err = trading.ConsumeSignature(ctx, store, signature, now.Add(time.Minute), now)
	if !errors.Is(err, trading.ErrSignatureConsumed) {
		t.Fatalf(
			"unexpected error\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			trading.ErrSignatureConsumed,
			err,
		)
	}

	// A failing transaction does not record its signature.
	other, err := solana.NewWallet().PrivateKey.Sign([]byte("message"))
	if err != nil {
		t.Fatal(err)
	}

	failure := errors.New("failure")
	err = store.Atomically(ctx, func(tx trading.Transaction) error {
		if err := tx.ConsumeSignature(other, now.Add(time.Minute), now); err != nil {
			return err
		}

		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("unexpected error: [%v]", err)
	}

	if count := store.SignatureCount(); count != 1 {
		t.Errorf(
			"unexpected signature count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			count,
		)
	}

	// Expired signatures are dropped and may be recorded again.
	later := now.Add(2 * time.Minute)
	err = trading.ConsumeSignature(ctx, store, signature, later.Add(time.Minute), later)
	if err != nil {
		t.Fatal(err)
	}
}
