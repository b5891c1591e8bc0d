package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
)

const sequenceBandwidth = 100

var (
	accountPrefix      = []byte("account/")
	tokenAccountPrefix = []byte("token-account/")
	lamportsPrefix     = []byte("lamports/")
	eventPrefix        = []byte("event/")
	eventUserPrefix    = []byte("event-user/")
	eventPendingPrefix = []byte("event-pending/")
	eventIDPrefix      = []byte("event-id/")
	signaturePrefix    = []byte("signature/")
	eventSequenceKey   = []byte("sequence/event")
)

type Config struct {
	// Dir is the data directory. An empty Dir keeps the database in memory.
	Dir string
}

// Store keeps records in an embedded badger database. Transactions are
// optimistic; a transaction whose reads were changed by a concurrent commit
// fails with trading.ErrTransactionConflict.
type Store struct {
	db        *badger.DB
	sequence  *badger.Sequence
	idService trading.IDService
}

func NewStore(
	config *Config,
	idService trading.IDService,
	logger trading.Logger,
) (*Store, error) {
	options := badger.DefaultOptions(config.Dir).
		WithLogger(logger.WithField("component", "badger"))

	if len(config.Dir) == 0 {
		options = options.WithInMemory(true)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("could not open badger database: [%v]", err)
	}

	sequence, err := db.GetSequence(eventSequenceKey, sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not get event sequence: [%v]", err)
	}

	return &Store{
		db:        db,
		sequence:  sequence,
		idService: idService,
	}, nil
}

func (s *Store) Close() error {
	if err := s.sequence.Release(); err != nil {
		return fmt.Errorf("could not release event sequence: [%v]", err)
	}

	return s.db.Close()
}

func (s *Store) Atomically(
	ctx context.Context,
	fn func(tx trading.Transaction) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&transaction{txn, s.sequence})
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf(
			"could not commit transaction: [%w]",
			trading.ErrTransactionConflict,
		)
	}

	return err
}

func (s *Store) Events(
	ctx context.Context,
	user solana.PublicKey,
	limit int,
) ([]*trading.TradeExecutedEvent, error) {
	prefix := key(eventUserPrefix, user.Bytes(), []byte("/"))
	events := make([]*trading.TradeExecutedEvent, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		options.Prefix = prefix

		iterator := txn.NewIterator(options)
		defer iterator.Close()

		seekKey := key(prefix, []byte{0xff})

		for iterator.Seek(seekKey); iterator.ValidForPrefix(prefix); iterator.Next() {
			if len(events) >= limit {
				break
			}

			sequence := iterator.Item().KeyCopy(nil)[len(prefix):]

			event, err := s.event(txn, sequence)
			if err != nil {
				return err
			}

			events = append(events, event)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not read events of [%v]: [%v]", user, err)
	}

	return events, nil
}

func (s *Store) PendingEvents(
	ctx context.Context,
	limit int,
) ([]*trading.TradeExecutedEvent, error) {
	events := make([]*trading.TradeExecutedEvent, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = eventPendingPrefix

		iterator := txn.NewIterator(options)
		defer iterator.Close()

		for iterator.Rewind(); iterator.ValidForPrefix(eventPendingPrefix); iterator.Next() {
			if len(events) >= limit {
				break
			}

			sequence := iterator.Item().KeyCopy(nil)[len(eventPendingPrefix):]

			event, err := s.event(txn, sequence)
			if err != nil {
				return err
			}

			events = append(events, event)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not read pending events: [%v]", err)
	}

	return events, nil
}

func (s *Store) MarkEventsPublished(ctx context.Context, ids ...trading.ID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range trading.IDStrings(ids...) {
			item, err := txn.Get(key(eventIDPrefix, []byte(id)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			sequence, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if err := txn.Delete(key(eventPendingPrefix, sequence)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("could not mark events published: [%v]", err)
	}

	return nil
}

func (s *Store) event(
	txn *badger.Txn,
	sequence []byte,
) (*trading.TradeExecutedEvent, error) {
	item, err := txn.Get(key(eventPrefix, sequence))
	if err != nil {
		return nil, fmt.Errorf(
			"could not get event [%v]: [%v]",
			binary.BigEndian.Uint64(sequence),
			err,
		)
	}

	var event *trading.TradeExecutedEvent
	err = item.Value(func(value []byte) error {
		event, err = decodeEvent(value, s.idService)
		return err
	})

	return event, err
}

type transaction struct {
	txn      *badger.Txn
	sequence *badger.Sequence
}

func (t *transaction) Account(address solana.PublicKey) (*trading.Account, error) {
	var account *trading.Account

	found, err := t.get(key(accountPrefix, address.Bytes()), func(value []byte) error {
		var err error
		account, err = decodeAccount(address, value)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not get account [%v]: [%v]", address, err)
	}

	if !found {
		return nil, fmt.Errorf("no account at [%v]: [%w]", address, trading.ErrAccountNotFound)
	}

	return account, nil
}

func (t *transaction) CreateAccount(account *trading.Account) error {
	accountKey := key(accountPrefix, account.Address.Bytes())

	exists, err := t.exists(accountKey)
	if err != nil {
		return err
	}

	if exists {
		return fmt.Errorf(
			"address [%v] is taken: [%w]",
			account.Address,
			trading.ErrAccountAlreadyExists,
		)
	}

	return t.putAccount(accountKey, account)
}

func (t *transaction) UpdateAccount(account *trading.Account) error {
	accountKey := key(accountPrefix, account.Address.Bytes())

	exists, err := t.exists(accountKey)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf(
			"no account at [%v]: [%w]",
			account.Address,
			trading.ErrAccountNotFound,
		)
	}

	return t.putAccount(accountKey, account)
}

func (t *transaction) putAccount(accountKey []byte, account *trading.Account) error {
	value, err := encodeAccount(account)
	if err != nil {
		return fmt.Errorf("could not encode account [%v]: [%v]", account.Address, err)
	}

	return t.txn.Set(accountKey, value)
}

func (t *transaction) DeleteAccount(address solana.PublicKey) error {
	accountKey := key(accountPrefix, address.Bytes())

	exists, err := t.exists(accountKey)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("no account at [%v]: [%w]", address, trading.ErrAccountNotFound)
	}

	return t.txn.Delete(accountKey)
}

func (t *transaction) TokenAccount(
	address solana.PublicKey,
) (*trading.TokenAccount, error) {
	var account *trading.TokenAccount

	found, err := t.get(key(tokenAccountPrefix, address.Bytes()), func(value []byte) error {
		var err error
		account, err = decodeTokenAccount(address, value)
		return err
	})
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

	return account, nil
}

func (t *transaction) CreateTokenAccount(account *trading.TokenAccount) error {
	accountKey := key(tokenAccountPrefix, account.Address.Bytes())

	exists, err := t.exists(accountKey)
	if err != nil {
		return err
	}

	if exists {
		return fmt.Errorf(
			"address [%v] is taken: [%w]",
			account.Address,
			trading.ErrTokenAccountAlreadyExists,
		)
	}

	return t.putTokenAccount(accountKey, account)
}

func (t *transaction) UpdateTokenAccount(account *trading.TokenAccount) error {
	accountKey := key(tokenAccountPrefix, account.Address.Bytes())

	exists, err := t.exists(accountKey)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf(
			"no token account at [%v]: [%w]",
			account.Address,
			trading.ErrTokenAccountNotFound,
		)
	}

	return t.putTokenAccount(accountKey, account)
}

func (t *transaction) putTokenAccount(
	accountKey []byte,
	account *trading.TokenAccount,
) error {
	value, err := encodeTokenAccount(account)
	if err != nil {
		return fmt.Errorf(
			"could not encode token account [%v]: [%v]",
			account.Address,
			err,
		)
	}

	return t.txn.Set(accountKey, value)
}

func (t *transaction) Lamports(owner solana.PublicKey) (uint64, error) {
	var lamports uint64

	_, err := t.get(key(lamportsPrefix, owner.Bytes()), func(value []byte) error {
		var err error
		lamports, err = decodeLamports(value)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("could not get lamports of [%v]: [%v]", owner, err)
	}

	return lamports, nil
}

func (t *transaction) SetLamports(owner solana.PublicKey, lamports uint64) error {
	value, err := encodeLamports(lamports)
	if err != nil {
		return fmt.Errorf("could not encode lamports: [%v]", err)
	}

	return t.txn.Set(key(lamportsPrefix, owner.Bytes()), value)
}

// AppendEvent stores the event under the next sequence number and indexes
// it by user, by id and as pending publication.
func (t *transaction) AppendEvent(event *trading.TradeExecutedEvent) error {
	next, err := t.sequence.Next()
	if err != nil {
		return fmt.Errorf("could not get event sequence: [%v]", err)
	}

	sequence := make([]byte, 8)
	binary.BigEndian.PutUint64(sequence, next)

	value, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("could not encode event [%v]: [%v]", event.ID, err)
	}

	entries := [][2][]byte{
		{key(eventPrefix, sequence), value},
		{key(eventUserPrefix, event.User.Bytes(), []byte("/"), sequence), {}},
		{key(eventPendingPrefix, sequence), {}},
		{key(eventIDPrefix, []byte(event.ID.String())), sequence},
	}

	for _, entry := range entries {
		if err := t.txn.Set(entry[0], entry[1]); err != nil {
			return fmt.Errorf("could not store event [%v]: [%v]", event.ID, err)
		}
	}

	return nil
}

// ConsumeSignature stores the signature with a TTL ending at the
// transaction expiry, so badger drops it on its own afterwards. The stored
// expiry is compared as well since the TTL follows the wall clock.
func (t *transaction) ConsumeSignature(
	signature solana.Signature,
	expiresAt time.Time,
	now time.Time,
) error {
	signatureKey := key(signaturePrefix, signature[:])

	var recordedExpiresAt time.Time

	found, err := t.get(signatureKey, func(value []byte) error {
		var err error
		recordedExpiresAt, err = decodeExpiry(value)
		return err
	})
	if err != nil {
		return fmt.Errorf("could not get signature [%v]: [%v]", signature, err)
	}

	if found && recordedExpiresAt.After(now) {
		return fmt.Errorf("signature [%v]: [%w]", signature, trading.ErrSignatureConsumed)
	}

	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}

	value, err := encodeExpiry(expiresAt)
	if err != nil {
		return fmt.Errorf("could not encode signature expiry: [%v]", err)
	}

	return t.txn.SetEntry(badger.NewEntry(signatureKey, value).WithTTL(ttl))
}

func (t *transaction) get(itemKey []byte, fn func(value []byte) error) (bool, error) {
	item, err := t.txn.Get(itemKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, item.Value(fn)
}

func (t *transaction) exists(itemKey []byte) (bool, error) {
	_, err := t.txn.Get(itemKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func key(parts ...[]byte) []byte {
	var result []byte
	for _, part := range parts {
		result = append(result, part...)
	}

	return result
}
