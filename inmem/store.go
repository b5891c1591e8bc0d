package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
)

// Store keeps all records in memory. Transactions are serialized by a single
// mutex and work on a staged copy of the state that replaces the committed
// state only when the transaction succeeds.
type Store struct {
	stateMutex sync.Mutex
	state      *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) Atomically(
	ctx context.Context,
	fn func(tx trading.Transaction) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	staged := s.state.clone()

	if err := fn(&transaction{staged}); err != nil {
		return err
	}

	s.state = staged

	return nil
}

func (s *Store) Events(
	ctx context.Context,
	user solana.PublicKey,
	limit int,
) ([]*trading.TradeExecutedEvent, error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	events := make([]*trading.TradeExecutedEvent, 0)

	for i := len(s.state.events) - 1; i >= 0 && len(events) < limit; i-- {
		record := s.state.events[i]
		if record.event.User.Equals(user) {
			events = append(events, copyEvent(record.event))
		}
	}

	return events, nil
}

func (s *Store) PendingEvents(
	ctx context.Context,
	limit int,
) ([]*trading.TradeExecutedEvent, error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	events := make([]*trading.TradeExecutedEvent, 0)

	for _, record := range s.state.events {
		if len(events) >= limit {
			break
		}

		if !record.published {
			events = append(events, copyEvent(record.event))
		}
	}

	return events, nil
}

func (s *Store) MarkEventsPublished(ctx context.Context, ids ...trading.ID) error {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	published := make(map[string]bool, len(ids))
	for _, id := range trading.IDStrings(ids...) {
		published[id] = true
	}

	for i, record := range s.state.events {
		if published[record.event.ID.String()] {
			s.state.events[i] = &eventRecord{record.event, true}
		}
	}

	return nil
}

// Snapshot returns all trading accounts ordered by address. Used by tests
// and debugging endpoints.
func (s *Store) Snapshot() []*trading.Account {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	accounts := make([]*trading.Account, 0, len(s.state.accounts))
	for _, account := range s.state.accounts {
		copied := *account
		accounts = append(accounts, &copied)
	}

	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Address.String() < accounts[j].Address.String()
	})

	return accounts
}

// SignatureCount returns the number of recorded transaction signatures.
func (s *Store) SignatureCount() int {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	return len(s.state.signatures)
}

type eventRecord struct {
	event     *trading.TradeExecutedEvent
	published bool
}

type state struct {
	accounts      map[solana.PublicKey]*trading.Account
	tokenAccounts map[solana.PublicKey]*trading.TokenAccount
	balances      map[solana.PublicKey]uint64
	events        []*eventRecord
	signatures    map[solana.Signature]time.Time
}

func newState() *state {
	return &state{
		accounts:      make(map[solana.PublicKey]*trading.Account),
		tokenAccounts: make(map[solana.PublicKey]*trading.TokenAccount),
		balances:      make(map[solana.PublicKey]uint64),
		events:        make([]*eventRecord, 0),
		signatures:    make(map[solana.Signature]time.Time),
	}
}

// clone copies the maps; records are replaced, never mutated in place, so
// sharing the record pointers between states is safe.
func (s *state) clone() *state {
	cloned := &state{
		accounts:      make(map[solana.PublicKey]*trading.Account, len(s.accounts)),
		tokenAccounts: make(map[solana.PublicKey]*trading.TokenAccount, len(s.tokenAccounts)),
		balances:      make(map[solana.PublicKey]uint64, len(s.balances)),
		events:        make([]*eventRecord, len(s.events)),
		signatures:    make(map[solana.Signature]time.Time, len(s.signatures)),
	}

	for address, account := range s.accounts {
		cloned.accounts[address] = account
	}

	for address, account := range s.tokenAccounts {
		cloned.tokenAccounts[address] = account
	}

	for owner, lamports := range s.balances {
		cloned.balances[owner] = lamports
	}

	copy(cloned.events, s.events)

	for signature, expiresAt := range s.signatures {
		cloned.signatures[signature] = expiresAt
	}

	return cloned
}

type transaction struct {
	state *state
}

func (t *transaction) Account(address solana.PublicKey) (*trading.Account, error) {
	account, ok := t.state.accounts[address]
	if !ok {
		return nil, fmt.Errorf("no account at [%v]: [%w]", address, trading.ErrAccountNotFound)
	}

	copied := *account
	return &copied, nil
}

func (t *transaction) CreateAccount(account *trading.Account) error {
	if _, exists := t.state.accounts[account.Address]; exists {
		return fmt.Errorf(
			"address [%v] is taken: [%w]",
			account.Address,
			trading.ErrAccountAlreadyExists,
		)
	}

	copied := *account
	t.state.accounts[account.Address] = &copied

	return nil
}

func (t *transaction) UpdateAccount(account *trading.Account) error {
	if _, exists := t.state.accounts[account.Address]; !exists {
		return fmt.Errorf(
			"no account at [%v]: [%w]",
			account.Address,
			trading.ErrAccountNotFound,
		)
	}

	copied := *account
	t.state.accounts[account.Address] = &copied

	return nil
}

func (t *transaction) DeleteAccount(address solana.PublicKey) error {
	if _, exists := t.state.accounts[address]; !exists {
		return fmt.Errorf("no account at [%v]: [%w]", address, trading.ErrAccountNotFound)
	}

	delete(t.state.accounts, address)

	return nil
}

func (t *transaction) TokenAccount(
	address solana.PublicKey,
) (*trading.TokenAccount, error) {
	account, ok := t.state.tokenAccounts[address]
	if !ok {
		return nil, fmt.Errorf(
			"no token account at [%v]: [%w]",
			address,
			trading.ErrTokenAccountNotFound,
		)
	}

	copied := *account
	return &copied, nil
}

func (t *transaction) CreateTokenAccount(account *trading.TokenAccount) error {
	if _, exists := t.state.tokenAccounts[account.Address]; exists {
		return fmt.Errorf(
			"address [%v] is taken: [%w]",
			account.Address,
			trading.ErrTokenAccountAlreadyExists,
		)
	}

	copied := *account
	t.state.tokenAccounts[account.Address] = &copied

	return nil
}

func (t *transaction) UpdateTokenAccount(account *trading.TokenAccount) error {
	if _, exists := t.state.tokenAccounts[account.Address]; !exists {
		return fmt.Errorf(
			"no token account at [%v]: [%w]",
			account.Address,
			trading.ErrTokenAccountNotFound,
		)
	}

	copied := *account
	t.state.tokenAccounts[account.Address] = &copied

	return nil
}

func (t *transaction) Lamports(owner solana.PublicKey) (uint64, error) {
	return t.state.balances[owner], nil
}

func (t *transaction) SetLamports(owner solana.PublicKey, lamports uint64) error {
	t.state.balances[owner] = lamports
	return nil
}

func (t *transaction) AppendEvent(event *trading.TradeExecutedEvent) error {
	t.state.events = append(t.state.events, &eventRecord{copyEvent(event), false})
	return nil
}

// ConsumeSignature drops expired signatures before recording the new one.
func (t *transaction) ConsumeSignature(
	signature solana.Signature,
	expiresAt time.Time,
	now time.Time,
) error {
	for seen, seenExpiresAt := range t.state.signatures {
		if !seenExpiresAt.After(now) {
			delete(t.state.signatures, seen)
		}
	}

	if _, seen := t.state.signatures[signature]; seen {
		return fmt.Errorf("signature [%v]: [%w]", signature, trading.ErrSignatureConsumed)
	}

	t.state.signatures[signature] = expiresAt

	return nil
}

func copyEvent(event *trading.TradeExecutedEvent) *trading.TradeExecutedEvent {
	copied := *event
	return &copied
}
