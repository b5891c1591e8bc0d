package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lukasz-zimnoch/sanad/trading"
)

const (
	uniqueViolationCode      = "23505"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
)

// Store keeps records in postgres. Transactions run at the serializable
// isolation level and every record read inside a transaction is locked with
// SELECT ... FOR UPDATE until the transaction ends. Serializable isolation
// also covers rows that do not exist yet, like the first balance of a
// principal; a transaction that lost such a race fails with
// trading.ErrTransactionConflict.
type Store struct {
	client    *Client
	idService trading.IDService
}

func NewStore(client *Client, idService trading.IDService) *Store {
	return &Store{client, idService}
}

func (s *Store) Atomically(
	ctx context.Context,
	fn func(tx trading.Transaction) error,
) error {
	tx, err := s.client.instance().BeginTxx(
		ctx,
		&sql.TxOptions{Isolation: sql.LevelSerializable},
	)
	if err != nil {
		return fmt.Errorf("could not begin transaction: [%v]", err)
	}

	if err := fn(&transaction{ctx, tx}); err != nil {
		_ = tx.Rollback()
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: [%w]", translateError(err))
	}

	return nil
}

type transaction struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *transaction) getForUpdate(
	dest interface{},
	query string,
	args ...interface{},
) (bool, error) {
	err := t.tx.GetContext(t.ctx, dest, query+" FOR UPDATE", args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not execute query: [%v]", err)
	}

	return true, nil
}

func (t *transaction) namedExec(query string, arg interface{}) (int64, error) {
	result, err := t.tx.NamedExecContext(t.ctx, query, arg)
	if err != nil {
		return 0, translateError(err)
	}

	return result.RowsAffected()
}

// translateError maps postgres failures onto the domain errors the
// callers match on.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case serializationFailureCode, deadlockDetectedCode:
		return fmt.Errorf("%v: [%w]", pgErr.Message, trading.ErrTransactionConflict)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
