package postgres

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgtype"
	"github.com/jmoiron/sqlx"
	"github.com/lukasz-zimnoch/sanad/trading"
)

func (t *transaction) AppendEvent(event *trading.TradeExecutedEvent) error {
	query := `INSERT INTO 
		trade_event (id, user_address, account_address, amount, fee_amount, 
		             net_amount, timestamp) 
		VALUES (:id, :user_address, :account_address, :amount, :fee_amount, 
		        :net_amount, :timestamp)`

	row, err := new(eventRow).wrap(event)
	if err != nil {
		return fmt.Errorf(
			"could not convert event [%v] to pg row: [%v]",
			event.ID,
			err,
		)
	}

	if _, err := t.namedExec(query, row); err != nil {
		return fmt.Errorf(
			"could not execute command for event [%v]: [%w]",
			event.ID,
			err,
		)
	}

	return nil
}

func (s *Store) Events(
	ctx context.Context,
	user solana.PublicKey,
	limit int,
) ([]*trading.TradeExecutedEvent, error) {
	var rows []*eventRow

	query := `SELECT * FROM trade_event 
		WHERE user_address = $1 ORDER BY sequence DESC LIMIT $2`

	err := s.client.instance().SelectContext(ctx, &rows, query, user.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("could not execute query: [%v]", err)
	}

	return s.unwrapEvents(rows)
}

func (s *Store) PendingEvents(
	ctx context.Context,
	limit int,
) ([]*trading.TradeExecutedEvent, error) {
	var rows []*eventRow

	query := `SELECT * FROM trade_event 
		WHERE NOT published ORDER BY sequence LIMIT $1`

	err := s.client.instance().SelectContext(ctx, &rows, query, limit)
	if err != nil {
		return nil, fmt.Errorf("could not execute query: [%v]", err)
	}

	return s.unwrapEvents(rows)
}

func (s *Store) MarkEventsPublished(ctx context.Context, ids ...trading.ID) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		`UPDATE trade_event SET published = TRUE WHERE id IN (?)`,
		trading.IDStrings(ids...),
	)
	if err != nil {
		return fmt.Errorf("could not build command: [%v]", err)
	}

	database := s.client.instance()

	_, err = database.ExecContext(ctx, database.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("could not execute command: [%v]", err)
	}

	return nil
}

func (s *Store) unwrapEvents(rows []*eventRow) ([]*trading.TradeExecutedEvent, error) {
	events := make([]*trading.TradeExecutedEvent, len(rows))

	for i, row := range rows {
		event, err := row.unwrap(s.idService)
		if err != nil {
			return nil, fmt.Errorf(
				"could not convert pg row [%v] to event: [%v]",
				row.Sequence,
				err,
			)
		}

		events[i] = event
	}

	return events, nil
}

type eventRow struct {
	Sequence       int64
	ID             string
	UserAddress    string `db:"user_address"`
	AccountAddress string `db:"account_address"`
	Amount         pgtype.Numeric
	FeeAmount      pgtype.Numeric `db:"fee_amount"`
	NetAmount      pgtype.Numeric `db:"net_amount"`
	Timestamp      int64
	Published      bool
}

func (er *eventRow) wrap(event *trading.TradeExecutedEvent) (*eventRow, error) {
	amount, err := uint64ToNumeric(event.Amount)
	if err != nil {
		return nil, err
	}

	feeAmount, err := uint64ToNumeric(event.FeeAmount)
	if err != nil {
		return nil, err
	}

	netAmount, err := uint64ToNumeric(event.NetAmount)
	if err != nil {
		return nil, err
	}

	er.ID = event.ID.String()
	er.UserAddress = event.User.String()
	er.AccountAddress = event.Account.String()
	er.Amount = amount
	er.FeeAmount = feeAmount
	er.NetAmount = netAmount
	er.Timestamp = event.Timestamp

	return er, nil
}

func (er *eventRow) unwrap(
	idService trading.IDService,
) (*trading.TradeExecutedEvent, error) {
	id, err := idService.NewIDFromString(er.ID)
	if err != nil {
		return nil, err
	}

	user, err := solana.PublicKeyFromBase58(er.UserAddress)
	if err != nil {
		return nil, err
	}

	account, err := solana.PublicKeyFromBase58(er.AccountAddress)
	if err != nil {
		return nil, err
	}

	amount, err := numericToUint64(er.Amount)
	if err != nil {
		return nil, err
	}

	feeAmount, err := numericToUint64(er.FeeAmount)
	if err != nil {
		return nil, err
	}

	netAmount, err := numericToUint64(er.NetAmount)
	if err != nil {
		return nil, err
	}

	return &trading.TradeExecutedEvent{
		ID:        id,
		User:      user,
		Account:   account,
		Amount:    amount,
		FeeAmount: feeAmount,
		NetAmount: netAmount,
		Timestamp: er.Timestamp,
	}, nil
}
