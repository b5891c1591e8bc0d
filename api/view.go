package api

import (
	"github.com/lukasz-zimnoch/sanad/trading"
)

type accountView struct {
	Address        string `json:"address"`
	Owner          string `json:"owner"`
	Authority      string `json:"authority"`
	MaxTradeAmount uint64 `json:"max_trade_amount"`
	FeePercentage  uint16 `json:"fee_percentage"`
	TotalTrades    uint64 `json:"total_trades"`
	TotalFeesPaid  uint64 `json:"total_fees_paid"`
	IsActive       bool   `json:"is_active"`
	State          string `json:"state"`
	Bump           uint8  `json:"bump"`
	Lamports       uint64 `json:"lamports"`
}

func newAccountView(account *trading.Account) *accountView {
	if account == nil {
		return nil
	}

	return &accountView{
		Address:        account.Address.String(),
		Owner:          account.Owner.String(),
		Authority:      account.Authority.String(),
		MaxTradeAmount: account.MaxTradeAmount,
		FeePercentage:  account.FeePercentage,
		TotalTrades:    account.TotalTrades,
		TotalFeesPaid:  account.TotalFeesPaid,
		IsActive:       account.IsActive,
		State:          account.State().String(),
		Bump:           account.Bump,
		Lamports:       account.Lamports,
	}
}

type eventView struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Account   string `json:"account"`
	Amount    uint64 `json:"amount"`
	FeeAmount uint64 `json:"fee_amount"`
	NetAmount uint64 `json:"net_amount"`
	Timestamp int64  `json:"timestamp"`
}

func newEventView(event *trading.TradeExecutedEvent) *eventView {
	return &eventView{
		ID:        event.ID.String(),
		User:      event.User.String(),
		Account:   event.Account.String(),
		Amount:    event.Amount,
		FeeAmount: event.FeeAmount,
		NetAmount: event.NetAmount,
		Timestamp: event.Timestamp,
	}
}

type tokenAccountView struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

func newTokenAccountView(account *trading.TokenAccount) *tokenAccountView {
	return &tokenAccountView{
		Address: account.Address.String(),
		Mint:    account.Mint.String(),
		Owner:   account.Owner.String(),
		Amount:  account.Amount,
	}
}

type transactionResultView struct {
	Instruction string       `json:"instruction"`
	Address     string       `json:"address"`
	Account     *accountView `json:"account,omitempty"`
	FeeAmount   *uint64      `json:"fee_amount,omitempty"`
	NetAmount   *uint64      `json:"net_amount,omitempty"`
	Event       *eventView   `json:"event,omitempty"`
}
