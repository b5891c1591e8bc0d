package badger

import (
	"bytes"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
)

// accountDiscriminator prefixes every encoded trading account:
// sha256("account:TradingAccount")[:8].
var accountDiscriminator = bin.SighashTypeID("account", "TradingAccount")

// accountRecord is the on-chain layout of a trading account followed by the
// storage deposit. The first trading.AccountDataSize bytes of an encoded
// record are exactly the program account data.
type accountRecord struct {
	Discriminator  [8]byte
	Owner          solana.PublicKey
	Authority      solana.PublicKey
	MaxTradeAmount uint64
	FeePercentage  uint16
	TotalTrades    uint64
	TotalFeesPaid  uint64
	IsActive       bool
	Bump           uint8
	Lamports       uint64
}

func encodeAccount(account *trading.Account) ([]byte, error) {
	record := &accountRecord{
		Discriminator:  [8]byte(accountDiscriminator),
		Owner:          account.Owner,
		Authority:      account.Authority,
		MaxTradeAmount: account.MaxTradeAmount,
		FeePercentage:  account.FeePercentage,
		TotalTrades:    account.TotalTrades,
		TotalFeesPaid:  account.TotalFeesPaid,
		IsActive:       account.IsActive,
		Bump:           account.Bump,
		Lamports:       account.Lamports,
	}

	return bin.MarshalBorsh(record)
}

func decodeAccount(address solana.PublicKey, data []byte) (*trading.Account, error) {
	if len(data) < trading.AccountDataSize {
		return nil, fmt.Errorf(
			"account data holds [%v] bytes, expected at least [%v]",
			len(data),
			trading.AccountDataSize,
		)
	}

	if !bytes.Equal(data[:8], accountDiscriminator[:]) {
		return nil, fmt.Errorf("unexpected account discriminator [%x]", data[:8])
	}

	var record accountRecord
	if err := bin.NewBorshDecoder(data).Decode(&record); err != nil {
		return nil, fmt.Errorf("could not decode account: [%v]", err)
	}

	return &trading.Account{
		Address:        address,
		Owner:          record.Owner,
		Authority:      record.Authority,
		MaxTradeAmount: record.MaxTradeAmount,
		FeePercentage:  record.FeePercentage,
		TotalTrades:    record.TotalTrades,
		TotalFeesPaid:  record.TotalFeesPaid,
		IsActive:       record.IsActive,
		Bump:           record.Bump,
		Lamports:       record.Lamports,
	}, nil
}

type tokenAccountRecord struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

func encodeTokenAccount(account *trading.TokenAccount) ([]byte, error) {
	return bin.MarshalBorsh(&tokenAccountRecord{
		Mint:   account.Mint,
		Owner:  account.Owner,
		Amount: account.Amount,
	})
}

func decodeTokenAccount(
	address solana.PublicKey,
	data []byte,
) (*trading.TokenAccount, error) {
	var record tokenAccountRecord
	if err := bin.NewBorshDecoder(data).Decode(&record); err != nil {
		return nil, fmt.Errorf("could not decode token account: [%v]", err)
	}

	return &trading.TokenAccount{
		Address: address,
		Mint:    record.Mint,
		Owner:   record.Owner,
		Amount:  record.Amount,
	}, nil
}

type eventRecord struct {
	ID        string
	User      solana.PublicKey
	Account   solana.PublicKey
	Amount    uint64
	FeeAmount uint64
	NetAmount uint64
	Timestamp int64
}

func encodeEvent(event *trading.TradeExecutedEvent) ([]byte, error) {
	return bin.MarshalBorsh(&eventRecord{
		ID:        event.ID.String(),
		User:      event.User,
		Account:   event.Account,
		Amount:    event.Amount,
		FeeAmount: event.FeeAmount,
		NetAmount: event.NetAmount,
		Timestamp: event.Timestamp,
	})
}

func decodeEvent(
	data []byte,
	idService trading.IDService,
) (*trading.TradeExecutedEvent, error) {
	var record eventRecord
	if err := bin.NewBorshDecoder(data).Decode(&record); err != nil {
		return nil, fmt.Errorf("could not decode event: [%v]", err)
	}

	id, err := idService.NewIDFromString(record.ID)
	if err != nil {
		return nil, fmt.Errorf("could not parse event id: [%v]", err)
	}

	return &trading.TradeExecutedEvent{
		ID:        id,
		User:      record.User,
		Account:   record.Account,
		Amount:    record.Amount,
		FeeAmount: record.FeeAmount,
		NetAmount: record.NetAmount,
		Timestamp: record.Timestamp,
	}, nil
}

func encodeLamports(lamports uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).WriteUint64(lamports, bin.LE); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeLamports(data []byte) (uint64, error) {
	return bin.NewBorshDecoder(data).ReadUint64(bin.LE)
}

func encodeExpiry(expiresAt time.Time) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).WriteInt64(expiresAt.Unix(), bin.LE); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeExpiry(data []byte) (time.Time, error) {
	seconds, err := bin.NewBorshDecoder(data).ReadInt64(bin.LE)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(seconds, 0), nil
}
