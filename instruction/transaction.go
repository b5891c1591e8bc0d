package instruction

import (
	"bytes"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Transaction carries one instruction signed by its signer. The signature
// covers the encoded message, so any change to the accounts, the
// instruction data, the nonce or the expiry invalidates it.
type Transaction struct {
	Signer    solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
	Nonce     uint64
	ExpiresAt int64
}

func NewTransaction(
	signer solana.PublicKey,
	instruction Instruction,
	accounts []solana.PublicKey,
	nonce uint64,
	expiresAt time.Time,
) (*Transaction, error) {
	data, err := Encode(instruction)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		Signer:    signer,
		Accounts:  accounts,
		Data:      data,
		Nonce:     nonce,
		ExpiresAt: expiresAt.Unix(),
	}, nil
}

// Message returns the bytes the signer signs.
func (t *Transaction) Message() ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBorshEncoder(buf)

	if err := encoder.WriteBytes(t.Signer.Bytes(), false); err != nil {
		return nil, err
	}

	if err := encoder.WriteUint32(uint32(len(t.Accounts)), bin.LE); err != nil {
		return nil, err
	}

	for _, account := range t.Accounts {
		if err := encoder.WriteBytes(account.Bytes(), false); err != nil {
			return nil, err
		}
	}

	if err := encoder.WriteUint32(uint32(len(t.Data)), bin.LE); err != nil {
		return nil, err
	}

	if err := encoder.WriteBytes(t.Data, false); err != nil {
		return nil, err
	}

	if err := encoder.WriteUint64(t.Nonce, bin.LE); err != nil {
		return nil, err
	}

	if err := encoder.WriteInt64(t.ExpiresAt, bin.LE); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (t *Transaction) Sign(key solana.PrivateKey) (solana.Signature, error) {
	if !key.PublicKey().Equals(t.Signer) {
		return solana.Signature{}, fmt.Errorf(
			"key of [%v] cannot sign for [%v]",
			key.PublicKey(),
			t.Signer,
		)
	}

	message, err := t.Message()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("could not encode message: [%v]", err)
	}

	return key.Sign(message)
}

func (t *Transaction) Instruction() (Instruction, error) {
	return Decode(t.Data)
}

func (t *Transaction) ExpirationTime() time.Time {
	return time.Unix(t.ExpiresAt, 0)
}

// ParseMessage decodes a message produced by Transaction.Message.
func ParseMessage(message []byte) (*Transaction, error) {
	decoder := bin.NewBorshDecoder(message)

	signer, err := readPublicKey(decoder)
	if err != nil {
		return nil, fmt.Errorf("could not read signer: [%v]: [%w]", err, ErrMalformed)
	}

	accountsLen, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("could not read accounts: [%v]: [%w]", err, ErrMalformed)
	}

	if int(accountsLen)*solana.PublicKeyLength > decoder.Remaining() {
		return nil, fmt.Errorf(
			"[%v] accounts do not fit the message: [%w]",
			accountsLen,
			ErrMalformed,
		)
	}

	accounts := make([]solana.PublicKey, accountsLen)
	for i := range accounts {
		if accounts[i], err = readPublicKey(decoder); err != nil {
			return nil, fmt.Errorf("could not read account [%v]: [%v]: [%w]", i, err, ErrMalformed)
		}
	}

	dataLen, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("could not read data: [%v]: [%w]", err, ErrMalformed)
	}

	if int(dataLen) > decoder.Remaining() {
		return nil, fmt.Errorf(
			"[%v] data bytes do not fit the message: [%w]",
			dataLen,
			ErrMalformed,
		)
	}

	data, err := decoder.ReadNBytes(int(dataLen))
	if err != nil {
		return nil, fmt.Errorf("could not read data: [%v]: [%w]", err, ErrMalformed)
	}

	nonce, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("could not read nonce: [%v]: [%w]", err, ErrMalformed)
	}

	expiresAt, err := decoder.ReadInt64(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("could not read expiry: [%v]: [%w]", err, ErrMalformed)
	}

	if decoder.Remaining() > 0 {
		return nil, fmt.Errorf(
			"[%v] trailing bytes: [%w]",
			decoder.Remaining(),
			ErrMalformed,
		)
	}

	return &Transaction{
		Signer:    signer,
		Accounts:  accounts,
		Data:      data,
		Nonce:     nonce,
		ExpiresAt: expiresAt,
	}, nil
}

func readPublicKey(decoder *bin.Decoder) (solana.PublicKey, error) {
	raw, err := decoder.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}

	return solana.PublicKeyFromBytes(raw), nil
}
