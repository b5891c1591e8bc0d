package instruction

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

const (
	InitializeTradingAccountName = "initialize_trading_account"
	ExecuteTradeName             = "execute_trade"
	UpdateTradingSettingsName    = "update_trading_settings"
	CloseTradingAccountName      = "close_trading_account"
)

// Instruction is one of the program instructions. Its arguments are
// borsh-encoded after the 8-byte discriminator of its name.
type Instruction interface {
	Name() string

	// AccountsLen is the number of accounts the instruction expects, in
	// the order documented on the instruction type.
	AccountsLen() int

	encodeArgs(encoder *bin.Encoder) error
	decodeArgs(decoder *bin.Decoder) error
}

// InitializeTradingAccount expects the accounts [trading_account, authority].
type InitializeTradingAccount struct {
	MaxTradeAmount uint64
	FeePercentage  uint16
}

func (i *InitializeTradingAccount) Name() string {
	return InitializeTradingAccountName
}

func (i *InitializeTradingAccount) AccountsLen() int {
	return 2
}

func (i *InitializeTradingAccount) encodeArgs(encoder *bin.Encoder) error {
	if err := encoder.WriteUint64(i.MaxTradeAmount, bin.LE); err != nil {
		return err
	}

	return encoder.WriteUint16(i.FeePercentage, bin.LE)
}

func (i *InitializeTradingAccount) decodeArgs(decoder *bin.Decoder) error {
	var err error

	if i.MaxTradeAmount, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}

	i.FeePercentage, err = decoder.ReadUint16(bin.LE)
	return err
}

// ExecuteTrade expects the accounts
// [trading_account, user_token_account, fee_token_account].
type ExecuteTrade struct {
	Amount uint64
}

func (e *ExecuteTrade) Name() string {
	return ExecuteTradeName
}

func (e *ExecuteTrade) AccountsLen() int {
	return 3
}

func (e *ExecuteTrade) encodeArgs(encoder *bin.Encoder) error {
	return encoder.WriteUint64(e.Amount, bin.LE)
}

func (e *ExecuteTrade) decodeArgs(decoder *bin.Decoder) error {
	var err error
	e.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

// UpdateTradingSettings expects the accounts [trading_account]. Nil fields
// are encoded as absent options.
type UpdateTradingSettings struct {
	MaxTradeAmount *uint64
	IsActive       *bool
}

func (u *UpdateTradingSettings) Name() string {
	return UpdateTradingSettingsName
}

func (u *UpdateTradingSettings) AccountsLen() int {
	return 1
}

func (u *UpdateTradingSettings) encodeArgs(encoder *bin.Encoder) error {
	if err := writeOption(encoder, u.MaxTradeAmount != nil); err != nil {
		return err
	}

	if u.MaxTradeAmount != nil {
		if err := encoder.WriteUint64(*u.MaxTradeAmount, bin.LE); err != nil {
			return err
		}
	}

	if err := writeOption(encoder, u.IsActive != nil); err != nil {
		return err
	}

	if u.IsActive != nil {
		return encoder.WriteBool(*u.IsActive)
	}

	return nil
}

func (u *UpdateTradingSettings) decodeArgs(decoder *bin.Decoder) error {
	present, err := readOption(decoder)
	if err != nil {
		return err
	}

	if present {
		maxTradeAmount, err := decoder.ReadUint64(bin.LE)
		if err != nil {
			return err
		}

		u.MaxTradeAmount = &maxTradeAmount
	}

	present, err = readOption(decoder)
	if err != nil {
		return err
	}

	if present {
		isActive, err := decoder.ReadBool()
		if err != nil {
			return err
		}

		u.IsActive = &isActive
	}

	return nil
}

// CloseTradingAccount expects the accounts [trading_account].
type CloseTradingAccount struct{}

func (c *CloseTradingAccount) Name() string {
	return CloseTradingAccountName
}

func (c *CloseTradingAccount) AccountsLen() int {
	return 1
}

func (c *CloseTradingAccount) encodeArgs(encoder *bin.Encoder) error {
	return nil
}

func (c *CloseTradingAccount) decodeArgs(decoder *bin.Decoder) error {
	return nil
}

// Discriminator returns the first 8 bytes of sha256("global:<name>").
func Discriminator(name string) [8]byte {
	return [8]byte(bin.SighashTypeID("global", name))
}

var instructions = map[[8]byte]func() Instruction{
	Discriminator(InitializeTradingAccountName): func() Instruction {
		return &InitializeTradingAccount{}
	},
	Discriminator(ExecuteTradeName): func() Instruction {
		return &ExecuteTrade{}
	},
	Discriminator(UpdateTradingSettingsName): func() Instruction {
		return &UpdateTradingSettings{}
	},
	Discriminator(CloseTradingAccountName): func() Instruction {
		return &CloseTradingAccount{}
	},
}

func Encode(instruction Instruction) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBorshEncoder(buf)

	discriminator := Discriminator(instruction.Name())
	if err := encoder.WriteBytes(discriminator[:], false); err != nil {
		return nil, err
	}

	if err := instruction.encodeArgs(encoder); err != nil {
		return nil, fmt.Errorf(
			"could not encode [%v] arguments: [%v]",
			instruction.Name(),
			err,
		)
	}

	return buf.Bytes(), nil
}

// Decode parses instruction data. Trailing bytes after the arguments are
// rejected.
func Decode(data []byte) (Instruction, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf(
			"instruction data holds [%v] bytes: [%w]",
			len(data),
			ErrMalformed,
		)
	}

	newInstruction, ok := instructions[[8]byte(data[:8])]
	if !ok {
		return nil, fmt.Errorf(
			"discriminator [%x]: [%w]",
			data[:8],
			ErrUnknownInstruction,
		)
	}

	instruction := newInstruction()
	decoder := bin.NewBorshDecoder(data[8:])

	if err := instruction.decodeArgs(decoder); err != nil {
		return nil, fmt.Errorf(
			"could not decode [%v] arguments: [%v]: [%w]",
			instruction.Name(),
			err,
			ErrMalformed,
		)
	}

	if decoder.Remaining() > 0 {
		return nil, fmt.Errorf(
			"[%v] bytes after [%v] arguments: [%w]",
			decoder.Remaining(),
			instruction.Name(),
			ErrMalformed,
		)
	}

	return instruction, nil
}

func writeOption(encoder *bin.Encoder, present bool) error {
	if present {
		return encoder.WriteUint8(1)
	}

	return encoder.WriteUint8(0)
}

func readOption(decoder *bin.Decoder) (bool, error) {
	tag, err := decoder.ReadUint8()
	if err != nil {
		return false, err
	}

	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid option tag [%v]", tag)
	}
}
