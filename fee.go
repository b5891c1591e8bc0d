package trading

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FeeDenominator is the basis points scale of Account.FeePercentage,
// so 300 stands for 3.00%.
const FeeDenominator = 10000

// CalculateFee splits a trade amount into the fee and the net remainder:
// fee = floor(amount * feePercentage / 10000), net = amount - fee.
// The multiplication is done in 256 bits and every step is checked; a fee
// that does not fit in 64 bits or exceeds the amount returns
// ErrArithmeticOverflow instead of wrapping.
func CalculateFee(amount uint64, feePercentage uint16) (uint64, uint64, error) {
	fee, overflow := new(uint256.Int).MulOverflow(
		uint256.NewInt(amount),
		uint256.NewInt(uint64(feePercentage)),
	)
	if overflow {
		return 0, 0, fmt.Errorf(
			"could not multiply amount [%v] by fee [%v]: [%w]",
			amount,
			feePercentage,
			ErrArithmeticOverflow,
		)
	}

	fee.Div(fee, uint256.NewInt(FeeDenominator))

	if !fee.IsUint64() {
		return 0, 0, fmt.Errorf(
			"fee for amount [%v] does not fit in 64 bits: [%w]",
			amount,
			ErrArithmeticOverflow,
		)
	}

	net, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(amount), fee)
	if underflow {
		return 0, 0, fmt.Errorf(
			"fee [%v] is greater than amount [%v]: [%w]",
			fee.Uint64(),
			amount,
			ErrArithmeticOverflow,
		)
	}

	return fee.Uint64(), net.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(
		uint256.NewInt(a),
		uint256.NewInt(b),
	)
	if overflow || !sum.IsUint64() {
		return 0, fmt.Errorf("[%v] + [%v]: [%w]", a, b, ErrArithmeticOverflow)
	}

	return sum.Uint64(), nil
}
