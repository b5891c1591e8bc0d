package trading

import "errors"

// Errors returned by account operations. Callers match them with errors.Is;
// every one of them aborts the surrounding transaction.
var (
	ErrAccountNotActive   = errors.New("account is not active")
	ErrAmountExceedsLimit = errors.New("amount exceeds the maximum allowed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	ErrAccountNotFound      = errors.New("trading account not found")
	ErrAccountAlreadyExists = errors.New("trading account already exists")
	ErrAddressMismatch      = errors.New("account address does not match its seeds")

	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrTokenAccountNotFound      = errors.New("token account not found")
	ErrTokenAccountAlreadyExists = errors.New("token account already exists")
	ErrTokenOwnerMismatch        = errors.New("token account owner does not match")
	ErrMintMismatch              = errors.New("token accounts belong to different mints")

	ErrTransactionConflict = errors.New("transaction conflict")
	ErrSignatureConsumed   = errors.New("signature already consumed")
)
