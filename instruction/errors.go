package instruction

import "errors"

var (
	ErrMalformed           = errors.New("malformed transaction")
	ErrUnknownInstruction  = errors.New("unknown instruction")
	ErrMissingAccounts     = errors.New("missing instruction accounts")
	ErrInvalidSignature    = errors.New("invalid transaction signature")
	ErrExpiredTransaction  = errors.New("transaction expired")
	ErrReplayedTransaction = errors.New("transaction already processed")
)
