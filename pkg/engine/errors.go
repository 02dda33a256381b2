package engine

import (
	"errors"

	"github.com/openloot/exchange/pkg/fees"
	"github.com/openloot/exchange/pkg/nonce"
	"github.com/openloot/exchange/pkg/order"
	"github.com/openloot/exchange/pkg/transfer"
)

// The full settlement error taxonomy. Every one is terminal for the current
// call: the engine never retries and never settles partially. Errors raised
// by collaborator packages are re-exported here so callers match against a
// single surface with errors.Is.
var (
	ErrInvalidSignature       = order.ErrInvalidSignature
	ErrNonceAlreadyUsed       = nonce.ErrNonceAlreadyUsed
	ErrNonceBelowFloor        = nonce.ErrNonceBelowFloor
	ErrStrategyNotExecutable  = errors.New("strategy cannot execute match")
	ErrStrategyNotWhitelisted = errors.New("strategy not whitelisted")
	ErrCurrencyNotWhitelisted = errors.New("currency not whitelisted")
	ErrFeeLimitExceeded       = fees.ErrFeeLimitExceeded
	ErrUnsupportedCollection  = transfer.ErrUnsupportedCollection
	ErrTransferFailed         = transfer.ErrTransferFailed
	ErrReentrantCall          = errors.New("reentrant settlement call")
)
