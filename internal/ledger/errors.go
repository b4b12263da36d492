package ledger

import "errors"

// The ledger's error taxonomy. Callers can rely on errors.Is against these
// sentinels to pick a response; anything else is a storage failure that
// rolled the transaction back with no partial effect.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)
