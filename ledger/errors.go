package ledger

import (
	"errors"
	"fmt"
)

// Errors returned by ledger operations. Callers branch with errors.Is; any
// error not matching one of these is a lower-level storage failure.
var (
	ErrDuplicateName      = errors.New("tool name already exists")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("wrong username or password")
	ErrNotFound           = errors.New("not found")
	ErrToolInUse          = errors.New("tool has outstanding loans")
	ErrLoanClosed         = errors.New("loan already returned")
)

// InsufficientStockError rejects a loan request that exceeds the tool's
// current stock. Available carries the quantity that could still be lent.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}
