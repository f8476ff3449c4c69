package ledger

import "github.com/shopspring/decimal"

// Authorize checks whether applying delta to balance keeps the account
// non-negative. Credits (delta >= 0) always pass; debits pass only while
// balance + delta >= 0. Pure: no side effects, no I/O.
func Authorize(balance, delta decimal.Decimal) error {
	if delta.Sign() >= 0 {
		return nil
	}
	if balance.Add(delta).Sign() < 0 {
		return ErrInsufficientFunds
	}
	return nil
}
