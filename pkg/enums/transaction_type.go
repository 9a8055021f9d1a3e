package enums

import (
	"fmt"
	"strings"
)

// TransactionType maps to the transaction_type column on transactions.
type TransactionType string

const (
	TransactionTypeIn  TransactionType = "IN"
	TransactionTypeOut TransactionType = "OUT"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeIn,
	TransactionTypeOut,
}

// IsValid reports whether the value is IN or OUT.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Sign returns +1 for IN and -1 for OUT.
func (t TransactionType) Sign() int64 {
	if t == TransactionTypeOut {
		return -1
	}
	return 1
}

// ParseTransactionType accepts IN/OUT case-insensitively.
func ParseTransactionType(value string) (TransactionType, error) {
	normalized := TransactionType(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
