package enums

import "fmt"

// TransactionSource distinguishes operator movements from reconciling entries.
type TransactionSource string

const (
	TransactionSourceMovement   TransactionSource = "movement"
	TransactionSourceAdjustment TransactionSource = "adjustment"
)

func (s TransactionSource) IsValid() bool {
	switch s {
	case TransactionSourceMovement, TransactionSourceAdjustment:
		return true
	default:
		return false
	}
}

func ParseTransactionSource(value string) (TransactionSource, error) {
	s := TransactionSource(value)
	if s.IsValid() {
		return s, nil
	}
	return "", fmt.Errorf("invalid transaction source %q", value)
}
