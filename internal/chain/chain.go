// Package chain records approved claim payouts on the policy contract. The
// decision pipeline only sees the Payer interface; the go-ethereum backed
// implementation lives in contract.go.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// weiDecimals is the number of decimal places between one unit of the
// chain's native currency and its smallest unit.
const weiDecimals = 18

// ErrReverted is returned when the payout transaction was mined but failed.
var ErrReverted = errors.New("chain: transaction reverted")

// Payer is the interface the decision pipeline uses for payouts.
// Tests inject a stub.
type Payer interface {
	// UpdatePolicyClaim records an approved claim of approvedAmountWei for
	// policyID and returns the transaction hash once the transaction is
	// mined successfully. Any error means the payout must be treated as not
	// having happened.
	UpdatePolicyClaim(ctx context.Context, policyID, approvedAmountWei *big.Int) (string, error)
}

// ToWei converts an amount in whole native units (e.g. ETH) to wei. Negative
// amounts and amounts with more than 18 decimal places are rejected.
func ToWei(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("chain: negative amount %s", amount)
	}
	wei := amount.Shift(weiDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("chain: amount %s has sub-wei precision", amount)
	}
	return wei.BigInt(), nil
}

// FromWei is the inverse of ToWei.
func FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -weiDecimals)
}

// ParsePolicyID converts a policy identifier to the uint256 the contract
// expects. Only non-negative base-10 integers are accepted.
func ParsePolicyID(id string) (*big.Int, error) {
	id = strings.TrimSpace(id)
	n, ok := new(big.Int).SetString(id, 10)
	if !ok || n.Sign() < 0 || strings.HasPrefix(id, "+") {
		return nil, fmt.Errorf("chain: policy id %q is not an on-chain integer id", id)
	}
	return n, nil
}
