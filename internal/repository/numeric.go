package repository

import (
	"fmt"
	"math"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// amountFromNumeric reads a numeric(15,0) reward amount. Fractional,
// non-finite and out-of-range values are errors, never rounded.
func amountFromNumeric(n pgtype.Numeric) (int64, error) {
	if !n.Valid {
		return 0, fmt.Errorf("amount is NULL")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return 0, fmt.Errorf("amount is not a finite number")
	}

	d := decimal.NewFromBigInt(n.Int, n.Exp)
	if !d.IsInteger() {
		return 0, fmt.Errorf("amount %s has a fractional part", d)
	}
	if d.GreaterThan(maxAmount) || d.LessThan(minAmount) {
		return 0, fmt.Errorf("amount %s overflows int64", d)
	}
	return d.IntPart(), nil
}

// numericFromAmount encodes a reward amount for a numeric(15,0) column.
func numericFromAmount(v int64) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              big.NewInt(v),
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}
