package repository

import (
	"math"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFromNumeric(t *testing.T) {
	tests := []struct {
		name    string
		in      pgtype.Numeric
		want    int64
		wantErr bool
	}{
		{"zero", pgtype.Numeric{Int: big.NewInt(0), Valid: true}, 0, false},
		{"plain", pgtype.Numeric{Int: big.NewInt(50), Valid: true}, 50, false},
		{"positive exponent", pgtype.Numeric{Int: big.NewInt(1), Exp: 2, Valid: true}, 100, false},
		{"negative exponent, whole", pgtype.Numeric{Int: big.NewInt(1500), Exp: -2, Valid: true}, 15, false},
		{"max int64", pgtype.Numeric{Int: big.NewInt(math.MaxInt64), Valid: true}, math.MaxInt64, false},
		{"null", pgtype.Numeric{}, 0, true},
		{"nan", pgtype.Numeric{NaN: true, Valid: true}, 0, true},
		{"infinity", pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}, 0, true},
		{"fractional", pgtype.Numeric{Int: big.NewInt(155), Exp: -1, Valid: true}, 0, true},
		{"overflow", pgtype.Numeric{Int: big.NewInt(math.MaxInt64), Exp: 1, Valid: true}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := amountFromNumeric(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumericFromAmount(t *testing.T) {
	n := numericFromAmount(75)
	assert.True(t, n.Valid)

	got, err := amountFromNumeric(n)
	require.NoError(t, err)
	assert.Equal(t, int64(75), got)
}
