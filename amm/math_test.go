// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestCheckedArithmetic(t *testing.T) {
	v, err := checkedAdd(math.MaxUint64-1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), v)
	_, err = checkedAdd(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrMathOverflow)

	v, err = checkedSub(5, 5)
	require.NoError(t, err)
	require.Zero(t, v)
	_, err = checkedSub(5, 6)
	require.ErrorIs(t, err, ErrMathOverflow)

	v, err = checkedMul(1<<32, 1<<31)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<63), v)
	_, err = checkedMul(1<<32, 1<<32)
	require.ErrorIs(t, err, ErrMathOverflow)
}

func TestMulDiv(t *testing.T) {
	// The intermediate product exceeds 64 bits
	v, err := mulDiv(math.MaxUint64, math.MaxUint64, uint256.NewInt(math.MaxUint64))
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), v)

	v, err = mulDiv(7, 13, uint256.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, uint64(18), v)

	_, err = mulDiv(1, 1, new(uint256.Int))
	require.ErrorIs(t, err, ErrMathOverflow)

	_, err = mulDiv(math.MaxUint64, 2, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrMathOverflow)
}

func TestSupplyBounds(t *testing.T) {
	s, err := addSupply(new(uint256.Int).Sub(maxSupply, uint256.NewInt(1)), 1)
	require.NoError(t, err)
	require.True(t, s.Eq(maxSupply))

	_, err = addSupply(maxSupply, 1)
	require.ErrorIs(t, err, ErrMathOverflow)

	s, err = subSupply(uint256.NewInt(10), 10)
	require.NoError(t, err)
	require.True(t, s.IsZero())

	_, err = subSupply(uint256.NewInt(10), 11)
	require.ErrorIs(t, err, ErrMathOverflow)
}

func TestDenormalize(t *testing.T) {
	tests := []struct {
		name      string
		amount    uint64
		canonical uint8
		decimals  uint8
		want      uint64
		wantErr   error
	}{
		{name: "same precision", amount: 150, canonical: 9, decimals: 9, want: 150},
		{name: "fewer decimals", amount: 1_234_567, canonical: 9, decimals: 6, want: 1234},
		{name: "truncates to zero", amount: 999, canonical: 9, decimals: 6, want: 0},
		{name: "zero decimals", amount: 5_000_000_000, canonical: 9, decimals: 0, want: 5},
		{name: "more decimals", amount: 150, canonical: 9, decimals: 12, want: 150_000},
		{name: "scale up overflow", amount: math.MaxUint64, canonical: 9, decimals: 10, wantErr: ErrMathOverflow},
		{name: "huge gap down", amount: math.MaxUint64, canonical: 30, decimals: 0, want: 0},
		{name: "huge gap up", amount: 1, canonical: 0, decimals: 30, wantErr: ErrMathOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := denormalize(tt.amount, tt.canonical, tt.decimals)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
