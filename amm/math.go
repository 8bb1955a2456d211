// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"github.com/holiman/uint256"
)

// maxSupply is the largest representable liquidity supply (2^128 - 1)
var maxSupply = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrMathOverflow
	}
	return a - b, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	prod, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !prod.IsUint64() {
		return 0, ErrMathOverflow
	}
	return prod.Uint64(), nil
}

// mulDiv returns a*b/c truncated. The product is computed at full width;
// a zero divisor or a 64-bit overflow of the quotient fails.
func mulDiv(a, b uint64, c *uint256.Int) (uint64, error) {
	if c.IsZero() {
		return 0, ErrMathOverflow
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quo := prod.Div(prod, c)
	if !quo.IsUint64() {
		return 0, ErrMathOverflow
	}
	return quo.Uint64(), nil
}

// addSupply returns s+v, failing above 128 bits.
func addSupply(s *uint256.Int, v uint64) (*uint256.Int, error) {
	sum := new(uint256.Int).Add(s, uint256.NewInt(v))
	if sum.Gt(maxSupply) {
		return nil, ErrMathOverflow
	}
	return sum, nil
}

// subSupply returns s-v, failing on underflow.
func subSupply(s *uint256.Int, v uint64) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(s, uint256.NewInt(v))
	if underflow {
		return nil, ErrMathOverflow
	}
	return diff, nil
}
