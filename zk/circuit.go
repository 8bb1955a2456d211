// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zk

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/holiman/uint256"
)

// amountBits bounds every amount and reserve
const amountBits = 64

var (
	ErrEmptyReserves = errors.New("swap against empty reserves")
	ErrZeroAmountIn  = errors.New("swap amount in is zero")
	ErrAmountTooBig  = errors.New("swap amount exceeds 64 bits")
)

// SwapCircuit proves a constant-product swap without revealing its amount or
// direction. Public fields come first and are ordered as the bundle signals.
// The pre-swap reserves are public so the ledger can bind a proof to the
// pool state it was priced against.
type SwapCircuit struct {
	NewBalanceX    frontend.Variable `gnark:",public"`
	NewBalanceY    frontend.Variable `gnark:",public"`
	AmountReceived frontend.Variable `gnark:",public"`
	ReserveX       frontend.Variable `gnark:",public"`
	ReserveY       frontend.Variable `gnark:",public"`

	AmountIn  frontend.Variable
	IsXtoY    frontend.Variable
	Remainder frontend.Variable
}

// Define declares the circuit constraints:
//
//	k = reserveIn * reserveOut = newOut * newIn + remainder, remainder < newIn
//	amountReceived = reserveOut - newOut
func (c *SwapCircuit) Define(api frontend.API) error {
	api.AssertIsBoolean(c.IsXtoY)
	api.AssertIsDifferent(c.AmountIn, 0)

	api.ToBinary(c.ReserveX, amountBits)
	api.ToBinary(c.ReserveY, amountBits)
	api.ToBinary(c.AmountIn, amountBits)

	reserveIn := api.Select(c.IsXtoY, c.ReserveX, c.ReserveY)
	reserveOut := api.Select(c.IsXtoY, c.ReserveY, c.ReserveX)
	newIn := api.Add(reserveIn, c.AmountIn)
	newOut := api.Sub(reserveOut, c.AmountReceived)

	// Both sides of the trade stay within 64 bits, which also keeps
	// newOut <= reserveOut.
	api.ToBinary(newIn, amountBits)
	api.ToBinary(newOut, amountBits)
	api.ToBinary(c.AmountReceived, amountBits)

	k := api.Mul(reserveIn, reserveOut)
	api.AssertIsEqual(k, api.Add(api.Mul(newOut, newIn), c.Remainder))
	api.AssertIsLessOrEqual(c.Remainder, api.Sub(newIn, 1))

	api.AssertIsEqual(c.NewBalanceX, api.Select(c.IsXtoY, newIn, newOut))
	api.AssertIsEqual(c.NewBalanceY, api.Select(c.IsXtoY, newOut, newIn))
	return nil
}

// SwapInput is the private witness of a swap.
type SwapInput struct {
	ReserveX uint64
	ReserveY uint64
	AmountIn uint64
	XToY     bool
}

// Compute runs the constant-product pricing the circuit enforces.
func (in SwapInput) Compute() (SwapOutputs, uint64, error) {
	if in.ReserveX == 0 || in.ReserveY == 0 {
		return SwapOutputs{}, 0, ErrEmptyReserves
	}
	if in.AmountIn == 0 {
		return SwapOutputs{}, 0, ErrZeroAmountIn
	}

	reserveIn, reserveOut := in.ReserveY, in.ReserveX
	if in.XToY {
		reserveIn, reserveOut = in.ReserveX, in.ReserveY
	}
	newIn := reserveIn + in.AmountIn
	if newIn < reserveIn {
		return SwapOutputs{}, 0, ErrAmountTooBig
	}

	k := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(reserveOut))
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(k, uint256.NewInt(newIn), rem)
	newOut := quo.Uint64() // quo <= reserveOut since newIn > reserveIn

	out := SwapOutputs{
		AmountReceived: reserveOut - newOut,
		ReserveX:       in.ReserveX,
		ReserveY:       in.ReserveY,
	}
	if in.XToY {
		out.NewBalanceX, out.NewBalanceY = newIn, newOut
	} else {
		out.NewBalanceX, out.NewBalanceY = newOut, newIn
	}
	return out, rem.Uint64(), nil
}

// Assignment builds a full witness assignment for the circuit.
func (in SwapInput) Assignment() (*SwapCircuit, error) {
	out, rem, err := in.Compute()
	if err != nil {
		return nil, fmt.Errorf("compute swap: %w", err)
	}
	dir := 0
	if in.XToY {
		dir = 1
	}
	return &SwapCircuit{
		NewBalanceX:    out.NewBalanceX,
		NewBalanceY:    out.NewBalanceY,
		AmountReceived: out.AmountReceived,
		ReserveX:       in.ReserveX,
		ReserveY:       in.ReserveY,
		AmountIn:       in.AmountIn,
		IsXtoY:         dir,
		Remainder:      rem,
	}, nil
}
