// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm implements a two-token liquidity pool with proportional
// deposits and withdrawals and confidential swaps settled against a
// zero-knowledge proof of the resulting reserves.
package amm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/zkamm/custody"
	"github.com/luxfi/zkamm/zk"
)

// Derivation seeds
var (
	poolSeed = []byte("pool")
	lpSeed   = []byte("lp")
)

// Metadata limits
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
)

// Errors
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidTokenOrder      = errors.New("invalid token order")
	ErrInvalidProof           = errors.New("invalid proof")
	ErrInvalidGroth16Verifier = errors.New("invalid groth16 verifier")
	ErrInvalidSwapAmount      = errors.New("invalid swap amount")
	ErrMathOverflow           = errors.New("math overflow")
	ErrSlippageExceeded       = errors.New("slippage exceeded")
	ErrInvalidLpMint          = errors.New("invalid lp mint")
	ErrInvalidMetadataAccount = errors.New("invalid metadata account")
	ErrPoolNotFound           = errors.New("pool not found")
	ErrPoolExists             = errors.New("pool already exists")

	// ErrReserveMismatch rejects a proof whose outputs do not follow from the
	// current reserves, typically a replayed or stale proof.
	ErrReserveMismatch = fmt.Errorf("%w: proof outputs do not match pool reserves", ErrInvalidInput)
)

// PoolKey identifies a pool by its token pair.
// TokenX must sort strictly before TokenY.
type PoolKey struct {
	TokenX common.Address
	TokenY common.Address
}

// NewPoolKey returns the canonical key for an unordered pair.
func NewPoolKey(a, b common.Address) PoolKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return PoolKey{TokenX: a, TokenY: b}
}

// IsSorted reports whether TokenX < TokenY.
func (pk PoolKey) IsSorted() bool {
	return bytes.Compare(pk.TokenX.Bytes(), pk.TokenY.Bytes()) < 0
}

// ID computes the unique pool identifier
func (pk PoolKey) ID() common.Hash {
	h := blake3.New()
	h.Write(pk.TokenX.Bytes())
	h.Write(pk.TokenY.Bytes())
	var id common.Hash
	h.Digest().Read(id[:])
	return id
}

// ToBytes serializes pool key for storage
func (pk PoolKey) ToBytes() []byte {
	data := make([]byte, 2*common.AddressLength)
	copy(data[:common.AddressLength], pk.TokenX.Bytes())
	copy(data[common.AddressLength:], pk.TokenY.Bytes())
	return data
}

// PoolKeyFromBytes deserializes pool key from storage
func PoolKeyFromBytes(data []byte) (PoolKey, error) {
	if len(data) < 2*common.AddressLength {
		return PoolKey{}, errors.New("invalid pool key data length")
	}
	return PoolKey{
		TokenX: common.BytesToAddress(data[:common.AddressLength]),
		TokenY: common.BytesToAddress(data[common.AddressLength : 2*common.AddressLength]),
	}, nil
}

// seeds returns the derivation seeds for prefix over the pair
func (pk PoolKey) seeds(prefix []byte) [][]byte {
	return [][]byte{prefix, pk.TokenX.Bytes(), pk.TokenY.Bytes()}
}

// Metadata is the display name and symbol of a pool's LP token.
type Metadata struct {
	Name   string
	Symbol string
}

// Validate checks the name and symbol are present and within limits.
func (m Metadata) Validate() error {
	switch {
	case len(m.Name) == 0 || len(m.Name) > MaxNameLength:
		return fmt.Errorf("%w: name length %d", ErrInvalidMetadataAccount, len(m.Name))
	case len(m.Symbol) == 0 || len(m.Symbol) > MaxSymbolLength:
		return fmt.Errorf("%w: symbol length %d", ErrInvalidMetadataAccount, len(m.Symbol))
	}
	return nil
}

// Pool is the on-ledger record of a token pair's reserves and LP supply.
type Pool struct {
	Key             PoolKey
	ReserveX        uint64
	ReserveY        uint64
	LiquiditySupply *uint256.Int // fits in 128 bits

	Authority common.Address // derived pool authority, owner of the vaults
	Bump      uint8
	LPMint    common.Address
	LPBump    uint8
	Metadata  Metadata
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	c := *p
	c.LiquiditySupply = new(uint256.Int).Set(p.LiquiditySupply)
	return &c
}

// VaultX returns the pool's custody account for TokenX.
func (p *Pool) VaultX() custody.Account {
	return custody.NewAccount(p.Authority, p.Key.TokenX)
}

// VaultY returns the pool's custody account for TokenY.
func (p *Pool) VaultY() custody.Account {
	return custody.NewAccount(p.Authority, p.Key.TokenY)
}

// State returns a snapshot of the pool's mutable state.
func (p *Pool) State() PoolState {
	return PoolState{
		Key:             p.Key,
		ReserveX:        p.ReserveX,
		ReserveY:        p.ReserveY,
		LiquiditySupply: new(uint256.Int).Set(p.LiquiditySupply),
	}
}

// PoolState is a snapshot of reserves and LP supply.
type PoolState struct {
	Key             PoolKey
	ReserveX        uint64
	ReserveY        uint64
	LiquiditySupply *uint256.Int
}

// AddLiquidityParams describes a proportional deposit.
type AddLiquidityParams struct {
	TokenX       common.Address
	TokenY       common.Address
	AmountX      uint64
	AmountY      uint64
	MinLiquidity uint64 // zero means no bound
}

// RemoveLiquidityParams describes a withdrawal of LP shares.
type RemoveLiquidityParams struct {
	TokenX     common.Address
	TokenY     common.Address
	LPAmount   uint64
	MinAmountX uint64 // zero means no bound
	MinAmountY uint64 // zero means no bound
}

// SwapRequest is a confidential swap submission.
type SwapRequest struct {
	TokenX       common.Address
	TokenY       common.Address
	Proof        *zk.ProofBundle
	MinAmountOut uint64 // in the output mint's native units, zero means no bound
}
