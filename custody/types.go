// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package custody implements the transfer gateway used by the AMM: custody
// balances per (owner, mint), mint registration with decimals, and
// authorization of debits either by an ordinary signer or by a keyless
// authority derived from a program's seeds.
package custody

import (
	"errors"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Storage key prefixes for custody state
var (
	balancePrefix = []byte("cbal")
	mintPrefix    = []byte("cmnt")
	derivedPrefix = []byte("cpda")
)

// derivationMarker is appended to every derivation preimage so derived
// addresses cannot collide with other blake3-keyed identifiers.
var derivationMarker = []byte("ProgramDerivedAddress")

// Errors
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMintNotFound        = errors.New("mint not found")
	ErrMintExists          = errors.New("mint already exists")
	ErrMintMismatch        = errors.New("accounts hold different mints")
	ErrOverflow            = errors.New("balance overflow")
	ErrInvalidAuthority    = errors.New("invalid authority")
	ErrNoBump              = errors.New("unable to find a viable derivation bump")
)

// Account identifies a custody balance: the holdings of Mint owned by Owner.
type Account struct {
	Owner common.Address
	Mint  common.Address
}

// NewAccount returns the account holding mint on behalf of owner.
func NewAccount(owner, mint common.Address) Account {
	return Account{Owner: owner, Mint: mint}
}

// key returns the storage key of the account balance
func (a Account) key() []byte {
	return makeStorageKey(balancePrefix, a.Owner.Bytes(), a.Mint.Bytes())
}

// MintInfo describes a registered mint.
type MintInfo struct {
	ID        common.Address
	Decimals  uint8
	Authority common.Address
	Derived   bool   // Authority is a keyless derived authority
	Supply    uint64 // Total minted minus burned
}

// Authority is the capability presented to authorize a debit or a mint.
// A signer authority stands for an externally authenticated owner. A derived
// authority can only be obtained from Derive or DeriveWithBump and carries no
// private key.
type Authority struct {
	addr    common.Address
	derived bool
}

// Signer returns the authority of an externally authenticated owner.
func Signer(addr common.Address) Authority {
	return Authority{addr: addr}
}

// Address returns the address the authority acts for.
func (a Authority) Address() common.Address {
	return a.addr
}

// IsDerived reports whether the authority is a keyless derived authority.
func (a Authority) IsDerived() bool {
	return a.derived
}

// IsZero reports whether the authority is unset.
func (a Authority) IsZero() bool {
	return a.addr == (common.Address{})
}

// makeStorageKey creates a storage key from prefix and identifiers
func makeStorageKey(prefix []byte, ids ...[]byte) []byte {
	h := blake3.New()
	h.Write(prefix)
	for _, id := range ids {
		h.Write(id)
	}
	key := make([]byte, 32)
	h.Digest().Read(key)
	return key
}
