// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package custody

import (
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Derive finds the canonical keyless authority for seeds under programID.
// Bumps are tried from 255 downwards and the first viable candidate wins, so
// the result is a pure function of (programID, seeds).
func Derive(programID common.Address, seeds ...[]byte) (Authority, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		if addr, ok := deriveCandidate(programID, uint8(bump), seeds); ok {
			return Authority{addr: addr, derived: true}, uint8(bump), nil
		}
	}
	return Authority{}, 0, ErrNoBump
}

// DeriveWithBump recomputes a derived authority from a stored bump.
func DeriveWithBump(programID common.Address, bump uint8, seeds ...[]byte) (Authority, error) {
	addr, ok := deriveCandidate(programID, bump, seeds)
	if !ok {
		return Authority{}, ErrInvalidAuthority
	}
	return Authority{addr: addr, derived: true}, nil
}

// DeriveAddress is Derive without the capability; it is safe to hand out.
func DeriveAddress(programID common.Address, seeds ...[]byte) (common.Address, uint8, error) {
	auth, bump, err := Derive(programID, seeds...)
	if err != nil {
		return common.Address{}, 0, err
	}
	return auth.addr, bump, nil
}

// deriveCandidate hashes seeds || bump || programID || marker. The address is
// the low 20 bytes of the digest. A candidate whose discarded high bytes are
// all zero is not viable: it would read as a left-padded signer address.
func deriveCandidate(programID common.Address, bump uint8, seeds [][]byte) (common.Address, bool) {
	h := blake3.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(programID.Bytes())
	h.Write(derivationMarker)

	var digest [32]byte
	h.Digest().Read(digest[:])

	viable := false
	for _, b := range digest[:12] {
		if b != 0 {
			viable = true
			break
		}
	}
	if !viable {
		return common.Address{}, false
	}
	return common.BytesToAddress(digest[12:]), true
}
