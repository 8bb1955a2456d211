// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zk provides the proof side of confidential swaps: the wire encoding
// of a Groth16 proof bundle, verification against a fixed BN254 verifying key,
// a verification cache, and the swap circuit with its prover.
package zk

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Encoded sizes of the proof points (uncompressed affine BN254)
const (
	ProofASize   = 64
	ProofBSize   = 128
	ProofCSize   = 64
	SignalSize   = 32
	SignalValue  = 8 // only the low 8 bytes of a signal may be non-zero
	SwapSignals  = 5 // new_balance_x, new_balance_y, amount_received, reserve_x, reserve_y
	signalPrefix = SignalSize - SignalValue
)

// Errors
var (
	ErrMalformedProof      = errors.New("malformed proof")
	ErrInvalidPublicInputs = errors.New("invalid public inputs")
	ErrInvalidVerifyingKey = errors.New("invalid verifying key")
)

// PublicSignal is a field element encoded as 32 big-endian bytes.
type PublicSignal [SignalSize]byte

// SignalFromUint64 encodes v in the low 8 bytes of a signal.
func SignalFromUint64(v uint64) PublicSignal {
	var s PublicSignal
	binary.BigEndian.PutUint64(s[signalPrefix:], v)
	return s
}

// Uint64 decodes the signal, failing unless the upper 24 bytes are zero.
func (s PublicSignal) Uint64() (uint64, error) {
	for _, b := range s[:signalPrefix] {
		if b != 0 {
			return 0, fmt.Errorf("%w: signal exceeds 64 bits", ErrInvalidPublicInputs)
		}
	}
	return binary.BigEndian.Uint64(s[signalPrefix:]), nil
}

// ProofBundle is a Groth16 proof together with its public signals.
// A is not negated.
type ProofBundle struct {
	A       [ProofASize]byte
	B       [ProofBSize]byte
	C       [ProofCSize]byte
	Signals []PublicSignal
}

// Validate checks the bundle carries exactly n signals, each fitting in 64 bits.
func (b *ProofBundle) Validate(n int) error {
	if b == nil {
		return ErrMalformedProof
	}
	if len(b.Signals) != n {
		return fmt.Errorf("%w: got %d signals, want %d", ErrInvalidPublicInputs, len(b.Signals), n)
	}
	for i, s := range b.Signals {
		if _, err := s.Uint64(); err != nil {
			return fmt.Errorf("signal %d: %w", i, err)
		}
	}
	return nil
}

// Hash returns the blake3 digest of the encoded bundle.
func (b *ProofBundle) Hash() common.Hash {
	h := blake3.New()
	h.Write(b.A[:])
	h.Write(b.B[:])
	h.Write(b.C[:])
	for _, s := range b.Signals {
		h.Write(s[:])
	}
	var out common.Hash
	h.Digest().Read(out[:])
	return out
}

// SwapOutputs are the public signals of a confidential swap proof: the
// proven new balances and output amount, followed by the reserves the swap
// was priced against.
type SwapOutputs struct {
	NewBalanceX    uint64
	NewBalanceY    uint64
	AmountReceived uint64
	ReserveX       uint64
	ReserveY       uint64
}

// Signals encodes the outputs in circuit order.
func (o SwapOutputs) Signals() []PublicSignal {
	return []PublicSignal{
		SignalFromUint64(o.NewBalanceX),
		SignalFromUint64(o.NewBalanceY),
		SignalFromUint64(o.AmountReceived),
		SignalFromUint64(o.ReserveX),
		SignalFromUint64(o.ReserveY),
	}
}

// DecodeSwapSignals reads the swap outputs from a bundle's public signals.
func DecodeSwapSignals(signals []PublicSignal) (SwapOutputs, error) {
	if len(signals) != SwapSignals {
		return SwapOutputs{}, fmt.Errorf("%w: got %d signals, want %d", ErrInvalidPublicInputs, len(signals), SwapSignals)
	}
	var vals [SwapSignals]uint64
	for i, s := range signals {
		v, err := s.Uint64()
		if err != nil {
			return SwapOutputs{}, fmt.Errorf("signal %d: %w", i, err)
		}
		vals[i] = v
	}
	return SwapOutputs{
		NewBalanceX:    vals[0],
		NewBalanceY:    vals[1],
		AmountReceived: vals[2],
		ReserveX:       vals[3],
		ReserveY:       vals[4],
	}, nil
}
