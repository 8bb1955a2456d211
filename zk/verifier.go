// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zk

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/luxfi/log"
)

// Verifier checks a proof bundle against a fixed verifying key. It returns an
// error when the bundle cannot be verified at all (bad encoding, wrong shape)
// and false when the proof is well formed but does not verify.
type Verifier interface {
	Verify(b *ProofBundle) (bool, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(b *ProofBundle) (bool, error)

// Verify calls f(b).
func (f VerifierFunc) Verify(b *ProofBundle) (bool, error) {
	return f(b)
}

var _ Verifier = (*Groth16Verifier)(nil)

// Groth16Verifier verifies BN254 Groth16 proofs with a single verifying key.
type Groth16Verifier struct {
	vk       *groth16bn254.VerifyingKey
	nbPublic int
	log      log.Logger
}

// NewGroth16Verifier binds a verifier to vk. Keys produced for circuits with
// commitments are rejected: the bundle encoding has no room for them.
func NewGroth16Verifier(vk groth16.VerifyingKey, logger log.Logger) (*Groth16Verifier, error) {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	key, ok := vk.(*groth16bn254.VerifyingKey)
	if !ok || key == nil {
		return nil, fmt.Errorf("%w: not a BN254 key", ErrInvalidVerifyingKey)
	}
	if len(key.PublicAndCommitmentCommitted) > 0 {
		return nil, fmt.Errorf("%w: commitments are not supported", ErrInvalidVerifyingKey)
	}
	if len(key.G1.K) < 1 {
		return nil, fmt.Errorf("%w: empty public input basis", ErrInvalidVerifyingKey)
	}
	return &Groth16Verifier{
		vk:       key,
		nbPublic: len(key.G1.K) - 1,
		log:      logger,
	}, nil
}

// NbPublic returns the number of public signals the key expects.
func (v *Groth16Verifier) NbPublic() int {
	return v.nbPublic
}

// Verify implements Verifier.
func (v *Groth16Verifier) Verify(b *ProofBundle) (bool, error) {
	if b == nil {
		return false, ErrMalformedProof
	}
	if len(b.Signals) != v.nbPublic {
		return false, fmt.Errorf("%w: got %d signals, key expects %d", ErrInvalidPublicInputs, len(b.Signals), v.nbPublic)
	}

	var proof groth16bn254.Proof
	if _, err := proof.Ar.SetBytes(b.A[:]); err != nil {
		return false, fmt.Errorf("%w: A: %v", ErrMalformedProof, err)
	}
	if _, err := proof.Bs.SetBytes(b.B[:]); err != nil {
		return false, fmt.Errorf("%w: B: %v", ErrMalformedProof, err)
	}
	if _, err := proof.Krs.SetBytes(b.C[:]); err != nil {
		return false, fmt.Errorf("%w: C: %v", ErrMalformedProof, err)
	}

	public := make(fr.Vector, len(b.Signals))
	for i, s := range b.Signals {
		if err := public[i].SetBytesCanonical(s[:]); err != nil {
			return false, fmt.Errorf("%w: signal %d: %v", ErrInvalidPublicInputs, i, err)
		}
	}

	if err := groth16bn254.Verify(&proof, v.vk, public); err != nil {
		v.log.Debug("groth16 proof rejected", log.String("reason", err.Error()))
		return false, nil
	}
	return true, nil
}

// LoadVerifyingKey reads a BN254 verifying key in gnark's binary format.
func LoadVerifyingKey(r io.Reader) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifyingKey, err)
	}
	return vk, nil
}

// WriteVerifyingKey writes vk in gnark's binary format.
func WriteVerifyingKey(w io.Writer, vk groth16.VerifyingKey) error {
	_, err := vk.WriteTo(w)
	return err
}
