// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zk

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Prover produces swap proofs for a compiled circuit and proving key.
type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

// Setup compiles the swap circuit and runs a single-party Groth16 setup.
func Setup() (*Prover, groth16.VerifyingKey, error) {
	var circuit SwapCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, nil, fmt.Errorf("compile swap circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return &Prover{ccs: ccs, pk: pk}, vk, nil
}

// NbConstraints returns the size of the compiled circuit.
func (p *Prover) NbConstraints() int {
	return p.ccs.GetNbConstraints()
}

// Prove builds a bundle proving the swap described by in.
func (p *Prover) Prove(in SwapInput) (*ProofBundle, error) {
	assignment, err := in.Assignment()
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	proof, err := groth16.Prove(p.ccs, p.pk, w)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	raw, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("unexpected proof type %T", proof)
	}

	out, _, err := in.Compute()
	if err != nil {
		return nil, err
	}
	return &ProofBundle{
		A:       raw.Ar.RawBytes(),
		B:       raw.Bs.RawBytes(),
		C:       raw.Krs.RawBytes(),
		Signals: out.Signals(),
	}, nil
}
