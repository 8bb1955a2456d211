// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zk

import (
	"bytes"
	"sync"
	"testing"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

var (
	setupOnce  sync.Once
	testProver *Prover
	testVK     groth16.VerifyingKey
	setupErr   error
)

// testSetup runs the Groth16 setup once per test binary.
func testSetup(t *testing.T) (*Prover, groth16.VerifyingKey) {
	t.Helper()
	setupOnce.Do(func() {
		testProver, testVK, setupErr = Setup()
	})
	require.NoError(t, setupErr)
	return testProver, testVK
}

func newTestVerifier(t *testing.T) *Groth16Verifier {
	t.Helper()
	_, vk := testSetup(t)
	v, err := NewGroth16Verifier(vk, log.NewTestLogger(log.InfoLevel))
	require.NoError(t, err)
	return v
}

func TestGroth16VerifyValidProof(t *testing.T) {
	prover, _ := testSetup(t)
	v := newTestVerifier(t)
	require.Equal(t, SwapSignals, v.NbPublic())
	require.Positive(t, prover.NbConstraints())

	bundle, err := prover.Prove(SwapInput{ReserveX: 1500, ReserveY: 3500, AmountIn: 100, XToY: true})
	require.NoError(t, err)

	out, err := DecodeSwapSignals(bundle.Signals)
	require.NoError(t, err)
	require.Equal(t, SwapOutputs{
		NewBalanceX:    1600,
		NewBalanceY:    3281,
		AmountReceived: 219,
		ReserveX:       1500,
		ReserveY:       3500,
	}, out)

	ok, err := v.Verify(bundle)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGroth16VerifyTamperedSignals(t *testing.T) {
	prover, _ := testSetup(t)
	v := newTestVerifier(t)

	bundle, err := prover.Prove(SwapInput{ReserveX: 1500, ReserveY: 3500, AmountIn: 100, XToY: true})
	require.NoError(t, err)

	tampered := *bundle
	tampered.Signals = append([]PublicSignal(nil), bundle.Signals...)
	tampered.Signals[2] = SignalFromUint64(250)
	ok, err := v.Verify(&tampered)
	require.NoError(t, err)
	require.False(t, ok)

	// Rebinding the proof to other reserves breaks it too
	rebound := *bundle
	rebound.Signals = append([]PublicSignal(nil), bundle.Signals...)
	rebound.Signals[3] = SignalFromUint64(1600)
	ok, err = v.Verify(&rebound)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGroth16VerifyMalformed(t *testing.T) {
	prover, _ := testSetup(t)
	v := newTestVerifier(t)

	bundle, err := prover.Prove(SwapInput{ReserveX: 1500, ReserveY: 3500, AmountIn: 500, XToY: false})
	require.NoError(t, err)

	_, err = v.Verify(nil)
	require.ErrorIs(t, err, ErrMalformedProof)

	short := *bundle
	short.Signals = bundle.Signals[:2]
	_, err = v.Verify(&short)
	require.ErrorIs(t, err, ErrInvalidPublicInputs)

	// A point off the curve
	bad := *bundle
	bad.A[ProofASize-1] ^= 0x01
	_, err = v.Verify(&bad)
	require.ErrorIs(t, err, ErrMalformedProof)

	// A signal outside the scalar field
	huge := *bundle
	huge.Signals = append([]PublicSignal(nil), bundle.Signals...)
	for i := range huge.Signals[0] {
		huge.Signals[0][i] = 0xff
	}
	_, err = v.Verify(&huge)
	require.ErrorIs(t, err, ErrInvalidPublicInputs)
}

func TestVerifyingKeyRoundTrip(t *testing.T) {
	prover, vk := testSetup(t)

	var buf bytes.Buffer
	require.NoError(t, WriteVerifyingKey(&buf, vk))

	loaded, err := LoadVerifyingKey(&buf)
	require.NoError(t, err)

	v, err := NewGroth16Verifier(loaded, nil)
	require.NoError(t, err)

	bundle, err := prover.Prove(SwapInput{ReserveX: 10_000, ReserveY: 20_000, AmountIn: 1_000, XToY: true})
	require.NoError(t, err)
	ok, err := v.Verify(bundle)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = LoadVerifyingKey(bytes.NewReader([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrInvalidVerifyingKey)
}

func TestNewGroth16VerifierRejectsNil(t *testing.T) {
	_, err := NewGroth16Verifier(nil, nil)
	require.ErrorIs(t, err, ErrInvalidVerifyingKey)
}
