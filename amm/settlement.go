// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/zkamm/custody"
	"github.com/luxfi/zkamm/zk"
)

// Engine settles confidential swaps. The traded amount and direction stay
// private; the engine sees only the proven reserves, new balances and output
// amount and recovers the rest from the pool's current reserves.
type Engine struct {
	ledger   *PoolLedger
	verifier zk.Verifier
	gw       custody.Gateway
	events   Emitter
	metrics  *Metrics
	cfg      Config
	log      log.Logger
}

// NewEngine creates a settlement engine. ev and m may be nil.
func NewEngine(l *PoolLedger, v zk.Verifier, gw custody.Gateway, ev Emitter, m *Metrics, cfg Config, logger log.Logger) *Engine {
	if ev == nil {
		ev = nopEmitter{}
	}
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	return &Engine{
		ledger:   l,
		verifier: v,
		gw:       gw,
		events:   ev,
		metrics:  m,
		cfg:      cfg,
		log:      logger,
	}
}

// swapLeg is one side of a resolved swap
type swapLeg struct {
	mint    common.Address
	vault   custody.Account
	reserve uint64 // before the swap
	balance uint64 // after the swap
}

// ConfidentialSwap verifies req.Proof and settles the swap it proves for
// user. It returns the output amount delivered, in the output mint's native
// units. On any error no reserves or balances change.
func (e *Engine) ConfidentialSwap(user common.Address, req SwapRequest) (uint64, error) {
	out, err := e.confidentialSwap(user, req)
	switch {
	case err == nil:
		e.metrics.swap(resultOK)
	case errors.Is(err, ErrInvalidProof), errors.Is(err, ErrInvalidGroth16Verifier):
		e.metrics.swap(resultRejected)
	default:
		e.metrics.swap(resultFailed)
	}
	return out, err
}

func (e *Engine) confidentialSwap(user common.Address, req SwapRequest) (uint64, error) {
	key := PoolKey{TokenX: req.TokenX, TokenY: req.TokenY}
	if !key.IsSorted() {
		return 0, ErrInvalidTokenOrder
	}

	// Verification is pure and runs before the pool is locked.
	if err := req.Proof.Validate(zk.SwapSignals); err != nil {
		e.metrics.verification(resultRejected)
		return 0, fmt.Errorf("%w: %v", ErrInvalidGroth16Verifier, err)
	}
	ok, err := e.verifier.Verify(req.Proof)
	if err != nil {
		e.metrics.verification(resultRejected)
		return 0, fmt.Errorf("%w: %v", ErrInvalidGroth16Verifier, err)
	}
	if !ok {
		e.metrics.verification(resultFailed)
		e.log.Warn("swap proof rejected",
			log.String("user", user.Hex()),
			log.String("proof", req.Proof.Hash().Hex()),
		)
		return 0, ErrInvalidProof
	}
	e.metrics.verification(resultOK)

	outputs, err := zk.DecodeSwapSignals(req.Proof.Signals)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidGroth16Verifier, err)
	}

	tx, err := e.ledger.Begin(key)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	pool := tx.Pool()

	// The proof is priced against the reserves it carries publicly. Anything
	// other than the current ledger reserves is stale or made up.
	if outputs.ReserveX != pool.ReserveX || outputs.ReserveY != pool.ReserveY {
		e.log.Debug("swap proof bound to other reserves",
			log.String("proof", req.Proof.Hash().Hex()),
		)
		return 0, fmt.Errorf("%w: proven reserves (%d, %d), ledger (%d, %d)",
			ErrReserveMismatch, outputs.ReserveX, outputs.ReserveY, pool.ReserveX, pool.ReserveY)
	}

	// The side whose balance decreased is the output side.
	isXtoY := pool.ReserveY > outputs.NewBalanceY
	in := swapLeg{mint: key.TokenX, vault: pool.VaultX(), reserve: pool.ReserveX, balance: outputs.NewBalanceX}
	out := swapLeg{mint: key.TokenY, vault: pool.VaultY(), reserve: pool.ReserveY, balance: outputs.NewBalanceY}
	if !isXtoY {
		in, out = out, in
	}

	e.log.Debug("swap direction resolved",
		log.String("proof", req.Proof.Hash().Hex()),
		log.String("direction", direction(isXtoY)),
	)

	// The output side must have released exactly the proven amount.
	if out.balance > out.reserve || out.reserve-out.balance != outputs.AmountReceived {
		return 0, ErrReserveMismatch
	}
	if in.balance <= in.reserve {
		return 0, fmt.Errorf("%w: input balance did not increase", ErrInvalidSwapAmount)
	}
	amountSent := in.balance - in.reserve

	tx.ApplyReserveUpdate(outputs.NewBalanceX, outputs.NewBalanceY)

	sent, err := e.native(in.mint, amountSent)
	if err != nil {
		return 0, err
	}
	if sent == 0 {
		return 0, fmt.Errorf("%w: input amount rounds to zero", ErrInvalidSwapAmount)
	}
	received, err := e.native(out.mint, outputs.AmountReceived)
	if err != nil {
		return 0, err
	}
	if received < req.MinAmountOut {
		return 0, fmt.Errorf("%w: out %d, minimum %d", ErrSlippageExceeded, received, req.MinAmountOut)
	}

	auth, err := tx.Authority()
	if err != nil {
		return 0, err
	}
	userAuth := custody.Signer(user)
	userIn := custody.NewAccount(user, in.mint)
	userOut := custody.NewAccount(user, out.mint)

	if err := e.gw.Move(userIn, in.vault, sent, userAuth); err != nil {
		return 0, fmt.Errorf("transfer in: %w", err)
	}
	tx.OnRollback(func() error { return e.gw.Move(in.vault, userIn, sent, auth) })

	if err := e.gw.Move(out.vault, userOut, received, auth); err != nil {
		return 0, fmt.Errorf("transfer out: %w", err)
	}
	tx.OnRollback(func() error { return e.gw.Move(userOut, out.vault, received, userAuth) })

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	e.events.Emit(ConfidentialSwapEvent{
		User:      user,
		AmountOut: received,
		State:     pool.State(),
	})
	e.log.Info("confidential swap settled",
		log.String("user", user.Hex()),
		log.String("tokenX", key.TokenX.Hex()),
		log.String("tokenY", key.TokenY.Hex()),
	)
	return received, nil
}

// native converts a proof amount into mint's native units
func (e *Engine) native(mint common.Address, amount uint64) (uint64, error) {
	decimals, err := e.gw.Decimals(mint)
	if err != nil {
		return 0, fmt.Errorf("%w: mint %s: %v", ErrInvalidInput, mint.Hex(), err)
	}
	return denormalize(amount, e.cfg.CanonicalDecimals, decimals)
}

func direction(isXtoY bool) string {
	if isXtoY {
		return "x_to_y"
	}
	return "y_to_x"
}
