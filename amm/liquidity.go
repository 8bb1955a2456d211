// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/zkamm/custody"
)

// LiquidityManager implements proportional deposits and withdrawals.
type LiquidityManager struct {
	ledger  *PoolLedger
	gw      custody.Gateway
	events  Emitter
	metrics *Metrics
	log     log.Logger
}

// NewLiquidityManager creates a liquidity manager. ev and m may be nil.
func NewLiquidityManager(l *PoolLedger, gw custody.Gateway, ev Emitter, m *Metrics, logger log.Logger) *LiquidityManager {
	if ev == nil {
		ev = nopEmitter{}
	}
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	return &LiquidityManager{
		ledger:  l,
		gw:      gw,
		events:  ev,
		metrics: m,
		log:     logger,
	}
}

// liquidityFor returns the LP amount minted for a deposit of (x, y). The
// first deposit mints x*y. Later deposits mint the smaller of the two
// ratio-implied amounts so a skewed deposit cannot move the price.
func liquidityFor(pool *Pool, x, y uint64) (uint64, error) {
	if pool.ReserveX == 0 && pool.ReserveY == 0 {
		return checkedMul(x, y)
	}
	byX, err := mulDiv(x, pool.ReserveY, uint256.NewInt(pool.ReserveX))
	if err != nil {
		return 0, err
	}
	byY, err := mulDiv(y, pool.ReserveX, uint256.NewInt(pool.ReserveY))
	if err != nil {
		return 0, err
	}
	return min(byX, byY), nil
}

// withdrawalFor returns the reserves owed for lp shares, truncated.
func withdrawalFor(pool *Pool, lp uint64) (uint64, uint64, error) {
	if lp > 0 && pool.LiquiditySupply.Lt(uint256.NewInt(lp)) {
		return 0, 0, ErrMathOverflow
	}
	x, err := mulDiv(lp, pool.ReserveX, pool.LiquiditySupply)
	if err != nil {
		return 0, 0, err
	}
	y, err := mulDiv(lp, pool.ReserveY, pool.LiquiditySupply)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// AddLiquidity deposits (AmountX, AmountY) from user and mints LP shares to
// user. It returns the LP amount minted.
func (m *LiquidityManager) AddLiquidity(user common.Address, p AddLiquidityParams) (uint64, error) {
	if p.AmountX == 0 || p.AmountY == 0 {
		return 0, fmt.Errorf("%w: zero deposit amount", ErrInvalidInput)
	}

	tx, err := m.ledger.Begin(PoolKey{TokenX: p.TokenX, TokenY: p.TokenY})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	pool := tx.Pool()
	minted, err := liquidityFor(pool, p.AmountX, p.AmountY)
	if err != nil {
		return 0, err
	}
	if minted == 0 {
		return 0, fmt.Errorf("%w: deposit mints no liquidity", ErrInvalidInput)
	}
	if minted < p.MinLiquidity {
		return 0, fmt.Errorf("%w: minted %d, minimum %d", ErrSlippageExceeded, minted, p.MinLiquidity)
	}

	newX, err := checkedAdd(pool.ReserveX, p.AmountX)
	if err != nil {
		return 0, err
	}
	newY, err := checkedAdd(pool.ReserveY, p.AmountY)
	if err != nil {
		return 0, err
	}
	supply, err := addSupply(pool.LiquiditySupply, minted)
	if err != nil {
		return 0, err
	}

	auth, err := tx.Authority()
	if err != nil {
		return 0, err
	}
	userAuth := custody.Signer(user)
	userX := custody.NewAccount(user, pool.Key.TokenX)
	userY := custody.NewAccount(user, pool.Key.TokenY)
	userLP := custody.NewAccount(user, pool.LPMint)

	if err := m.gw.Move(userX, pool.VaultX(), p.AmountX, userAuth); err != nil {
		return 0, fmt.Errorf("deposit token x: %w", err)
	}
	tx.OnRollback(func() error { return m.gw.Move(pool.VaultX(), userX, p.AmountX, auth) })

	if err := m.gw.Move(userY, pool.VaultY(), p.AmountY, userAuth); err != nil {
		return 0, fmt.Errorf("deposit token y: %w", err)
	}
	tx.OnRollback(func() error { return m.gw.Move(pool.VaultY(), userY, p.AmountY, auth) })

	if err := m.gw.MintTo(userLP, minted, auth); err != nil {
		return 0, fmt.Errorf("mint lp: %w", err)
	}
	tx.OnRollback(func() error { return m.gw.Burn(userLP, minted, userAuth) })

	tx.ApplyReserveUpdate(newX, newY)
	tx.SetLiquiditySupply(supply)
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	m.events.Emit(LiquidityAdded{
		User:      user,
		Pool:      pool.Key,
		AmountX:   p.AmountX,
		AmountY:   p.AmountY,
		Liquidity: minted,
	})
	m.metrics.liquidity(opAdd)
	m.log.Info("liquidity added",
		log.String("user", user.Hex()),
		log.String("tokenX", pool.Key.TokenX.Hex()),
		log.String("tokenY", pool.Key.TokenY.Hex()),
		log.String("liquidity", fmt.Sprintf("%d", minted)),
	)
	return minted, nil
}

// RemoveLiquidity burns LPAmount shares of user and pays out the
// proportional reserves. It returns the amounts paid in pool order.
func (m *LiquidityManager) RemoveLiquidity(user common.Address, p RemoveLiquidityParams) (uint64, uint64, error) {
	if p.LPAmount == 0 {
		return 0, 0, fmt.Errorf("%w: zero lp amount", ErrInvalidInput)
	}

	tx, err := m.ledger.Begin(PoolKey{TokenX: p.TokenX, TokenY: p.TokenY})
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	pool := tx.Pool()
	amountX, amountY, err := withdrawalFor(pool, p.LPAmount)
	if err != nil {
		return 0, 0, err
	}
	if amountX < p.MinAmountX || amountY < p.MinAmountY {
		return 0, 0, fmt.Errorf("%w: got (%d, %d), minimum (%d, %d)",
			ErrSlippageExceeded, amountX, amountY, p.MinAmountX, p.MinAmountY)
	}

	newX, err := checkedSub(pool.ReserveX, amountX)
	if err != nil {
		return 0, 0, err
	}
	newY, err := checkedSub(pool.ReserveY, amountY)
	if err != nil {
		return 0, 0, err
	}
	supply, err := subSupply(pool.LiquiditySupply, p.LPAmount)
	if err != nil {
		return 0, 0, err
	}

	auth, err := tx.Authority()
	if err != nil {
		return 0, 0, err
	}
	userAuth := custody.Signer(user)
	userX := custody.NewAccount(user, pool.Key.TokenX)
	userY := custody.NewAccount(user, pool.Key.TokenY)
	userLP := custody.NewAccount(user, pool.LPMint)

	if err := m.gw.Burn(userLP, p.LPAmount, userAuth); err != nil {
		return 0, 0, fmt.Errorf("burn lp: %w", err)
	}
	tx.OnRollback(func() error { return m.gw.MintTo(userLP, p.LPAmount, auth) })

	if err := m.gw.Move(pool.VaultX(), userX, amountX, auth); err != nil {
		return 0, 0, fmt.Errorf("withdraw token x: %w", err)
	}
	tx.OnRollback(func() error { return m.gw.Move(userX, pool.VaultX(), amountX, userAuth) })

	if err := m.gw.Move(pool.VaultY(), userY, amountY, auth); err != nil {
		return 0, 0, fmt.Errorf("withdraw token y: %w", err)
	}
	tx.OnRollback(func() error { return m.gw.Move(userY, pool.VaultY(), amountY, userAuth) })

	tx.ApplyReserveUpdate(newX, newY)
	tx.SetLiquiditySupply(supply)
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}

	m.events.Emit(LiquidityRemoved{
		User:      user,
		Pool:      pool.Key,
		AmountX:   amountX,
		AmountY:   amountY,
		Liquidity: p.LPAmount,
	})
	m.metrics.liquidity(opRemove)
	m.log.Info("liquidity removed",
		log.String("user", user.Hex()),
		log.String("tokenX", pool.Key.TokenX.Hex()),
		log.String("tokenY", pool.Key.TokenY.Hex()),
		log.String("liquidity", fmt.Sprintf("%d", p.LPAmount)),
	)
	return amountX, amountY, nil
}

// QuoteRemove returns what RemoveLiquidity would pay for lp shares of the
// pool for the pair, in pool order, without changing state.
func (m *LiquidityManager) QuoteRemove(a, b common.Address, lp uint64) (uint64, uint64, error) {
	pool, err := m.ledger.Get(a, b)
	if err != nil {
		return 0, 0, err
	}
	return withdrawalFor(pool, lp)
}
