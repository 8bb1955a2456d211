// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/zkamm/custody"
)

// PoolLedger owns pool records. Pools are keyed by their canonical token
// pair and mutated only inside a PoolTx, which holds the pool exclusively.
type PoolLedger struct {
	db  database.Database
	gw  custody.Gateway
	cfg Config
	log log.Logger

	// mu protects pools, locks and the pool index
	mu sync.Mutex

	// pools caches committed records by pool ID
	pools map[common.Hash]*Pool

	// locks serializes units of work per pool
	locks map[common.Hash]*sync.Mutex
}

// NewPoolLedger creates a pool ledger over db. Pool vaults and LP mints live
// in gw.
func NewPoolLedger(db database.Database, gw custody.Gateway, cfg Config, logger log.Logger) *PoolLedger {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	return &PoolLedger{
		db:    db,
		gw:    gw,
		cfg:   cfg,
		log:   logger,
		pools: make(map[common.Hash]*Pool),
		locks: make(map[common.Hash]*sync.Mutex),
	}
}

// =========================================================================
// Pool Initialization
// =========================================================================

// Create initializes the pool for (x, y) with zero reserves. It derives the
// pool authority and registers the pool's LP mint under it.
func (l *PoolLedger) Create(x, y common.Address, md Metadata) (*Pool, error) {
	key := PoolKey{TokenX: x, TokenY: y}
	if !key.IsSorted() {
		return nil, ErrInvalidTokenOrder
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	for _, mint := range []common.Address{x, y} {
		if _, err := l.gw.Decimals(mint); err != nil {
			return nil, fmt.Errorf("%w: token %s: %v", ErrInvalidInput, mint.Hex(), err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := key.ID()
	if _, err := l.loadPool(id); err == nil {
		return nil, ErrPoolExists
	} else if !errors.Is(err, ErrPoolNotFound) {
		return nil, err
	}

	auth, bump, err := custody.Derive(l.cfg.ProgramID, key.seeds(poolSeed)...)
	if err != nil {
		return nil, err
	}
	lpMint, lpBump, err := custody.DeriveAddress(l.cfg.ProgramID, key.seeds(lpSeed)...)
	if err != nil {
		return nil, err
	}
	pool := &Pool{
		Key:             key,
		LiquiditySupply: new(uint256.Int),
		Authority:       auth.Address(),
		Bump:            bump,
		LPMint:          lpMint,
		LPBump:          lpBump,
		Metadata:        md,
	}

	// The pool record lands before the LP mint so a failed write leaves
	// nothing behind. A failed mint registration removes the record again.
	keys, err := l.loadIndex()
	if err != nil {
		return nil, err
	}
	data, err := encodePool(pool)
	if err != nil {
		return nil, err
	}
	batch := l.db.NewBatch()
	if err := batch.Put(poolStorageKey(id), data); err != nil {
		return nil, err
	}
	if err := batch.Put(poolIndex, encodeIndex(append(keys, key))); err != nil {
		return nil, err
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}

	if err := l.gw.CreateMint(lpMint, l.cfg.LPDecimals, auth); err != nil {
		if undoErr := l.unpersist(id, keys); undoErr != nil {
			l.log.Error("failed to remove pool after LP mint failure",
				log.String("pool", id.Hex()),
				log.String("error", undoErr.Error()),
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidLpMint, err)
	}
	l.pools[id] = pool

	l.log.Info("pool created",
		log.String("tokenX", x.Hex()),
		log.String("tokenY", y.Hex()),
		log.String("lpMint", lpMint.Hex()),
	)
	return pool.Clone(), nil
}

// unpersist drops the record of pool id and restores the index to keys.
func (l *PoolLedger) unpersist(id common.Hash, keys []PoolKey) error {
	batch := l.db.NewBatch()
	if err := batch.Delete(poolStorageKey(id)); err != nil {
		return err
	}
	if err := batch.Put(poolIndex, encodeIndex(keys)); err != nil {
		return err
	}
	return batch.Write()
}

// Get returns a copy of the pool for the pair in either order.
func (l *PoolLedger) Get(a, b common.Address) (*Pool, error) {
	key := NewPoolKey(a, b)

	l.mu.Lock()
	defer l.mu.Unlock()

	pool, err := l.loadPool(key.ID())
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// Pools returns copies of all pools in creation order.
func (l *PoolLedger) Pools() ([]*Pool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys, err := l.loadIndex()
	if err != nil {
		return nil, err
	}
	pools := make([]*Pool, 0, len(keys))
	for _, k := range keys {
		p, err := l.loadPool(k.ID())
		if err != nil {
			return nil, err
		}
		pools = append(pools, p.Clone())
	}
	return pools, nil
}

// =========================================================================
// Units of Work
// =========================================================================

// Begin starts an exclusive unit of work on the pool for key. The caller must
// finish it with Commit or Rollback.
func (l *PoolLedger) Begin(key PoolKey) (*PoolTx, error) {
	if !key.IsSorted() {
		return nil, ErrInvalidTokenOrder
	}
	id := key.ID()

	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = new(sync.Mutex)
		l.locks[id] = lock
	}
	l.mu.Unlock()

	lock.Lock()

	l.mu.Lock()
	pool, err := l.loadPool(id)
	l.mu.Unlock()
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	return &PoolTx{
		ledger: l,
		lock:   lock,
		id:     id,
		pool:   pool.Clone(),
	}, nil
}

// authority recomputes the derived authority of pool
func (l *PoolLedger) authority(pool *Pool) (custody.Authority, error) {
	auth, err := custody.DeriveWithBump(l.cfg.ProgramID, pool.Bump, pool.Key.seeds(poolSeed)...)
	if err != nil {
		return custody.Authority{}, err
	}
	if auth.Address() != pool.Authority {
		return custody.Authority{}, fmt.Errorf("%w: pool authority mismatch", ErrInvalidInput)
	}
	return auth, nil
}

// persist writes pool and updates the cache
func (l *PoolLedger) persist(id common.Hash, pool *Pool) error {
	data, err := encodePool(pool)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.db.Put(poolStorageKey(id), data); err != nil {
		return err
	}
	l.pools[id] = pool.Clone()
	return nil
}

// loadPool must be called with mu held
func (l *PoolLedger) loadPool(id common.Hash) (*Pool, error) {
	if pool, ok := l.pools[id]; ok {
		return pool, nil
	}
	data, err := l.db.Get(poolStorageKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, err
	}
	pool, err := decodePool(data)
	if err != nil {
		return nil, err
	}
	l.pools[id] = pool
	return pool, nil
}

// loadIndex must be called with mu held
func (l *PoolLedger) loadIndex() ([]PoolKey, error) {
	data, err := l.db.Get(poolIndex)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeIndex(data)
}

// PoolTx is an exclusive unit of work on one pool. Changes are made to a
// working copy and become visible on Commit. Custody side effects register
// compensations that Rollback runs in reverse order.
type PoolTx struct {
	ledger *PoolLedger
	lock   *sync.Mutex
	id     common.Hash
	pool   *Pool
	undo   []func() error
	done   bool
}

// Pool returns the working copy.
func (tx *PoolTx) Pool() *Pool {
	return tx.pool
}

// Authority returns the pool's derived authority.
func (tx *PoolTx) Authority() (custody.Authority, error) {
	return tx.ledger.authority(tx.pool)
}

// ApplyReserveUpdate sets both reserves. Callers validate the values.
func (tx *PoolTx) ApplyReserveUpdate(newX, newY uint64) {
	tx.pool.ReserveX = newX
	tx.pool.ReserveY = newY
}

// SetLiquiditySupply sets the LP supply.
func (tx *PoolTx) SetLiquiditySupply(supply *uint256.Int) {
	tx.pool.LiquiditySupply = new(uint256.Int).Set(supply)
}

// OnRollback registers a compensation for a side effect already applied.
func (tx *PoolTx) OnRollback(fn func() error) {
	tx.undo = append(tx.undo, fn)
}

// Commit persists the working copy and releases the pool. A failed commit
// rolls back.
func (tx *PoolTx) Commit() error {
	if tx.done {
		return errors.New("pool transaction already finished")
	}
	if err := tx.ledger.persist(tx.id, tx.pool); err != nil {
		tx.Rollback()
		return err
	}
	tx.done = true
	tx.undo = nil
	tx.lock.Unlock()
	return nil
}

// Rollback runs the registered compensations and releases the pool. It is a
// no-op after Commit.
func (tx *PoolTx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	for i := len(tx.undo) - 1; i >= 0; i-- {
		if err := tx.undo[i](); err != nil {
			tx.ledger.log.Error("compensation failed",
				log.String("tokenX", tx.pool.Key.TokenX.Hex()),
				log.String("tokenY", tx.pool.Key.TokenY.Hex()),
				log.String("error", err.Error()),
			)
		}
	}
	tx.undo = nil
	tx.lock.Unlock()
}
