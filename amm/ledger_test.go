// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"testing"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/zkamm/custody"
)

// Test helpers
var (
	testMintA  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testMintB  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testMintC  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testIssuer = common.HexToAddress("0x9999999999999999999999999999999999999999")
	testUser1  = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	testUser2  = common.HexToAddress("0xaaaa000000000000000000000000000000000002")
	testMeta   = Metadata{Name: "A-B Pool", Symbol: "ABLP"}
)

type testEnv struct {
	db      database.Database
	custody *custody.Ledger
	ledger  *PoolLedger
	cfg     Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := memdb.New()
	t.Cleanup(func() { db.Close() })

	logger := log.NewTestLogger(log.InfoLevel)
	cfg := DefaultConfig()
	gw := custody.NewLedger(db, logger)
	return &testEnv{
		db:      db,
		custody: gw,
		ledger:  NewPoolLedger(db, gw, cfg, logger),
		cfg:     cfg,
	}
}

func (env *testEnv) createMint(t *testing.T, mint common.Address, decimals uint8) {
	t.Helper()
	require.NoError(t, env.custody.CreateMint(mint, decimals, custody.Signer(testIssuer)))
}

func (env *testEnv) fund(t *testing.T, mint, owner common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, env.custody.MintTo(custody.NewAccount(owner, mint), amount, custody.Signer(testIssuer)))
}

func (env *testEnv) balance(t *testing.T, owner, mint common.Address) uint64 {
	t.Helper()
	bal, err := env.custody.Balance(custody.NewAccount(owner, mint))
	require.NoError(t, err)
	return bal
}

// newPoolEnv creates mints A and B with the given decimals and the A/B pool
func newPoolEnv(t *testing.T, decA, decB uint8) (*testEnv, *Pool) {
	t.Helper()
	env := newTestEnv(t)
	env.createMint(t, testMintA, decA)
	env.createMint(t, testMintB, decB)
	pool, err := env.ledger.Create(testMintA, testMintB, testMeta)
	require.NoError(t, err)
	return env, pool
}

func encoded(t *testing.T, p *Pool) []byte {
	t.Helper()
	data, err := encodePool(p)
	require.NoError(t, err)
	return data
}

// =========================================================================
// PoolLedger Tests
// =========================================================================

func TestCreatePool(t *testing.T) {
	env, pool := newPoolEnv(t, 9, 9)

	require.Equal(t, PoolKey{TokenX: testMintA, TokenY: testMintB}, pool.Key)
	require.Zero(t, pool.ReserveX)
	require.Zero(t, pool.ReserveY)
	require.True(t, pool.LiquiditySupply.IsZero())
	require.Equal(t, testMeta, pool.Metadata)

	auth, bump, err := custody.Derive(env.cfg.ProgramID, []byte("pool"), testMintA.Bytes(), testMintB.Bytes())
	require.NoError(t, err)
	require.Equal(t, auth.Address(), pool.Authority)
	require.Equal(t, bump, pool.Bump)

	info, err := env.custody.Mint(pool.LPMint)
	require.NoError(t, err)
	require.Equal(t, env.cfg.LPDecimals, info.Decimals)
	require.Equal(t, pool.Authority, info.Authority)
	require.True(t, info.Derived)

	_, err = env.ledger.Create(testMintA, testMintB, testMeta)
	require.ErrorIs(t, err, ErrPoolExists)
}

func TestCreatePoolTokenOrder(t *testing.T) {
	env := newTestEnv(t)
	env.createMint(t, testMintA, 9)
	env.createMint(t, testMintB, 9)

	_, err := env.ledger.Create(testMintB, testMintA, testMeta)
	require.ErrorIs(t, err, ErrInvalidTokenOrder)

	_, err = env.ledger.Create(testMintA, testMintA, testMeta)
	require.ErrorIs(t, err, ErrInvalidTokenOrder)

	pools, err := env.ledger.Pools()
	require.NoError(t, err)
	require.Empty(t, pools)
}

func TestCreatePoolValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createMint(t, testMintA, 9)
	env.createMint(t, testMintB, 9)

	_, err := env.ledger.Create(testMintA, testMintB, Metadata{Symbol: "X"})
	require.ErrorIs(t, err, ErrInvalidMetadataAccount)

	_, err = env.ledger.Create(testMintA, testMintB, Metadata{Name: "pool", Symbol: "TOOLONGSYMBOL"})
	require.ErrorIs(t, err, ErrInvalidMetadataAccount)

	// Unknown token
	_, err = env.ledger.Create(testMintA, testMintC, testMeta)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreatePoolLpMintTaken(t *testing.T) {
	env := newTestEnv(t)
	env.createMint(t, testMintA, 9)
	env.createMint(t, testMintB, 9)

	lpMint, _, err := custody.DeriveAddress(env.cfg.ProgramID, []byte("lp"), testMintA.Bytes(), testMintB.Bytes())
	require.NoError(t, err)
	env.createMint(t, lpMint, 9)

	_, err = env.ledger.Create(testMintA, testMintB, testMeta)
	require.ErrorIs(t, err, ErrInvalidLpMint)

	_, err = env.ledger.Get(testMintA, testMintB)
	require.ErrorIs(t, err, ErrPoolNotFound)
	pools, err := env.ledger.Pools()
	require.NoError(t, err)
	require.Empty(t, pools)
}

// flakyDB fails batch writes while fail is set
type flakyDB struct {
	database.Database
	fail bool
}

type flakyBatch struct {
	database.Batch
	db *flakyDB
}

var errWriteFailed = errors.New("write failed")

func (d *flakyDB) NewBatch() database.Batch {
	return &flakyBatch{Batch: d.Database.NewBatch(), db: d}
}

func (b *flakyBatch) Write() error {
	if b.db.fail {
		return errWriteFailed
	}
	return b.Batch.Write()
}

func TestCreatePoolWriteFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	env.createMint(t, testMintA, 9)
	env.createMint(t, testMintB, 9)

	db := &flakyDB{Database: env.db, fail: true}
	ledger := NewPoolLedger(db, env.custody, env.cfg, nil)

	_, err := ledger.Create(testMintA, testMintB, testMeta)
	require.ErrorIs(t, err, errWriteFailed)

	// No LP mint was registered for the missing pool
	lpMint, _, err := custody.DeriveAddress(env.cfg.ProgramID, []byte("lp"), testMintA.Bytes(), testMintB.Bytes())
	require.NoError(t, err)
	_, err = env.custody.Decimals(lpMint)
	require.ErrorIs(t, err, custody.ErrMintNotFound)

	db.fail = false
	pool, err := ledger.Create(testMintA, testMintB, testMeta)
	require.NoError(t, err)
	require.Equal(t, lpMint, pool.LPMint)
}

func TestGetCanonicalizesOrder(t *testing.T) {
	env, pool := newPoolEnv(t, 9, 9)

	got, err := env.ledger.Get(testMintB, testMintA)
	require.NoError(t, err)
	require.Equal(t, pool, got)

	// Returned pools are copies
	got.ReserveX = 42
	again, err := env.ledger.Get(testMintA, testMintB)
	require.NoError(t, err)
	require.Zero(t, again.ReserveX)
}

func TestPoolsPersist(t *testing.T) {
	env, _ := newPoolEnv(t, 9, 9)
	env.createMint(t, testMintC, 6)
	_, err := env.ledger.Create(testMintB, testMintC, Metadata{Name: "B-C", Symbol: "BCLP"})
	require.NoError(t, err)

	tx, err := env.ledger.Begin(PoolKey{TokenX: testMintA, TokenY: testMintB})
	require.NoError(t, err)
	tx.ApplyReserveUpdate(10, 20)
	require.NoError(t, tx.Commit())

	reopened := NewPoolLedger(env.db, env.custody, env.cfg, nil)
	pools, err := reopened.Pools()
	require.NoError(t, err)
	require.Len(t, pools, 2)
	require.Equal(t, PoolKey{TokenX: testMintA, TokenY: testMintB}, pools[0].Key)
	require.Equal(t, uint64(10), pools[0].ReserveX)
	require.Equal(t, uint64(20), pools[0].ReserveY)
	require.Equal(t, "BCLP", pools[1].Metadata.Symbol)
}

func TestBeginUnknownPool(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Begin(PoolKey{TokenX: testMintA, TokenY: testMintB})
	require.ErrorIs(t, err, ErrPoolNotFound)

	_, err = env.ledger.Begin(PoolKey{TokenX: testMintB, TokenY: testMintA})
	require.ErrorIs(t, err, ErrInvalidTokenOrder)
}

func TestPoolTxRollback(t *testing.T) {
	env, pool := newPoolEnv(t, 9, 9)
	before := encoded(t, pool)

	tx, err := env.ledger.Begin(pool.Key)
	require.NoError(t, err)

	var order []int
	tx.OnRollback(func() error { order = append(order, 1); return nil })
	tx.OnRollback(func() error { order = append(order, 2); return nil })
	tx.ApplyReserveUpdate(5, 6)
	tx.Rollback()
	tx.Rollback()

	require.Equal(t, []int{2, 1}, order)

	after, err := env.ledger.Get(testMintA, testMintB)
	require.NoError(t, err)
	require.Equal(t, before, encoded(t, after))

	// The pool is released
	tx, err = env.ledger.Begin(pool.Key)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.Error(t, tx.Commit())
}

func TestPoolEncoding(t *testing.T) {
	_, pool := newPoolEnv(t, 9, 9)
	pool.ReserveX = 1600
	pool.ReserveY = 3350
	pool.LiquiditySupply.SetUint64(2_000_750)

	got, err := decodePool(encoded(t, pool))
	require.NoError(t, err)
	require.Equal(t, pool, got)

	_, err = decodePool([]byte{1, 2, 3})
	require.Error(t, err)

	pool.LiquiditySupply.Lsh(pool.LiquiditySupply, 200)
	_, err = encodePool(pool)
	require.ErrorIs(t, err, ErrMathOverflow)
}
