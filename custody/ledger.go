// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package custody

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
)

// Gateway moves custody balances on behalf of the AMM. Every call either
// succeeds entirely or leaves balances untouched.
type Gateway interface {
	CreateMint(mint common.Address, decimals uint8, auth Authority) error
	Decimals(mint common.Address) (uint8, error)
	Move(from, to Account, amount uint64, auth Authority) error
	MintTo(to Account, amount uint64, auth Authority) error
	Burn(from Account, amount uint64, auth Authority) error
}

var _ Gateway = (*Ledger)(nil)

// mintRecordLen is decimals(1) | derived(1) | authority(20) | supply(8)
const mintRecordLen = 1 + 1 + common.AddressLength + 8

// Ledger is a Gateway backed by a key-value database.
type Ledger struct {
	db  database.Database
	log log.Logger

	mints   map[common.Address]*MintInfo
	derived map[common.Address]bool

	mu sync.RWMutex
}

// NewLedger creates a ledger over db. A nil logger logs at info level.
func NewLedger(db database.Database, logger log.Logger) *Ledger {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	return &Ledger{
		db:      db,
		log:     logger,
		mints:   make(map[common.Address]*MintInfo),
		derived: make(map[common.Address]bool),
	}
}

// CreateMint registers mint with the given decimals and mint authority.
// A derived mint authority is also registered as a derived owner.
func (l *Ledger) CreateMint(mint common.Address, decimals uint8, auth Authority) error {
	if auth.IsZero() {
		return ErrInvalidAuthority
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.loadMint(mint); err == nil {
		return ErrMintExists
	} else if !errors.Is(err, ErrMintNotFound) {
		return err
	}

	info := &MintInfo{
		ID:        mint,
		Decimals:  decimals,
		Authority: auth.addr,
		Derived:   auth.derived,
	}

	batch := l.db.NewBatch()
	if err := batch.Put(makeStorageKey(mintPrefix, mint.Bytes()), encodeMint(info)); err != nil {
		return err
	}
	if auth.derived {
		if err := batch.Put(makeStorageKey(derivedPrefix, auth.addr.Bytes()), []byte{1}); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}

	l.mints[mint] = info
	if auth.derived {
		l.derived[auth.addr] = true
	}

	l.log.Debug("mint created",
		log.String("mint", mint.Hex()),
		log.Int("decimals", int(decimals)),
	)
	return nil
}

// Register records a derived authority as an owner whose accounts can only
// be debited by that same derived authority.
func (l *Ledger) Register(auth Authority) error {
	if !auth.derived || auth.IsZero() {
		return ErrInvalidAuthority
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.derived[auth.addr] {
		return nil
	}
	if err := l.db.Put(makeStorageKey(derivedPrefix, auth.addr.Bytes()), []byte{1}); err != nil {
		return err
	}
	l.derived[auth.addr] = true
	return nil
}

// Decimals returns the decimals of mint.
func (l *Ledger) Decimals(mint common.Address) (uint8, error) {
	info, err := l.Mint(mint)
	if err != nil {
		return 0, err
	}
	return info.Decimals, nil
}

// Mint returns a copy of the mint's metadata.
func (l *Ledger) Mint(mint common.Address) (MintInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.loadMint(mint)
	if err != nil {
		return MintInfo{}, err
	}
	return *info, nil
}

// Balance returns the balance of acct. Unknown accounts hold zero.
func (l *Ledger) Balance(acct Account) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balance(acct)
}

// Move transfers amount from one account to another of the same mint.
// auth must be entitled to debit from.
func (l *Ledger) Move(from, to Account, amount uint64, auth Authority) error {
	if from.Mint != to.Mint {
		return ErrMintMismatch
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.loadMint(from.Mint); err != nil {
		return err
	}
	if !l.canDebit(from.Owner, auth) {
		return ErrUnauthorized
	}

	fromBal, err := l.balance(from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, fromBal, amount)
	}
	if amount == 0 || from == to {
		return nil
	}

	toBal, err := l.balance(to)
	if err != nil {
		return err
	}
	if toBal+amount < toBal {
		return ErrOverflow
	}

	batch := l.db.NewBatch()
	if err := batch.Put(from.key(), encodeUint64(fromBal-amount)); err != nil {
		return err
	}
	if err := batch.Put(to.key(), encodeUint64(toBal+amount)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}

	l.log.Debug("custody move",
		log.String("mint", from.Mint.Hex()),
		log.String("from", from.Owner.Hex()),
		log.String("to", to.Owner.Hex()),
	)
	return nil
}

// MintTo creates amount new units in to. auth must be the mint authority.
func (l *Ledger) MintTo(to Account, amount uint64, auth Authority) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.loadMint(to.Mint)
	if err != nil {
		return err
	}
	if info.Authority != auth.addr || info.Derived != auth.derived {
		return ErrUnauthorized
	}
	if amount == 0 {
		return nil
	}

	bal, err := l.balance(to)
	if err != nil {
		return err
	}
	if bal+amount < bal || info.Supply+amount < info.Supply {
		return ErrOverflow
	}

	next := *info
	next.Supply += amount

	batch := l.db.NewBatch()
	if err := batch.Put(to.key(), encodeUint64(bal+amount)); err != nil {
		return err
	}
	if err := batch.Put(makeStorageKey(mintPrefix, to.Mint.Bytes()), encodeMint(&next)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	l.mints[to.Mint] = &next
	return nil
}

// Burn destroys amount units held by from. auth must be entitled to debit from.
func (l *Ledger) Burn(from Account, amount uint64, auth Authority) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.loadMint(from.Mint)
	if err != nil {
		return err
	}
	if !l.canDebit(from.Owner, auth) {
		return ErrUnauthorized
	}

	bal, err := l.balance(from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, bal, amount)
	}
	if amount == 0 {
		return nil
	}

	next := *info
	next.Supply -= amount

	batch := l.db.NewBatch()
	if err := batch.Put(from.key(), encodeUint64(bal-amount)); err != nil {
		return err
	}
	if err := batch.Put(makeStorageKey(mintPrefix, from.Mint.Bytes()), encodeMint(&next)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	l.mints[from.Mint] = &next
	return nil
}

// canDebit reports whether auth may debit accounts of owner. Accounts of a
// derived owner only accept the derived authority itself.
func (l *Ledger) canDebit(owner common.Address, auth Authority) bool {
	if auth.addr != owner {
		return false
	}
	if auth.derived {
		return true
	}
	return !l.isDerived(owner)
}

// isDerived must be called with the lock held
func (l *Ledger) isDerived(owner common.Address) bool {
	if l.derived[owner] {
		return true
	}
	ok, err := l.db.Has(makeStorageKey(derivedPrefix, owner.Bytes()))
	return err == nil && ok
}

// loadMint must be called with the write lock held
func (l *Ledger) loadMint(mint common.Address) (*MintInfo, error) {
	if info, ok := l.mints[mint]; ok {
		return info, nil
	}

	data, err := l.db.Get(makeStorageKey(mintPrefix, mint.Bytes()))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrMintNotFound
	}
	if err != nil {
		return nil, err
	}

	info, err := decodeMint(mint, data)
	if err != nil {
		return nil, err
	}
	l.mints[mint] = info
	return info, nil
}

func (l *Ledger) balance(acct Account) (uint64, error) {
	data, err := l.db.Get(acct.key())
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt balance record: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func encodeMint(info *MintInfo) []byte {
	buf := make([]byte, mintRecordLen)
	buf[0] = info.Decimals
	if info.Derived {
		buf[1] = 1
	}
	copy(buf[2:], info.Authority.Bytes())
	binary.BigEndian.PutUint64(buf[2+common.AddressLength:], info.Supply)
	return buf
}

func decodeMint(id common.Address, data []byte) (*MintInfo, error) {
	if len(data) != mintRecordLen {
		return nil, fmt.Errorf("corrupt mint record: %d bytes", len(data))
	}
	return &MintInfo{
		ID:        id,
		Decimals:  data[0],
		Derived:   data[1] == 1,
		Authority: common.BytesToAddress(data[2 : 2+common.AddressLength]),
		Supply:    binary.BigEndian.Uint64(data[2+common.AddressLength:]),
	}, nil
}
