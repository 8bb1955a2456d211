// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Storage key prefixes for pool state
var (
	poolPrefix = []byte("pool")
	poolIndex  = []byte("pidx")
)

// supplyBytes is the width of the stored liquidity supply
const supplyBytes = 16

// poolRecordLen is the fixed part of an encoded pool, before metadata:
// key(40) | reserveX(8) | reserveY(8) | supply(16) | authority(20) | bump(1) | lpMint(20) | lpBump(1)
const poolRecordLen = 2*common.AddressLength + 8 + 8 + supplyBytes + common.AddressLength + 1 + common.AddressLength + 1

func poolStorageKey(id common.Hash) []byte {
	key := make([]byte, 0, len(poolPrefix)+common.HashLength)
	key = append(key, poolPrefix...)
	return append(key, id[:]...)
}

func encodePool(p *Pool) ([]byte, error) {
	if p.LiquiditySupply.Gt(maxSupply) {
		return nil, ErrMathOverflow
	}
	buf := make([]byte, poolRecordLen, poolRecordLen+2+len(p.Metadata.Name)+len(p.Metadata.Symbol))
	off := copy(buf, p.Key.ToBytes())
	binary.BigEndian.PutUint64(buf[off:], p.ReserveX)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], p.ReserveY)
	off += 8
	supply := p.LiquiditySupply.Bytes32()
	off += copy(buf[off:], supply[32-supplyBytes:])
	off += copy(buf[off:], p.Authority.Bytes())
	buf[off] = p.Bump
	off++
	off += copy(buf[off:], p.LPMint.Bytes())
	buf[off] = p.LPBump

	buf = append(buf, byte(len(p.Metadata.Name)))
	buf = append(buf, p.Metadata.Name...)
	buf = append(buf, byte(len(p.Metadata.Symbol)))
	buf = append(buf, p.Metadata.Symbol...)
	return buf, nil
}

func decodePool(data []byte) (*Pool, error) {
	if len(data) < poolRecordLen+2 {
		return nil, fmt.Errorf("corrupt pool record: %d bytes", len(data))
	}
	key, err := PoolKeyFromBytes(data)
	if err != nil {
		return nil, err
	}
	p := &Pool{Key: key}
	off := 2 * common.AddressLength
	p.ReserveX = binary.BigEndian.Uint64(data[off:])
	off += 8
	p.ReserveY = binary.BigEndian.Uint64(data[off:])
	off += 8
	p.LiquiditySupply = new(uint256.Int).SetBytes(data[off : off+supplyBytes])
	off += supplyBytes
	p.Authority = common.BytesToAddress(data[off : off+common.AddressLength])
	off += common.AddressLength
	p.Bump = data[off]
	off++
	p.LPMint = common.BytesToAddress(data[off : off+common.AddressLength])
	off += common.AddressLength
	p.LPBump = data[off]
	off++

	name, rest, err := readString(data[off:])
	if err != nil {
		return nil, err
	}
	symbol, _, err := readString(rest)
	if err != nil {
		return nil, err
	}
	p.Metadata = Metadata{Name: name, Symbol: symbol}
	return p, nil
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 1 {
		return "", nil, errors.New("corrupt pool record: missing metadata")
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", nil, errors.New("corrupt pool record: short metadata")
	}
	return string(data[1 : 1+n]), data[1+n:], nil
}

func encodeIndex(keys []PoolKey) []byte {
	buf := make([]byte, 0, len(keys)*2*common.AddressLength)
	for _, k := range keys {
		buf = append(buf, k.ToBytes()...)
	}
	return buf
}

func decodeIndex(data []byte) ([]PoolKey, error) {
	const width = 2 * common.AddressLength
	if len(data)%width != 0 {
		return nil, fmt.Errorf("corrupt pool index: %d bytes", len(data))
	}
	keys := make([]PoolKey, 0, len(data)/width)
	for off := 0; off < len(data); off += width {
		k, err := PoolKeyFromBytes(data[off : off+width])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
