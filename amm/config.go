// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/zkamm/zk"
)

// Config holds the deployment parameters of the AMM.
type Config struct {
	// CanonicalDecimals is the precision of amounts carried in proofs.
	CanonicalDecimals uint8 `json:"canonicalDecimals"`

	// ProgramID namespaces the derived pool authorities and LP mints.
	ProgramID common.Address `json:"programID"`

	// LPDecimals is the decimals of each pool's LP mint.
	LPDecimals uint8 `json:"lpDecimals"`

	// VerifyCacheSize bounds the proof verification cache. Zero disables it.
	VerifyCacheSize int `json:"verifyCacheSize"`
}

// maxDecimals keeps 10^decimals within 64 bits
const maxDecimals = 19

// DefaultProgramID is the program namespace used when none is configured.
var DefaultProgramID = common.HexToAddress("0x000000000000000000000000000000000000a770")

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CanonicalDecimals: 9,
		ProgramID:         DefaultProgramID,
		LPDecimals:        9,
		VerifyCacheSize:   1024,
	}
}

// Verify validates the configuration.
func (c Config) Verify() error {
	if c.CanonicalDecimals > maxDecimals {
		return fmt.Errorf("canonicalDecimals %d exceeds %d", c.CanonicalDecimals, maxDecimals)
	}
	if c.LPDecimals > maxDecimals {
		return fmt.Errorf("lpDecimals %d exceeds %d", c.LPDecimals, maxDecimals)
	}
	if c.ProgramID == (common.Address{}) {
		return errors.New("programID is required")
	}
	if c.VerifyCacheSize < 0 {
		return fmt.Errorf("verifyCacheSize %d is negative", c.VerifyCacheSize)
	}
	return nil
}

// LoadConfig decodes a JSON config over the defaults and verifies it.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Verify(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Verifier wraps inner in a verification cache of VerifyCacheSize entries.
// With a zero size inner is returned as is.
func (c Config) Verifier(inner zk.Verifier) (zk.Verifier, error) {
	if c.VerifyCacheSize == 0 {
		return inner, nil
	}
	cached, err := zk.NewCachedVerifier(inner, c.VerifyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create verification cache: %w", err)
	}
	return cached, nil
}
