// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"sync"

	"github.com/luxfi/geth/common"
)

// Event is a notification emitted after a state change commits.
type Event interface {
	EventName() string
}

// LiquidityAdded is emitted after a deposit.
type LiquidityAdded struct {
	User      common.Address
	Pool      PoolKey
	AmountX   uint64
	AmountY   uint64
	Liquidity uint64
}

// LiquidityRemoved is emitted after a withdrawal.
type LiquidityRemoved struct {
	User      common.Address
	Pool      PoolKey
	AmountX   uint64
	AmountY   uint64
	Liquidity uint64
}

// ConfidentialSwapEvent is emitted after a settled swap. It carries only what
// is already public: the output delivered and the resulting pool state.
type ConfidentialSwapEvent struct {
	User      common.Address
	AmountOut uint64
	State     PoolState
}

func (LiquidityAdded) EventName() string        { return "LiquidityAdded" }
func (LiquidityRemoved) EventName() string      { return "LiquidityRemoved" }
func (ConfidentialSwapEvent) EventName() string { return "ConfidentialSwapEvent" }

// Emitter receives committed events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit calls f(ev).
func (f EmitterFunc) Emit(ev Event) { f(ev) }

// nopEmitter drops events
type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}

// EventLog is an Emitter that records events in order.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (l *EventLog) Emit(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
