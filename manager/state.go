// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package manager

import (
	"errors"
	"fmt"
)

// State is the phase of a Manager. Exactly one indexing pass may run at a
// time; a Manager never leaves ShuttingDown.
type State int

const (
	Idle State = iota
	Indexing
	ShuttingDown
)

var (
	ErrBusy         = errors.New("an indexing pass is already running")
	ErrShuttingDown = errors.New("lookup manager is shutting down")
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Indexing:
		return "indexing"
	case ShuttingDown:
		return "shutting down"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// State returns the current phase of the manager.
func (m *Manager) State() State {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	return m.state
}

// begin claims the right to run an indexing pass. Every successful call
// must be followed by a call to end.
func (m *Manager) begin() error {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	switch m.state {
	case ShuttingDown:
		return ErrShuttingDown
	case Indexing:
		return ErrBusy
	}
	m.state = Indexing
	m.passes.Add(1)
	return nil
}

func (m *Manager) end() {
	m.stateMutex.Lock()
	if m.state == Indexing {
		m.state = Idle
	}
	m.stateMutex.Unlock()
	m.passes.Done()
}

// shutdown moves the manager into its final state. It returns false if the
// manager was already shutting down.
func (m *Manager) shutdown() bool {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	if m.state == ShuttingDown {
		return false
	}
	m.state = ShuttingDown
	return true
}
