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
	"time"
)

// StartUpdater launches the background task keeping the registry up to
// date. Each tick checks the processed blocks against the chain, rebuilds
// the registry after a reorganization and otherwise processes new blocks.
// The task ends when the manager is closed.
func (m *Manager) StartUpdater() error {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	if m.state == ShuttingDown {
		return ErrShuttingDown
	}
	if m.updaterStarted {
		return errors.New("updater already started")
	}
	m.updaterStarted = true
	m.updater.Add(1)
	go func() {
		defer m.updater.Done()
		m.runUpdater(m.config.UpdateInterval)
	}()
	return nil
}

func (m *Manager) runUpdater(interval time.Duration) {
	m.log.Info("Updater started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.tick()
		select {
		case <-m.ctx.Done():
			m.log.Info("Updater stopped")
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) tick() {
	valid, firstInvalid, err := m.LookupIsValid(m.ctx)
	if err != nil {
		if m.ctx.Err() == nil {
			m.log.Warn("Failed to validate processed blocks", "err", err)
		}
		return
	}

	if valid {
		_, err = m.UpdateLookup(m.ctx)
	} else {
		m.log.Warn("Rebuilding registry after reorganization", "height", firstInvalid)
		_, err = m.RebuildLookup(m.ctx)
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrBusy):
		m.log.Debug("Skipping update, indexing in progress")
	case errors.Is(err, ErrShuttingDown), m.ctx.Err() != nil:
	default:
		m.log.Warn("Background update failed", "err", err)
	}
}
