// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package manager keeps the registry engines in sync with the host chain.
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history"
	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history/memory"
	"github.com/DarkWingMcQuack/forge-core-sub000/chain"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/common/future"
	"github.com/DarkWingMcQuack/forge-core-sub000/common/result"
	"github.com/DarkWingMcQuack/forge-core-sub000/database/snapshot"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"github.com/DarkWingMcQuack/forge-core-sub000/lookup"
	"github.com/ethereum/go-ethereum/log"
)

type Config struct {
	Params chain.Params

	// History records the hashes of processed blocks. Defaults to an
	// in-memory history. The manager takes ownership and closes it.
	History history.History

	// SnapshotPath, if set, is loaded on creation and written on Close.
	SnapshotPath string

	// UpdateInterval is the period of the background updater. Defaults to
	// half the chain's block interval.
	UpdateInterval time.Duration

	Logger log.Logger
}

// Report summarizes one indexing pass.
type Report struct {
	FirstBlock uint64 // < first processed height
	Blocks     uint64 // < number of processed blocks
	Mutable    int    // < candidate operations per engine
	Immutable  int
	Tokens     int
	Expired    int // < entries removed for exceeding the validity window
	Elapsed    time.Duration
}

func (r Report) String() string {
	if r.Blocks == 0 {
		return "no new blocks"
	}
	return fmt.Sprintf("blocks %d-%d, candidates %d/%d/%d, expired %d, took %v",
		r.FirstBlock, r.FirstBlock+r.Blocks-1, r.Mutable, r.Immutable, r.Tokens, r.Expired, r.Elapsed)
}

// Manager scans the host chain and feeds the operations found to the
// lookup engines. Reads may run concurrently with an indexing pass; they
// observe the state between two blocks.
type Manager struct {
	client chain.Client
	params chain.Params
	config Config
	log    log.Logger

	mutex     sync.RWMutex // < guards the engines and the history
	mutable   *lookup.EntryLookup
	immutable *lookup.EntryLookup
	tokens    *lookup.TokenLookup
	history   history.History

	stateMutex sync.Mutex
	state      State
	passes     sync.WaitGroup // < running indexing passes

	updater        sync.WaitGroup
	updaterStarted bool

	ctx    context.Context // < canceled on Close
	cancel context.CancelFunc
}

func New(client chain.Client, config Config) (*Manager, error) {
	if err := config.Params.Validate(); err != nil {
		return nil, err
	}
	if config.History == nil {
		config.History = memory.NewHistory()
	}
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = config.Params.BlockInterval / 2
	}
	if config.Logger == nil {
		config.Logger = log.Root().With("module", "manager", "chain", config.Params.Name)
	}

	start := config.Params.StartHeight
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		client:    client,
		params:    config.Params,
		config:    config,
		log:       config.Logger,
		mutable:   lookup.NewMutableEntryLookup(start),
		immutable: lookup.NewImmutableEntryLookup(start),
		tokens:    lookup.NewTokenLookup(start),
		history:   config.History,
		ctx:       ctx,
		cancel:    cancel,
	}
	if err := m.resume(); err != nil {
		cancel()
		return nil, err
	}
	return m, nil
}

// resume restores the last snapshot if it agrees with the block history,
// and otherwise resets the history to match the empty engines.
func (m *Manager) resume() error {
	if m.config.SnapshotPath != "" {
		s, err := snapshot.Load(m.config.SnapshotPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			m.log.Warn("Ignoring unreadable snapshot", "path", m.config.SnapshotPath, "err", err)
		default:
			resumed, err := m.restore(s)
			if err != nil {
				return err
			}
			if resumed {
				return nil
			}
		}
	}
	return m.history.Truncate(0)
}

func (m *Manager) restore(s *snapshot.Snapshot) (bool, error) {
	start := m.params.StartHeight
	if s.Chain != m.params.Name || s.Height < start {
		m.log.Warn("Ignoring snapshot of other chain", "chain", s.Chain, "height", s.Height)
		return false, nil
	}
	length := s.Height - start
	if length > m.history.Len() {
		m.log.Warn("Ignoring snapshot ahead of block history", "height", s.Height, "history", m.history.Len())
		return false, nil
	}
	if length > 0 {
		hash, err := m.history.Get(length - 1)
		if err != nil {
			return false, err
		}
		if hash != s.TipHash {
			m.log.Warn("Ignoring snapshot diverging from block history", "height", s.Height)
			return false, nil
		}
	}
	if err := s.RestoreInto(m.mutable, m.immutable, m.tokens); err != nil {
		m.log.Warn("Ignoring inconsistent snapshot", "err", err)
		return false, nil
	}
	if err := m.history.Truncate(length); err != nil {
		return false, err
	}
	m.log.Info("Resumed from snapshot", "height", s.Height)
	return true, nil
}

// UpdateLookup processes all mature blocks not processed so far. It fails
// with ErrBusy if another pass is running. On failure, all blocks before
// the failing one stay applied.
func (m *Manager) UpdateLookup(ctx context.Context) (Report, error) {
	if err := m.begin(); err != nil {
		return Report{}, err
	}
	defer m.end()
	return m.index(ctx, false)
}

// RebuildLookup discards the registry and processes the chain from the
// start height. Reads block until the rebuild is finished.
func (m *Manager) RebuildLookup(ctx context.Context) (Report, error) {
	if err := m.begin(); err != nil {
		return Report{}, err
	}
	defer m.end()
	return m.rebuild(ctx)
}

// StartRebuild runs a rebuild in the background. It fails immediately if
// another pass is running.
func (m *Manager) StartRebuild(ctx context.Context) (future.Future[result.Result[Report]], error) {
	if err := m.begin(); err != nil {
		return future.Future[result.Result[Report]]{}, err
	}
	promise, res := future.Create[result.Result[Report]]()
	go func() {
		defer m.end()
		promise.Fulfill(result.Of(m.rebuild(ctx)))
	}()
	return res, nil
}

func (m *Manager) rebuild(ctx context.Context) (Report, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.log.Info("Rebuilding registry", "from", m.params.StartHeight)
	m.mutable.Clear()
	m.immutable.Clear()
	m.tokens.Clear()
	if err := m.history.Truncate(0); err != nil {
		return Report{}, err
	}
	return m.index(ctx, true)
}

// index processes blocks up to the safe tip. If locked is set, the caller
// holds the write lock, otherwise it is taken per block.
func (m *Manager) index(ctx context.Context, locked bool) (Report, error) {
	ctx, stop := m.passContext(ctx)
	defer stop()

	startTime := time.Now()
	report := Report{FirstBlock: m.nextHeight(locked)}
	err := m.indexBlocks(ctx, locked, &report)
	report.Elapsed = time.Since(startTime)

	if !locked {
		m.mutex.Lock()
		defer m.mutex.Unlock()
	}
	err = errors.Join(err, m.history.Flush())
	if err != nil {
		m.log.Warn("Indexing pass failed", "report", report.String(), "err", err)
		return report, err
	}
	if report.Blocks > 0 {
		m.log.Info("Indexed blocks", "report", report.String())
	}
	return report, nil
}

func (m *Manager) indexBlocks(ctx context.Context, locked bool, report *Report) error {
	count, err := m.client.GetBlockCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block count: %w", err)
	}
	tip, ok := m.params.SafeTip(count)
	if !ok {
		return nil
	}
	for height := report.FirstBlock; height <= tip; height++ {
		if err := context.Cause(ctx); err != nil {
			return err
		}
		block, err := m.fetchBlock(ctx, height)
		if err != nil {
			return err
		}
		if !locked {
			m.mutex.Lock()
		}
		expired, err := m.apply(block)
		if !locked {
			m.mutex.Unlock()
		}
		if err != nil {
			return err
		}
		report.Blocks++
		report.Expired += expired
		for _, c := range block.candidates {
			switch c.op.Type() {
			case forge.MutableEntry:
				report.Mutable++
			case forge.ImmutableEntry:
				report.Immutable++
			case forge.UtilityToken:
				report.Tokens++
			}
		}
	}
	return nil
}

// apply feeds one block to the engines and advances them to the next
// height. The caller must hold the write lock.
func (m *Manager) apply(block *blockCandidates) (int, error) {
	if next := m.mutable.BlockHeight(); block.height != next {
		return 0, fmt.Errorf("block %d does not follow processed height %d", block.height, next)
	}
	var mutable, immutable []lookup.EntryOperation
	var tokens []lookup.TokenOperation
	for _, c := range block.candidates {
		switch c.op.Type() {
		case forge.MutableEntry:
			mutable = append(mutable, lookup.NewEntryOperation(c.op, c.origin))
		case forge.ImmutableEntry:
			immutable = append(immutable, lookup.NewEntryOperation(c.op, c.origin))
		case forge.UtilityToken:
			tokens = append(tokens, lookup.NewTokenOperation(c.op, c.origin))
		}
	}
	// the history is extended first so that a failing backend leaves the
	// engines untouched; it is cut back if the engines reject the block
	length := m.history.Len()
	if err := m.history.Append(block.hash); err != nil {
		return 0, fmt.Errorf("failed to record block %d: %w", block.height, err)
	}
	err := errors.Join(
		m.mutable.ExecuteOperations(mutable),
		m.immutable.ExecuteOperations(immutable),
		m.tokens.ExecuteOperations(tokens),
	)
	if err != nil {
		err = errors.Join(err, m.history.Truncate(length))
		return 0, fmt.Errorf("failed to apply block %d: %w", block.height, err)
	}

	next := block.height + 1
	m.mutable.SetBlockHeight(next)
	m.immutable.SetBlockHeight(next)
	m.tokens.SetBlockHeight(next)
	window := m.params.ValidityWindow
	expired := m.mutable.RemoveEntriesOlderThan(window) + m.immutable.RemoveEntriesOlderThan(window)
	m.log.Debug("Applied block", "height", block.height, "hash", block.hash, "candidates", len(block.candidates), "expired", expired)
	return expired, nil
}

// LookupIsValid checks the processed blocks against the current chain. If
// a reorganization replaced processed blocks, it returns false and the
// lowest replaced height.
func (m *Manager) LookupIsValid(ctx context.Context) (bool, uint64, error) {
	ctx, stop := m.passContext(ctx)
	defer stop()

	count, err := m.client.GetBlockCount(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("failed to get block count: %w", err)
	}

	m.mutex.RLock()
	length := m.history.Len()
	m.mutex.RUnlock()

	start := m.params.StartHeight
	valid, firstInvalid := true, uint64(0)
	for pos := length; pos > 0; pos-- {
		height := start + pos - 1
		if height <= count {
			m.mutex.RLock()
			processed, err := m.history.Get(pos - 1)
			m.mutex.RUnlock()
			if errors.Is(err, history.ErrNotFound) {
				// the history was truncated by a concurrent rebuild
				continue
			}
			if err != nil {
				return false, 0, err
			}
			current, err := m.client.GetBlockHash(ctx, height)
			if err != nil {
				return false, 0, fmt.Errorf("failed to get hash of block %d: %w", height, err)
			}
			if current == processed {
				break
			}
		}
		valid, firstInvalid = false, height
	}
	if !valid {
		m.log.Warn("Processed blocks were reorganized", "height", firstInvalid)
	}
	return valid, firstInvalid, nil
}

// passContext derives a context that is also canceled when the manager
// shuts down.
func (m *Manager) passContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(m.ctx, func() { cancel(ErrShuttingDown) })
	return ctx, func() {
		stop()
		cancel(nil)
	}
}

func (m *Manager) nextHeight(locked bool) uint64 {
	if !locked {
		m.mutex.RLock()
		defer m.mutex.RUnlock()
	}
	return m.mutable.BlockHeight()
}

// BlockHeight returns the height of the next block to be processed.
func (m *Manager) BlockHeight() uint64 {
	return m.nextHeight(false)
}

func (m *Manager) Params() chain.Params {
	return m.params
}

// SaveSnapshot writes the current registry state to the given file.
func (m *Manager) SaveSnapshot(path string) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.saveSnapshot(path)
}

func (m *Manager) saveSnapshot(path string) error {
	tip, _, err := history.Last(m.history)
	if err != nil {
		return err
	}
	s := snapshot.Capture(m.params.Name, tip, m.mutable, m.immutable, m.tokens)
	if err := snapshot.Save(path, s); err != nil {
		return err
	}
	m.log.Info("Saved snapshot", "path", path, "height", s.Height)
	return nil
}

// Close stops the updater, waits for running passes to reach a block
// boundary and releases the history. With a configured snapshot path the
// final state is saved.
func (m *Manager) Close() error {
	if !m.shutdown() {
		return nil
	}
	m.cancel()
	m.updater.Wait()
	m.passes.Wait()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	var errs []error
	if m.config.SnapshotPath != "" {
		errs = append(errs, m.saveSnapshot(m.config.SnapshotPath))
	}
	errs = append(errs, m.history.Flush(), m.history.Close())
	return errors.Join(errs...)
}

// GetMemoryFootprint describes the memory used by the engines and history.
func (m *Manager) GetMemoryFootprint() *common.MemoryFootprint {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	mf := common.NewMemoryFootprint(0)
	mf.AddChild("mutable", m.mutable.GetMemoryFootprint())
	mf.AddChild("immutable", m.immutable.GetMemoryFootprint())
	mf.AddChild("tokens", m.tokens.GetMemoryFootprint())
	mf.AddChild("history", m.history.GetMemoryFootprint())
	return mf
}
