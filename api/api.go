// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package api exposes the registry of a lookup manager as a JSON-RPC
// service in the "forge" namespace.
package api

//go:generate mockgen -source api.go -destination api_mocks.go -package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/common/future"
	"github.com/DarkWingMcQuack/forge-core-sub000/common/result"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"github.com/DarkWingMcQuack/forge-core-sub000/lookup"
	"github.com/DarkWingMcQuack/forge-core-sub000/manager"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// Namespace is the prefix of all methods of the service.
const Namespace = "forge"

// Backend is the part of the lookup manager served by the API.
type Backend interface {
	LookupRecord(t forge.EntryType, key []byte) (lookup.Record, bool, error)
	GetEntriesOfOwner(t forge.EntryType, owner common.Address) ([]lookup.Entry, error)
	GetUtilityTokensOfOwner(owner common.Address) []lookup.TokenBalance
	GetBalanceOf(id []byte, owner common.Address) (uint64, bool)
	GetSupply(id []byte) (uint64, bool)
	Status() (manager.Status, error)
	UpdateLookup(ctx context.Context) (manager.Report, error)
	StartRebuild(ctx context.Context) (future.Future[result.Result[manager.Report]], error)
	LookupIsValid(ctx context.Context) (bool, uint64, error)
}

var _ Backend = (*manager.Manager)(nil)

// Value is the JSON form of an entry value.
type Value struct {
	Kind string        `json:"kind"`
	Data hexutil.Bytes `json:"data"`
}

func newValue(v forge.Value) Value {
	return Value{Kind: v.Kind().String(), Data: v.Bytes()}
}

type Record struct {
	Key             hexutil.Bytes  `json:"key"`
	Value           Value          `json:"value"`
	Owner           common.Address `json:"owner"`
	ActivationBlock hexutil.Uint64 `json:"activationBlock"`
}

func newRecord(key []byte, r lookup.Record) *Record {
	return &Record{
		Key:             key,
		Value:           newValue(r.Value),
		Owner:           r.Owner,
		ActivationBlock: hexutil.Uint64(r.ActivationBlock),
	}
}

type Balance struct {
	ID      hexutil.Bytes  `json:"id"`
	Owner   common.Address `json:"owner"`
	Balance hexutil.Uint64 `json:"balance"`
}

type Status struct {
	State          string         `json:"state"`
	BlockHeight    hexutil.Uint64 `json:"blockHeight"`
	TipHash        common.Hash    `json:"tipHash"`
	MutableSize    int            `json:"mutableEntries"`
	ImmutableSize  int            `json:"immutableEntries"`
	TokenCount     int            `json:"tokens"`
	MutableHash    common.Hash    `json:"mutableHash"`
	ImmutableHash  common.Hash    `json:"immutableHash"`
	TokenStateHash common.Hash    `json:"tokenHash"`
}

type Report struct {
	FirstBlock hexutil.Uint64 `json:"firstBlock"`
	Blocks     hexutil.Uint64 `json:"blocks"`
	Mutable    int            `json:"mutableOperations"`
	Immutable  int            `json:"immutableOperations"`
	Tokens     int            `json:"tokenOperations"`
	Expired    int            `json:"expired"`
	Elapsed    string         `json:"elapsed"`
}

type Validity struct {
	Valid        bool            `json:"valid"`
	FirstInvalid *hexutil.Uint64 `json:"firstInvalid,omitempty"`
}

// Service implements the methods of the forge namespace. Entry types are
// passed by name, e.g. "mutable" or "immutable".
type Service struct {
	backend Backend
	log     log.Logger
}

func NewService(backend Backend) *Service {
	return &Service{
		backend: backend,
		log:     log.Root().With("module", "api"),
	}
}

// Lookup returns the live record of the key, or null if there is none.
func (s *Service) Lookup(entryType string, key hexutil.Bytes) (*Record, error) {
	t, err := parseEntryType(entryType)
	if err != nil {
		return nil, err
	}
	record, found, err := s.backend.LookupRecord(t, key)
	if err != nil || !found {
		return nil, err
	}
	return newRecord(key, record), nil
}

func (s *Service) EntriesOfOwner(entryType string, owner common.Address) ([]*Record, error) {
	t, err := parseEntryType(entryType)
	if err != nil {
		return nil, err
	}
	entries, err := s.backend.GetEntriesOfOwner(t, owner)
	if err != nil {
		return nil, err
	}
	res := make([]*Record, 0, len(entries))
	for _, e := range entries {
		res = append(res, newRecord(e.Key, e.Record))
	}
	return res, nil
}

func (s *Service) TokensOfOwner(owner common.Address) []Balance {
	balances := s.backend.GetUtilityTokensOfOwner(owner)
	res := make([]Balance, 0, len(balances))
	for _, b := range balances {
		res = append(res, Balance{ID: b.ID, Owner: b.Owner, Balance: hexutil.Uint64(b.Balance)})
	}
	return res
}

// BalanceOf returns the balance of the owner, zero if it holds none of the
// token.
func (s *Service) BalanceOf(id hexutil.Bytes, owner common.Address) hexutil.Uint64 {
	balance, _ := s.backend.GetBalanceOf(id, owner)
	return hexutil.Uint64(balance)
}

// Supply returns the circulating amount of the token, or null for unknown
// tokens.
func (s *Service) Supply(id hexutil.Bytes) *hexutil.Uint64 {
	supply, found := s.backend.GetSupply(id)
	if !found {
		return nil
	}
	res := hexutil.Uint64(supply)
	return &res
}

func (s *Service) Status() (*Status, error) {
	status, err := s.backend.Status()
	if err != nil {
		return nil, err
	}
	return &Status{
		State:          status.State.String(),
		BlockHeight:    hexutil.Uint64(status.BlockHeight),
		TipHash:        status.TipHash,
		MutableSize:    status.MutableSize,
		ImmutableSize:  status.ImmutableSize,
		TokenCount:     status.TokenCount,
		MutableHash:    status.MutableHash,
		ImmutableHash:  status.ImmutableHash,
		TokenStateHash: status.TokenStateHash,
	}, nil
}

// Update processes all new mature blocks before returning.
func (s *Service) Update(ctx context.Context) (*Report, error) {
	report, err := s.backend.UpdateLookup(ctx)
	if err != nil {
		return nil, err
	}
	return newReport(report), nil
}

// Rebuild starts a rebuild of the registry. Unless asked to wait, it returns
// without waiting for the rebuild to finish. A waiting request abandoned by
// its caller does not stop the rebuild.
func (s *Service) Rebuild(ctx context.Context, wait *bool) (*Report, error) {
	res, err := s.backend.StartRebuild(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	if wait == nil || !*wait {
		go s.logFailure(res)
		return nil, nil
	}
	outcome, err := res.AwaitContext(ctx)
	if err != nil {
		go s.logFailure(res)
		return nil, err
	}
	report, err := outcome.Get()
	if err != nil {
		return nil, err
	}
	return newReport(report), nil
}

func (s *Service) logFailure(res future.Future[result.Result[manager.Report]]) {
	if _, err := res.Await().Get(); err != nil {
		s.log.Warn("Rebuild failed", "err", err)
	}
}

func (s *Service) Valid(ctx context.Context) (*Validity, error) {
	valid, firstInvalid, err := s.backend.LookupIsValid(ctx)
	if err != nil {
		return nil, err
	}
	res := &Validity{Valid: valid}
	if !valid {
		height := hexutil.Uint64(firstInvalid)
		res.FirstInvalid = &height
	}
	return res, nil
}

func newReport(r manager.Report) *Report {
	return &Report{
		FirstBlock: hexutil.Uint64(r.FirstBlock),
		Blocks:     hexutil.Uint64(r.Blocks),
		Mutable:    r.Mutable,
		Immutable:  r.Immutable,
		Tokens:     r.Tokens,
		Expired:    r.Expired,
		Elapsed:    r.Elapsed.String(),
	}
}

func parseEntryType(s string) (forge.EntryType, error) {
	t, err := forge.ParseEntryType(s)
	if err != nil {
		return 0, err
	}
	if t == forge.UtilityToken {
		return 0, fmt.Errorf("%v has no entries", t)
	}
	return t, nil
}

// NewServer creates an RPC server serving the given backend.
func NewServer(backend Backend) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(Namespace, NewService(backend)); err != nil {
		server.Stop()
		return nil, err
	}
	return server, nil
}

// Listen serves the backend over HTTP on the given address until the
// context is canceled.
func Listen(ctx context.Context, addr string, backend Backend) error {
	server, err := NewServer(backend)
	if err != nil {
		return err
	}
	defer server.Stop()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdown)
	}()

	log.Info("Serving registry API", "addr", listener.Addr())
	if err := httpServer.Serve(listener); err != http.ErrServerClosed {
		return err
	}
	return nil
}
