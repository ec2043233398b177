// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package api is a generated GoMock package.
package api

import (
	context "context"
	reflect "reflect"

	common "github.com/DarkWingMcQuack/forge-core-sub000/common"
	future "github.com/DarkWingMcQuack/forge-core-sub000/common/future"
	result "github.com/DarkWingMcQuack/forge-core-sub000/common/result"
	forge "github.com/DarkWingMcQuack/forge-core-sub000/forge"
	lookup "github.com/DarkWingMcQuack/forge-core-sub000/lookup"
	manager "github.com/DarkWingMcQuack/forge-core-sub000/manager"
	gomock "go.uber.org/mock/gomock"
)

// MockBackend is a mock of Backend interface.
type MockBackend struct {
	ctrl     *gomock.Controller
	recorder *MockBackendMockRecorder
	isgomock struct{}
}

// MockBackendMockRecorder is the mock recorder for MockBackend.
type MockBackendMockRecorder struct {
	mock *MockBackend
}

// NewMockBackend creates a new mock instance.
func NewMockBackend(ctrl *gomock.Controller) *MockBackend {
	mock := &MockBackend{ctrl: ctrl}
	mock.recorder = &MockBackendMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockBackend) EXPECT() *MockBackendMockRecorder {
	return m.recorder
}

// GetBalanceOf mocks base method.
func (m *MockBackend) GetBalanceOf(id []byte, owner common.Address) (uint64, bool) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBalanceOf", id, owner)
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(bool)
	return ret0, ret1
}

// GetBalanceOf indicates an expected call of GetBalanceOf.
func (mr *MockBackendMockRecorder) GetBalanceOf(id, owner any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBalanceOf", reflect.TypeOf((*MockBackend)(nil).GetBalanceOf), id, owner)
}

// GetEntriesOfOwner mocks base method.
func (m *MockBackend) GetEntriesOfOwner(t forge.EntryType, owner common.Address) ([]lookup.Entry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetEntriesOfOwner", t, owner)
	ret0, _ := ret[0].([]lookup.Entry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetEntriesOfOwner indicates an expected call of GetEntriesOfOwner.
func (mr *MockBackendMockRecorder) GetEntriesOfOwner(t, owner any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetEntriesOfOwner", reflect.TypeOf((*MockBackend)(nil).GetEntriesOfOwner), t, owner)
}

// GetSupply mocks base method.
func (m *MockBackend) GetSupply(id []byte) (uint64, bool) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSupply", id)
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(bool)
	return ret0, ret1
}

// GetSupply indicates an expected call of GetSupply.
func (mr *MockBackendMockRecorder) GetSupply(id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSupply", reflect.TypeOf((*MockBackend)(nil).GetSupply), id)
}

// GetUtilityTokensOfOwner mocks base method.
func (m *MockBackend) GetUtilityTokensOfOwner(owner common.Address) []lookup.TokenBalance {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetUtilityTokensOfOwner", owner)
	ret0, _ := ret[0].([]lookup.TokenBalance)
	return ret0
}

// GetUtilityTokensOfOwner indicates an expected call of GetUtilityTokensOfOwner.
func (mr *MockBackendMockRecorder) GetUtilityTokensOfOwner(owner any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetUtilityTokensOfOwner", reflect.TypeOf((*MockBackend)(nil).GetUtilityTokensOfOwner), owner)
}

// LookupIsValid mocks base method.
func (m *MockBackend) LookupIsValid(ctx context.Context) (bool, uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LookupIsValid", ctx)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(uint64)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// LookupIsValid indicates an expected call of LookupIsValid.
func (mr *MockBackendMockRecorder) LookupIsValid(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LookupIsValid", reflect.TypeOf((*MockBackend)(nil).LookupIsValid), ctx)
}

// LookupRecord mocks base method.
func (m *MockBackend) LookupRecord(t forge.EntryType, key []byte) (lookup.Record, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LookupRecord", t, key)
	ret0, _ := ret[0].(lookup.Record)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// LookupRecord indicates an expected call of LookupRecord.
func (mr *MockBackendMockRecorder) LookupRecord(t, key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LookupRecord", reflect.TypeOf((*MockBackend)(nil).LookupRecord), t, key)
}

// StartRebuild mocks base method.
func (m *MockBackend) StartRebuild(ctx context.Context) (future.Future[result.Result[manager.Report]], error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "StartRebuild", ctx)
	ret0, _ := ret[0].(future.Future[result.Result[manager.Report]])
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// StartRebuild indicates an expected call of StartRebuild.
func (mr *MockBackendMockRecorder) StartRebuild(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "StartRebuild", reflect.TypeOf((*MockBackend)(nil).StartRebuild), ctx)
}

// Status mocks base method.
func (m *MockBackend) Status() (manager.Status, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Status")
	ret0, _ := ret[0].(manager.Status)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Status indicates an expected call of Status.
func (mr *MockBackendMockRecorder) Status() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Status", reflect.TypeOf((*MockBackend)(nil).Status))
}

// UpdateLookup mocks base method.
func (m *MockBackend) UpdateLookup(ctx context.Context) (manager.Report, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateLookup", ctx)
	ret0, _ := ret[0].(manager.Report)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// UpdateLookup indicates an expected call of UpdateLookup.
func (mr *MockBackendMockRecorder) UpdateLookup(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateLookup", reflect.TypeOf((*MockBackend)(nil).UpdateLookup), ctx)
}
