// Package mock_cache holds a gomock double for the generic cache.Cache.
// It is maintained by hand because mockgen v1.6 cannot render type parameters.
package mock_cache

import (
	context "context"
	reflect "reflect"
	time "time"

	gomock "github.com/golang/mock/gomock"
)

// MockCache is a mock of Cache interface.
type MockCache[K comparable, V any] struct {
	ctrl     *gomock.Controller
	recorder *MockCacheMockRecorder[K, V]
}

// MockCacheMockRecorder is the mock recorder for MockCache.
type MockCacheMockRecorder[K comparable, V any] struct {
	mock *MockCache[K, V]
}

// NewMockCache creates a new mock instance.
func NewMockCache[K comparable, V any](ctrl *gomock.Controller) *MockCache[K, V] {
	mock := &MockCache[K, V]{ctrl: ctrl}
	mock.recorder = &MockCacheMockRecorder[K, V]{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCache[K, V]) EXPECT() *MockCacheMockRecorder[K, V] {
	return m.recorder
}

// Delete mocks base method.
func (m *MockCache[K, V]) Delete(ctx context.Context, key K) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Delete", ctx, key)
}

// Delete indicates an expected call of Delete.
func (mr *MockCacheMockRecorder[K, V]) Delete(ctx, key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockCache[K, V])(nil).Delete), ctx, key)
}

// Get mocks base method.
func (m *MockCache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, key)
	ret0, _ := ret[0].(V)
	ret1, _ := ret[1].(bool)
	return ret0, ret1
}

// Get indicates an expected call of Get.
func (mr *MockCacheMockRecorder[K, V]) Get(ctx, key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockCache[K, V])(nil).Get), ctx, key)
}

// Set mocks base method.
func (m *MockCache[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Set", ctx, key, value, ttl)
}

// Set indicates an expected call of Set.
func (mr *MockCacheMockRecorder[K, V]) Set(ctx, key, value, ttl any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Set", reflect.TypeOf((*MockCache[K, V])(nil).Set), ctx, key, value, ttl)
}
