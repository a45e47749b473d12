package testutil

import (
	"context"
	"iter"

	"github.com/allfeat/explorer/ledger"
	"github.com/stretchr/testify/mock"
)

// MockedReader returns a new mock for ledger.Reader
type MockedReader struct {
	mock.Mock
}

var _ ledger.Reader = &MockedReader{}

func (m *MockedReader) Pin(ctx context.Context) (ledger.BlockRef, error) {
	args := m.Called(ctx)
	return args.Get(0).(ledger.BlockRef), args.Error(1)
}

func (m *MockedReader) Read(ctx context.Context, ref ledger.BlockRef, key ledger.Key) ([]byte, bool, error) {
	args := m.Called(ctx, ref, key)
	value, _ := args.Get(0).([]byte)
	return value, args.Bool(1), args.Error(2)
}

// ReadRange yields the mocked entries, then the mocked error if any.
func (m *MockedReader) ReadRange(ctx context.Context, ref ledger.BlockRef, key ledger.Key) iter.Seq2[ledger.KeyValue, error] {
	args := m.Called(ctx, ref, key)
	kvs, _ := args.Get(0).([]ledger.KeyValue)
	err := args.Error(1)
	return func(yield func(ledger.KeyValue, error) bool) {
		for _, kv := range kvs {
			if !yield(kv, nil) {
				return
			}
		}
		if err != nil {
			yield(ledger.KeyValue{}, err)
		}
	}
}

func (m *MockedReader) Constant(ctx context.Context, ref ledger.BlockRef, pallet string, name string) ([]byte, error) {
	args := m.Called(ctx, ref, pallet, name)
	value, _ := args.Get(0).([]byte)
	return value, args.Error(1)
}

func (m *MockedReader) SubscribeFinalized(ctx context.Context) (<-chan ledger.BlockRef, <-chan error, error) {
	args := m.Called(ctx)
	blocks, _ := args.Get(0).(<-chan ledger.BlockRef)
	errs, _ := args.Get(1).(<-chan error)
	return blocks, errs, args.Error(2)
}
