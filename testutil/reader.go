package testutil

import (
	"context"
	"iter"
	"sync"

	"github.com/allfeat/explorer/ledger"
)

// CountingReader records how a reader is used.
type CountingReader struct {
	ledger.Reader

	lock      sync.Mutex
	pins      int
	reads     int
	ranges    int
	constants int
	refs      []ledger.BlockRef
}

var _ ledger.Reader = &CountingReader{}

func NewCountingReader(reader ledger.Reader) *CountingReader {
	return &CountingReader{Reader: reader}
}

func (r *CountingReader) record(ref ledger.BlockRef, counter *int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	*counter++
	r.refs = append(r.refs, ref)
}

func (r *CountingReader) Pin(ctx context.Context) (ledger.BlockRef, error) {
	r.lock.Lock()
	r.pins++
	r.lock.Unlock()
	return r.Reader.Pin(ctx)
}

func (r *CountingReader) Read(ctx context.Context, ref ledger.BlockRef, key ledger.Key) ([]byte, bool, error) {
	r.record(ref, &r.reads)
	return r.Reader.Read(ctx, ref, key)
}

func (r *CountingReader) ReadRange(ctx context.Context, ref ledger.BlockRef, key ledger.Key) iter.Seq2[ledger.KeyValue, error] {
	r.record(ref, &r.ranges)
	return r.Reader.ReadRange(ctx, ref, key)
}

func (r *CountingReader) Constant(ctx context.Context, ref ledger.BlockRef, pallet string, name string) ([]byte, error) {
	r.record(ref, &r.constants)
	return r.Reader.Constant(ctx, ref, pallet, name)
}

func (r *CountingReader) Pins() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.pins
}

// Reads counts point reads and range scans.
func (r *CountingReader) Reads() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.reads + r.ranges
}

// Refs lists the block every read was issued against, in call order.
func (r *CountingReader) Refs() []ledger.BlockRef {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]ledger.BlockRef(nil), r.refs...)
}

func (r *CountingReader) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.pins, r.reads, r.ranges, r.constants = 0, 0, 0, 0
	r.refs = nil
}
