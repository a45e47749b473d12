// Package memory is an in-process ledger with versioned snapshots, used by tests and
// by the demo mode of the CLI.
package memory

import (
	"bytes"
	"context"
	"encoding/binary"
	"iter"
	"sync"
	"time"

	"github.com/allfeat/explorer/errors"
	"github.com/allfeat/explorer/ledger"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/btree"
	"golang.org/x/crypto/blake2b"
)

type state = btree.Map[string, []byte]

type subscriber struct {
	blocks chan ledger.BlockRef
	errs   chan error
}

func (sub *subscriber) close() {
	close(sub.blocks)
	close(sub.errs)
}

// Ledger keeps a working state that writes go to and an immutable copy of it for
// every finalized block. Reads always go to the copy the BlockRef names.
type Ledger struct {
	lock        sync.RWMutex
	working     *state
	constants   map[string][]byte
	blocks      []*state
	hashes      []ledger.BlockRef
	unavailable error
	subscribers map[*subscriber]struct{}
}

var _ ledger.Reader = &Ledger{}

// New returns a ledger with an empty genesis block finalized.
func New() *Ledger {
	l := &Ledger{
		working:     btree.NewMap[string, []byte](0),
		constants:   map[string][]byte{},
		subscribers: map[*subscriber]struct{}{},
	}
	l.Finalize()
	return l
}

// StorageKey is the full key an entry is stored under; every map argument is
// hashed with blake2_128_concat.
func StorageKey(key ledger.Key) []byte {
	out := key.Prefix()
	for _, arg := range key.Args {
		out = append(out, ledger.Blake2_128Concat(arg)...)
	}
	return out
}

func (l *Ledger) Set(key ledger.Key, value []byte) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.working.Set(string(StorageKey(key)), bytes.Clone(value))
}

func (l *Ledger) Delete(key ledger.Key) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.working.Delete(string(StorageKey(key)))
}

// Constants are not versioned; they only change with a runtime upgrade.
func (l *Ledger) SetConstant(pallet string, name string, value []byte) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.constants[pallet+"."+name] = bytes.Clone(value)
}

// SetUnavailable makes every call fail with err until it is cleared with nil.
func (l *Ledger) SetUnavailable(err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.unavailable = err
}

func blockHash(number uint64) []byte {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], number)
	h := blake2b.Sum256(n[:])
	return h[:]
}

// Finalize seals the working state as the next block and notifies subscribers.
func (l *Ledger) Finalize() ledger.BlockRef {
	l.lock.Lock()
	defer l.lock.Unlock()
	number := uint64(len(l.blocks))
	ref := ledger.BlockRef{Hash: blockHash(number), Number: number}
	l.blocks = append(l.blocks, l.working.Copy())
	l.hashes = append(l.hashes, ref)

	for sub := range l.subscribers {
		select {
		case sub.blocks <- ref:
		default:
			logrus.WithField("block", ref.Number).Warn("subscriber is lagging, dropping finalized block")
		}
	}
	return ref
}

// FailSubscriptions ends every open subscription with err.
func (l *Ledger) FailSubscriptions(err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for sub := range l.subscribers {
		sub.errs <- err
		sub.close()
		delete(l.subscribers, sub)
	}
}

// Head is the latest finalized block.
func (l *Ledger) Head() ledger.BlockRef {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.hashes[len(l.hashes)-1]
}

// Run finalizes a block every interval until ctx is done.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Finalize()
		}
	}
}

func (l *Ledger) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.unavailable != nil {
		return errors.Wrap(errors.ChainUnavailable, l.unavailable, "ledger unavailable")
	}
	return nil
}

func (l *Ledger) snapshot(ref ledger.BlockRef) (*state, error) {
	if ref.Number >= uint64(len(l.blocks)) || !bytes.Equal(l.hashes[ref.Number].Hash, ref.Hash) {
		return nil, errors.ChainUnavailablef("unknown block %s", ref)
	}
	return l.blocks[ref.Number], nil
}

func (l *Ledger) Pin(ctx context.Context) (ledger.BlockRef, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	if err := l.check(ctx); err != nil {
		return ledger.BlockRef{}, err
	}
	return l.hashes[len(l.hashes)-1], nil
}

func (l *Ledger) Read(ctx context.Context, ref ledger.BlockRef, key ledger.Key) ([]byte, bool, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	if err := l.check(ctx); err != nil {
		return nil, false, err
	}
	snap, err := l.snapshot(ref)
	if err != nil {
		return nil, false, err
	}
	value, ok := snap.Get(string(StorageKey(key)))
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(value), true, nil
}

func (l *Ledger) ReadRange(ctx context.Context, ref ledger.BlockRef, key ledger.Key) iter.Seq2[ledger.KeyValue, error] {
	return func(yield func(ledger.KeyValue, error) bool) {
		l.lock.RLock()
		err := l.check(ctx)
		var snap *state
		if err == nil {
			snap, err = l.snapshot(ref)
		}
		l.lock.RUnlock()
		if err != nil {
			yield(ledger.KeyValue{}, err)
			return
		}

		prefix := string(key.Prefix())
		var entries []ledger.KeyValue
		// snapshots are immutable, no lock needed past this point
		snap.Ascend(prefix, func(k string, v []byte) bool {
			if len(k) < len(prefix) || k[:len(prefix)] != prefix {
				return false
			}
			entries = append(entries, ledger.KeyValue{Key: []byte(k), Value: bytes.Clone(v)})
			return true
		})
		for _, kv := range entries {
			if err := ctx.Err(); err != nil {
				yield(ledger.KeyValue{}, err)
				return
			}
			if !yield(kv, nil) {
				return
			}
		}
	}
}

func (l *Ledger) Constant(ctx context.Context, ref ledger.BlockRef, pallet string, name string) ([]byte, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	if _, err := l.snapshot(ref); err != nil {
		return nil, err
	}
	value, ok := l.constants[pallet+"."+name]
	if !ok {
		return nil, errors.MetricNotFoundf("no constant %s.%s", pallet, name)
	}
	return bytes.Clone(value), nil
}

func (l *Ledger) SubscribeFinalized(ctx context.Context) (<-chan ledger.BlockRef, <-chan error, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if err := l.check(ctx); err != nil {
		return nil, nil, err
	}
	sub := &subscriber{
		blocks: make(chan ledger.BlockRef, 64),
		errs:   make(chan error, 1),
	}
	l.subscribers[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		l.lock.Lock()
		defer l.lock.Unlock()
		if _, ok := l.subscribers[sub]; ok {
			delete(l.subscribers, sub)
			sub.close()
		}
	}()
	return sub.blocks, sub.errs, nil
}
