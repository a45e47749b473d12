// Package rpc reads ledger snapshots from a Substrate node over JSON-RPC.
package rpc

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/allfeat/explorer/errors"
	"github.com/allfeat/explorer/ledger"
	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

const DefaultPageSize = 256

// caller is the raw JSON-RPC surface of the gsrpc client.
type caller interface {
	Call(result interface{}, method string, args ...interface{}) error
}

// Reader implements ledger.Reader against a node.
type Reader struct {
	api      *gsrpc.SubstrateAPI
	client   caller
	pageSize int

	// metadata of the runtime last seen, refreshed when a storage entry is unknown
	lock sync.Mutex
	meta *types.Metadata
}

var _ ledger.Reader = &Reader{}

// NewReader dials url. A node that cannot be reached is reported as ChainUnavailable.
func NewReader(url string, pageSize int) (*Reader, error) {
	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, errors.Wrap(errors.ChainUnavailable, err, "could not connect to %s", url)
	}
	return NewReaderFromAPI(api, pageSize), nil
}

func NewReaderFromAPI(api *gsrpc.SubstrateAPI, pageSize int) *Reader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Reader{
		api:      api,
		client:   api.Client,
		pageSize: pageSize,
	}
}

func (r *Reader) Close() {
	if r.api != nil {
		r.api.Client.Close()
	}
}

// await runs a blocking RPC and abandons it when ctx ends first. The call
// itself keeps running in the background; reads have no side effects. A result
// that only arrives after the caller gave up is handed to release.
func await[T any](ctx context.Context, fn func() (T, error), release ...func(T)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value, err}
	}()
	select {
	case <-ctx.Done():
		if len(release) > 0 {
			go func() {
				res := <-done
				if res.err != nil {
					return
				}
				for _, fn := range release {
					fn(res.value)
				}
			}()
		}
		var zero T
		return zero, ctx.Err()
	case res := <-done:
		return res.value, res.err
	}
}

func (r *Reader) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	_, err := await(ctx, func() (struct{}, error) {
		return struct{}{}, r.client.Call(result, method, args...)
	})
	logrus.WithFields(logrus.Fields{
		"method":   method,
		"duration": time.Since(start),
	}).Trace("rpc call")
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errors.Wrap(errors.ChainUnavailable, err, "%s failed", method)
	}
	return nil
}

func (r *Reader) Pin(ctx context.Context) (ledger.BlockRef, error) {
	hash, err := await(ctx, func() (types.Hash, error) {
		return r.api.RPC.Chain.GetFinalizedHead()
	})
	if err != nil {
		return ledger.BlockRef{}, errors.Wrap(errors.ChainUnavailable, err, "could not fetch finalized head")
	}
	header, err := await(ctx, func() (*types.Header, error) {
		return r.api.RPC.Chain.GetHeader(hash)
	})
	if err != nil {
		return ledger.BlockRef{}, errors.Wrap(errors.ChainUnavailable, err, "could not fetch header %s", codec.HexEncodeToString(hash[:]))
	}
	ref := ledger.BlockRef{Hash: hash[:], Number: uint64(header.Number)}
	logrus.WithField("block", ref.Number).Debug("pinned snapshot")
	return ref, nil
}

func (r *Reader) metadata(ctx context.Context, ref ledger.BlockRef, refresh bool) (*types.Metadata, error) {
	r.lock.Lock()
	meta := r.meta
	r.lock.Unlock()
	if meta != nil && !refresh {
		return meta, nil
	}
	meta, err := await(ctx, func() (*types.Metadata, error) {
		return r.api.RPC.State.GetMetadata(types.NewHash(ref.Hash))
	})
	if err != nil {
		return nil, errors.Wrap(errors.ChainUnavailable, err, "could not fetch metadata at %s", ref)
	}
	r.lock.Lock()
	r.meta = meta
	r.lock.Unlock()
	logrus.WithField("block", ref.Number).Debug("loaded runtime metadata")
	return meta, nil
}

func (r *Reader) storageKey(ctx context.Context, ref ledger.BlockRef, key ledger.Key) (types.StorageKey, error) {
	meta, err := r.metadata(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	sk, err := types.CreateStorageKey(meta, key.Pallet, key.Item, key.Args...)
	if err == nil {
		return sk, nil
	}
	// the runtime may have been upgraded since the metadata was cached
	meta, err = r.metadata(ctx, ref, true)
	if err != nil {
		return nil, err
	}
	sk, err = types.CreateStorageKey(meta, key.Pallet, key.Item, key.Args...)
	if err != nil {
		return nil, fmt.Errorf("could not create storage key for %s: %w", key, err)
	}
	return sk, nil
}

func (r *Reader) Read(ctx context.Context, ref ledger.BlockRef, key ledger.Key) ([]byte, bool, error) {
	sk, err := r.storageKey(ctx, ref, key)
	if err != nil {
		return nil, false, err
	}
	var res *string
	err = r.call(ctx, &res, "state_getStorage", codec.HexEncodeToString(sk), ref.Hash.String())
	if err != nil {
		return nil, false, err
	}
	if res == nil {
		return nil, false, nil
	}
	value, err := codec.HexDecodeString(*res)
	if err != nil {
		return nil, false, errors.Wrap(errors.ChainUnavailable, err, "invalid storage value for %s", key)
	}
	return value, true, nil
}

// changeSet is the result of state_queryStorageAt: pairs of [key, value|null].
type changeSet struct {
	Block   string       `json:"block"`
	Changes [][2]*string `json:"changes"`
}

func decodeChanges(sets []changeSet) ([]ledger.KeyValue, error) {
	var out []ledger.KeyValue
	for _, set := range sets {
		for _, change := range set.Changes {
			if change[0] == nil || change[1] == nil {
				continue
			}
			key, err := codec.HexDecodeString(*change[0])
			if err != nil {
				return nil, fmt.Errorf("invalid storage key %q: %w", *change[0], err)
			}
			value, err := codec.HexDecodeString(*change[1])
			if err != nil {
				return nil, fmt.Errorf("invalid storage value for %q: %w", *change[0], err)
			}
			out = append(out, ledger.KeyValue{Key: key, Value: value})
		}
	}
	return out, nil
}

// ReadRange pages through the keys under the prefix and fetches each page's
// values in a single query, all at ref.
func (r *Reader) ReadRange(ctx context.Context, ref ledger.BlockRef, key ledger.Key) iter.Seq2[ledger.KeyValue, error] {
	return func(yield func(ledger.KeyValue, error) bool) {
		prefix := codec.HexEncodeToString(key.Prefix())
		at := ref.Hash.String()
		var startKey *string
		for {
			var keys []string
			err := r.call(ctx, &keys, "state_getKeysPaged", prefix, r.pageSize, startKey, at)
			if err != nil {
				yield(ledger.KeyValue{}, err)
				return
			}
			if len(keys) == 0 {
				return
			}
			var sets []changeSet
			if err := r.call(ctx, &sets, "state_queryStorageAt", keys, at); err != nil {
				yield(ledger.KeyValue{}, err)
				return
			}
			kvs, err := decodeChanges(sets)
			if err != nil {
				yield(ledger.KeyValue{}, errors.Wrap(errors.ChainUnavailable, err, "invalid storage page for %s", key))
				return
			}
			for _, kv := range kvs {
				if !yield(kv, nil) {
					return
				}
			}
			if len(keys) < r.pageSize {
				return
			}
			last := keys[len(keys)-1]
			startKey = &last
		}
	}
}

func findConstant(meta *types.Metadata, pallet string, name string) ([]byte, bool) {
	for _, p := range meta.AsMetadataV14.Pallets {
		if string(p.Name) != pallet {
			continue
		}
		for _, c := range p.Constants {
			if string(c.Name) == name {
				return c.Value, true
			}
		}
	}
	return nil, false
}

func (r *Reader) Constant(ctx context.Context, ref ledger.BlockRef, pallet string, name string) ([]byte, error) {
	meta, err := r.metadata(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	if value, ok := findConstant(meta, pallet, name); ok {
		return value, nil
	}
	meta, err = r.metadata(ctx, ref, true)
	if err != nil {
		return nil, err
	}
	if value, ok := findConstant(meta, pallet, name); ok {
		return value, nil
	}
	return nil, errors.MetricNotFoundf("runtime has no constant %s.%s", pallet, name)
}

// HeaderRef identifies a header by the blake2-256 hash of its SCALE encoding.
func HeaderRef(header types.Header) (ledger.BlockRef, error) {
	bz, err := codec.Encode(header)
	if err != nil {
		return ledger.BlockRef{}, err
	}
	hash := blake2b.Sum256(bz)
	return ledger.BlockRef{Hash: hash[:], Number: uint64(header.Number)}, nil
}

func (r *Reader) SubscribeFinalized(ctx context.Context) (<-chan ledger.BlockRef, <-chan error, error) {
	sub, err := await(ctx, func() (*finalizedHeads, error) {
		s, err := r.api.RPC.Chain.SubscribeFinalizedHeads()
		if err != nil {
			return nil, err
		}
		return &finalizedHeads{s.Chan(), s.Err(), s.Unsubscribe}, nil
	}, func(late *finalizedHeads) {
		late.unsubscribe()
	})
	if err != nil {
		return nil, nil, errors.Wrap(errors.ChainUnavailable, err, "could not subscribe to finalized heads")
	}

	blocks := make(chan ledger.BlockRef)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(blocks)
		defer sub.unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.errs:
				errs <- errors.Wrap(errors.ChainUnavailable, err, "finalized heads subscription failed")
				return
			case header, ok := <-sub.headers:
				if !ok {
					errs <- errors.ChainUnavailablef("finalized heads subscription closed")
					return
				}
				ref, err := HeaderRef(header)
				if err != nil {
					errs <- errors.Wrap(errors.ChainUnavailable, err, "could not hash header #%d", header.Number)
					return
				}
				select {
				case blocks <- ref:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return blocks, errs, nil
}

type finalizedHeads struct {
	headers     <-chan types.Header
	errs        <-chan error
	unsubscribe func()
}
