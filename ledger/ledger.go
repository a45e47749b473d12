// Package ledger defines read access to a ledger's storage pinned at a single block.
//
// Every aggregation pins exactly once and issues all of its reads against the
// returned BlockRef, so the values it combines come from the same state.
package ledger

import (
	"context"
	"fmt"
	"iter"

	"github.com/allfeat/explorer/pkg/hex"
	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"
	"golang.org/x/crypto/blake2b"
)

// BlockRef identifies the block a snapshot was pinned at.
type BlockRef struct {
	Hash   hex.Hex `json:"hash"`
	Number uint64  `json:"number"`
}

func (ref BlockRef) String() string {
	return fmt.Sprintf("#%d (%s)", ref.Number, ref.Hash)
}

// Key addresses a storage entry by pallet and item name. Args are the SCALE encoded
// map keys, empty for plain values and for range prefixes.
type Key struct {
	Pallet string
	Item   string
	Args   [][]byte
}

func NewKey(pallet string, item string, args ...[]byte) Key {
	return Key{Pallet: pallet, Item: item, Args: args}
}

func (k Key) String() string {
	if len(k.Args) == 0 {
		return k.Pallet + "." + k.Item
	}
	return fmt.Sprintf("%s.%s(%x)", k.Pallet, k.Item, k.Args)
}

// Prefix is twox128(pallet) ++ twox128(item), shared by every entry of the item.
func (k Key) Prefix() []byte {
	prefix := make([]byte, 0, 32)
	prefix = append(prefix, xxhash.New128([]byte(k.Pallet)).Sum(nil)...)
	prefix = append(prefix, xxhash.New128([]byte(k.Item)).Sum(nil)...)
	return prefix
}

// Blake2_128Concat is the map hasher used for every map key of the schema.
func Blake2_128Concat(arg []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(arg)
	return append(h.Sum(nil), arg...)
}

// KeyValue is a single entry returned by a range scan.
type KeyValue struct {
	// Full storage key, prefix included
	Key   []byte
	Value []byte
}

// Reader is a snapshot reader over ledger storage.
type Reader interface {
	// Pin resolves the block all subsequent reads of a pass are issued against.
	Pin(ctx context.Context) (BlockRef, error)
	// Read returns found=false when the entry does not exist at ref.
	Read(ctx context.Context, ref BlockRef, key Key) (value []byte, found bool, err error)
	// ReadRange lazily iterates every entry under the prefix of key. A failure is
	// yielded once as the final element.
	ReadRange(ctx context.Context, ref BlockRef, key Key) iter.Seq2[KeyValue, error]
	// Constant returns the SCALE encoded runtime constant.
	Constant(ctx context.Context, ref BlockRef, pallet string, name string) ([]byte, error)
	// SubscribeFinalized streams finalized blocks until ctx is done. The error channel
	// receives at most one error, after which both channels are closed.
	SubscribeFinalized(ctx context.Context) (<-chan BlockRef, <-chan error, error)
}

// Collect drains a range scan.
func Collect(seq iter.Seq2[KeyValue, error]) ([]KeyValue, error) {
	var out []KeyValue
	for kv, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, kv)
	}
	return out, nil
}
