package explorer

import "encoding/hex"

// Address is an SS58 encoded account on the ledger
type Address string

// AccountKey is the raw 32 byte public key behind an Address
type AccountKey [32]byte

func (k AccountKey) Bytes() []byte {
	return k[:]
}

func (k AccountKey) Hex() string {
	return "0x" + hex.EncodeToString(k[:])
}

// NetworkTag is the SS58 network prefix, 0..16383.
type NetworkTag uint16

// Allfeat mainnet prefix.
const DefaultNetworkTag NetworkTag = 440

// AddressBuilder is the interface for building addresses
type AddressBuilder interface {
	GetAddressFromPublicKey(publicKeyBytes []byte) (Address, error)
}
