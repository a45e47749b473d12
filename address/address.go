package address

import (
	"bytes"
	"fmt"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/errors"
	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	KeyLen      = 32
	checksumLen = 2
	// Largest prefix representable by the two byte form.
	MaxPrefix = 16383
)

var checksumPreimage = []byte("SS58PRE")

// AddressBuilder for SS58 addresses of a single network
type AddressBuilder struct {
	prefix xe.NetworkTag
}

var _ xe.AddressBuilder = AddressBuilder{}

// NewAddressBuilder creates a new AddressBuilder for the network prefix
func NewAddressBuilder(prefix xe.NetworkTag) (AddressBuilder, error) {
	if prefix > MaxPrefix {
		return AddressBuilder{}, fmt.Errorf("ss58 prefix %d out of range (max %d)", prefix, MaxPrefix)
	}
	return AddressBuilder{prefix: prefix}, nil
}

func (ab AddressBuilder) Prefix() xe.NetworkTag {
	return ab.prefix
}

// GetAddressFromPublicKey returns an Address given a public key
func (ab AddressBuilder) GetAddressFromPublicKey(publicKeyBytes []byte) (xe.Address, error) {
	if len(publicKeyBytes) == 33 {
		// drop address identifier
		publicKeyBytes = publicKeyBytes[1:]
	}
	if len(publicKeyBytes) != KeyLen {
		return xe.Address(""), fmt.Errorf("invalid public key, expecting %d bytes but got %d", KeyLen, len(publicKeyBytes))
	}
	var key xe.AccountKey
	copy(key[:], publicKeyBytes)
	return Encode(key, ab.prefix)
}

// Parse decodes addr and checks that it belongs to the builder's network.
func (ab AddressBuilder) Parse(addr string) (xe.AccountKey, error) {
	return Parse(addr, ab.prefix)
}

// PrefixBytes returns the one or two byte encoding of an SS58 prefix.
func PrefixBytes(prefix xe.NetworkTag) ([]byte, error) {
	switch {
	case prefix <= 63:
		return []byte{byte(prefix)}, nil
	case prefix <= MaxPrefix:
		p := uint16(prefix)
		return []byte{
			byte((p&0x00FC)>>2) | 0x40,
			byte(p>>8) | byte((p&0x0003)<<6),
		}, nil
	default:
		return nil, fmt.Errorf("ss58 prefix %d out of range (max %d)", prefix, MaxPrefix)
	}
}

func checksum(prefixBytes []byte, key []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(checksumPreimage)
	h.Write(prefixBytes)
	h.Write(key)
	return h.Sum(nil)[:checksumLen]
}

// Encode renders key as an SS58 address for the network prefix.
func Encode(key xe.AccountKey, prefix xe.NetworkTag) (xe.Address, error) {
	prefixBytes, err := PrefixBytes(prefix)
	if err != nil {
		return "", err
	}
	payload := make([]byte, 0, len(prefixBytes)+KeyLen+checksumLen)
	payload = append(payload, prefixBytes...)
	payload = append(payload, key[:]...)
	payload = append(payload, checksum(prefixBytes, key[:])...)
	return xe.Address(base58.Encode(payload)), nil
}

// MustEncode is Encode for prefixes known to be valid.
func MustEncode(key xe.AccountKey, prefix xe.NetworkTag) xe.Address {
	addr, err := Encode(key, prefix)
	if err != nil {
		panic(err)
	}
	return addr
}

func decodePrefix(decoded []byte) (xe.NetworkTag, int, error) {
	if len(decoded) == 0 {
		return 0, 0, fmt.Errorf("empty address")
	}
	first := decoded[0]
	switch {
	case first <= 63:
		return xe.NetworkTag(first), 1, nil
	case first < 128:
		if len(decoded) < 2 {
			return 0, 0, fmt.Errorf("address is too short")
		}
		second := decoded[1]
		lower := (first << 2) | (second >> 6)
		upper := second & 0x3F
		return xe.NetworkTag(uint16(lower) | uint16(upper)<<8), 2, nil
	default:
		return 0, 0, fmt.Errorf("reserved address prefix byte %d", first)
	}
}

// Decode reverses Encode, verifying the checksum.
func Decode(addr string) (xe.AccountKey, xe.NetworkTag, error) {
	var key xe.AccountKey
	decoded := base58.Decode(addr)
	if len(decoded) == 0 {
		return key, 0, errors.InvalidAddressFormatf("address %q is not valid base58", addr)
	}
	prefix, prefixLen, err := decodePrefix(decoded)
	if err != nil {
		return key, 0, errors.InvalidAddressFormatf("address %q: %v", addr, err)
	}
	if len(decoded) != prefixLen+KeyLen+checksumLen {
		return key, 0, errors.InvalidAddressFormatf("address %q has invalid length %d", addr, len(decoded))
	}
	body := decoded[prefixLen : prefixLen+KeyLen]
	expected := checksum(decoded[:prefixLen], body)
	if !bytes.Equal(expected, decoded[prefixLen+KeyLen:]) {
		return key, 0, errors.InvalidAddressFormatf("address %q has an invalid checksum", addr)
	}
	copy(key[:], body)
	return key, prefix, nil
}

// Parse decodes addr and requires it to use the expected network prefix.
func Parse(addr string, expected xe.NetworkTag) (xe.AccountKey, error) {
	key, prefix, err := Decode(addr)
	if err != nil {
		return key, err
	}
	if prefix != expected {
		return xe.AccountKey{}, errors.InvalidAddressFormatf("address %q uses network prefix %d, expected %d", addr, prefix, expected)
	}
	return key, nil
}
